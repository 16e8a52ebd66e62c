package witness

import (
	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
)

// ApplyCloseAccountTx empties the account's leaf. The ledger only closes
// accounts with no balance left.
func ApplyCloseAccountTx(tree *trie.AccountTree, op *types.CloseOp) *OpWitness {
	return applySingle(tree, types.OpClose, op.AccountID, 0, OperationArguments{}, CloseAccountPubdata(op),
		func(*trie.CircuitAccount, bool) *trie.CircuitAccount { return nil })
}

func CloseAccountPubdata(op *types.CloseOp) []byte {
	return layoutPubdata(types.OpClose, common.Uint24ToBytes(uint32(op.AccountID)))
}
