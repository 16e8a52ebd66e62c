package witness

import (
	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
)

func ApplyChangePubKeyTx(tree *trie.AccountTree, op *types.ChangePubKeyOp) *OpWitness {
	pkh := trie.FrFromBytes(op.Tx.NewPubKeyHash[:])
	args := OperationArguments{NewPubKeyHash: pkh}
	return applySingle(tree, types.OpChangePubKey, op.AccountID, 0, args, ChangePubKeyPubdata(op),
		func(acc *trie.CircuitAccount, _ bool) *trie.CircuitAccount {
			acc.PubKeyHash = pkh
			acc.IncrementNonce()
			return acc
		})
}

func ChangePubKeyPubdata(op *types.ChangePubKeyOp) []byte {
	return layoutPubdata(types.OpChangePubKey,
		common.Uint24ToBytes(uint32(op.AccountID)),
		op.Tx.NewPubKeyHash[:],
		op.Tx.Account.Bytes(),
		common.Uint32ToBytes(uint32(op.Tx.Nonce)),
	)
}
