package witness

import (
	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
)

// ApplyDepositTx credits the deposit, creating the account with the
// deposit's address when the id is unused.
func ApplyDepositTx(tree *trie.AccountTree, op *types.DepositOp) *OpWitness {
	amount := trie.FrFromUint256(op.Amount)
	address := trie.FrFromBytes(op.Address.Bytes())
	args := OperationArguments{
		EthAddress: address,
		Amount:     amount,
	}
	return applySingle(tree, types.OpDeposit, op.AccountID, op.Token, args, DepositPubdata(op),
		func(acc *trie.CircuitAccount, exists bool) *trie.CircuitAccount {
			if !exists {
				acc.Address = address
			}
			acc.AddBalance(op.Token, &amount)
			return acc
		})
}

func DepositPubdata(op *types.DepositOp) []byte {
	return layoutPubdata(types.OpDeposit,
		common.Uint24ToBytes(uint32(op.AccountID)),
		common.Uint16ToBytes(uint16(op.Token)),
		types.AmountBytes(op.Amount),
		op.Address.Bytes(),
	)
}
