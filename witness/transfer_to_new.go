package witness

import (
	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
)

// ApplyTransferToNewTx debits the sender and opens the recipient account at
// op.To with the transfer's destination address.
func ApplyTransferToNewTx(tree *trie.AccountTree, op *types.TransferToNewOp) *OpWitness {
	tx := op.Tx
	amount := trie.FrFromUint256(tx.Amount)
	fee := trie.FrFromUint256(tx.Fee)
	args := debitArgs(tree, op.From, tx.Token, amount, fee)
	args.EthAddress = trie.FrFromBytes(tx.To.Bytes())
	return applyPair(tree, types.OpTransferToNew, op.From, op.To, tx.Token, args, TransferToNewPubdata(op),
		debit(tx.Token, amount, fee),
		func(_ *trie.CircuitAccount, _ bool) *trie.CircuitAccount {
			acc := trie.NewCircuitAccount()
			acc.Address = args.EthAddress
			acc.AddBalance(tx.Token, &amount)
			return acc
		})
}

func TransferToNewPubdata(op *types.TransferToNewOp) []byte {
	return layoutPubdata(types.OpTransferToNew,
		common.Uint24ToBytes(uint32(op.From)),
		common.Uint16ToBytes(uint16(op.Tx.Token)),
		types.AmountBytes(op.Tx.Amount),
		op.Tx.To.Bytes(),
		common.Uint24ToBytes(uint32(op.To)),
		types.AmountBytes(op.Tx.Fee),
	)
}
