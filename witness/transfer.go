package witness

import (
	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
)

func ApplyTransferTx(tree *trie.AccountTree, op *types.TransferOp) *OpWitness {
	tx := op.Tx
	amount := trie.FrFromUint256(tx.Amount)
	fee := trie.FrFromUint256(tx.Fee)
	args := debitArgs(tree, op.From, tx.Token, amount, fee)
	return applyPair(tree, types.OpTransfer, op.From, op.To, tx.Token, args, TransferPubdata(op),
		debit(tx.Token, amount, fee),
		credit(tx.Token, amount))
}

func TransferPubdata(op *types.TransferOp) []byte {
	return layoutPubdata(types.OpTransfer,
		common.Uint24ToBytes(uint32(op.From)),
		common.Uint16ToBytes(uint16(op.Tx.Token)),
		common.Uint24ToBytes(uint32(op.To)),
		types.AmountBytes(op.Tx.Amount),
		types.AmountBytes(op.Tx.Fee),
	)
}
