package witness

import (
	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
)

func ApplyWithdrawTx(tree *trie.AccountTree, op *types.WithdrawOp) *OpWitness {
	tx := op.Tx
	amount := trie.FrFromUint256(tx.Amount)
	fee := trie.FrFromUint256(tx.Fee)
	args := debitArgs(tree, op.AccountID, tx.Token, amount, fee)
	args.EthAddress = trie.FrFromBytes(tx.EthAddress.Bytes())
	return applySingle(tree, types.OpWithdraw, op.AccountID, tx.Token, args, WithdrawPubdata(op),
		debit(tx.Token, amount, fee))
}

func WithdrawPubdata(op *types.WithdrawOp) []byte {
	return layoutPubdata(types.OpWithdraw,
		common.Uint24ToBytes(uint32(op.AccountID)),
		common.Uint16ToBytes(uint16(op.Tx.Token)),
		types.AmountBytes(op.Tx.Amount),
		types.AmountBytes(op.Tx.Fee),
		op.Tx.EthAddress.Bytes(),
	)
}
