package witness

import (
	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ApplyFullExitTx zeroes the exited token balance when the exit succeeded.
// A failed exit leaves the tree untouched but still occupies its slots.
func ApplyFullExitTx(tree *trie.AccountTree, op *types.FullExitOp, success bool) *OpWitness {
	args := OperationArguments{
		EthAddress: trie.FrFromBytes(op.EthAddress.Bytes()),
		Amount:     trie.FrFromUint256(op.WithdrawAmount),
	}
	return applySingle(tree, types.OpFullExit, op.AccountID, op.Token, args, FullExitPubdata(op, success),
		func(acc *trie.CircuitAccount, exists bool) *trie.CircuitAccount {
			if !success {
				if !exists {
					return nil
				}
				return acc
			}
			acc.SetBalance(op.Token, fr.Element{})
			return acc
		})
}

func FullExitPubdata(op *types.FullExitOp, success bool) []byte {
	flag := byte(0)
	if success {
		flag = 1
	}
	return layoutPubdata(types.OpFullExit,
		common.Uint24ToBytes(uint32(op.AccountID)),
		op.EthAddress.Bytes(),
		common.Uint16ToBytes(uint16(op.Token)),
		types.AmountBytes(op.WithdrawAmount),
		[]byte{flag},
	)
}
