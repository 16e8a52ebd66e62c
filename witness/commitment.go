package witness

import (
	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// PublicDataCommitment binds a block's number, fee account, roots and padded
// public data into the single public input of the circuit:
//
//	h = keccak(block || fee_account)
//	h = keccak(h || old_root)
//	h = keccak(h || new_root)
//	h = keccak(h || pubdata)
//
// with the top three bits of h cleared so it fits the field.
func PublicDataCommitment(block types.BlockNumber, feeAccount types.AccountID, oldRoot, newRoot fr.Element, pubdata []byte) fr.Element {
	blockBytes := make([]byte, 32)
	copy(blockBytes[28:], common.Uint32ToBytes(uint32(block)))
	feeBytes := make([]byte, 32)
	copy(feeBytes[28:], common.Uint32ToBytes(uint32(feeAccount)))

	oldBytes := oldRoot.Bytes()
	newBytes := newRoot.Bytes()

	h := common.Keccak256(blockBytes, feeBytes)
	h = common.Keccak256(h.Bytes(), oldBytes[:])
	h = common.Keccak256(h.Bytes(), newBytes[:])
	h = common.Keccak256(h.Bytes(), pubdata)

	out := h.Bytes()
	out[0] &= 0x1f
	return trie.FrFromBytes(out)
}
