package witness

import (
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// AccountWitness is the preimage of an account leaf.
type AccountWitness struct {
	Nonce       fr.Element `json:"nonce"`
	PubKeyHash  fr.Element `json:"pub_key_hash"`
	Address     fr.Element `json:"address"`
	BalanceRoot fr.Element `json:"balance_root"`
}

func AccountWitnessFromCircuitAccount(acc *trie.CircuitAccount) AccountWitness {
	return AccountWitness{
		Nonce:       acc.Nonce,
		PubKeyHash:  acc.PubKeyHash,
		Address:     acc.Address,
		BalanceRoot: acc.BalanceRoot(),
	}
}

// Hash recomputes the account leaf from the witness.
func (w *AccountWitness) Hash() fr.Element {
	return trie.HashElements(&w.Nonce, &w.PubKeyHash, &w.Address, &w.BalanceRoot)
}

type BranchWitness struct {
	Account            AccountWitness `json:"account"`
	AccountPath        []fr.Element   `json:"account_path"`
	BalanceValue       fr.Element     `json:"balance_value"`
	BalanceSubtreePath []fr.Element   `json:"balance_subtree_path"`
}

// OperationBranch is one account/token leaf as seen by a circuit slot.
type OperationBranch struct {
	Address fr.Element    `json:"address"`
	Token   fr.Element    `json:"token"`
	Witness BranchWitness `json:"witness"`
}

// captureBranch snapshots the account and balance paths of (id, token) in
// the current state of tree.
func captureBranch(tree *trie.AccountTree, id types.AccountID, token types.TokenID) OperationBranch {
	acc := tree.GetOrEmpty(id)
	return OperationBranch{
		Address: trie.FrFromUint64(uint64(id)),
		Token:   trie.FrFromUint64(uint64(token)),
		Witness: BranchWitness{
			Account:            AccountWitnessFromCircuitAccount(acc),
			AccountPath:        tree.MerklePath(id),
			BalanceValue:       acc.Balance(token),
			BalanceSubtreePath: acc.Subtree.Path(uint64(token)),
		},
	}
}

// BranchPair holds the left and right hand branches of a slot. Single
// account operations use the same branch on both sides.
type BranchPair struct {
	Lhs OperationBranch
	Rhs OperationBranch
}

func capturePair(tree *trie.AccountTree, lhs, rhs types.AccountID, token types.TokenID) BranchPair {
	return BranchPair{
		Lhs: captureBranch(tree, lhs, token),
		Rhs: captureBranch(tree, rhs, token),
	}
}

type OperationArguments struct {
	EthAddress    fr.Element `json:"eth_address"`
	Amount        fr.Element `json:"amount"`
	Fee           fr.Element `json:"fee"`
	NewPubKeyHash fr.Element `json:"new_pub_key_hash"`
	// A and B are the operands of the balance check: balance before and the
	// amount debited from it.
	A fr.Element `json:"a"`
	B fr.Element `json:"b"`
}

// SignatureData is the bit decomposition of a packed signature.
type SignatureData struct {
	RPacked []bool `json:"r_packed"`
	S       []bool `json:"s"`
}

// Operation is one circuit slot. Every slot carries exactly one chunk of
// public data.
type Operation struct {
	NewRoot            fr.Element         `json:"new_root"`
	TxType             fr.Element         `json:"tx_type"`
	Chunk              fr.Element         `json:"chunk"`
	PubdataChunk       []byte             `json:"pubdata_chunk"`
	FirstSigMsg        fr.Element         `json:"first_sig_msg"`
	SecondSigMsg       fr.Element         `json:"second_sig_msg"`
	ThirdSigMsg        fr.Element         `json:"third_sig_msg"`
	SignatureData      SignatureData      `json:"signature_data"`
	SignerPubKeyPacked []bool             `json:"signer_pub_key_packed"`
	Args               OperationArguments `json:"args"`
	Lhs                OperationBranch    `json:"lhs"`
	Rhs                OperationBranch    `json:"rhs"`
}

// OpWitness records what one ledger operation did to the tree: the touched
// branches before, between and after its account updates, the resulting
// roots and its public data.
type OpWitness struct {
	TxType           types.OpType
	Args             OperationArguments
	Before           BranchPair
	Intermediate     BranchPair
	After            BranchPair
	BeforeRoot       fr.Element
	IntermediateRoot fr.Element
	AfterRoot        fr.Element
	Pubdata          []byte
}

// CalculateOperations expands the witness into one circuit operation per
// chunk. The first slot sees the branches before the update, the rest the
// intermediate ones. sig is nil for unsigned operations.
func (w *OpWitness) CalculateOperations(sig *TxSignatureWitness) []Operation {
	chunks := w.TxType.Chunks()
	ops := make([]Operation, 0, chunks)
	for i := 0; i < chunks; i++ {
		op := Operation{
			NewRoot:      w.AfterRoot,
			TxType:       trie.FrFromUint64(uint64(w.TxType)),
			Chunk:        trie.FrFromUint64(uint64(i)),
			PubdataChunk: chunkAt(w.Pubdata, i),
			Args:         w.Args,
			Lhs:          w.Intermediate.Lhs,
			Rhs:          w.Intermediate.Rhs,
		}
		if i == 0 {
			op.NewRoot = w.IntermediateRoot
			op.Lhs = w.Before.Lhs
			op.Rhs = w.Before.Rhs
		}
		if sig != nil {
			op.FirstSigMsg = sig.FirstSigMsg
			op.SecondSigMsg = sig.SecondSigMsg
			op.ThirdSigMsg = sig.ThirdSigMsg
			op.SignatureData = sig.Signature
			op.SignerPubKeyPacked = sig.SignerPubKeyPacked
		}
		ops = append(ops, op)
	}
	return ops
}

func chunkAt(pubdata []byte, i int) []byte {
	out := make([]byte, types.ChunkBytes)
	start := i * types.ChunkBytes
	if start < len(pubdata) {
		copy(out, pubdata[start:])
	}
	return out
}

// layoutPubdata lays out the encoded fields of an operation and zero-pads
// them to the operation's chunk count.
func layoutPubdata(t types.OpType, fields ...[]byte) []byte {
	out := make([]byte, 0, t.Chunks()*types.ChunkBytes)
	out = append(out, byte(t))
	for _, f := range fields {
		out = append(out, f...)
	}
	if len(out) > t.Chunks()*types.ChunkBytes {
		return out
	}
	padded := make([]byte, t.Chunks()*types.ChunkBytes)
	copy(padded, out)
	return padded
}
