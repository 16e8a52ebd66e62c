package witness

import (
	"github.com/colorfulnotion/zkwitness/trie"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/exp/slices"
)

// WitnessBuilder accumulates the circuit operations and public data of one
// block replay. It owns its account tree for the duration of the replay.
type WitnessBuilder struct {
	AccountTree *trie.AccountTree
	FeeAccount  types.AccountID
	BlockNumber types.BlockNumber

	Operations []Operation
	Pubdata    []byte

	RootBeforeFees      *fr.Element
	RootAfterFees       *fr.Element
	FeeAccountBalances  []fr.Element
	FeeAccountAuditPath []fr.Element
	FeeAccountWitness   *AccountWitness
	PubdataCommitment   *fr.Element

	initialRoot fr.Element
}

func NewWitnessBuilder(tree *trie.AccountTree, feeAccount types.AccountID, block types.BlockNumber) *WitnessBuilder {
	return &WitnessBuilder{
		AccountTree: tree,
		FeeAccount:  feeAccount,
		BlockNumber: block,
		initialRoot: tree.RootHash(),
	}
}

// InitialRoot is the tree root when the builder was created.
func (b *WitnessBuilder) InitialRoot() fr.Element {
	return b.initialRoot
}

func (b *WitnessBuilder) AddOperationWithPubdata(ops []Operation, pubdata []byte) {
	b.Operations = append(b.Operations, ops...)
	b.Pubdata = append(b.Pubdata, pubdata...)
}

// ExtendPubdataWithNoops pads the public data to blockSize chunks and the
// operation list to blockSize slots. Padding slots point at the fee
// account's token 0 branch and leave the root unchanged. Nothing is trimmed
// if a stream is already longer.
func (b *WitnessBuilder) ExtendPubdataWithNoops(blockSize int) {
	for len(b.Pubdata) < blockSize*types.ChunkBytes {
		b.Pubdata = append(b.Pubdata, make([]byte, types.ChunkBytes)...)
	}
	if len(b.Operations) >= blockSize {
		return
	}
	noop := b.noopOperation()
	for len(b.Operations) < blockSize {
		op := noop
		op.PubdataChunk = make([]byte, types.ChunkBytes)
		b.Operations = append(b.Operations, op)
	}
}

func (b *WitnessBuilder) noopOperation() Operation {
	branch := captureBranch(b.AccountTree, b.FeeAccount, 0)
	return Operation{
		NewRoot: b.AccountTree.RootHash(),
		TxType:  trie.FrFromUint64(uint64(types.OpNoop)),
		Chunk:   fr.Element{},
		Lhs:     branch,
		Rhs:     branch,
	}
}

// CollectFees credits the collected fees to the fee account, one token at a
// time in ascending token order, and records the fee account's resulting
// balances, audit path and witness.
func (b *WitnessBuilder) CollectFees(fees []types.CollectedFee) {
	before := b.AccountTree.RootHash()
	b.RootBeforeFees = &before

	totals := make(map[types.TokenID]fr.Element)
	for _, f := range fees {
		amount := trie.FrFromUint256(f.Amount)
		sum := totals[f.Token]
		sum.Add(&sum, &amount)
		totals[f.Token] = sum
	}
	tokens := make([]types.TokenID, 0, len(totals))
	for t := range totals {
		tokens = append(tokens, t)
	}
	slices.Sort(tokens)

	if len(tokens) > 0 {
		acc := b.AccountTree.GetOrEmpty(b.FeeAccount)
		for _, t := range tokens {
			amount := totals[t]
			acc.AddBalance(t, &amount)
		}
		b.AccountTree.Insert(b.FeeAccount, acc)
	}

	after := b.AccountTree.RootHash()
	b.RootAfterFees = &after

	acc := b.AccountTree.GetOrEmpty(b.FeeAccount)
	balances := make([]fr.Element, types.TotalTokens())
	for i := range balances {
		balances[i] = acc.Balance(types.TokenID(i))
	}
	b.FeeAccountBalances = balances
	b.FeeAccountAuditPath = b.AccountTree.MerklePath(b.FeeAccount)
	w := AccountWitnessFromCircuitAccount(acc)
	b.FeeAccountWitness = &w
}

// CalculatePubdataCommitment must run after CollectFees.
func (b *WitnessBuilder) CalculatePubdataCommitment() {
	c := PublicDataCommitment(b.BlockNumber, b.FeeAccount, b.initialRoot, *b.RootAfterFees, b.Pubdata)
	b.PubdataCommitment = &c
}
