package trie

import (
	"sync"

	"github.com/colorfulnotion/zkwitness/types"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// CircuitAccount is an account as the circuit sees it: every field is a
// scalar and balances live in a fixed-depth subtree indexed by token id.
type CircuitAccount struct {
	Nonce      fr.Element
	PubKeyHash fr.Element
	Address    fr.Element
	Subtree    *SparseMerkleTree
}

func NewCircuitAccount() *CircuitAccount {
	return &CircuitAccount{
		Subtree: NewSparseMerkleTree(types.BalanceTreeDepth, fr.Element{}),
	}
}

// CircuitAccountFromAccount converts a ledger account. Balances outside the
// balance tree or wider than types.MaxAmountBits are rejected.
func CircuitAccountFromAccount(a *types.Account) (*CircuitAccount, error) {
	if err := types.CheckBalances(a); err != nil {
		return nil, err
	}
	ca := NewCircuitAccount()
	ca.Nonce = FrFromUint64(uint64(a.Nonce))
	ca.PubKeyHash = FrFromBytes(a.PubKeyHash[:])
	ca.Address = FrFromBytes(a.Address.Bytes())
	for token, bal := range a.Balances {
		if bal == nil || bal.IsZero() {
			continue
		}
		ca.Subtree.SetLeaf(uint64(token), FrFromUint256(bal))
	}
	return ca, nil
}

func (a *CircuitAccount) Balance(token types.TokenID) fr.Element {
	return a.Subtree.Leaf(uint64(token))
}

func (a *CircuitAccount) SetBalance(token types.TokenID, v fr.Element) {
	a.Subtree.SetLeaf(uint64(token), v)
}

func (a *CircuitAccount) AddBalance(token types.TokenID, v *fr.Element) {
	cur := a.Balance(token)
	cur.Add(&cur, v)
	a.SetBalance(token, cur)
}

// SubBalance subtracts in the field. Underflow is not checked here: the
// ledger has already validated the operation.
func (a *CircuitAccount) SubBalance(token types.TokenID, v *fr.Element) {
	cur := a.Balance(token)
	cur.Sub(&cur, v)
	a.SetBalance(token, cur)
}

func (a *CircuitAccount) IncrementNonce() {
	one := FrFromUint64(1)
	a.Nonce.Add(&a.Nonce, &one)
}

func (a *CircuitAccount) BalanceRoot() fr.Element {
	return a.Subtree.Root()
}

// Hash is the account leaf: H(nonce, pubkey hash, address, balance root).
func (a *CircuitAccount) Hash() fr.Element {
	root := a.BalanceRoot()
	return hashElements(&a.Nonce, &a.PubKeyHash, &a.Address, &root)
}

// IsEmpty reports whether the account hashes like an unused leaf.
func (a *CircuitAccount) IsEmpty() bool {
	h := a.Hash()
	empty := EmptyAccountHash()
	return h.Equal(&empty)
}

func (a *CircuitAccount) Clone() *CircuitAccount {
	return &CircuitAccount{
		Nonce:      a.Nonce,
		PubKeyHash: a.PubKeyHash,
		Address:    a.Address,
		Subtree:    a.Subtree.Clone(),
	}
}

var (
	emptyAccountOnce sync.Once
	emptyAccountHash fr.Element
)

// EmptyAccountHash is the leaf value of an unused account slot.
func EmptyAccountHash() fr.Element {
	emptyAccountOnce.Do(func() {
		emptyAccountHash = NewCircuitAccount().Hash()
	})
	return emptyAccountHash
}
