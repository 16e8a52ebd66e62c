package trie

import (
	"fmt"

	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/exp/slices"
)

// AccountTree indexes circuit accounts by id under an authenticated root.
// Unused ids hash as EmptyAccountHash.
type AccountTree struct {
	tree     *SparseMerkleTree
	accounts map[types.AccountID]*CircuitAccount
}

func NewAccountTree(depth int) *AccountTree {
	return &AccountTree{
		tree:     NewSparseMerkleTree(depth, EmptyAccountHash()),
		accounts: make(map[types.AccountID]*CircuitAccount),
	}
}

func (t *AccountTree) Depth() int {
	return t.tree.Depth()
}

func (t *AccountTree) checkID(id types.AccountID) {
	if uint64(id) >= t.tree.Capacity() {
		panic(fmt.Sprintf("account tree: id %d out of range for depth %d", id, t.tree.Depth()))
	}
}

// Insert stores acc under id, replacing any previous account. The tree keeps
// the pointer; callers must not mutate acc afterwards without re-inserting.
func (t *AccountTree) Insert(id types.AccountID, acc *CircuitAccount) {
	t.checkID(id)
	t.accounts[id] = acc
	t.tree.SetLeaf(uint64(id), acc.Hash())
}

// Get returns a copy of the account at id.
func (t *AccountTree) Get(id types.AccountID) (*CircuitAccount, bool) {
	acc, ok := t.accounts[id]
	if !ok {
		return nil, false
	}
	return acc.Clone(), true
}

// GetOrEmpty returns a copy of the account at id, or a fresh empty account.
func (t *AccountTree) GetOrEmpty(id types.AccountID) *CircuitAccount {
	if acc, ok := t.Get(id); ok {
		return acc
	}
	return NewCircuitAccount()
}

func (t *AccountTree) Remove(id types.AccountID) {
	t.checkID(id)
	delete(t.accounts, id)
	t.tree.SetLeaf(uint64(id), EmptyAccountHash())
}

func (t *AccountTree) RootHash() fr.Element {
	return t.tree.Root()
}

// MerklePath is the account's audit path, leaf level first.
func (t *AccountTree) MerklePath(id types.AccountID) []fr.Element {
	t.checkID(id)
	return t.tree.Path(uint64(id))
}

func (t *AccountTree) Size() int {
	return len(t.accounts)
}

// IDs lists the stored account ids in ascending order.
func (t *AccountTree) IDs() []types.AccountID {
	ids := make([]types.AccountID, 0, len(t.accounts))
	for id := range t.accounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// BalancePath is the audit path of a token balance inside the account's
// subtree. Missing accounts yield the empty subtree path.
func (t *AccountTree) BalancePath(id types.AccountID, token types.TokenID) []fr.Element {
	acc := t.GetOrEmpty(id)
	return acc.Subtree.Path(uint64(token))
}

// FromAccounts materializes a ledger snapshot into a fresh tree. It fails on
// the first account the tree cannot hold.
func FromAccounts(depth int, accounts map[types.AccountID]*types.Account) (*AccountTree, error) {
	t := NewAccountTree(depth)
	for id, acc := range accounts {
		if uint64(id) >= t.tree.Capacity() {
			return nil, fmt.Errorf("%w: account id %d out of range for depth %d", zkerrors.ErrLUnknownAccount, id, depth)
		}
		ca, err := CircuitAccountFromAccount(acc)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", id, err)
		}
		t.Insert(id, ca)
	}
	return t, nil
}
