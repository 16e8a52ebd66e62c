package trie

import (
	"testing"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestSparseTreePathFoldsToRoot(t *testing.T) {
	tree := NewSparseMerkleTree(8, fr.Element{})
	for i, idx := range []uint64{0, 1, 7, 200, 255} {
		tree.SetLeaf(idx, FrFromUint64(uint64(i+10)))
	}
	root := tree.Root()
	for _, idx := range []uint64{0, 1, 7, 100, 200, 255} {
		got := RootFromPath(tree.Leaf(idx), idx, tree.Path(idx))
		require.True(t, got.Equal(&root), "leaf %d", idx)
	}
}

func TestSparseTreeResetToDefaultRestoresRoot(t *testing.T) {
	tree := NewSparseMerkleTree(6, fr.Element{})
	empty := tree.Root()

	tree.SetLeaf(5, FrFromUint64(42))
	changed := tree.Root()
	require.False(t, changed.Equal(&empty))

	tree.SetLeaf(5, fr.Element{})
	back := tree.Root()
	require.True(t, back.Equal(&empty))
	require.Empty(t, tree.nodes)
}

func TestSparseTreeCloneIsIndependent(t *testing.T) {
	tree := NewSparseMerkleTree(4, fr.Element{})
	tree.SetLeaf(3, FrFromUint64(1))
	before := tree.Root()

	c := tree.Clone()
	c.SetLeaf(3, FrFromUint64(2))

	after := tree.Root()
	require.True(t, before.Equal(&after))
	cr := c.Root()
	require.False(t, cr.Equal(&before))
}

func TestSparseTreeOutOfRangePanics(t *testing.T) {
	tree := NewSparseMerkleTree(3, fr.Element{})
	require.Panics(t, func() { tree.SetLeaf(8, FrFromUint64(1)) })
}

func TestAccountTreeInsertRemove(t *testing.T) {
	tree := NewAccountTree(types.AccountTreeDepth)
	empty := tree.RootHash()

	acc := types.NewAccount(common.HexToAddress("0x1234"))
	acc.AddBalance(0, uint256.NewInt(100))
	ca, err := CircuitAccountFromAccount(acc)
	require.NoError(t, err)
	tree.Insert(7, ca)
	require.Equal(t, 1, tree.Size())

	root := tree.RootHash()
	require.False(t, root.Equal(&empty))

	got, ok := tree.Get(7)
	require.True(t, ok)
	bal := got.Balance(0)
	want := FrFromUint64(100)
	require.True(t, bal.Equal(&want))

	leaf := got.Hash()
	folded := RootFromPath(leaf, 7, tree.MerklePath(7))
	require.True(t, folded.Equal(&root))

	tree.Remove(7)
	require.Equal(t, 0, tree.Size())
	after := tree.RootHash()
	require.True(t, after.Equal(&empty))
}

func TestAccountTreeGetReturnsCopy(t *testing.T) {
	tree := NewAccountTree(types.AccountTreeDepth)
	tree.Insert(1, NewCircuitAccount())
	root := tree.RootHash()

	acc, _ := tree.Get(1)
	acc.SetBalance(0, FrFromUint64(5))

	after := tree.RootHash()
	require.True(t, after.Equal(&root))
}

func TestEmptyAccountMatchesUnusedLeaf(t *testing.T) {
	tree := NewAccountTree(types.AccountTreeDepth)
	empty := tree.RootHash()

	tree.Insert(3, NewCircuitAccount())
	root := tree.RootHash()
	require.True(t, root.Equal(&empty))
	require.True(t, NewCircuitAccount().IsEmpty())
}

func TestFromAccountsIsOrderIndependent(t *testing.T) {
	accounts := map[types.AccountID]*types.Account{}
	for i := 0; i < 5; i++ {
		a := types.NewAccount(common.BytesToAddress([]byte{byte(i + 1)}))
		a.Nonce = types.Nonce(i)
		a.AddBalance(types.TokenID(i), uint256.NewInt(uint64(1000*i+1)))
		accounts[types.AccountID(i*3)] = a
	}
	built, err := FromAccounts(types.AccountTreeDepth, accounts)
	require.NoError(t, err)
	r1 := built.RootHash()

	tree := NewAccountTree(types.AccountTreeDepth)
	for _, id := range []types.AccountID{12, 0, 9, 3, 6} {
		ca, err := CircuitAccountFromAccount(accounts[id])
		require.NoError(t, err)
		tree.Insert(id, ca)
	}
	r2 := tree.RootHash()
	require.True(t, r1.Equal(&r2))
	require.Equal(t, []types.AccountID{0, 3, 6, 9, 12}, tree.IDs())
}

func TestBalancePathFoldsToBalanceRoot(t *testing.T) {
	tree := NewAccountTree(types.AccountTreeDepth)
	acc := NewCircuitAccount()
	acc.SetBalance(2, FrFromUint64(77))
	acc.SetBalance(9, FrFromUint64(3))
	tree.Insert(4, acc)

	stored, _ := tree.Get(4)
	want := stored.BalanceRoot()
	got := RootFromPath(stored.Balance(9), 9, tree.BalancePath(4, 9))
	require.True(t, got.Equal(&want))
}

func TestFromAccountsRejectsUnrepresentableSnapshots(t *testing.T) {
	bad := types.NewAccount(common.HexToAddress("0x05"))
	bad.AddBalance(40, uint256.NewInt(1))
	_, err := FromAccounts(types.AccountTreeDepth, map[types.AccountID]*types.Account{1: bad})
	require.ErrorIs(t, err, zkerrors.ErrLTokenOutOfRange)

	wide := types.NewAccount(common.HexToAddress("0x06"))
	wide.AddBalance(0, new(uint256.Int).Lsh(uint256.NewInt(1), 130))
	_, err = FromAccounts(types.AccountTreeDepth, map[types.AccountID]*types.Account{1: wide})
	require.ErrorIs(t, err, zkerrors.ErrLAmountTooWide)

	ok := types.NewAccount(common.HexToAddress("0x07"))
	_, err = FromAccounts(4, map[types.AccountID]*types.Account{16: ok})
	require.ErrorIs(t, err, zkerrors.ErrLUnknownAccount)
}
