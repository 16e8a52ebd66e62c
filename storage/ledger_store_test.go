package storage

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *LedgerStore {
	t.Helper()
	s, err := OpenLedgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func commitOp(block types.BlockNumber, size int) *types.Operation {
	return &types.Operation{
		ID:     int64(block),
		Action: types.Action{Type: types.ActionCommit},
		Block:  types.Block{BlockNumber: block, BlockSize: size},
	}
}

func account(addr byte, balance uint64) *types.Account {
	a := types.NewAccount(common.BytesToAddress([]byte{addr}))
	a.AddBalance(0, uint256.NewInt(balance))
	return a
}

func TestLoadUnverifiedCommitsFiltersBySizeAndVerification(t *testing.T) {
	s := newTestLedger(t)
	require.NoError(t, s.SaveGenesis(nil))

	sizes := []int{10, 32, 10, 10, 32, 10}
	for i, size := range sizes {
		block := types.BlockNumber(i + 1)
		require.NoError(t, s.SaveCommit(commitOp(block, size), []types.LedgerOp{&types.NoopOp{}}, nil))
	}
	require.NoError(t, s.MarkVerified(3))

	ops, err := s.LoadUnverifiedCommitsAfterBlock(10, 0, 10)
	require.NoError(t, err)
	var got []types.BlockNumber
	for _, op := range ops {
		got = append(got, op.Block.BlockNumber)
	}
	require.Equal(t, []types.BlockNumber{1, 4, 6}, got)

	ops, err = s.LoadUnverifiedCommitsAfterBlock(10, 1, 1)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Equal(t, types.BlockNumber(4), ops[0].Block.BlockNumber)

	ops, err = s.LoadUnverifiedCommitsAfterBlock(32, 5, 10)
	require.NoError(t, err)
	require.Empty(t, ops)

	ops, err = s.LoadUnverifiedCommitsAfterBlock(72, 0, 10)
	require.NoError(t, err)
	require.Empty(t, ops)
}

func TestLoadCommittedStateAppliesDiffs(t *testing.T) {
	s := newTestLedger(t)
	require.NoError(t, s.SaveGenesis(map[types.AccountID]*types.Account{
		1: account(1, 100),
		2: account(2, 50),
	}))
	require.NoError(t, s.SaveCommit(commitOp(1, 10), nil, map[types.AccountID]*types.Account{
		1: account(1, 90),
		3: account(3, 10),
	}))
	require.NoError(t, s.SaveCommit(commitOp(2, 10), nil, map[types.AccountID]*types.Account{
		2: nil,
	}))

	marker, genesis, err := s.LoadCommittedState(nil)
	require.NoError(t, err)
	require.Equal(t, types.BlockNumber(0), marker)
	require.Len(t, genesis, 2)
	require.Equal(t, uint64(100), genesis[1].GetBalance(0).Uint64())

	one := types.BlockNumber(1)
	_, state1, err := s.LoadCommittedState(&one)
	require.NoError(t, err)
	require.Len(t, state1, 3)
	require.Equal(t, uint64(90), state1[1].GetBalance(0).Uint64())

	far := types.BlockNumber(99)
	marker, state2, err := s.LoadCommittedState(&far)
	require.NoError(t, err)
	require.Equal(t, types.BlockNumber(2), marker)
	require.Len(t, state2, 2)
	require.NotContains(t, state2, types.AccountID(2))
}

func TestBlockOperationsRoundTrip(t *testing.T) {
	s := newTestLedger(t)
	ops := []types.LedgerOp{
		&types.DepositOp{AccountID: 1, Amount: uint256.NewInt(5)},
		&types.NoopOp{},
	}
	require.NoError(t, s.SaveCommit(commitOp(1, 10), ops, nil))

	got, err := s.GetBlockOperations(1)
	require.NoError(t, err)
	require.Equal(t, ops, got)

	_, err = s.GetBlockOperations(2)
	require.True(t, errors.Is(err, zkerrors.ErrSStorageRead))

	last, ok, err := s.LastCommittedBlock()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, types.BlockNumber(1), last)
}

func TestSaveCommitRejectsVerifyAction(t *testing.T) {
	s := newTestLedger(t)
	op := commitOp(1, 10)
	op.Action.Type = types.ActionVerify
	err := s.SaveCommit(op, nil, nil)
	require.True(t, errors.Is(err, zkerrors.ErrSStorageWrite))
}
