package state

import (
	"fmt"

	"github.com/colorfulnotion/zkwitness/log"
	"github.com/colorfulnotion/zkwitness/storage"
	"github.com/colorfulnotion/zkwitness/types"
)

// Committer executes blocks on top of the last committed state and writes
// them to a LedgerStore as commit operations.
type Committer struct {
	store      *storage.LedgerStore
	sizes      []int
	state      *State
	hasGenesis bool
}

// NewCommitter resumes from the last block stored in store.
func NewCommitter(store *storage.LedgerStore, sizes []int) (*Committer, error) {
	c := &Committer{store: store, sizes: sizes}
	last, ok, err := store.LastCommittedBlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		c.state = New(0, nil)
		return c, nil
	}
	_, accounts, err := store.LoadCommittedState(&last)
	if err != nil {
		return nil, err
	}
	c.state = New(last, accounts)
	c.hasGenesis = true
	return c, nil
}

// Genesis writes the initial account set. It must be the first write.
func (c *Committer) Genesis(accounts map[types.AccountID]*types.Account) error {
	if c.hasGenesis {
		return fmt.Errorf("ledger already has blocks up to %d", c.state.Block())
	}
	for id, acc := range accounts {
		if err := types.CheckAccountID(id); err != nil {
			return err
		}
		if err := types.CheckBalances(acc); err != nil {
			return fmt.Errorf("genesis account %d: %w", id, err)
		}
	}
	if err := c.store.SaveGenesis(accounts); err != nil {
		return err
	}
	c.state = New(0, accounts)
	c.hasGenesis = true
	return nil
}

// State returns a copy of the last committed state.
func (c *Committer) State() *State {
	return New(c.state.Block(), c.state.accounts)
}

// CommitBlock executes ops as the next block, settles its fees into
// feeAccount and stores the commit. Noops are stored but do not count
// towards the block size, which is the smallest class fitting the rest.
// Nothing is written if any operation fails.
func (c *Committer) CommitBlock(ops []types.LedgerOp, feeAccount types.AccountID) (*types.Operation, error) {
	if !c.hasGenesis {
		if err := c.Genesis(nil); err != nil {
			return nil, err
		}
	}
	block := c.state.Block() + 1
	work := New(block, c.state.accounts)

	var fees []types.CollectedFee
	chunks := 0
	for i, op := range ops {
		fee, err := work.Execute(op)
		if err != nil {
			return nil, fmt.Errorf("block %d op %d (%s): %w", block, i, op.Type(), err)
		}
		if fee != nil {
			fees = append(fees, *fee)
		}
		if op.Type() != types.OpNoop {
			chunks += op.Type().Chunks()
		}
	}
	size, ok := types.SmallestBlockSize(chunks, c.sizes)
	if !ok {
		return nil, fmt.Errorf("block %d needs %d chunks, no size class in %v fits", block, chunks, c.sizes)
	}
	if err := work.SettleFees(feeAccount, fees); err != nil {
		return nil, fmt.Errorf("block %d: %w", block, err)
	}
	root, err := work.RootHash()
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", block, err)
	}

	op := &types.Operation{
		ID:     int64(block),
		Action: types.Action{Type: types.ActionCommit},
		Block: types.Block{
			BlockNumber: block,
			NewRootHash: root,
			FeeAccount:  feeAccount,
			BlockSize:   size,
			ChunksUsed:  chunks,
		},
	}
	if err := c.store.SaveCommit(op, ops, work.Diff()); err != nil {
		return nil, err
	}
	c.state = work
	log.Info(log.StateMonitoring, "block committed", "block", block, "size", size, "chunks", chunks, "ops", len(ops))
	return op, nil
}
