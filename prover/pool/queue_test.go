package pool

import (
	"errors"
	"testing"

	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/zkerrors"
)

// memLedger serves commits from memory. Only the refill path reads it.
type memLedger struct {
	commits []*types.Operation
	err     error
}

func (l *memLedger) add(block types.BlockNumber, size int) {
	l.commits = append(l.commits, &types.Operation{
		ID:     int64(block),
		Action: types.Action{Type: types.ActionCommit},
		Block:  types.Block{BlockNumber: block, BlockSize: size},
	})
}

func (l *memLedger) LoadUnverifiedCommitsAfterBlock(blockSize int, after types.BlockNumber, limit int) ([]*types.Operation, error) {
	if l.err != nil {
		return nil, l.err
	}
	var out []*types.Operation
	for _, op := range l.commits {
		if op.Block.BlockSize == blockSize && op.Block.BlockNumber > after && len(out) < limit {
			out = append(out, op)
		}
	}
	return out, nil
}

func (l *memLedger) LoadCommittedState(*types.BlockNumber) (types.BlockNumber, map[types.AccountID]*types.Account, error) {
	return 0, nil, zkerrors.ErrSStorageRead
}

func (l *memLedger) GetBlockOperations(types.BlockNumber) ([]types.LedgerOp, error) {
	return nil, zkerrors.ErrSStorageRead
}

func TestRefillAppendsAvailableBlocks(t *testing.T) {
	ledger := &memLedger{}
	ledger.add(1, 10)
	ledger.add(2, 32)
	ledger.add(3, 10)
	ledger.add(4, 10)

	q := newOperationsQueue(10)
	if err := q.refill(ledger, 5); err != nil {
		t.Fatalf("refill failed: %v", err)
	}
	if q.len() != 3 {
		t.Fatalf("Expected 3 queued blocks, got %d", q.len())
	}
	if q.lastLoadedBlock != 4 {
		t.Errorf("Expected last loaded block 4, got %d", q.lastLoadedBlock)
	}

	if err := q.refill(ledger, 5); err != nil {
		t.Fatalf("second refill failed: %v", err)
	}
	if q.len() != 3 {
		t.Errorf("Expected no new blocks, got %d queued", q.len())
	}
	if q.lastLoadedBlock != 4 {
		t.Errorf("Expected last loaded block to stay 4, got %d", q.lastLoadedBlock)
	}
}

func TestRefillStopsAtLimit(t *testing.T) {
	ledger := &memLedger{}
	for b := types.BlockNumber(1); b <= 3; b++ {
		ledger.add(b, 10)
	}

	q := newOperationsQueue(10)
	if err := q.refill(ledger, 2); err != nil {
		t.Fatalf("refill failed: %v", err)
	}
	if q.len() != 2 || q.lastLoadedBlock != 2 {
		t.Fatalf("Expected 2 blocks up to 2, got %d up to %d", q.len(), q.lastLoadedBlock)
	}

	// Full backlog: nothing is loaded.
	if err := q.refill(ledger, 2); err != nil {
		t.Fatalf("refill failed: %v", err)
	}
	if q.len() != 2 {
		t.Fatalf("Expected backlog to stay at 2, got %d", q.len())
	}

	if _, ok := q.takeNext(); !ok {
		t.Fatal("Expected a block to take")
	}
	if err := q.refill(ledger, 2); err != nil {
		t.Fatalf("refill failed: %v", err)
	}
	if got := q.blockNumbers(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Expected backlog [2 3], got %v", got)
	}
}

func TestRefillIsMonotonic(t *testing.T) {
	ledger := &memLedger{}
	q := newOperationsQueue(10)

	var prev types.BlockNumber
	for b := types.BlockNumber(1); b <= 12; b++ {
		ledger.add(b, 10)
		if err := q.refill(ledger, 4); err != nil {
			t.Fatalf("refill after block %d failed: %v", b, err)
		}
		if q.lastLoadedBlock < prev {
			t.Fatalf("last loaded block went back from %d to %d", prev, q.lastLoadedBlock)
		}
		if q.lastLoadedBlock > b {
			t.Fatalf("last loaded block %d is past the newest stored block %d", q.lastLoadedBlock, b)
		}
		prev = q.lastLoadedBlock
		if b%3 == 0 {
			q.takeNext()
		}
	}
}

func TestTakeNextIsFIFO(t *testing.T) {
	ledger := &memLedger{}
	for b := types.BlockNumber(5); b <= 8; b++ {
		ledger.add(b, 32)
	}
	q := newOperationsQueue(32)
	if err := q.refill(ledger, 10); err != nil {
		t.Fatalf("refill failed: %v", err)
	}

	for want := types.BlockNumber(5); want <= 8; want++ {
		op, ok := q.takeNext()
		if !ok {
			t.Fatalf("Expected block %d, queue empty", want)
		}
		if op.Block.BlockNumber != want {
			t.Errorf("Expected block %d, got %d", want, op.Block.BlockNumber)
		}
	}
	if _, ok := q.takeNext(); ok {
		t.Error("Expected empty queue")
	}
}

func TestRefillSurfacesStorageError(t *testing.T) {
	ledger := &memLedger{err: zkerrors.ErrSStorageRead}
	q := newOperationsQueue(10)
	err := q.refill(ledger, 3)
	if !errors.Is(err, zkerrors.ErrSStorageRead) {
		t.Fatalf("Expected storage read error, got %v", err)
	}
	if q.len() != 0 || q.lastLoadedBlock != 0 {
		t.Errorf("Expected untouched queue, got %d blocks up to %d", q.len(), q.lastLoadedBlock)
	}
}

func TestRefillRejectsOutOfOrderStorage(t *testing.T) {
	ledger := &memLedger{}
	ledger.add(3, 10)
	ledger.add(2, 10)
	q := newOperationsQueue(10)
	if err := q.refill(ledger, 5); err == nil {
		t.Fatal("Expected an error for descending blocks")
	}
}
