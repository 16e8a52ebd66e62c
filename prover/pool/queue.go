// Package pool keeps prover data ready for committed blocks. It holds one
// FIFO backlog per block size, replays the oldest block of each class on
// every maintenance cycle and caches the result until a consumer releases it.
package pool

import (
	"fmt"

	"github.com/colorfulnotion/zkwitness/log"
	"github.com/colorfulnotion/zkwitness/storage"
	"github.com/colorfulnotion/zkwitness/types"
)

// operationsQueue is the backlog of unverified commits for one block size.
// Blocks are queued in ascending order and lastLoadedBlock never decreases.
type operationsQueue struct {
	blockSize       int
	ops             []*types.Operation
	lastLoadedBlock types.BlockNumber
}

func newOperationsQueue(blockSize int) *operationsQueue {
	return &operationsQueue{blockSize: blockSize}
}

// refill pulls commits after lastLoadedBlock until the backlog holds limit
// entries. A full backlog is left alone.
func (q *operationsQueue) refill(ledger storage.Ledger, limit int) error {
	if len(q.ops) >= limit {
		return nil
	}
	ops, err := ledger.LoadUnverifiedCommitsAfterBlock(q.blockSize, q.lastLoadedBlock, limit)
	if err != nil {
		return fmt.Errorf("failed to load commits of size %d after block %d: %w", q.blockSize, q.lastLoadedBlock, err)
	}
	for _, op := range ops {
		if op.Block.BlockNumber <= q.lastLoadedBlock {
			return fmt.Errorf("storage returned block %d for size %d, already loaded up to %d", op.Block.BlockNumber, q.blockSize, q.lastLoadedBlock)
		}
		q.ops = append(q.ops, op)
		q.lastLoadedBlock = op.Block.BlockNumber
	}
	if len(ops) > 0 {
		log.Trace(log.PoolMonitoring, "queue refilled", "size", q.blockSize, "added", len(ops), "backlog", q.blockNumbers())
	}
	return nil
}

// takeNext pops the oldest queued commit. The caller owns it from then on.
func (q *operationsQueue) takeNext() (*types.Operation, bool) {
	if len(q.ops) == 0 {
		return nil, false
	}
	op := q.ops[0]
	q.ops[0] = nil
	q.ops = q.ops[1:]
	return op, true
}

func (q *operationsQueue) len() int {
	return len(q.ops)
}

func (q *operationsQueue) blockNumbers() []types.BlockNumber {
	out := make([]types.BlockNumber, len(q.ops))
	for i, op := range q.ops {
		out[i] = op.Block.BlockNumber
	}
	return out
}
