package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/colorfulnotion/zkwitness/log"
	"github.com/colorfulnotion/zkwitness/prover"
	"github.com/colorfulnotion/zkwitness/storage"
	"github.com/colorfulnotion/zkwitness/telemetry"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// Options configures a ProversDataPool.
type Options struct {
	BlockChunkSizes []int
	// Limit is the backlog cap of every class without an entry in Limits.
	Limit  int
	Limits map[int]int
	// Parallel replays the classes of one cycle concurrently.
	Parallel bool
	Metrics  *telemetry.Metrics
}

// ProversDataPool tracks, per block size, the committed blocks that still
// need prover data and caches the prover data already built. One RWMutex
// guards all of it: maintenance holds the write lock for a whole cycle.
type ProversDataPool struct {
	mu sync.RWMutex

	ledger   storage.Ledger
	sizes    []int
	limits   map[int]int
	queues   map[int]*operationsQueue
	prepared map[types.BlockNumber]*prover.ProverData

	parallel bool
	metrics  *telemetry.Metrics
}

// ClassStats is a snapshot of one size class.
type ClassStats struct {
	BlockSize       int               `json:"block_size"`
	Limit           int               `json:"limit"`
	Depth           int               `json:"depth"`
	LastLoadedBlock types.BlockNumber `json:"last_loaded_block"`
}

type Stats struct {
	Classes  []ClassStats `json:"classes"`
	Prepared int          `json:"prepared"`
}

// NewProversDataPool creates one queue per configured block size. The set
// of sizes is fixed for the lifetime of the pool.
func NewProversDataPool(ledger storage.Ledger, opts Options) (*ProversDataPool, error) {
	if len(opts.BlockChunkSizes) == 0 {
		return nil, fmt.Errorf("%w: no block sizes", zkerrors.ErrCInvalidConfig)
	}
	sizes := slices.Clone(opts.BlockChunkSizes)
	slices.Sort(sizes)

	p := &ProversDataPool{
		ledger:   ledger,
		sizes:    sizes,
		limits:   make(map[int]int, len(sizes)),
		queues:   make(map[int]*operationsQueue, len(sizes)),
		prepared: make(map[types.BlockNumber]*prover.ProverData),
		parallel: opts.Parallel,
		metrics:  opts.Metrics,
	}
	for i, size := range sizes {
		if size <= 0 {
			return nil, fmt.Errorf("%w: block size %d", zkerrors.ErrCInvalidConfig, size)
		}
		if i > 0 && sizes[i-1] == size {
			return nil, fmt.Errorf("%w: duplicate block size %d", zkerrors.ErrCInvalidConfig, size)
		}
		limit, ok := opts.Limits[size]
		if !ok {
			limit = opts.Limit
		}
		if limit <= 0 {
			return nil, fmt.Errorf("%w: refill limit %d for block size %d", zkerrors.ErrCInvalidConfig, limit, size)
		}
		p.limits[size] = limit
		p.queues[size] = newOperationsQueue(size)
	}
	return p, nil
}

// RefillAll tops up every class backlog. The first storage error stops the
// pass; classes refilled before it keep their progress.
func (p *ProversDataPool) RefillAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refillAll()
}

func (p *ProversDataPool) refillAll() error {
	for _, size := range p.sizes {
		q := p.queues[size]
		err := q.refill(p.ledger, p.limits[size])
		p.metrics.ObserveQueue(size, q.len(), uint32(q.lastLoadedBlock))
		if err != nil {
			return err
		}
	}
	return nil
}

// PrepareNextAll replays at most one block per class and caches the result.
// A block whose replay fails has already left its queue and is not retried.
// Classes are served in ascending size order; sequentially, a failure leaves
// the backlog of every later class untouched.
func (p *ProversDataPool) PrepareNextAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prepareNextAll(ctx)
}

func (p *ProversDataPool) prepareNextAll(ctx context.Context) error {
	defer func() { p.metrics.SetPrepared(len(p.prepared)) }()

	if p.parallel {
		return p.prepareParallel(ctx)
	}
	for _, size := range p.sizes {
		op, ok := p.takeNext(size)
		if !ok {
			continue
		}
		pd, err := p.build(ctx, op)
		if err != nil {
			return err
		}
		p.prepared[op.Block.BlockNumber] = pd
	}
	return nil
}

// prepareParallel takes the head of every class before building any of
// them, so a failure drops the heads of all classes in this pass.
func (p *ProversDataPool) prepareParallel(ctx context.Context) error {
	var next []*types.Operation
	for _, size := range p.sizes {
		if op, ok := p.takeNext(size); ok {
			next = append(next, op)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, op := range next {
		op := op
		g.Go(func() error {
			pd, err := p.build(gctx, op)
			if err != nil {
				return err
			}
			mu.Lock()
			p.prepared[op.Block.BlockNumber] = pd
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (p *ProversDataPool) takeNext(size int) (*types.Operation, bool) {
	q := p.queues[size]
	op, ok := q.takeNext()
	p.metrics.ObserveQueue(size, q.len(), uint32(q.lastLoadedBlock))
	return op, ok
}

func (p *ProversDataPool) build(ctx context.Context, op *types.Operation) (*prover.ProverData, error) {
	start := time.Now()
	pd, err := prover.BuildProverData(ctx, p.ledger, op)
	if err != nil {
		return nil, fmt.Errorf("failed to build prover data for block %d: %w", op.Block.BlockNumber, err)
	}
	elapsed := time.Since(start)
	p.metrics.ObserveBuild(op.Block.BlockSize, elapsed)
	log.Debug(log.PoolMonitoring, "prover data prepared", "block", op.Block.BlockNumber, "size", op.Block.BlockSize, "pubdata", pd.PubdataDigest().String_short(), "elapsed", elapsed)
	return pd, nil
}

// Maintain runs one refill and prepare cycle under the write lock.
func (p *ProversDataPool) Maintain(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.refillAll(); err != nil {
		return err
	}
	return p.prepareNextAll(ctx)
}

// Get returns the prover data of block, if it is ready and not cleaned up.
func (p *ProversDataPool) Get(block types.BlockNumber) (*prover.ProverData, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pd, ok := p.prepared[block]
	return pd, ok
}

// CleanUp releases the prover data of block once its proof exists.
func (p *ProversDataPool) CleanUp(block types.BlockNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.prepared, block)
	p.metrics.SetPrepared(len(p.prepared))
}

// PreparedBlocks lists the cached block numbers in ascending order.
func (p *ProversDataPool) PreparedBlocks() []types.BlockNumber {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]types.BlockNumber, 0, len(p.prepared))
	for b := range p.prepared {
		out = append(out, b)
	}
	slices.Sort(out)
	return out
}

func (p *ProversDataPool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Stats{Prepared: len(p.prepared)}
	for _, size := range p.sizes {
		q := p.queues[size]
		s.Classes = append(s.Classes, ClassStats{
			BlockSize:       size,
			Limit:           p.limits[size],
			Depth:           q.len(),
			LastLoadedBlock: q.lastLoadedBlock,
		})
	}
	return s
}
