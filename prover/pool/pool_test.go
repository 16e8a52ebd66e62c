package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/colorfulnotion/zkwitness/common"
	"github.com/colorfulnotion/zkwitness/state"
	"github.com/colorfulnotion/zkwitness/storage"
	"github.com/colorfulnotion/zkwitness/telemetry"
	"github.com/colorfulnotion/zkwitness/types"
	"github.com/colorfulnotion/zkwitness/zkerrors"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func deposit(id types.AccountID, amount uint64) *types.DepositOp {
	return &types.DepositOp{
		AccountID: id,
		Address:   common.BytesToAddress([]byte{0xd0, byte(id)}),
		Token:     0,
		Amount:    uint256.NewInt(amount),
	}
}

// committedLedger stores blocks of sizes 10, 32, 10, 10 and 32.
func committedLedger(t *testing.T) *storage.LedgerStore {
	t.Helper()
	store, err := storage.OpenLedgerStore("")
	if err != nil {
		t.Fatalf("OpenLedgerStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c, err := state.NewCommitter(store, types.DefaultBlockChunkSizes)
	if err != nil {
		t.Fatalf("NewCommitter failed: %v", err)
	}
	blocks := [][]types.LedgerOp{
		{deposit(1, 100)},
		{deposit(1, 5), deposit(2, 7)},
		{deposit(3, 1)},
		{deposit(2, 9), &types.NoopOp{}},
		{deposit(4, 2), deposit(5, 3)},
	}
	for i, ops := range blocks {
		if _, err := c.CommitBlock(ops, 0); err != nil {
			t.Fatalf("CommitBlock %d failed: %v", i+1, err)
		}
	}
	return store
}

func newTestPool(t *testing.T, ledger storage.Ledger, opts Options) *ProversDataPool {
	t.Helper()
	if opts.BlockChunkSizes == nil {
		opts.BlockChunkSizes = types.DefaultBlockChunkSizes
	}
	if opts.Limit == 0 {
		opts.Limit = 5
	}
	p, err := NewProversDataPool(ledger, opts)
	if err != nil {
		t.Fatalf("NewProversDataPool failed: %v", err)
	}
	return p
}

func TestMaintainPreparesOneBlockPerClass(t *testing.T) {
	store := committedLedger(t)
	p := newTestPool(t, store, Options{})
	ctx := context.Background()

	if err := p.Maintain(ctx); err != nil {
		t.Fatalf("Maintain failed: %v", err)
	}
	if got := p.PreparedBlocks(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Expected blocks [1 2] after first cycle, got %v", got)
	}
	if _, ok := p.Get(3); ok {
		t.Error("Block 3 should not be ready after one cycle")
	}

	stats := p.Stats()
	if stats.Prepared != 2 || len(stats.Classes) != 3 {
		t.Fatalf("Unexpected stats %+v", stats)
	}
	if c := stats.Classes[0]; c.BlockSize != 10 || c.Depth != 2 || c.LastLoadedBlock != 4 {
		t.Errorf("Unexpected size 10 stats %+v", c)
	}
	if c := stats.Classes[1]; c.BlockSize != 32 || c.Depth != 1 || c.LastLoadedBlock != 5 {
		t.Errorf("Unexpected size 32 stats %+v", c)
	}
	if c := stats.Classes[2]; c.BlockSize != 72 || c.Depth != 0 || c.LastLoadedBlock != 0 {
		t.Errorf("Unexpected size 72 stats %+v", c)
	}

	for i := 0; i < 3; i++ {
		if err := p.Maintain(ctx); err != nil {
			t.Fatalf("Maintain failed: %v", err)
		}
	}
	if got := p.PreparedBlocks(); len(got) != 5 {
		t.Fatalf("Expected all 5 blocks prepared, got %v", got)
	}

	var prev types.BlockNumber
	for _, b := range p.PreparedBlocks() {
		pd, _ := p.Get(b)
		commits, err := store.LoadUnverifiedCommitsAfterBlock(len(pd.Operations), b-1, 1)
		if err != nil || len(commits) != 1 || commits[0].Block.BlockNumber != b {
			t.Fatalf("block %d: prover data size %d does not match its commit", b, len(pd.Operations))
		}
		if !pd.NewRoot.Equal(&commits[0].Block.NewRootHash) {
			t.Errorf("block %d: new root differs from the committed root", b)
		}
		if prev > 0 {
			before, _ := p.Get(prev)
			if !pd.OldRoot.Equal(&before.NewRoot) {
				t.Errorf("block %d: old root does not continue block %d", b, prev)
			}
		}
		prev = b
	}
}

func TestGetIsIdempotentAndCleanUpRemoves(t *testing.T) {
	p := newTestPool(t, committedLedger(t), Options{})
	if err := p.Maintain(context.Background()); err != nil {
		t.Fatalf("Maintain failed: %v", err)
	}

	first, ok := p.Get(1)
	if !ok {
		t.Fatal("Block 1 should be ready")
	}
	second, _ := p.Get(1)
	if first != second {
		t.Error("Get returned different prover data for the same block")
	}

	p.CleanUp(1)
	if _, ok := p.Get(1); ok {
		t.Error("Block 1 should be gone after CleanUp")
	}
	p.CleanUp(1)
	if _, ok := p.Get(2); !ok {
		t.Error("CleanUp of block 1 must not touch block 2")
	}
}

func TestParallelPrepareMatchesSequential(t *testing.T) {
	store := committedLedger(t)
	seq := newTestPool(t, store, Options{})
	par := newTestPool(t, store, Options{Parallel: true})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := seq.Maintain(ctx); err != nil {
			t.Fatalf("sequential Maintain failed: %v", err)
		}
		if err := par.Maintain(ctx); err != nil {
			t.Fatalf("parallel Maintain failed: %v", err)
		}
	}
	for _, b := range seq.PreparedBlocks() {
		a, _ := seq.Get(b)
		c, ok := par.Get(b)
		if !ok {
			t.Fatalf("block %d missing from parallel pool", b)
		}
		if !a.PublicDataCommitment.Equal(&c.PublicDataCommitment) {
			t.Errorf("block %d: commitments differ", b)
		}
	}
}

func TestPerClassLimits(t *testing.T) {
	p := newTestPool(t, committedLedger(t), Options{Limit: 1, Limits: map[int]int{10: 3}})
	if err := p.RefillAll(); err != nil {
		t.Fatalf("RefillAll failed: %v", err)
	}
	stats := p.Stats()
	if stats.Classes[0].Depth != 3 || stats.Classes[0].Limit != 3 {
		t.Errorf("Expected size 10 backlog of 3, got %+v", stats.Classes[0])
	}
	if stats.Classes[1].Depth != 1 || stats.Classes[1].Limit != 1 {
		t.Errorf("Expected size 32 backlog of 1, got %+v", stats.Classes[1])
	}
}

func TestPrepareNextAllOnEmptyPool(t *testing.T) {
	p := newTestPool(t, &memLedger{}, Options{})
	if err := p.PrepareNextAll(context.Background()); err != nil {
		t.Fatalf("PrepareNextAll failed: %v", err)
	}
	if len(p.PreparedBlocks()) != 0 {
		t.Error("Expected nothing prepared")
	}
}

func TestFailedReplayKeepsLaterClassBacklog(t *testing.T) {
	ledger := &memLedger{}
	ledger.add(1, 10)
	ledger.add(2, 32)
	p := newTestPool(t, ledger, Options{BlockChunkSizes: []int{10, 32}})

	if err := p.RefillAll(); err != nil {
		t.Fatalf("RefillAll failed: %v", err)
	}
	err := p.PrepareNextAll(context.Background())
	if !errors.Is(err, zkerrors.ErrSStorageRead) {
		t.Fatalf("Expected the storage error of block 1, got %v", err)
	}

	stats := p.Stats()
	if c := stats.Classes[0]; c.BlockSize != 10 || c.Depth != 0 {
		t.Errorf("Expected the failed size 10 block to have left its queue, got %+v", c)
	}
	if c := stats.Classes[1]; c.BlockSize != 32 || c.Depth != 1 {
		t.Errorf("Expected size 32 to keep its backlog, got %+v", c)
	}
	if stats.Prepared != 0 {
		t.Errorf("Expected nothing prepared, got %d", stats.Prepared)
	}
}

func TestPoolMetrics(t *testing.T) {
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	p := newTestPool(t, committedLedger(t), Options{Metrics: m})
	if err := p.Maintain(context.Background()); err != nil {
		t.Fatalf("Maintain failed: %v", err)
	}
	if got := testutil.ToFloat64(m.PreparedBlocks); got != 2 {
		t.Errorf("Expected 2 prepared, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("10")); got != 2 {
		t.Errorf("Expected size 10 depth 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.BuiltTotal.WithLabelValues("32")); got != 1 {
		t.Errorf("Expected one size 32 build, got %v", got)
	}
	p.CleanUp(1)
	if got := testutil.ToFloat64(m.PreparedBlocks); got != 1 {
		t.Errorf("Expected 1 prepared after CleanUp, got %v", got)
	}
}

func TestNewProversDataPoolRejectsBadOptions(t *testing.T) {
	cases := []Options{
		{Limit: 1},
		{BlockChunkSizes: []int{10, 0}, Limit: 1},
		{BlockChunkSizes: []int{10, 10}, Limit: 1},
		{BlockChunkSizes: []int{10}},
		{BlockChunkSizes: []int{10, 32}, Limit: 1, Limits: map[int]int{32: -1}},
	}
	for i, opts := range cases {
		if _, err := NewProversDataPool(&memLedger{}, opts); !errors.Is(err, zkerrors.ErrCInvalidConfig) {
			t.Errorf("case %d: expected invalid config error, got %v", i, err)
		}
	}
}

func TestRunnerPreparesUntilStopped(t *testing.T) {
	p := newTestPool(t, committedLedger(t), Options{})
	r := NewRunner(p, 10*time.Millisecond, func(err error) {
		t.Errorf("unexpected fatal error: %v", err)
	})

	r.Start(context.Background())
	if !r.IsRunning() {
		t.Fatal("Runner should be running")
	}
	deadline := time.Now().Add(30 * time.Second)
	for len(p.PreparedBlocks()) < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out, prepared %v", p.PreparedBlocks())
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()
	if r.IsRunning() {
		t.Error("Runner should be stopped")
	}
	r.Stop()
}

// slowLedger records when each refill starts and then takes delay to answer.
type slowLedger struct {
	memLedger
	delay time.Duration

	mu     sync.Mutex
	starts []time.Time
}

func (l *slowLedger) LoadUnverifiedCommitsAfterBlock(blockSize int, after types.BlockNumber, limit int) ([]*types.Operation, error) {
	l.mu.Lock()
	l.starts = append(l.starts, time.Now())
	l.mu.Unlock()
	time.Sleep(l.delay)
	return l.memLedger.LoadUnverifiedCommitsAfterBlock(blockSize, after, limit)
}

func (l *slowLedger) cycleStarts() []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Time(nil), l.starts...)
}

func TestRunnerWaitsIntervalAfterEachCycle(t *testing.T) {
	const (
		delay    = 60 * time.Millisecond
		interval = 40 * time.Millisecond
	)
	ledger := &slowLedger{delay: delay}
	p := newTestPool(t, ledger, Options{BlockChunkSizes: []int{10}})
	r := NewRunner(p, interval, func(err error) {
		t.Errorf("unexpected fatal error: %v", err)
	})

	r.Start(context.Background())
	deadline := time.Now().Add(10 * time.Second)
	for len(ledger.cycleStarts()) < 3 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for three cycles")
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()

	starts := ledger.cycleStarts()
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < delay+interval {
			t.Errorf("cycle %d started %v after the previous one, want at least %v", i, gap, delay+interval)
		}
	}
}

func TestRunnerHandsCycleErrorToFatal(t *testing.T) {
	ledger := &memLedger{err: zkerrors.ErrSStorageRead}
	p := newTestPool(t, ledger, Options{})

	var calls atomic.Int32
	fatalCh := make(chan error, 1)
	r := NewRunner(p, time.Millisecond, func(err error) {
		calls.Add(1)
		fatalCh <- err
	})
	r.Start(context.Background())

	select {
	case err := <-fatalCh:
		if !errors.Is(err, zkerrors.ErrSStorageRead) {
			t.Errorf("Expected storage read error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("fatal handler was not called")
	}
	r.Stop()
	if r.IsRunning() {
		t.Error("Runner should stop after a failed cycle")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("Expected exactly one fatal call, got %d", n)
	}
}

func TestRunnerStopsWithContext(t *testing.T) {
	p := newTestPool(t, &memLedger{}, Options{})
	r := NewRunner(p, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	deadline := time.Now().Add(5 * time.Second)
	for r.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("Runner did not stop after cancel")
		}
		time.Sleep(time.Millisecond)
	}
}
