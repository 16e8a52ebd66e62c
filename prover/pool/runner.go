package pool

import (
	"context"
	"sync"
	"time"

	"github.com/colorfulnotion/zkwitness/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/colorfulnotion/zkwitness/prover/pool")

// FatalFunc handles a failed maintenance cycle. The default logs at Crit,
// which exits the process.
type FatalFunc func(err error)

func defaultFatal(err error) {
	log.Crit(log.PoolMonitoring, "Maintenance Runner: cycle failed", "err", err)
}

// Runner drives the pool's maintenance loop.
type Runner struct {
	mu sync.RWMutex

	pool  *ProversDataPool
	fatal FatalFunc

	// Control
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewRunner creates a runner that maintains pool, pausing interval between
// cycles. A nil fatal uses the default handler.
func NewRunner(pool *ProversDataPool, interval time.Duration, fatal FatalFunc) *Runner {
	if fatal == nil {
		fatal = defaultFatal
	}
	return &Runner{
		pool:     pool,
		fatal:    fatal,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one cycle right away. Each following cycle starts interval
// after the previous one finished, however long that one took.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	log.Info(log.PoolMonitoring, "Maintenance Runner: Starting", "interval", r.interval)

	go r.runLoop(ctx, stopCh, doneCh)
}

// Stop ends the loop and waits for a cycle in progress to finish. It must
// not be called from the fatal handler.
func (r *Runner) Stop() {
	r.mu.Lock()
	doneCh := r.doneCh
	if doneCh == nil {
		r.mu.Unlock()
		return
	}
	if r.running {
		close(r.stopCh)
		r.running = false
	}
	r.mu.Unlock()

	<-doneCh
	log.Info(log.PoolMonitoring, "Maintenance Runner: Stopped")
}

func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *Runner) runLoop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		if !r.cycle(ctx) {
			r.halt()
			return
		}
		timer.Reset(r.interval)
		select {
		case <-ctx.Done():
			r.halt()
			return
		case <-stopCh:
			return
		case <-timer.C:
		}
	}
}

// halt marks the runner stopped from inside the loop.
func (r *Runner) halt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		close(r.stopCh)
		r.running = false
	}
}

// cycle runs one maintenance pass and reports whether the loop may go on.
func (r *Runner) cycle(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "MaintenanceCycle")
	defer span.End()

	start := time.Now()
	err := r.pool.Maintain(ctx)
	span.SetAttributes(attribute.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.fatal(err)
		return false
	}
	log.Trace(log.PoolMonitoring, "Maintenance Runner: cycle done", "elapsed", time.Since(start))
	return true
}
