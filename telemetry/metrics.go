// Package telemetry exports the prover data pool's metrics and sets up
// tracing for replays and maintenance cycles.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "prover_data"

// Metrics holds the pool collectors. A nil *Metrics is valid and records
// nothing, so callers never need to check for it.
type Metrics struct {
	QueueDepth      *prometheus.GaugeVec
	LastLoadedBlock *prometheus.GaugeVec
	PreparedBlocks  prometheus.Gauge
	BuiltTotal      *prometheus.CounterVec
	BuildSeconds    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Committed blocks waiting for replay, per block size.",
		}, []string{"block_size"}),
		LastLoadedBlock: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_loaded_block",
			Help:      "Highest block pulled from storage, per block size.",
		}, []string{"block_size"}),
		PreparedBlocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "prepared_blocks",
			Help:      "Blocks with prover data ready and not yet cleaned up.",
		}),
		BuiltTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "built_total",
			Help:      "Prover data builds completed, per block size.",
		}, []string{"block_size"}),
		BuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_seconds",
			Help:      "Time spent replaying one block.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.QueueDepth, m.LastLoadedBlock, m.PreparedBlocks, m.BuiltTotal, m.BuildSeconds)
	}
	return m
}

func sizeLabel(blockSize int) string {
	return strconv.Itoa(blockSize)
}

// ObserveQueue records the backlog of one size class.
func (m *Metrics) ObserveQueue(blockSize, depth int, lastLoaded uint32) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(sizeLabel(blockSize)).Set(float64(depth))
	m.LastLoadedBlock.WithLabelValues(sizeLabel(blockSize)).Set(float64(lastLoaded))
}

// ObserveBuild records one finished replay.
func (m *Metrics) ObserveBuild(blockSize int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BuiltTotal.WithLabelValues(sizeLabel(blockSize)).Inc()
	m.BuildSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) SetPrepared(n int) {
	if m == nil {
		return
	}
	m.PreparedBlocks.Set(float64(n))
}
