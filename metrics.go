package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by authcore APIs.
//
// MetricID instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type MetricID uint16

// Counter identifiers. The order is append-only: exporters index by ID.
const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginBlocked
	MetricIPBanned
	MetricRegisterSuccess
	MetricRegisterRollback
	MetricOTPVerified
	MetricOTPResent
	MetricOTPRejected
	MetricResetRequested
	MetricResetCompleted
	MetricResetRejected
	MetricOAuthLogin
	MetricLogout
	MetricTokenValidated
	MetricTokenRejected
	MetricSessionCreated
	MetricSessionEvicted
	MetricSessionTerminated
	MetricPermissionDenied
	MetricBotDetected

	metricIDCount
)

// Histogram identifiers.
const (
	HistogramLoginLatency MetricID = iota
	HistogramValidateLatency

	histogramIDCount
)

const cacheLineSize = 64

// paddedCounter occupies a full cache line so adjacent counters do not false-share.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Latency bucket upper bounds in milliseconds; the last bucket is +Inf.
var histogramBucketMS = [7]uint64{5, 10, 25, 50, 100, 250, 500}

type metricHistogram struct {
	buckets [8]paddedCounter
}

func bucketIndex(d time.Duration) int {
	ms := uint64(d.Milliseconds())
	for i, bound := range histogramBucketMS {
		if ms <= bound {
			return i
		}
	}
	return len(histogramBucketMS)
}

// Metrics is the engine's lock-free counter set. All operations are atomic; a disabled
// Metrics value is a no-op on every path.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [histogramIDCount]metricHistogram
}

func newMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled, enableLatency: cfg.EnableLatencyHistograms}
}

// Inc describes the inc operation and its observable behavior.
//
// Inc does not mutate shared global state and can be used concurrently when the receiver
// and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe describes the observe operation and its observable behavior.
//
// Observe does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= histogramIDCount {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)].value, 1)
}

// Value describes the value operation and its observable behavior.
//
// Value does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// MetricsSnapshot defines a public type used by authcore APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][8]uint64
}

// Snapshot copies every counter and histogram bucket at one point in time. The copy is
// not atomic across metrics; individual values are.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, metricIDCount),
		Histograms: make(map[MetricID][8]uint64, histogramIDCount),
	}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		for id := MetricID(0); id < histogramIDCount; id++ {
			var buckets [8]uint64
			for i := range buckets {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i].value)
			}
			snap.Histograms[id] = buckets
		}
	}
	return snap
}
