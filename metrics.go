package jwtsession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricAuthSuccess counts successful Authenticate calls.
	MetricAuthSuccess MetricID = iota
	// MetricAuthFailure counts every AuthError returned by the engine.
	MetricAuthFailure
	// MetricTokenInvalid counts tokens rejected by the verifier.
	MetricTokenInvalid
	// MetricIdentityAttributeInvalid counts claims without a usable email.
	MetricIdentityAttributeInvalid
	// MetricIdentityCreated counts identities created on first sight.
	MetricIdentityCreated
	// MetricIdentityCreateConflict counts lost creation races that were retried.
	MetricIdentityCreateConflict
	// MetricIdentityCreateConflictExhausted counts creation races that did not converge.
	MetricIdentityCreateConflictExhausted
	// MetricSessionCreated counts sessions written.
	MetricSessionCreated
	// MetricSessionReplaced counts prior sessions removed by a create.
	MetricSessionReplaced
	// MetricSessionDestroyed counts sessions removed by DestroySessions.
	MetricSessionDestroyed
	// MetricSessionInvalidTTL counts creates refused for a non-positive ttl.
	MetricSessionInvalidTTL
	// MetricSessionBackendError counts session store failures.
	MetricSessionBackendError
	// MetricThrottled counts requests refused by the failure throttle.
	MetricThrottled
	// MetricVerifyLatency is the only histogram: end-to-end token verification time.
	MetricVerifyLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricAuthSuccess:                     "auth_success_total",
	MetricAuthFailure:                     "auth_failure_total",
	MetricTokenInvalid:                    "token_invalid_total",
	MetricIdentityAttributeInvalid:        "identity_attribute_invalid_total",
	MetricIdentityCreated:                 "identity_created_total",
	MetricIdentityCreateConflict:          "identity_create_conflict_total",
	MetricIdentityCreateConflictExhausted: "identity_create_conflict_exhausted_total",
	MetricSessionCreated:                  "session_created_total",
	MetricSessionReplaced:                 "session_replaced_total",
	MetricSessionDestroyed:                "session_destroyed_total",
	MetricSessionInvalidTTL:               "session_invalid_ttl_total",
	MetricSessionBackendError:             "session_backend_error_total",
	MetricThrottled:                       "throttled_total",
	MetricVerifyLatency:                   "verify_latency",
}

// String returns the exporter-facing metric name.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs lists every defined metric in order.
func MetricIDs() []MetricID {
	out := make([]MetricID, 0, int(metricIDCount))
	for id := MetricID(0); id < metricIDCount; id++ {
		out = append(out, id)
	}
	return out
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBounds are the upper bounds of the latency buckets; the last
// bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]time.Duration{
	time.Millisecond,
	2 * time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a set of lock-free engine counters. A nil or disabled
// Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add increments counter id by n.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricVerifyLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricVerifyLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
