package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one counter (and, for latency ids, one histogram).
type MetricID uint16

const (
	LoginSuccess MetricID = iota
	LoginFailure
	LoginRejectedLocked
	AccountLocked
	AccountUnlocked
	AuthenticateSuccess
	AuthenticateFailure
	RevokedTokenRejected
	RefreshSuccess
	RefreshFailure
	RefreshRotated
	Logout
	TokenRevoked
	StoreUnavailable
	RevocationsSwept

	LoginLatency
	AuthenticateLatency
	RefreshLatency

	MetricIDCount
)

// HistogramBuckets is the number of latency buckets per histogram.
const HistogramBuckets = 8

const cacheLineSize = 64

// IsLatency reports whether id carries a histogram.
func (id MetricID) IsLatency() bool {
	return id >= LoginLatency && id < MetricIDCount
}

type histogram struct {
	buckets [HistogramBuckets]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config toggles collection.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics holds the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	histograms    [MetricIDCount]histogram
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= MetricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram of a latency id; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !id.IsLatency() {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Since is Observe(id, time.Since(start)), for use with defer.
func (m *Metrics) Since(id MetricID, start time.Time) {
	if m == nil || !m.enableLatency {
		return
	}
	m.Observe(id, time.Since(start))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(MetricIDCount)),
		Histograms: make(map[MetricID][]uint64, 3),
	}
	for id := MetricID(0); id < MetricIDCount; id++ {
		if id.IsLatency() {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		for id := LoginLatency; id < MetricIDCount; id++ {
			buckets := make([]uint64, HistogramBuckets)
			for i := range buckets {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
