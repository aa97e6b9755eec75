package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks request and upstream performance of the gateway.
type Metrics struct {
	// Latency histograms
	APILatency     *LatencyHistogram
	FeedLatency    *LatencyHistogram
	CandlesLatency *LatencyHistogram
	CacheLatency   *LatencyHistogram

	// Counters
	apiRequests            uint64
	apiErrors              uint64
	upstreamFailures       uint64
	backendInconsistencies uint64
	streamClients          int64

	startedAt time.Time
}

// LatencyHistogram tracks latency samples with sliding window.
// Stats are computed lazily and cached until the next sample.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		APILatency:     NewLatencyHistogram(1000),
		FeedLatency:    NewLatencyHistogram(1000),
		CandlesLatency: NewLatencyHistogram(1000),
		CacheLatency:   NewLatencyHistogram(1000),
		startedAt:      time.Now(),
	}
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// IncrementAPI counts a served request.
func (m *Metrics) IncrementAPI() {
	atomic.AddUint64(&m.apiRequests, 1)
}

// IncrementAPIErrors counts a request answered with status >= 400.
func (m *Metrics) IncrementAPIErrors() {
	atomic.AddUint64(&m.apiErrors, 1)
}

// IncrementUpstreamFailures counts a failed collaborator call.
func (m *Metrics) IncrementUpstreamFailures() {
	atomic.AddUint64(&m.upstreamFailures, 1)
}

// IncrementInconsistencies counts a candle series that broke its single-bucket contract.
func (m *Metrics) IncrementInconsistencies() {
	atomic.AddUint64(&m.backendInconsistencies, 1)
}

// StreamClientConnected adjusts the live websocket client gauge by delta.
func (m *Metrics) StreamClientConnected(delta int64) {
	atomic.AddInt64(&m.streamClients, delta)
}

// Snapshot is a point-in-time view of the metrics.
type Snapshot struct {
	APILatency             LatencyStats `json:"api_latency"`
	FeedLatency            LatencyStats `json:"feed_latency"`
	CandlesLatency         LatencyStats `json:"candles_latency"`
	CacheLatency           LatencyStats `json:"cache_latency"`
	APIRequests            uint64       `json:"api_requests"`
	APIErrors              uint64       `json:"api_errors"`
	UpstreamFailures       uint64       `json:"upstream_failures"`
	BackendInconsistencies uint64       `json:"backend_inconsistencies"`
	StreamClients          int64        `json:"stream_clients"`
	GoroutineCount         int          `json:"goroutine_count"`
	HeapAlloc              uint64       `json:"heap_alloc_bytes"`
	Uptime                 string       `json:"uptime"`
	Timestamp              time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *Metrics) GetSnapshot() Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return Snapshot{
		APILatency:             m.APILatency.Stats(),
		FeedLatency:            m.FeedLatency.Stats(),
		CandlesLatency:         m.CandlesLatency.Stats(),
		CacheLatency:           m.CacheLatency.Stats(),
		APIRequests:            atomic.LoadUint64(&m.apiRequests),
		APIErrors:              atomic.LoadUint64(&m.apiErrors),
		UpstreamFailures:       atomic.LoadUint64(&m.upstreamFailures),
		BackendInconsistencies: atomic.LoadUint64(&m.backendInconsistencies),
		StreamClients:          atomic.LoadInt64(&m.streamClients),
		GoroutineCount:         runtime.NumGoroutine(),
		HeapAlloc:              memStats.HeapAlloc,
		Uptime:                 time.Since(m.startedAt).Round(time.Second).String(),
		Timestamp:              time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{
		start:     time.Now(),
		histogram: h,
	}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
