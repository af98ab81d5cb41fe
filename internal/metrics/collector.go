package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// labeledCounter tracks a counter value for a specific label combination.
type labeledCounter struct {
	labels map[string]string
	value  int64
}

// histogram tracks a distribution of observed values using pre-defined buckets.
type histogram struct {
	mu      sync.Mutex
	labels  map[string]string
	buckets []float64 // upper bounds, sorted ascending
	counts  []int64   // count per bucket
	sum     float64
	count   int64
}

func newHistogram(labels map[string]string, buckets []float64) *histogram {
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)
	return &histogram{
		labels:  labels,
		buckets: sorted,
		counts:  make([]int64, len(sorted)),
	}
}

func (h *histogram) observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
			break
		}
	}
}

// counterVec is a thread-safe collection of labeled counters.
type counterVec struct {
	mu       sync.RWMutex
	counters map[string]*labeledCounter
}

func newCounterVec() *counterVec {
	return &counterVec{counters: make(map[string]*labeledCounter)}
}

func (cv *counterVec) inc(labels map[string]string) {
	key := labelsKey(labels)
	cv.mu.Lock()
	c, ok := cv.counters[key]
	if !ok {
		c = &labeledCounter{labels: copyLabels(labels)}
		cv.counters[key] = c
	}
	cv.mu.Unlock()
	atomic.AddInt64(&c.value, 1)
}

func (cv *counterVec) snapshot() []labeledCounter {
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	result := make([]labeledCounter, 0, len(cv.counters))
	for _, c := range cv.counters {
		result = append(result, labeledCounter{
			labels: copyLabels(c.labels),
			value:  atomic.LoadInt64(&c.value),
		})
	}
	return result
}

// histogramVec is a thread-safe collection of labeled histograms.
type histogramVec struct {
	mu         sync.RWMutex
	histograms map[string]*histogram
	buckets    []float64
}

func newHistogramVec(buckets []float64) *histogramVec {
	return &histogramVec{
		histograms: make(map[string]*histogram),
		buckets:    buckets,
	}
}

func (hv *histogramVec) observe(labels map[string]string, v float64) {
	key := labelsKey(labels)
	hv.mu.RLock()
	h, ok := hv.histograms[key]
	hv.mu.RUnlock()
	if !ok {
		hv.mu.Lock()
		h, ok = hv.histograms[key]
		if !ok {
			h = newHistogram(copyLabels(labels), hv.buckets)
			hv.histograms[key] = h
		}
		hv.mu.Unlock()
	}
	h.observe(v)
}

func (hv *histogramVec) snapshot() []*histogram {
	hv.mu.RLock()
	defer hv.mu.RUnlock()
	result := make([]*histogram, 0, len(hv.histograms))
	for _, h := range hv.histograms {
		h.mu.Lock()
		snap := &histogram{
			labels:  copyLabels(h.labels),
			buckets: h.buckets,
			counts:  make([]int64, len(h.counts)),
			sum:     h.sum,
			count:   h.count,
		}
		copy(snap.counts, h.counts)
		h.mu.Unlock()
		result = append(result, snap)
	}
	return result
}

// gaugeVec tracks a set of labeled gauges that can be set to any value.
type gaugeVec struct {
	mu     sync.RWMutex
	gauges map[string]*labeledGauge
}

type labeledGauge struct {
	labels map[string]string
	value  uint64 // float64 stored via math.Float64bits
}

func newGaugeVec() *gaugeVec {
	return &gaugeVec{gauges: make(map[string]*labeledGauge)}
}

func (gv *gaugeVec) set(labels map[string]string, v float64) {
	key := labelsKey(labels)
	gv.mu.Lock()
	g, ok := gv.gauges[key]
	if !ok {
		g = &labeledGauge{labels: copyLabels(labels)}
		gv.gauges[key] = g
	}
	gv.mu.Unlock()
	atomic.StoreUint64(&g.value, math.Float64bits(v))
}

func (gv *gaugeVec) snapshot() []struct {
	labels map[string]string
	value  float64
} {
	gv.mu.RLock()
	defer gv.mu.RUnlock()
	result := make([]struct {
		labels map[string]string
		value  float64
	}, 0, len(gv.gauges))
	for _, g := range gv.gauges {
		result = append(result, struct {
			labels map[string]string
			value  float64
		}{
			labels: copyLabels(g.labels),
			value:  math.Float64frombits(atomic.LoadUint64(&g.value)),
		})
	}
	return result
}

func labelsKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := ""
	for _, k := range keys {
		key += k + "=" + labels[k] + ","
	}
	return key
}

func copyLabels(labels map[string]string) map[string]string {
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	return cp
}

// Collector tracks live gateway metrics using atomic counters for
// lock-free, concurrent-safe updates: request throughput, per-family
// translation latency, pipeline cache hit rate, and queue pressure.
type Collector struct {
	totalRequests int64
	totalItems    int64
	pivotedItems  int64

	cacheHits   int64
	cacheMisses int64

	activeRequests int64

	startTime time.Time

	errors       *counterVec   // labels: kind, family
	familyUsage  *counterVec   // labels: family
	latency      *histogramVec // labels: family
	queueWait    *histogramVec // labels: outcome
	queueDepth   *gaugeVec     // labels: (none) - single "depth" gauge
}

// Stats is a point-in-time snapshot of the collector's counters.
type Stats struct {
	Uptime         string  `json:"uptime"`
	TotalRequests  int64   `json:"total_requests"`
	TotalItems     int64   `json:"total_items"`
	PivotedItems   int64   `json:"pivoted_items"`
	CacheHitRate   float64 `json:"cache_hit_rate"`
	CacheHits      int64   `json:"cache_hits"`
	CacheMisses    int64   `json:"cache_misses"`
	ActiveRequests int64   `json:"active_requests"`
}

// latencyBuckets are tuned for NMT inference call durations.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// queueWaitBuckets are tuned for queue-wait durations (shorter tail).
var queueWaitBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30}

// NewCollector creates a new Collector with all counters initialised to
// zero and the start time set to now.
func NewCollector() *Collector {
	return &Collector{
		startTime:   time.Now(),
		errors:      newCounterVec(),
		familyUsage: newCounterVec(),
		latency:     newHistogramVec(latencyBuckets),
		queueWait:   newHistogramVec(queueWaitBuckets),
		queueDepth:  newGaugeVec(),
	}
}

// RecordItem records the outcome of translating one item: which family
// served it (or "" if it failed before routing), whether it was served
// via a pivot path, and how long the family's chunk pipeline took.
func (c *Collector) RecordItem(family string, pivoted bool, cacheHit bool, seconds float64) {
	atomic.AddInt64(&c.totalItems, 1)
	if pivoted {
		atomic.AddInt64(&c.pivotedItems, 1)
	}
	if cacheHit {
		atomic.AddInt64(&c.cacheHits, 1)
	} else {
		atomic.AddInt64(&c.cacheMisses, 1)
	}
	if family != "" {
		c.familyUsage.inc(map[string]string{"family": family})
		c.latency.observe(map[string]string{"family": family}, seconds)
	}
}

// RecordRequest increments the total request counter.
func (c *Collector) RecordRequest() {
	atomic.AddInt64(&c.totalRequests, 1)
}

// IncrementActive increments the active request counter.
func (c *Collector) IncrementActive() {
	atomic.AddInt64(&c.activeRequests, 1)
}

// DecrementActive decrements the active request counter.
func (c *Collector) DecrementActive() {
	atomic.AddInt64(&c.activeRequests, -1)
}

// Stats returns a point-in-time snapshot of all metrics.
func (c *Collector) Stats() *Stats {
	hits := atomic.LoadInt64(&c.cacheHits)
	misses := atomic.LoadInt64(&c.cacheMisses)

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return &Stats{
		Uptime:         formatDuration(time.Since(c.startTime)),
		TotalRequests:  atomic.LoadInt64(&c.totalRequests),
		TotalItems:     atomic.LoadInt64(&c.totalItems),
		PivotedItems:   atomic.LoadInt64(&c.pivotedItems),
		CacheHitRate:   hitRate,
		CacheHits:      hits,
		CacheMisses:    misses,
		ActiveRequests: atomic.LoadInt64(&c.activeRequests),
	}
}

// RecordError increments the error counter for a given failure kind
// (e.g. "unsupported_pair", "model_load", "timeout", "queue_overflow")
// and the family that produced it, if known.
func (c *Collector) RecordError(kind, family string) {
	c.errors.inc(map[string]string{"kind": kind, "family": family})
}

// ObserveQueueWait records how long a request waited at the gate before
// acquiring a slot (or timing out / being rejected). outcome is
// "acquired", "timeout", or "rejected".
func (c *Collector) ObserveQueueWait(outcome string, seconds float64) {
	c.queueWait.observe(map[string]string{"outcome": outcome}, seconds)
}

// SetQueueDepth reports the current count of waiters parked at the gate.
func (c *Collector) SetQueueDepth(depth float64) {
	c.queueDepth.set(map[string]string{}, depth)
}

// Errors returns the error counter vec for Prometheus export.
func (c *Collector) Errors() *counterVec { return c.errors }

// FamilyUsage returns the per-family usage counter vec for Prometheus export.
func (c *Collector) FamilyUsage() *counterVec { return c.familyUsage }

// Latency returns the per-family latency histogram vec for Prometheus export.
func (c *Collector) Latency() *histogramVec { return c.latency }

// QueueWait returns the queue-wait histogram vec for Prometheus export.
func (c *Collector) QueueWait() *histogramVec { return c.queueWait }

// QueueDepth returns the queue-depth gauge vec for Prometheus export.
func (c *Collector) QueueDepth() *gaugeVec { return c.queueDepth }

// formatDuration produces a human-readable duration string like "2d 5h 32m".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return formatWithUnits(days, "d", hours, "h", minutes, "m")
	}
	if hours > 0 {
		return formatWithUnits(hours, "h", minutes, "m", 0, "")
	}
	return formatWithUnits(minutes, "m", 0, "", 0, "")
}

// formatWithUnits builds a compact duration string from up to three components.
func formatWithUnits(v1 int, u1 string, v2 int, u2 string, v3 int, u3 string) string {
	s := ""
	if v1 > 0 {
		s += intStr(v1) + u1
	}
	if v2 > 0 {
		if s != "" {
			s += " "
		}
		s += intStr(v2) + u2
	}
	if v3 > 0 && u3 != "" {
		if s != "" {
			s += " "
		}
		s += intStr(v3) + u3
	}
	if s == "" {
		return "0m"
	}
	return s
}

// intStr converts an int to its string representation without importing strconv.
func intStr(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + intStr(-n)
	}
	digits := make([]byte, 0, 10)
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
