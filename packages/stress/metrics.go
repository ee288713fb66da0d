package stress

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// latency is tracked in microseconds between 1us and 60s
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)
}

func latencyUs(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

// Metrics collects and aggregates stress run metrics
type Metrics struct {
	mu sync.RWMutex

	total    atomic.Int64
	success  atomic.Int64
	errors   atomic.Int64
	timeouts atomic.Int64

	histogram *hdrhistogram.Histogram
	targets   map[string]*TargetMetrics
	statuses  map[int]int64

	timeSeries    []TimePoint
	lastTimePoint time.Time

	startTime time.Time
	endTime   time.Time

	activeVUs atomic.Int32
}

// TargetMetrics holds metrics for one target
type TargetMetrics struct {
	Name      string
	Total     atomic.Int64
	Success   atomic.Int64
	Errors    atomic.Int64
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
}

// TimePoint is one sample of the time series
type TimePoint struct {
	Timestamp time.Time
	Requests  int64
	Errors    int64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	ActiveVUs int32
	RPS       float64
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		histogram:  newHistogram(),
		targets:    make(map[string]*TargetMetrics),
		statuses:   make(map[int]int64),
		timeSeries: make([]TimePoint, 0, 1000),
	}
}

// Start marks the beginning of the run
func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.lastTimePoint = m.startTime
	m.mu.Unlock()
}

// Stop marks the end of the run
func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

// Record records one completed invocation. A status of zero means no response
// was received.
func (m *Metrics) Record(name string, status int, duration time.Duration, err error) {
	m.total.Add(1)
	if err != nil {
		m.errors.Add(1)
	} else {
		m.success.Add(1)
	}

	m.mu.Lock()
	_ = m.histogram.RecordValue(latencyUs(duration))
	if status > 0 {
		m.statuses[status]++
	}
	m.mu.Unlock()

	if name == "" {
		return
	}
	tm := m.target(name)
	tm.Total.Add(1)
	if err != nil {
		tm.Errors.Add(1)
	} else {
		tm.Success.Add(1)
	}
	tm.mu.Lock()
	_ = tm.histogram.RecordValue(latencyUs(duration))
	tm.mu.Unlock()
}

// RecordTimeout records an invocation cut short by the run deadline.
// Timeouts count as errors.
func (m *Metrics) RecordTimeout(name string) {
	m.total.Add(1)
	m.timeouts.Add(1)
	m.errors.Add(1)

	if name != "" {
		tm := m.target(name)
		tm.Total.Add(1)
		tm.Errors.Add(1)
	}
}

func (m *Metrics) target(name string) *TargetMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	tm, ok := m.targets[name]
	if !ok {
		tm = &TargetMetrics{Name: name, histogram: newHistogram()}
		m.targets[name] = tm
	}
	return tm
}

func (m *Metrics) SetActiveVUs(n int32) { m.activeVUs.Store(n) }
func (m *Metrics) IncrementActiveVUs()  { m.activeVUs.Add(1) }
func (m *Metrics) DecrementActiveVUs()  { m.activeVUs.Add(-1) }

// Snapshot captures current metrics for the time series
func (m *Metrics) Snapshot() TimePoint {
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := now.Sub(m.lastTimePoint).Seconds()
	if elapsed == 0 {
		elapsed = 1
	}

	total := m.total.Load()
	var prevTotal int64
	if n := len(m.timeSeries); n > 0 {
		prevTotal = m.timeSeries[n-1].Requests
	}

	return TimePoint{
		Timestamp: now,
		Requests:  total,
		Errors:    m.errors.Load(),
		P50:       quantile(m.histogram, 50),
		P95:       quantile(m.histogram, 95),
		P99:       quantile(m.histogram, 99),
		ActiveVUs: m.activeVUs.Load(),
		RPS:       float64(total-prevTotal) / elapsed,
	}
}

// AddTimePoint appends a point to the time series
func (m *Metrics) AddTimePoint(point TimePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timeSeries = append(m.timeSeries, point)
	m.lastTimePoint = point.Timestamp
}

// Summary is the final result of a run
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	TimeoutCount  int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	// StatusCodes counts responses by HTTP status
	StatusCodes map[int]int64

	TargetBreakdown map[string]*TargetSummary
	TimeSeries      []TimePoint
}

// TargetSummary holds the summary for one target
type TargetSummary struct {
	Name    string
	Total   int64
	Success int64
	Errors  int64
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
	Mean    time.Duration
}

// SortedStatusCodes returns the observed status codes in ascending order
func (s *Summary) SortedStatusCodes() []int {
	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// GetSummary returns the metrics summary
func (m *Metrics) GetSummary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.total.Load()
	success := m.success.Load()
	errs := m.errors.Load()

	var rps, successRate, errorRate float64
	if duration.Seconds() > 0 {
		rps = float64(total) / duration.Seconds()
	}
	if total > 0 {
		successRate = float64(success) / float64(total)
		errorRate = float64(errs) / float64(total)
	}

	summary := &Summary{
		Duration:        duration,
		TotalRequests:   total,
		SuccessCount:    success,
		ErrorCount:      errs,
		TimeoutCount:    m.timeouts.Load(),
		RPS:             rps,
		SuccessRate:     successRate,
		ErrorRate:       errorRate,
		P50:             quantile(m.histogram, 50),
		P95:             quantile(m.histogram, 95),
		P99:             quantile(m.histogram, 99),
		Min:             time.Duration(m.histogram.Min()) * time.Microsecond,
		Max:             time.Duration(m.histogram.Max()) * time.Microsecond,
		Mean:            time.Duration(m.histogram.Mean()) * time.Microsecond,
		StdDev:          time.Duration(m.histogram.StdDev()) * time.Microsecond,
		StatusCodes:     make(map[int]int64, len(m.statuses)),
		TargetBreakdown: make(map[string]*TargetSummary, len(m.targets)),
		TimeSeries:      append([]TimePoint(nil), m.timeSeries...),
	}

	for code, n := range m.statuses {
		summary.StatusCodes[code] = n
	}

	for name, tm := range m.targets {
		tm.mu.Lock()
		summary.TargetBreakdown[name] = &TargetSummary{
			Name:    name,
			Total:   tm.Total.Load(),
			Success: tm.Success.Load(),
			Errors:  tm.Errors.Load(),
			P50:     quantile(tm.histogram, 50),
			P95:     quantile(tm.histogram, 95),
			P99:     quantile(tm.histogram, 99),
			Mean:    time.Duration(tm.histogram.Mean()) * time.Microsecond,
		}
		tm.mu.Unlock()
	}

	return summary
}

// CurrentStats is a live view used by the progress display
type CurrentStats struct {
	Elapsed   time.Duration
	Total     int64
	Success   int64
	Errors    int64
	RPS       float64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
	ActiveVUs int32
	ErrorRate float64
}

// GetCurrentStats returns current statistics
func (m *Metrics) GetCurrentStats() CurrentStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.startTime)
	total := m.total.Load()
	errs := m.errors.Load()

	var rps, errorRate float64
	if elapsed.Seconds() > 0 {
		rps = float64(total) / elapsed.Seconds()
	}
	if total > 0 {
		errorRate = float64(errs) / float64(total)
	}

	return CurrentStats{
		Elapsed:   elapsed,
		Total:     total,
		Success:   m.success.Load(),
		Errors:    errs,
		RPS:       rps,
		P50:       quantile(m.histogram, 50),
		P95:       quantile(m.histogram, 95),
		P99:       quantile(m.histogram, 99),
		Max:       time.Duration(m.histogram.Max()) * time.Microsecond,
		ActiveVUs: m.activeVUs.Load(),
		ErrorRate: errorRate,
	}
}

// EvaluateThresholds checks the summary against t
func (m *Metrics) EvaluateThresholds(t Thresholds) []ThresholdResult {
	return evaluate(m.GetSummary(), t)
}

func evaluate(summary *Summary, t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit <= 0 {
			return
		}
		results = append(results, ThresholdResult{
			Name:     name,
			Passed:   actual <= limit,
			Expected: "< " + limit.String(),
			Actual:   actual.String(),
		})
	}

	latency("p50", t.P50, summary.P50)
	latency("p95", t.P95, summary.P95)
	latency("p99", t.P99, summary.P99)
	latency("max latency", t.MaxLatency, summary.Max)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   summary.ErrorRate <= t.ErrorRate,
			Expected: formatPercent(t.ErrorRate),
			Actual:   formatPercent(summary.ErrorRate),
		})
	}

	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "min RPS",
			Passed:   summary.RPS >= t.MinRPS,
			Expected: "> " + formatFloat(t.MinRPS),
			Actual:   formatFloat(summary.RPS),
		})
	}

	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
