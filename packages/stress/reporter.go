package stress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Reporter writes progress and summaries of a stress run
type Reporter struct {
	writer     io.Writer
	noColor    bool
	noProgress bool
	verbose    bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithWriter sets the output writer
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// WithNoProgress disables the live progress display
func WithNoProgress(noProgress bool) ReporterOption {
	return func(r *Reporter) {
		r.noProgress = noProgress
	}
}

// WithVerbose adds the per-target breakdown to the summary
func WithVerbose(verbose bool) ReporterOption {
	return func(r *Reporter) {
		r.verbose = verbose
	}
}

// NewReporter creates a new reporter
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{writer: os.Stdout}

	for _, opt := range opts {
		opt(r)
	}

	newColor := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if r.noColor {
			c.DisableColor()
		}
		return c
	}
	r.green = newColor(color.FgGreen)
	r.red = newColor(color.FgRed)
	r.yellow = newColor(color.FgYellow)
	r.cyan = newColor(color.FgCyan)
	r.bold = newColor(color.Bold)

	return r
}

// Header prints the run header
func (r *Reporter) Header(version string, targets []string, config *Config) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintf(r.writer, "hitlambda stress %s\n", version)
	fmt.Fprintln(r.writer)

	r.cyan.Fprintf(r.writer, "Targets: %s\n", strings.Join(targets, ", "))

	var details []string
	if config.Mode == RateMode {
		details = append(details, fmt.Sprintf("Target: %.0f req/s", config.Rate))
	} else {
		details = append(details, fmt.Sprintf("VUs: %d", config.VUs))
	}
	details = append(details,
		fmt.Sprintf("Duration: %s", config.Duration),
		fmt.Sprintf("Max VUs: %d", config.MaxVUs))

	fmt.Fprintln(r.writer, strings.Join(details, " | "))
	fmt.Fprintln(r.writer)
}

// Progress redraws the live progress block
func (r *Reporter) Progress(stats CurrentStats, duration time.Duration) {
	if r.noProgress {
		return
	}

	fmt.Fprint(r.writer, "\r\033[K")

	progress := float64(stats.Elapsed) / float64(duration)
	if progress > 1 {
		progress = 1
	}
	const barWidth = 30
	filled := int(progress * barWidth)
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	fmt.Fprintf(r.writer, "Progress %s %s / %s\n", bar, formatDuration(stats.Elapsed), formatDuration(duration))

	fmt.Fprint(r.writer, "Requests: ")
	r.bold.Fprint(r.writer, formatNumber(stats.Total))
	fmt.Fprint(r.writer, " total | ")
	r.green.Fprint(r.writer, formatNumber(stats.Success))
	fmt.Fprint(r.writer, " success | ")
	r.errorCount(stats.Errors)
	fmt.Fprintf(r.writer, " errors (%.2f%%)\n", stats.ErrorRate*100)

	fmt.Fprint(r.writer, "Rate: ")
	r.cyan.Fprintf(r.writer, "%.1f", stats.RPS)
	fmt.Fprintf(r.writer, " req/s | Active VUs: %d\n", stats.ActiveVUs)

	fmt.Fprintf(r.writer, "Latency: p50: %s | p95: %s | p99: %s | max: %s\n",
		formatLatency(stats.P50),
		formatLatency(stats.P95),
		formatLatency(stats.P99),
		formatLatency(stats.Max))

	// back to the top of the block for the next redraw
	fmt.Fprint(r.writer, "\033[4A")
}

// ClearProgress erases the progress block
func (r *Reporter) ClearProgress() {
	if r.noProgress {
		return
	}
	fmt.Fprint(r.writer, "\033[4B\r\033[K\033[A\r\033[K\033[A\r\033[K\033[A\r\033[K")
}

func (r *Reporter) errorCount(n int64) {
	if n > 0 {
		r.red.Fprint(r.writer, formatNumber(n))
		return
	}
	fmt.Fprint(r.writer, formatNumber(n))
}

// Summary prints the final summary
func (r *Reporter) Summary(summary *Summary, thresholdResults []ThresholdResult) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "STRESS SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(summary.Duration))
	fmt.Fprint(r.writer, "Total:      ")
	r.bold.Fprint(r.writer, formatNumber(summary.TotalRequests))
	fmt.Fprintf(r.writer, " requests (%.1f req/s)\n", summary.RPS)

	fmt.Fprint(r.writer, "Success:    ")
	r.green.Fprint(r.writer, formatNumber(summary.SuccessCount))
	fmt.Fprintf(r.writer, " (%.1f%%)\n", summary.SuccessRate*100)

	fmt.Fprint(r.writer, "Failed:     ")
	r.errorCount(summary.ErrorCount)
	fmt.Fprintf(r.writer, " (%.1f%%)\n", summary.ErrorRate*100)

	if summary.TimeoutCount > 0 {
		fmt.Fprint(r.writer, "Timeouts:   ")
		r.yellow.Fprintln(r.writer, formatNumber(summary.TimeoutCount))
	}

	if codes := summary.SortedStatusCodes(); len(codes) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "STATUS CODES")
		for _, code := range codes {
			c := r.green
			switch {
			case code >= 500:
				c = r.red
			case code >= 400:
				c = r.yellow
			}
			fmt.Fprint(r.writer, "  ")
			c.Fprint(r.writer, code)
			fmt.Fprintf(r.writer, ": %s\n", formatNumber(summary.StatusCodes[code]))
		}
	}

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY (ms)")
	fmt.Fprintf(r.writer, "  p50: %-6s | p95: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(summary.P50),
		formatLatencyMs(summary.P95),
		formatLatencyMs(summary.P99),
		formatLatencyMs(summary.Max))
	fmt.Fprintf(r.writer, "  min: %-6s | mean: %-5s | stddev: %s\n",
		formatLatencyMs(summary.Min),
		formatLatencyMs(summary.Mean),
		formatLatencyMs(summary.StdDev))

	if r.verbose && len(summary.TargetBreakdown) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "PER-TARGET BREAKDOWN")
		for _, name := range sortedNames(summary.TargetBreakdown) {
			ts := summary.TargetBreakdown[name]
			fmt.Fprintf(r.writer, "  %s:\n", name)
			fmt.Fprintf(r.writer, "    Total: %s | Success: %s | Errors: %s\n",
				formatNumber(ts.Total), formatNumber(ts.Success), formatNumber(ts.Errors))
			fmt.Fprintf(r.writer, "    p50: %s | p95: %s | p99: %s\n",
				formatLatency(ts.P50), formatLatency(ts.P95), formatLatency(ts.P99))
		}
	}

	if len(thresholdResults) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		allPassed := true
		for _, tr := range thresholdResults {
			if tr.Passed {
				r.green.Fprint(r.writer, "  ✓ ")
			} else {
				r.red.Fprint(r.writer, "  ✗ ")
				allPassed = false
			}
			fmt.Fprintf(r.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}

		fmt.Fprintln(r.writer)
		if allPassed {
			r.green.Fprintln(r.writer, "All thresholds passed!")
		} else {
			r.red.Fprintln(r.writer, "Some thresholds failed!")
		}
	}

	fmt.Fprintln(r.writer)
}

type jsonSummary struct {
	Duration   string                       `json:"duration"`
	Requests   jsonRequests                 `json:"requests"`
	Rates      jsonRates                    `json:"rates"`
	Latency    jsonLatency                  `json:"latency"`
	Status     map[string]int64             `json:"statusCodes,omitempty"`
	Thresholds []jsonThreshold              `json:"thresholds,omitempty"`
	Targets    map[string]jsonTargetSummary `json:"targets,omitempty"`
}

type jsonRequests struct {
	Total    int64 `json:"total"`
	Success  int64 `json:"success"`
	Failed   int64 `json:"failed"`
	Timeouts int64 `json:"timeouts"`
}

type jsonRates struct {
	RPS         float64 `json:"rps"`
	SuccessRate float64 `json:"successRate"`
	ErrorRate   float64 `json:"errorRate"`
}

// latency values are milliseconds
type jsonLatency struct {
	P50    int64 `json:"p50"`
	P95    int64 `json:"p95"`
	P99    int64 `json:"p99"`
	Min    int64 `json:"min"`
	Max    int64 `json:"max"`
	Mean   int64 `json:"mean"`
	StdDev int64 `json:"stddev"`
}

type jsonThreshold struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

type jsonTargetSummary struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Errors  int64 `json:"errors"`
	P50     int64 `json:"p50"`
	P95     int64 `json:"p95"`
	P99     int64 `json:"p99"`
	Mean    int64 `json:"mean"`
}

// JSONSummary writes the summary as indented JSON
func (r *Reporter) JSONSummary(summary *Summary, thresholdResults []ThresholdResult) error {
	out := jsonSummary{
		Duration: summary.Duration.String(),
		Requests: jsonRequests{
			Total:    summary.TotalRequests,
			Success:  summary.SuccessCount,
			Failed:   summary.ErrorCount,
			Timeouts: summary.TimeoutCount,
		},
		Rates: jsonRates{
			RPS:         summary.RPS,
			SuccessRate: summary.SuccessRate,
			ErrorRate:   summary.ErrorRate,
		},
		Latency: jsonLatency{
			P50:    summary.P50.Milliseconds(),
			P95:    summary.P95.Milliseconds(),
			P99:    summary.P99.Milliseconds(),
			Min:    summary.Min.Milliseconds(),
			Max:    summary.Max.Milliseconds(),
			Mean:   summary.Mean.Milliseconds(),
			StdDev: summary.StdDev.Milliseconds(),
		},
	}

	if len(summary.StatusCodes) > 0 {
		out.Status = make(map[string]int64, len(summary.StatusCodes))
		for code, n := range summary.StatusCodes {
			out.Status[strconv.Itoa(code)] = n
		}
	}

	for _, tr := range thresholdResults {
		out.Thresholds = append(out.Thresholds, jsonThreshold(tr))
	}

	if len(summary.TargetBreakdown) > 0 {
		out.Targets = make(map[string]jsonTargetSummary, len(summary.TargetBreakdown))
		for name, ts := range summary.TargetBreakdown {
			out.Targets[name] = jsonTargetSummary{
				Total:   ts.Total,
				Success: ts.Success,
				Errors:  ts.Errors,
				P50:     ts.P50.Milliseconds(),
				P95:     ts.P95.Milliseconds(),
				P99:     ts.P99.Milliseconds(),
				Mean:    ts.Mean.Milliseconds(),
			}
		}
	}

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// Error prints an error message
func (r *Reporter) Error(format string, args ...any) {
	r.red.Fprintf(r.writer, "Error: "+format+"\n", args...)
}

// Info prints an info message
func (r *Reporter) Info(format string, args ...any) {
	fmt.Fprintf(r.writer, format+"\n", args...)
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatLatencyMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1 {
		return fmt.Sprintf("%.2f", ms)
	}
	if ms < 10 {
		return fmt.Sprintf("%.1f", ms)
	}
	return fmt.Sprintf("%.0f", ms)
}

// formatNumber formats n with thousands separators
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 1000 {
		return s
	}

	result := make([]byte, 0, len(s)+(len(s)-1)/3)
	start := len(s) % 3
	if start == 0 {
		start = 3
	}

	result = append(result, s[:start]...)
	for i := start; i < len(s); i += 3 {
		result = append(result, ',')
		result = append(result, s[i:i+3]...)
	}
	return string(result)
}
