// Package stress replays declarations through an invoker at a target rate or
// with a fixed set of virtual users, collecting latency histograms and
// evaluating pass/fail thresholds.
package stress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// ExecutionMode defines how the stress run schedules invocations
type ExecutionMode int

const (
	// RateMode invokes at a constant rate (invocations per second)
	RateMode ExecutionMode = iota
	// VUMode uses virtual users that invoke with think time between calls
	VUMode
)

func (m ExecutionMode) String() string {
	if m == VUMode {
		return "vu"
	}
	return "rate"
}

// Config holds all configuration for a stress run
type Config struct {
	Mode       ExecutionMode
	Duration   time.Duration
	Rate       float64       // invocations per second (RateMode)
	VUs        int           // number of virtual users (VUMode)
	MaxVUs     int           // max concurrent invocations
	ThinkTime  time.Duration // pause between invocations per VU
	RampUp     time.Duration
	Thresholds Thresholds
}

// Thresholds defines pass/fail criteria for the stress run
type Thresholds struct {
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
	MaxLatency time.Duration
	ErrorRate  float64 // 0.0 - 1.0
	MinRPS     float64
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:     RateMode,
		Duration: 30 * time.Second,
		Rate:     10,
		MaxVUs:   100,
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}

	if c.Mode == RateMode && c.Rate <= 0 {
		return fmt.Errorf("rate must be positive in rate mode")
	}

	if c.Mode == VUMode && c.VUs <= 0 {
		return fmt.Errorf("VUs must be positive in VU mode")
	}

	if c.MaxVUs < 1 {
		return fmt.Errorf("maxVUs must be at least 1")
	}

	if c.RampUp < 0 {
		return fmt.Errorf("rampUp cannot be negative")
	}

	if c.RampUp > c.Duration {
		return fmt.Errorf("rampUp cannot exceed duration")
	}

	return nil
}

var thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>]=?)\s*(.+)$`)

// ParseThresholds parses a threshold string like "p95<200ms,errors<0.1%"
func ParseThresholds(s string) (Thresholds, error) {
	var t Thresholds

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := parseThresholdPart(part, &t); err != nil {
			return t, err
		}
	}

	return t, nil
}

func parseThresholdPart(part string, t *Thresholds) error {
	matches := thresholdPattern.FindStringSubmatch(part)
	if len(matches) != 4 {
		return fmt.Errorf("invalid threshold format: %s", part)
	}

	metric := strings.ToLower(matches[1])
	op := matches[2]
	valueStr := strings.TrimSpace(matches[3])

	upper := func(target *time.Duration, label string) error {
		d, err := time.ParseDuration(valueStr)
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %s", label, valueStr)
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("%s threshold must use < or <=", label)
		}
		*target = d
		return nil
	}

	switch metric {
	case "p50":
		return upper(&t.P50, "p50")
	case "p95":
		return upper(&t.P95, "p95")
	case "p99":
		return upper(&t.P99, "p99")
	case "max", "maxlatency":
		return upper(&t.MaxLatency, "max latency")

	case "errors", "error", "errorrate":
		percent := strings.HasSuffix(valueStr, "%")
		f, err := strconv.ParseFloat(strings.TrimSuffix(valueStr, "%"), 64)
		if err != nil {
			return fmt.Errorf("invalid error rate: %s", valueStr)
		}
		if percent {
			f = f / 100
		}
		if op != "<" && op != "<=" {
			return fmt.Errorf("error rate threshold must use < or <=")
		}
		t.ErrorRate = f

	case "rps", "rate":
		f, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return fmt.Errorf("invalid RPS: %s", valueStr)
		}
		if op != ">" && op != ">=" {
			return fmt.Errorf("RPS threshold must use > or >=")
		}
		t.MinRPS = f

	default:
		return fmt.Errorf("unknown threshold metric: %s", metric)
	}

	return nil
}

// HasThresholds returns true if any thresholds are configured
func (t *Thresholds) HasThresholds() bool {
	return t.P50 > 0 || t.P95 > 0 || t.P99 > 0 || t.MaxLatency > 0 || t.ErrorRate > 0 || t.MinRPS > 0
}

// ThresholdResult holds the result of evaluating a threshold
type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

// Target is one declaration replayed during a stress run. The declaration is
// cloned before every invocation, so the template itself is never mutated.
type Target struct {
	Name        string
	Verb        string
	Declaration *node.Node
	Weight      int           // relative selection weight (default 1)
	Think       time.Duration // overrides Config.ThinkTime in VU mode
	Setup       bool          // run once before the run starts
	Teardown    bool          // run once after the run ends
}

func (t *Target) weight() int {
	if t == nil || t.Weight < 1 {
		return 1
	}
	return t.Weight
}
