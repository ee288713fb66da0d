package stress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// Invoker executes one declaration in place. *invoke.Invoker satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, verb string, decl *node.Node) error
}

// Runner executes stress runs
type Runner struct {
	config    *Config
	invoker   Invoker
	scheduler *Scheduler
	metrics   *Metrics
	reporter  *Reporter
	logger    zerolog.Logger
	version   string

	targets  []*Target
	setup    []*Target
	teardown []*Target
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithReporter sets the reporter
func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// WithLogger sets the logger used for per-invocation debug output
func WithLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithVersion sets the version shown in the report header
func WithVersion(version string) RunnerOption {
	return func(r *Runner) {
		r.version = version
	}
}

// NewRunner creates a runner that drives invoker
func NewRunner(config *Config, invoker Invoker, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:    config,
		invoker:   invoker,
		metrics:   NewMetrics(),
		scheduler: NewScheduler(config),
		logger:    zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.reporter == nil {
		r.reporter = NewReporter()
	}

	return r
}

// AddTarget registers a declaration to replay. Setup and teardown targets run
// once around the measured window.
func (r *Runner) AddTarget(t Target) error {
	if t.Declaration == nil {
		return fmt.Errorf("target %q has no declaration", t.Name)
	}
	t.Verb = strings.ToUpper(t.Verb)
	if t.Verb == "" {
		return fmt.Errorf("target %q has no verb", t.Name)
	}
	if t.Name == "" {
		t.Name = strings.ToLower(t.Verb) + " " + t.Declaration.Value.Text()
	}

	switch {
	case t.Setup:
		r.setup = append(r.setup, &t)
	case t.Teardown:
		r.teardown = append(r.teardown, &t)
	default:
		r.targets = append(r.targets, &t)
		r.scheduler.AddTarget(len(r.targets)-1, t.Name, &t)
	}
	return nil
}

// Metrics returns the collector backing the run
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Run executes the stress run. It returns early when ctx is canceled and
// reports what was measured so far.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(r.targets) == 0 {
		return nil, fmt.Errorf("no targets to run (all may be setup or teardown)")
	}

	names := make([]string, len(r.targets))
	for i, t := range r.targets {
		names[i] = t.Name
	}
	r.reporter.Header(r.version, names, r.config)

	if len(r.setup) > 0 {
		r.reporter.Info("Running %d setup invocation(s)...", len(r.setup))
		for _, t := range r.setup {
			if _, err := r.invokeOnce(ctx, t); err != nil {
				return nil, fmt.Errorf("setup %q failed: %w", t.Name, err)
			}
		}
		r.reporter.Info("Setup complete.\n")
	}

	r.metrics.Start()

	runCtx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	progressDone := make(chan struct{})
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		r.progressLoop(progressDone)
	}()

	if r.config.Mode == VUMode {
		r.runVUMode(runCtx)
	} else {
		r.runRateMode(runCtx)
	}

	r.metrics.Stop()
	close(progressDone)
	progressWG.Wait()
	r.reporter.ClearProgress()

	if len(r.teardown) > 0 {
		r.reporter.Info("\nRunning %d teardown invocation(s)...", len(r.teardown))
		teardownCtx := context.WithoutCancel(ctx)
		for _, t := range r.teardown {
			if _, err := r.invokeOnce(teardownCtx, t); err != nil {
				r.reporter.Error("teardown %q failed: %v", t.Name, err)
			}
		}
		r.reporter.Info("Teardown complete.")
	}

	summary := r.metrics.GetSummary()
	var thresholds []ThresholdResult
	if r.config.Thresholds.HasThresholds() {
		thresholds = evaluate(summary, r.config.Thresholds)
	}

	r.reporter.Summary(summary, thresholds)

	result := &Result{Summary: summary, Thresholds: thresholds}
	result.Passed = !result.HasThresholdFailures()
	return result, nil
}

func (r *Runner) runRateMode(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	start := time.Now()
	var rampUp <-chan time.Time
	if r.config.RampUp > 0 {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		rampUp = ticker.C
		r.scheduler.UpdateRate(max(r.scheduler.CurrentRate(0), 0.1))
	}

	for ctx.Err() == nil {
		select {
		case <-rampUp:
			r.scheduler.UpdateRate(r.scheduler.CurrentRate(time.Since(start)))
		default:
		}

		if err := r.scheduler.Wait(ctx); err != nil {
			return
		}

		st := r.scheduler.Select()
		if st == nil {
			return
		}

		if err := r.scheduler.Acquire(ctx); err != nil {
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.scheduler.Release()
			_ = r.execute(ctx, st)
		}()
	}
}

func (r *Runner) runVUMode(ctx context.Context) {
	pool := newVUPool(r.scheduler, r.config, r.metrics, r.execute)
	pool.Start(ctx)

	if r.config.RampUp > 0 {
		ticker := time.NewTicker(100 * time.Millisecond)
		start := time.Now()
		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pool.Scale(max(r.scheduler.CurrentVUs(time.Since(start)), 1))
				}
			}
		}()
	}

	<-ctx.Done()
	pool.Stop()
	pool.Wait()
}

// execute invokes a scheduled target and records the outcome. Invocations
// interrupted by the end of the run count as timeouts.
func (r *Runner) execute(ctx context.Context, st *ScheduledTarget) error {
	start := time.Now()
	status, err := r.invokeOnce(ctx, st.Target)
	elapsed := time.Since(start)

	if err != nil && ctx.Err() != nil && status == 0 {
		r.metrics.RecordTimeout(st.Name)
		return err
	}

	r.metrics.Record(st.Name, status, elapsed, err)
	if err != nil {
		r.logger.Debug().Err(err).Str("target", st.Name).Int("status", status).Msg("invocation failed")
	}
	return err
}

// ErrStatus is returned for invocations that completed with a 4xx or 5xx status
var ErrStatus = errors.New("unsuccessful status")

// invokeOnce runs a clone of the target declaration and returns the status
// code found in the result.
func (r *Runner) invokeOnce(ctx context.Context, t *Target) (int, error) {
	decl := t.Declaration.Clone()
	if err := r.invoker.Invoke(ctx, t.Verb, decl); err != nil {
		return statusOf(decl), err
	}

	status := statusOf(decl)
	if status >= 400 {
		return status, fmt.Errorf("%w: HTTP %d", ErrStatus, status)
	}
	return status, nil
}

func statusOf(result *node.Node) int {
	code, ok := result.Value.Int64()
	if !ok {
		return 0
	}
	return int(code)
}

func (r *Runner) progressLoop(done <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.reporter.Progress(r.metrics.GetCurrentStats(), r.config.Duration)
			r.metrics.AddTimePoint(r.metrics.Snapshot())
		}
	}
}

// Result holds the final result of a stress run
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// HasThresholdFailures returns true if any thresholds failed
func (r *Result) HasThresholdFailures() bool {
	for _, tr := range r.Thresholds {
		if !tr.Passed {
			return true
		}
	}
	return false
}
