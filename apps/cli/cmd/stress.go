package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/abdul-hamid-achik/hitlambda/packages/core/config"
	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
	"github.com/abdul-hamid-achik/hitlambda/packages/stress"
)

var stressCmd = &cobra.Command{
	Use:   "stress [verb] <file>...",
	Short: "Replay declarations under load",
	Long: `Replay the declarations of one or more files at a target rate, or with a
fixed number of virtual users, and report throughput and latency percentiles.

{{expr}} placeholders are expanded once when the files are loaded. !ref
references resolve again on every invocation.

Examples:
  # Constant rate
  hitlambda stress users.yaml --duration 1m --rate 100

  # Virtual users with think time
  hitlambda stress get health.yaml --duration 2m --vus 50 --think-time 1s

  # With ramp-up
  hitlambda stress users.yaml --duration 5m --rate 200 --ramp-up 30s

  # Using a config profile
  hitlambda stress users.yaml --profile load --env staging

  # Login once, then hammer the API, then clean up
  hitlambda stress api.yaml --setup login.yaml --teardown cleanup.yaml

  # With thresholds for CI/CD
  hitlambda stress users.yaml -d 1m -r 100 --threshold "p95<200ms,errors<0.1%"

  # Expose Prometheus metrics while running
  hitlambda stress users.yaml -d 10m --metrics-addr :9090`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: stressCommand,
}

var (
	stressSession        sessionFlags
	stressDurationFlag   string
	stressRateFlag       float64
	stressVUsFlag        int
	stressMaxVUsFlag     int
	stressThinkTimeFlag  string
	stressRampUpFlag     string
	stressThresholdFlag  string
	stressProfileFlag    string
	stressSetupFlag      []string
	stressTeardownFlag   []string
	stressMetricsFlag    string
	stressNoProgressFlag bool
	stressVerboseFlag    bool
	stressJSONFlag       bool
)

func init() {
	stressSession.register(stressCmd.Flags())

	stressCmd.Flags().StringVarP(&stressDurationFlag, "duration", "d", "30s", "Run duration (e.g., 30s, 5m, 1h)")
	stressCmd.Flags().Float64VarP(&stressRateFlag, "rate", "r", 10, "Target invocations per second")
	stressCmd.Flags().IntVarP(&stressVUsFlag, "vus", "u", 0, "Number of virtual users (alternative to rate)")
	stressCmd.Flags().IntVar(&stressMaxVUsFlag, "max-vus", 100, "Maximum concurrent invocations")
	stressCmd.Flags().StringVarP(&stressThinkTimeFlag, "think-time", "t", "0s", "Think time between invocations per VU")
	stressCmd.Flags().StringVar(&stressRampUpFlag, "ramp-up", "0s", "Ramp-up time to reach target rate/VUs")
	stressCmd.Flags().StringVar(&stressThresholdFlag, "threshold", "", "Pass/fail thresholds (e.g., \"p95<200ms,errors<0.1%\")")
	stressCmd.Flags().StringVarP(&stressProfileFlag, "profile", "p", "", "Load stress profile from config")
	stressCmd.Flags().StringArrayVar(&stressSetupFlag, "setup", nil, "Declaration file invoked once before the run (repeatable)")
	stressCmd.Flags().StringArrayVar(&stressTeardownFlag, "teardown", nil, "Declaration file invoked once after the run (repeatable)")
	stressCmd.Flags().StringVar(&stressMetricsFlag, "metrics-addr", "", "Serve Prometheus metrics on this address while running (e.g., :9090)")
	stressCmd.Flags().BoolVar(&stressNoProgressFlag, "no-progress", false, "Disable real-time progress display")
	stressCmd.Flags().BoolVarP(&stressVerboseFlag, "verbose", "v", false, "Verbose output with per-target breakdown")
	stressCmd.Flags().BoolVar(&stressJSONFlag, "json", false, "Output results as JSON")
}

func stressCommand(cmd *cobra.Command, args []string) error {
	verb, paths := splitVerb(args)

	for _, path := range append(append(append([]string{}, paths...), stressSetupFlag...), stressTeardownFlag...) {
		if _, err := os.Stat(path); err != nil {
			return withCode(ExitUsageError, fmt.Errorf("cannot access file: %w", err))
		}
	}

	stressCfg, err := buildStressConfig(cmd.Flags(), cfg)
	if err != nil {
		return withCode(ExitConfigError, err)
	}

	s, err := newSession(&stressSession, cmd.Flags())
	if err != nil {
		return err
	}

	reporter := stress.NewReporter(
		stress.WithWriter(cmd.OutOrStdout()),
		stress.WithNoColor(cfg.GetNoColor()),
		stress.WithNoProgress(stressNoProgressFlag || stressJSONFlag),
		stress.WithVerbose(stressVerboseFlag),
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	files, err := parseAll(s, paths, stressSetupFlag, stressTeardownFlag)
	if err != nil {
		return err
	}
	_, invoker := s.scope(files...)

	runner := stress.NewRunner(stressCfg, invoker,
		stress.WithReporter(reporter),
		stress.WithLogger(logger),
		stress.WithVersion(version),
	)

	targets, err := stressTargets(ctx, s, files, verb, len(paths), len(stressSetupFlag))
	if err != nil {
		return err
	}
	for _, t := range targets {
		if err := runner.AddTarget(t); err != nil {
			return withCode(ExitParseError, err)
		}
	}

	if stressMetricsFlag != "" {
		stop := serveMetrics(stressMetricsFlag)
		defer stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nReceived interrupt, stopping gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	result, err := runner.Run(ctx)
	if err != nil {
		return withCode(ExitConfigError, err)
	}

	if stressJSONFlag {
		if err := reporter.JSONSummary(result.Summary, result.Thresholds); err != nil {
			return err
		}
	}

	if result.HasThresholdFailures() {
		return withCode(ExitInvocationError, errors.New("stress thresholds not met"))
	}
	return nil
}

// parseAll parses the measured files followed by the setup and teardown files.
func parseAll(s *session, groups ...[]string) ([]*parser.File, error) {
	var files []*parser.File
	for _, group := range groups {
		for _, path := range group {
			f, err := s.parser.ParseFile(path)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}
	return files, nil
}

// stressTargets turns the declarations of files into targets. The first
// measured files are replayed, the next setup files run before the run, and
// the rest run after it.
func stressTargets(ctx context.Context, s *session, files []*parser.File, verb string, measured, setup int) ([]stress.Target, error) {
	resolver, _ := s.scope(files...)

	var targets []stress.Target
	for i, f := range files {
		for _, decl := range f.Declarations {
			n, v, err := s.prepare(ctx, resolver, decl, verb, false)
			if err != nil {
				return nil, err
			}
			name := v + " " + urlOf(n)
			if len(f.Declarations) > 1 || len(files) > 1 {
				name = fmt.Sprintf("%s #%d %s", f.Path, decl.Index, name)
			}
			targets = append(targets, stress.Target{
				Name:        name,
				Verb:        v,
				Declaration: n,
				Setup:       i >= measured && i < measured+setup,
				Teardown:    i >= measured+setup,
			})
		}
	}
	return targets, nil
}

// serveMetrics exposes the default Prometheus registry on addr until the
// returned function is called.
func serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics on /metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// buildStressConfig applies the selected profile and then every flag that was
// set explicitly on top of stress.DefaultConfig.
func buildStressConfig(fs *pflag.FlagSet, fileConfig *config.Config) (*stress.Config, error) {
	stressCfg := stress.DefaultConfig()
	if fileConfig != nil && fileConfig.Concurrency > 0 {
		stressCfg.MaxVUs = fileConfig.Concurrency
	}

	if stressProfileFlag != "" {
		var profile config.StressProfile
		ok := false
		if fileConfig != nil {
			profile, ok = fileConfig.StressProfiles[stressProfileFlag]
		}
		if !ok {
			return nil, fmt.Errorf("stress profile %q not found in config", stressProfileFlag)
		}
		if err := applyProfile(stressCfg, profile); err != nil {
			return nil, fmt.Errorf("profile %q: %w", stressProfileFlag, err)
		}
	}

	if fs.Changed("duration") {
		d, err := time.ParseDuration(stressDurationFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid duration: %w", err)
		}
		stressCfg.Duration = d
	}

	if fs.Changed("rate") {
		stressCfg.Rate = stressRateFlag
	}

	if fs.Changed("vus") && stressVUsFlag > 0 {
		stressCfg.VUs = stressVUsFlag
		stressCfg.Mode = stress.VUMode
	}

	if fs.Changed("max-vus") {
		stressCfg.MaxVUs = stressMaxVUsFlag
	}

	if fs.Changed("think-time") {
		d, err := time.ParseDuration(stressThinkTimeFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid think time: %w", err)
		}
		stressCfg.ThinkTime = d
	}

	if fs.Changed("ramp-up") {
		d, err := time.ParseDuration(stressRampUpFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid ramp-up: %w", err)
		}
		stressCfg.RampUp = d
	}

	if stressThresholdFlag != "" {
		t, err := stress.ParseThresholds(stressThresholdFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid thresholds: %w", err)
		}
		stressCfg.Thresholds = t
	}

	return stressCfg, nil
}

func applyProfile(c *stress.Config, profile config.StressProfile) error {
	if profile.Duration != "" {
		d, err := time.ParseDuration(profile.Duration)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		c.Duration = d
	}
	if profile.Rate > 0 {
		c.Rate = profile.Rate
	}
	if profile.VUs > 0 {
		c.VUs = profile.VUs
		c.Mode = stress.VUMode
	}
	if profile.MaxVUs > 0 {
		c.MaxVUs = profile.MaxVUs
	}
	if profile.ThinkTime != "" {
		d, err := time.ParseDuration(profile.ThinkTime)
		if err != nil {
			return fmt.Errorf("invalid think time: %w", err)
		}
		c.ThinkTime = d
	}
	if profile.RampUp != "" {
		d, err := time.ParseDuration(profile.RampUp)
		if err != nil {
			return fmt.Errorf("invalid ramp-up: %w", err)
		}
		c.RampUp = d
	}
	if len(profile.Thresholds) > 0 {
		t, err := stress.ParseThresholds(buildThresholdString(profile.Thresholds))
		if err != nil {
			return fmt.Errorf("invalid thresholds: %w", err)
		}
		c.Thresholds = t
	}
	return nil
}

// buildThresholdString renders profile thresholds in flag syntax, sorted by
// name so that parse errors are reproducible.
func buildThresholdString(thresholds map[string]string) string {
	parts := make([]string, 0, len(thresholds))
	for k, v := range thresholds {
		parts = append(parts, k+"<"+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
