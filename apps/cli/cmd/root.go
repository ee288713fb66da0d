package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitlambda/packages/core/config"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag  string
	debugFlag   bool
	noColorFlag bool

	// set by the root PersistentPreRunE
	cfg    = config.DefaultConfig()
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "hitlambda",
	Short: "Declarative HTTP invocations",
	Long: `hitlambda sends HTTP requests described by declaration files and turns
the responses back into the same tree: the status code, the response headers
and the content, converted to a tree when asked to.

Declarations are YAML, JSON or Hyperlambda documents.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errReported) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// errReported marks failures that were already printed by a formatter.
var errReported = errors.New("reported")

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFlag)
	if err != nil {
		return withCode(ExitConfigError, err)
	}
	if cmd.Flags().Changed("debug") {
		loaded.Debug = config.BoolPtr(debugFlag)
	}
	if cmd.Flags().Changed("no-color") {
		loaded.NoColor = config.BoolPtr(noColorFlag)
	}
	cfg = loaded
	logger = newLogger(cmd.ErrOrStderr(), cfg.GetDebug(), cfg.GetNoColor())
	logger.Debug().Str("config", configFlag).Msg("configuration loaded")
	return nil
}

func newLogger(w io.Writer, debug, noColor bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
	}).Level(level).With().Timestamp().Logger()
}

// usageArgs turns argument validation failures into usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return withCode(ExitUsageError, validate(cmd, args))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (default: .hitlambda.json in the working directory)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Log requests, responses and resolution steps (env: HITLAMBDA_DEBUG)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output (env: HITLAMBDA_NO_COLOR)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return withCode(ExitUsageError, err)
	})

	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(importCmd)
}
