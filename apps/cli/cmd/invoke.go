package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"github.com/abdul-hamid-achik/hitlambda/packages/output"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke [verb] <file|directory>...",
	Short: "Send the declarations of files and print the results",
	Long: `Send every declaration of the given files, in order, and print each result.

Declarations naming their slot (http.get, http.post, ...) carry their own
verb. Single declarations without one take the verb given first on the
command line.

{{expr}} placeholders are expanded from config variables, the selected
environment, --env-file, the file's own variables and --var, in that order
of precedence (later wins). {{response.path}} reads the content of the
previous response of the same file.

Examples:
  hitlambda invoke users.yaml
  hitlambda invoke get health.yaml --output json
  hitlambda invoke post create.yaml --var name=John --convert
  hitlambda invoke ./declarations/ --env staging
  hitlambda invoke users.hl --output hyperlambda --watch`,
	Args: usageArgs(cobra.MinimumNArgs(1)),
	RunE: invokeCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	invokeSession  sessionFlags
	outputFlag     string
	outputFileFlag string
	verboseFlag    bool
	convertFlag    bool
	watchFlag      bool
	bailFlag       bool
	dryRunFlag     bool
)

func init() {
	invokeSession.register(invokeCmd.Flags())

	invokeCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output format: console, json, yaml, hyperlambda, junit, tap (env: HITLAMBDA_OUTPUT)")
	invokeCmd.Flags().StringVar(&outputFileFlag, "output-file", "", "Write output to file (default: stdout)")
	invokeCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Print response headers and full content")
	invokeCmd.Flags().BoolVarP(&convertFlag, "convert", "c", false, "Convert response content to a tree when a transformer exists for its type")
	invokeCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and invoke again")
	invokeCmd.Flags().BoolVar(&bailFlag, "bail", false, "Stop at the first failed invocation")
	invokeCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Print the expanded declarations without sending them")
}

// invocationRun sends the declarations of a set of files once.
type invocationRun struct {
	session   *session
	verb      string
	convert   bool
	bail      bool
	dryRun    bool
	out       io.Writer
	formatter output.Formatter
}

// run returns the first failure, or nil when every invocation passed.
func (r *invocationRun) run(ctx context.Context, files []string) error {
	var first error
	fail := func(err error) bool {
		if first == nil {
			first = err
		}
		return r.bail
	}

	for _, path := range files {
		file, err := r.session.parser.ParseFile(path)
		if err != nil {
			r.formatter.FormatError(err)
			if fail(err) {
				break
			}
			continue
		}

		resolver, invoker := r.session.scope(file)
		stop := false
		for _, decl := range file.Declarations {
			n, verb, err := r.session.prepare(ctx, resolver, decl, r.verb, r.convert)
			if err != nil {
				r.formatter.FormatError(fmt.Errorf("%s: %w", path, err))
				if stop = fail(err); stop {
					break
				}
				continue
			}

			if r.dryRun {
				if err := r.printDeclaration(ctx, verb, n); err != nil {
					return err
				}
				continue
			}

			result := &output.Result{Name: path, Verb: verb, URL: urlOf(n), Node: n}
			start := time.Now()
			result.Err = invoker.Invoke(ctx, verb, n)
			result.Duration = time.Since(start)
			r.formatter.FormatResult(result)

			if result.Err == nil {
				r.session.remember(ctx, resolver, n)
			}
			if !result.Passed() {
				err := result.Err
				if err == nil {
					err = withCode(ExitInvocationError, fmt.Errorf("%s", result.Failure()))
				}
				if stop = fail(err); stop {
					break
				}
			}
		}
		if stop {
			break
		}
	}

	if first != nil {
		return withCode(exitCode(first), errReported)
	}
	return nil
}

func (r *invocationRun) printDeclaration(ctx context.Context, verb string, n *node.Node) error {
	doc, err := parser.Document(codec.Hyperlambda, nil, &parser.Declaration{Verb: verb, Node: n})
	if err != nil {
		return err
	}
	out, err := r.session.codec.Encode(ctx, codec.Hyperlambda, doc)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(r.out, out)
	return err
}

func newFormatter(w io.Writer, s *session) (output.Formatter, error) {
	format := cfg.Output
	if outputFlag != "" {
		format = outputFlag
	}
	f, err := output.New(format, w,
		output.WithVerbose(verboseFlag),
		output.WithNoColor(cfg.GetNoColor()),
		output.WithCodec(s.codec),
	)
	return f, withCode(ExitUsageError, err)
}

func invokeCommand(cmd *cobra.Command, args []string) error {
	verb, paths := splitVerb(args)

	files, err := collectFiles(paths)
	if err != nil {
		return withCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withCode(ExitUsageError, fmt.Errorf("no declaration files found (.yaml, .yml, .json, .hl)"))
	}

	s, err := newSession(&invokeSession, cmd.Flags())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	formatter, err := newFormatter(out, s)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := &invocationRun{
		session:   s,
		verb:      verb,
		convert:   convertFlag,
		bail:      bailFlag,
		dryRun:    dryRunFlag,
		out:       out,
		formatter: formatter,
	}

	runOnce := func() error {
		formatter.FormatHeader(version)
		start := time.Now()
		runErr := r.run(ctx, files)
		if flushable, ok := formatter.(output.Flushable); ok {
			if err := flushable.Flush(time.Since(start)); err != nil {
				return fmt.Errorf("error writing output: %w", err)
			}
		}
		return runErr
	}

	runErr := runOnce()
	if !watchFlag {
		return runErr
	}

	return watch(ctx, cmd, files, paths, func() {
		// formatters that buffer results need fresh state
		fresh, err := newFormatter(out, s)
		if err != nil {
			return
		}
		formatter = fresh
		r.formatter = fresh
		if err := runOnce(); err != nil && exitCode(err) != ExitInvocationError {
			logger.Debug().Err(err).Msg("run failed")
		}
	})
}

// watch calls rerun whenever one of files, or a declaration file below one of
// the directories in args, is written. It returns when ctx is done.
func watch(ctx context.Context, cmd *cobra.Command, files, args []string, rerun func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	for _, file := range files {
		dir := filepath.Dir(file)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				logger.Warn().Err(err).Str("dir", dir).Msg("cannot watch directory")
			}
			watchedDirs[dir] = true
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && !watchedDirs[path] {
					_ = watcher.Add(path)
					watchedDirs[path] = true
				}
				return nil
			})
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !parser.IsDeclarationFile(event.Name) || isConfigFile(event.Name) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				fmt.Fprintf(cmd.ErrOrStderr(), "\nFile changed: %s\nInvoking again...\n\n", name)
				rerun()
				fmt.Fprintf(cmd.ErrOrStderr(), "\nWatching for changes... (press Ctrl+C to stop)\n")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error().Err(err).Msg("watcher error")
		}
	}
}
