package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/core/config"
	"github.com/abdul-hamid-achik/hitlambda/packages/core/env"
	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
	hlhttp "github.com/abdul-hamid-achik/hitlambda/packages/http"
	"github.com/abdul-hamid-achik/hitlambda/packages/invoke"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"github.com/abdul-hamid-achik/hitlambda/packages/transform"
)

// responseDocument names the previous response content for the resolver, so
// a declaration can read it with {{response.path}}.
const responseDocument = "response"

// sessionFlags are shared by the commands that send requests.
type sessionFlags struct {
	env          string
	envFile      string
	vars         []string
	timeout      string
	proxy        string
	root         string
	statusErrors bool
}

func (f *sessionFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.env, "env", "e", "", "Environment from the config file (env: HITLAMBDA_ENV)")
	fs.StringVar(&f.envFile, "env-file", "", "Path to .env file for variable interpolation")
	fs.StringArrayVar(&f.vars, "var", nil, "Set a variable as name=value (repeatable)")
	fs.StringVar(&f.timeout, "timeout", "", "Request timeout, e.g. 10s (env: HITLAMBDA_TIMEOUT)")
	fs.StringVar(&f.proxy, "proxy", "", "Proxy URL for HTTP requests (env: HITLAMBDA_PROXY)")
	fs.StringVar(&f.root, "root", "", "Folder [filename] arguments resolve against (default: the declaration file's folder) (env: HITLAMBDA_ROOT)")
	fs.BoolVar(&f.statusErrors, "status-errors", false, "Treat 4xx and 5xx responses as errors (env: HITLAMBDA_STATUS_ERRORS)")
}

// session holds what every invocation of one command run shares.
type session struct {
	client       *hlhttp.Client
	registry     *transform.Registry
	codec        codec.Codec
	parser       *parser.Parser
	resolver     *env.Resolver
	overrides    map[string]any
	root         string
	statusErrors bool
}

func newSession(f *sessionFlags, fs *pflag.FlagSet) (*session, error) {
	timeout := cfg.TimeoutDuration()
	if f.timeout != "" {
		d, err := time.ParseDuration(f.timeout)
		if err != nil {
			return nil, withCode(ExitUsageError, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", f.timeout, err))
		}
		timeout = d
	}

	proxy := cfg.Proxy
	if f.proxy != "" {
		proxy = f.proxy
	}

	clientOpts := []hlhttp.ClientOption{
		hlhttp.WithTimeout(timeout),
		hlhttp.WithFollowRedirects(cfg.GetFollowRedirects()),
		hlhttp.WithMaxRedirects(cfg.MaxRedirects),
	}
	if proxy != "" {
		if err := hlhttp.ValidateURL(proxy); err != nil {
			return nil, withCode(ExitConfigError, fmt.Errorf("invalid proxy: %w", err))
		}
		clientOpts = append(clientOpts, hlhttp.WithProxy(proxy))
	}
	if cfg.GetDebug() {
		clientOpts = append(clientOpts, hlhttp.WithDebugLogging(logger))
	}

	root := cfg.Root
	if f.root != "" {
		root = f.root
	}
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, withCode(ExitConfigError, err)
		}
		root = abs
	}

	envName := cfg.DefaultEnvironment
	if f.env != "" {
		envName = f.env
	}
	if _, ok := cfg.Environments[envName]; !ok && f.env != "" {
		logger.Warn().Str("env", envName).Msg("environment not found in config")
	}

	var dotenv map[string]any
	if f.envFile != "" {
		vars, err := env.LoadDotEnv(f.envFile)
		if err != nil {
			return nil, withCode(ExitConfigError, err)
		}
		dotenv = vars
	}

	overrides, err := parseVars(f.vars)
	if err != nil {
		return nil, withCode(ExitUsageError, err)
	}

	resolver := env.NewResolver()
	resolver.SetWarnFunc(func(format string, args ...any) {
		logger.Warn().Msgf(format, args...)
	})
	resolver.SetVariables(env.MergeVariables(
		cfg.Variables,
		env.LoadEnvironment(envName, cfg.Environments).Variables,
		dotenv,
	))

	statusErrors := cfg.GetStatusErrors()
	if fs.Changed("status-errors") {
		statusErrors = f.statusErrors
	}

	c := codec.New()
	return &session{
		client:       hlhttp.NewClient(clientOpts...),
		registry:     transform.NewRegistry(),
		codec:        c,
		parser:       parser.NewParser(c),
		resolver:     resolver,
		overrides:    overrides,
		root:         root,
		statusErrors: statusErrors,
	}, nil
}

// parseVars turns name=value pairs into variables.
func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", pair)
		}
		vars[name] = value
	}
	return vars, nil
}

// scope returns the resolver and invoker for declarations of files. Variables
// of later files win, and --var wins over everything.
func (s *session) scope(files ...*parser.File) (*env.Resolver, *invoke.Invoker) {
	r := s.resolver.Clone()
	for _, f := range files {
		r.SetVariables(f.Variables)
	}
	r.SetVariables(s.overrides)

	root := s.root
	if root == "" && len(files) > 0 {
		if abs, err := filepath.Abs(filepath.Dir(files[0].Path)); err == nil {
			root = abs
		}
	}

	opts := []invoke.Option{
		invoke.WithRegistry(s.registry),
		invoke.WithCodec(s.codec),
		invoke.WithResolver(r),
		invoke.WithLogger(logger),
		invoke.WithStatusErrors(s.statusErrors),
	}
	if root != "" {
		opts = append(opts, invoke.WithRoot(transform.StaticRoot(root)))
	}
	return r, invoke.New(s.client, opts...)
}

// prepare returns a copy of decl ready to be sent, with {{expr}} placeholders
// expanded, and the verb to send it with.
func (s *session) prepare(ctx context.Context, r *env.Resolver, decl *parser.Declaration, verb string, convert bool) (*node.Node, string, error) {
	if decl.Verb != "" {
		verb = decl.Verb
	}
	if verb == "" {
		return nil, "", withCode(ExitUsageError, fmt.Errorf("declaration #%d has no verb, pass one on the command line", decl.Index))
	}

	n := decl.Node.Clone()
	parser.Expand(ctx, n, r)
	if convert && n.Child(invoke.ArgConvert) == nil {
		n.Add(node.New(invoke.ArgConvert, node.Bool(true)))
	}
	return n, strings.ToUpper(verb), nil
}

// remember stores the content of a result as the response document.
func (s *session) remember(ctx context.Context, r *env.Resolver, result *node.Node) {
	content := result.Child(invoke.ResultContent)
	if content == nil {
		return
	}
	if content.IsStructured() {
		out, err := s.codec.Encode(ctx, codec.JSON, content)
		if err != nil {
			logger.Debug().Err(err).Msg("response not kept for {{response}}")
			return
		}
		r.SetDocument(responseDocument, []byte(out))
		return
	}
	if text, ok := content.Value.Str(); ok && gjson.Valid(text) {
		r.SetDocument(responseDocument, []byte(text))
	}
}

// urlOf returns the URL text of a declaration about to be sent.
func urlOf(n *node.Node) string {
	if expr, ok := n.Value.Expr(); ok {
		return expr
	}
	return n.Value.Text()
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && parser.IsDeclarationFile(path) && !isConfigFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if parser.IsDeclarationFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

func isConfigFile(path string) bool {
	return slices.Contains(config.ConfigFilenames, filepath.Base(path))
}

// splitVerb takes a leading verb off args. A leading argument naming an
// existing path is never a verb.
func splitVerb(args []string) (string, []string) {
	if len(args) > 1 && parser.ValidVerb(args[0]) {
		if _, err := os.Stat(args[0]); err != nil {
			return strings.ToUpper(args[0]), args[1:]
		}
	}
	return "", args
}
