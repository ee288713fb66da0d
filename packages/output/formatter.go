package output

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/invoke"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// Format names accepted by New.
const (
	Console     = "console"
	JSON        = codec.JSON
	YAML        = codec.YAML
	Hyperlambda = codec.Hyperlambda
	JUnit       = "junit"
	TAP         = "tap"
)

// Formats lists every format New accepts.
var Formats = []string{Console, JSON, YAML, Hyperlambda, JUnit, TAP}

// Result is one completed (or failed) invocation handed to a Formatter.
type Result struct {
	Name     string // usually the declaration file
	Verb     string
	URL      string
	Duration time.Duration
	// Node is the populated result tree. It still holds the declaration when
	// Err is set before a response arrived.
	Node *node.Node
	Err  error
}

// Status returns the HTTP status stored in the result, or 0.
func (r *Result) Status() int {
	if r.Node == nil {
		return 0
	}
	code, ok := r.Node.Value.Int64()
	if !ok {
		return 0
	}
	return int(code)
}

// Passed reports whether the invocation succeeded with a non-error status.
func (r *Result) Passed() bool {
	return r.Err == nil && r.Status() > 0 && r.Status() < 400
}

// Failure describes why the result did not pass, or "" when it did.
func (r *Result) Failure() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Status() >= 400:
		return fmt.Sprintf("HTTP %d %s", r.Status(), http.StatusText(r.Status()))
	case r.Status() == 0:
		return "no status in result"
	}
	return ""
}

// Title is the one-line label used by the line oriented formats.
func (r *Result) Title() string {
	title := strings.ToUpper(r.Verb) + " " + r.URL
	if r.Name != "" {
		title = r.Name + ": " + title
	}
	return title
}

func (r *Result) headers() *node.Node {
	if r.Node == nil {
		return nil
	}
	return r.Node.Child(invoke.ResultHeaders)
}

func (r *Result) content() *node.Node {
	if r.Node == nil {
		return nil
	}
	return r.Node.Child(invoke.ResultContent)
}

// Formatter renders results.
type Formatter interface {
	FormatResult(result *Result)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that buffer results until the end.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Option configures the formatter returned by New.
type Option func(*options)

type options struct {
	verbose bool
	noColor bool
	codec   codec.Codec
}

func WithVerbose(v bool) Option {
	return func(o *options) { o.verbose = v }
}

func WithNoColor(nc bool) Option {
	return func(o *options) { o.noColor = nc }
}

// WithCodec sets the codec used to render structured content.
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

// New returns the formatter for format writing to w.
func New(format string, w io.Writer, opts ...Option) (Formatter, error) {
	o := &options{codec: codec.New()}
	for _, opt := range opts {
		opt(o)
	}

	switch strings.ToLower(format) {
	case "", Console:
		return newConsoleFormatter(w, o), nil
	case JSON:
		return newJSONFormatter(w, o), nil
	case YAML, Hyperlambda:
		return newTreeFormatter(strings.ToLower(format), w, o), nil
	case JUnit:
		return newJUnitFormatter(w), nil
	case TAP:
		return newTAPFormatter(w), nil
	}
	return nil, fmt.Errorf("unknown output format %q (expected one of %s)", format, strings.Join(Formats, ", "))
}
