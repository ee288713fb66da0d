package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// TreeFormatter writes each result tree in a codec format (YAML or
// Hyperlambda) as soon as it arrives.
type TreeFormatter struct {
	writer io.Writer
	format string
	codec  codec.Codec
	count  int
}

func newTreeFormatter(format string, w io.Writer, o *options) *TreeFormatter {
	return &TreeFormatter{writer: w, format: format, codec: o.codec}
}

func (f *TreeFormatter) FormatResult(r *Result) {
	if r.Err != nil && r.Status() == 0 {
		f.FormatError(fmt.Errorf("%s: %w", r.Title(), r.Err))
		return
	}

	name := r.Node.Name
	if name == "" {
		name = "http." + strings.ToLower(r.Verb)
	}
	result := r.Node.Clone()
	result.Name = name
	if f.format == codec.YAML {
		// YAML mappings cannot carry a value next to their keys
		result = node.New(name, node.None, node.New("status", result.Value)).Add(result.Children()...)
	}

	out, err := f.codec.Encode(context.Background(), f.format, node.New("", node.None, result))
	if err != nil {
		f.FormatError(err)
		return
	}

	if f.count > 0 && f.format == codec.YAML {
		fmt.Fprintln(f.writer, "---")
	}
	f.count++
	fmt.Fprint(f.writer, out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(f.writer)
	}
}

// FormatError writes err as a comment so the output stays parseable.
func (f *TreeFormatter) FormatError(err error) {
	prefix := "#"
	if f.format == codec.Hyperlambda {
		prefix = "//"
	}
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(f.writer, "%s error: %s\n", prefix, line)
	}
}

func (f *TreeFormatter) FormatHeader(version string) {}
