package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// maxInlineContent caps how much textual content is printed without verbose.
const maxInlineContent = 2048

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	codec   codec.Codec

	green  func(a ...any) string
	red    func(a ...any) string
	yellow func(a ...any) string
	cyan   func(a ...any) string
	bold   func(a ...any) string
	dim    func(a ...any) string
}

func newConsoleFormatter(w io.Writer, o *options) *ConsoleFormatter {
	sprint := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if o.noColor {
			c.DisableColor()
		}
		return c.SprintFunc()
	}

	return &ConsoleFormatter{
		writer:  w,
		verbose: o.verbose,
		codec:   o.codec,
		green:   sprint(color.FgGreen),
		red:     sprint(color.FgRed),
		yellow:  sprint(color.FgYellow),
		cyan:    sprint(color.FgCyan),
		bold:    sprint(color.Bold),
		dim:     sprint(color.Faint),
	}
}

func (f *ConsoleFormatter) statusColor(code int) func(a ...any) string {
	switch {
	case code >= 500:
		return f.red
	case code >= 400:
		return f.yellow
	case code >= 300:
		return f.cyan
	}
	return f.green
}

func (f *ConsoleFormatter) FormatResult(r *Result) {
	if r.Err != nil && r.Status() == 0 {
		fmt.Fprintf(f.writer, "%s %s %s\n", f.red("x"), r.Title(), f.red(fmt.Sprintf("(%v)", r.Err)))
		return
	}

	code := r.Status()
	symbol := f.green("✓")
	if !r.Passed() {
		symbol = f.red("✗")
	}
	fmt.Fprintf(f.writer, "%s %s %s %s\n", symbol, r.Title(),
		f.statusColor(code)(code), f.cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

	if r.Err != nil {
		fmt.Fprintf(f.writer, "  %s %v\n", f.red("→"), r.Err)
	}

	if headers := r.headers(); headers != nil && f.verbose {
		fmt.Fprintln(f.writer, f.bold("  Headers:"))
		for _, h := range headers.Children() {
			fmt.Fprintf(f.writer, "    %s: %s\n", f.dim(h.Name), h.Value.Text())
		}
	}

	if content := r.content(); content != nil {
		fmt.Fprintln(f.writer, f.bold("  Content:"))
		fmt.Fprintln(f.writer, indent(f.renderContent(content), "    "))
	}
}

func (f *ConsoleFormatter) renderContent(content *node.Node) string {
	if content.IsStructured() {
		out, err := f.codec.Encode(context.Background(), codec.Hyperlambda, content)
		if err != nil {
			return f.red(fmt.Sprintf("(cannot render content: %v)", err))
		}
		return strings.TrimRight(out, "\n")
	}

	if raw, ok := content.Value.Raw(); ok {
		return f.dim(fmt.Sprintf("[%d bytes]", len(raw)))
	}

	text := content.Value.Text()
	if !f.verbose && len(text) > maxInlineContent {
		text = text[:maxInlineContent] + f.dim(fmt.Sprintf("... (%d more bytes)", len(text)-maxInlineContent))
	}
	return text
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	fmt.Fprintf(f.writer, "%s %v\n", f.red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	fmt.Fprintf(f.writer, "%s %s\n\n", f.bold("hitlambda"), version)
}
