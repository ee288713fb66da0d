package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TAPFormatter formats invocation results as TAP version 13
type TAPFormatter struct {
	writer  io.Writer
	results []tapResult
}

type tapResult struct {
	title  string
	passed bool
	diag   tapDiagnostic
}

// tapDiagnostic is the YAML block written under a failing line
type tapDiagnostic struct {
	Message  string `yaml:"message"`
	Severity string `yaml:"severity"`
	Status   int    `yaml:"status,omitempty"`
	Duration string `yaml:"duration,omitempty"`
}

func newTAPFormatter(w io.Writer) *TAPFormatter {
	return &TAPFormatter{writer: w}
}

func (f *TAPFormatter) FormatResult(r *Result) {
	tr := tapResult{title: r.Title(), passed: r.Passed()}
	if !tr.passed {
		tr.diag = tapDiagnostic{
			Message:  r.Failure(),
			Severity: "fail",
			Status:   r.Status(),
			Duration: r.Duration.String(),
		}
		if r.Status() == 0 {
			tr.diag.Severity = "error"
		}
	}
	f.results = append(f.results, tr)
}

// Errors are reported per result.
func (f *TAPFormatter) FormatError(err error) {}

func (f *TAPFormatter) FormatHeader(version string) {}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintln(f.writer, "TAP version 13")
	fmt.Fprintf(f.writer, "1..%d\n", len(f.results))

	for i, r := range f.results {
		if r.passed {
			fmt.Fprintf(f.writer, "ok %d - %s\n", i+1, r.title)
			continue
		}

		fmt.Fprintf(f.writer, "not ok %d - %s\n", i+1, r.title)
		block, err := yaml.Marshal(r.diag)
		if err != nil {
			return fmt.Errorf("encoding TAP diagnostic: %w", err)
		}
		fmt.Fprintln(f.writer, "  ---")
		for _, line := range strings.Split(strings.TrimRight(string(block), "\n"), "\n") {
			fmt.Fprintf(f.writer, "  %s\n", line)
		}
		fmt.Fprintln(f.writer, "  ...")
	}

	fmt.Fprintf(f.writer, "# time %s\n", totalDuration)
	return nil
}
