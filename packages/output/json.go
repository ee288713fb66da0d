package output

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// JSONOutput is the document written by JSONFormatter.Flush.
type JSONOutput struct {
	Summary     JSONSummary      `json:"summary"`
	Invocations []JSONInvocation `json:"invocations"`
	Duration    float64          `json:"duration"`
	Time        string           `json:"time"`
}

type JSONSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// JSONInvocation is a single result. Content is a string for text bodies,
// base64 for binary bodies, and a JSON value for converted bodies.
type JSONInvocation struct {
	Name     string            `json:"name,omitempty"`
	Verb     string            `json:"verb"`
	URL      string            `json:"url"`
	Passed   bool              `json:"passed"`
	Status   int               `json:"status,omitempty"`
	Duration float64           `json:"duration"`
	Error    string            `json:"error,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Content  any               `json:"content,omitempty"`
}

// JSONFormatter buffers results and writes them as one JSON document
type JSONFormatter struct {
	writer  io.Writer
	codec   codec.Codec
	results []JSONInvocation
}

func newJSONFormatter(w io.Writer, o *options) *JSONFormatter {
	return &JSONFormatter{
		writer:  w,
		codec:   o.codec,
		results: make([]JSONInvocation, 0),
	}
}

func (f *JSONFormatter) FormatResult(r *Result) {
	inv := JSONInvocation{
		Name:     r.Name,
		Verb:     r.Verb,
		URL:      r.URL,
		Passed:   r.Passed(),
		Status:   r.Status(),
		Duration: float64(r.Duration.Milliseconds()),
	}
	if r.Err != nil {
		inv.Error = r.Err.Error()
	}

	if headers := r.headers(); headers != nil && headers.Len() > 0 {
		inv.Headers = make(map[string]string, headers.Len())
		for _, h := range headers.Children() {
			inv.Headers[h.Name] = h.Value.Text()
		}
	}

	if content := r.content(); content != nil {
		inv.Content = f.content(content)
	}

	f.results = append(f.results, inv)
}

func (f *JSONFormatter) content(n *node.Node) any {
	if !n.IsStructured() {
		return n.Value.Any()
	}
	out, err := f.codec.Encode(context.Background(), codec.JSON, n)
	if err != nil {
		return map[string]string{"error": err.Error()}
	}
	return json.RawMessage(out)
}

// Errors are reported through FormatResult.
func (f *JSONFormatter) FormatError(err error) {}

func (f *JSONFormatter) FormatHeader(version string) {}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed int
	for _, inv := range f.results {
		if inv.Passed {
			passed++
		} else {
			failed++
		}
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:  len(f.results),
			Passed: passed,
			Failed: failed,
		},
		Invocations: f.results,
		Duration:    float64(totalDuration.Milliseconds()),
		Time:        time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
