package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitlambda/packages/invoke"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

func resultNode(status int64, content *node.Node) *node.Node {
	n := node.New("", node.Int(status),
		node.New(invoke.ResultHeaders, node.None,
			node.New("Content-Type", node.String("application/json")),
			node.New("X-Request-Id", node.String("abc")),
		),
	)
	if content != nil {
		n.Add(content)
	}
	return n
}

func structured() *node.Node {
	return node.New(invoke.ResultContent, node.None,
		node.New("name", node.String("John")),
		node.New("age", node.Int(30)),
	)
}

func okResult() *Result {
	return &Result{
		Name:     "users.yaml",
		Verb:     "GET",
		URL:      "https://api.example.test/users/1",
		Duration: 42 * time.Millisecond,
		Node:     resultNode(200, structured()),
	}
}

func failedResult() *Result {
	return &Result{
		Name:     "users.yaml",
		Verb:     "DELETE",
		URL:      "https://api.example.test/users/2",
		Duration: 10 * time.Millisecond,
		Node:     resultNode(404, node.New(invoke.ResultContent, node.String(`{"error":"not found"}`))),
	}
}

func erroredResult() *Result {
	return &Result{
		Name: "broken.yaml",
		Verb: "POST",
		URL:  "https://api.example.test/users",
		Node: node.New("", node.String("https://api.example.test/users")),
		Err:  invoke.ErrMissingPayload,
	}
}

func TestResultHelpers(t *testing.T) {
	tests := []struct {
		name    string
		result  *Result
		status  int
		passed  bool
		failure string
	}{
		{"success", okResult(), 200, true, ""},
		{"error status", failedResult(), 404, false, "HTTP 404 Not Found"},
		{"invocation error", erroredResult(), 0, false, invoke.ErrMissingPayload.Error()},
		{"no node", &Result{Verb: "GET"}, 0, false, "no status in result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.result.Status())
			assert.Equal(t, tt.passed, tt.result.Passed())
			assert.Equal(t, tt.failure, tt.result.Failure())
		})
	}

	assert.Equal(t, "users.yaml: GET https://api.example.test/users/1", okResult().Title())
	assert.Equal(t, "GET /x", (&Result{Verb: "get", URL: "/x"}).Title())
}

func TestNew(t *testing.T) {
	for _, format := range append(Formats, "", "JSON") {
		f, err := New(format, &bytes.Buffer{})
		require.NoError(t, err, format)
		assert.NotNil(t, f)
	}

	_, err := New("html", &bytes.Buffer{})
	assert.ErrorContains(t, err, `unknown output format "html"`)

	f, _ := New(JSON, &bytes.Buffer{})
	_, ok := f.(Flushable)
	assert.True(t, ok)

	f, _ = New(Console, &bytes.Buffer{})
	_, ok = f.(Flushable)
	assert.False(t, ok)
}

func TestConsoleFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, err := New(Console, &buf, WithNoColor(true), WithVerbose(true))
	require.NoError(t, err)

	f.FormatHeader("v1.2.3")
	f.FormatResult(okResult())
	f.FormatResult(failedResult())
	f.FormatResult(erroredResult())
	f.FormatError(errors.New("watch failed"))

	out := buf.String()
	assert.Contains(t, out, "hitlambda v1.2.3")
	assert.Contains(t, out, "✓ users.yaml: GET https://api.example.test/users/1 200 (42ms)")
	assert.Contains(t, out, "Content-Type: application/json")
	assert.Contains(t, out, "    name:John")
	assert.Contains(t, out, "    age:int:30")
	assert.Contains(t, out, "✗ users.yaml: DELETE https://api.example.test/users/2 404")
	assert.Contains(t, out, `{"error":"not found"}`)
	assert.Contains(t, out, "x broken.yaml: POST https://api.example.test/users")
	assert.Contains(t, out, "Error: watch failed")
}

func TestConsoleFormatter_ContentKinds(t *testing.T) {
	long := strings.Repeat("a", maxInlineContent+10)

	tests := []struct {
		name     string
		content  *node.Node
		verbose  bool
		contains string
		excludes string
	}{
		{
			name:     "bytes are summarized",
			content:  node.New(invoke.ResultContent, node.Bytes([]byte{0x89, 0x50, 0x4e, 0x47})),
			contains: "[4 bytes]",
		},
		{
			name:     "long text is truncated",
			content:  node.New(invoke.ResultContent, node.String(long)),
			contains: "(10 more bytes)",
		},
		{
			name:     "verbose prints everything",
			content:  node.New(invoke.ResultContent, node.String(long)),
			verbose:  true,
			contains: long,
			excludes: "more bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f, err := New(Console, &buf, WithNoColor(true), WithVerbose(tt.verbose))
			require.NoError(t, err)

			f.FormatResult(&Result{Verb: "GET", URL: "/file", Node: resultNode(200, tt.content)})

			assert.Contains(t, buf.String(), tt.contains)
			if tt.excludes != "" {
				assert.NotContains(t, buf.String(), tt.excludes)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, err := New(JSON, &buf)
	require.NoError(t, err)

	f.FormatResult(okResult())
	f.FormatResult(failedResult())
	f.FormatResult(erroredResult())
	f.FormatResult(&Result{Verb: "GET", URL: "/img", Node: resultNode(200, node.New(invoke.ResultContent, node.Bytes([]byte("hi"))))})
	require.NoError(t, f.(Flushable).Flush(time.Second))

	var doc struct {
		Summary     JSONSummary `json:"summary"`
		Invocations []struct {
			Verb    string            `json:"verb"`
			Status  int               `json:"status"`
			Passed  bool              `json:"passed"`
			Error   string            `json:"error"`
			Headers map[string]string `json:"headers"`
			Content json.RawMessage   `json:"content"`
		} `json:"invocations"`
		Duration float64 `json:"duration"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, JSONSummary{Total: 4, Passed: 2, Failed: 2}, doc.Summary)
	assert.Equal(t, float64(1000), doc.Duration)
	require.Len(t, doc.Invocations, 4)

	first := doc.Invocations[0]
	assert.Equal(t, 200, first.Status)
	assert.Equal(t, "application/json", first.Headers["Content-Type"])
	assert.JSONEq(t, `{"name":"John","age":30}`, string(first.Content))

	assert.JSONEq(t, `"{\"error\":\"not found\"}"`, string(doc.Invocations[1].Content))
	assert.Equal(t, invoke.ErrMissingPayload.Error(), doc.Invocations[2].Error)
	assert.Zero(t, doc.Invocations[2].Status)
	assert.JSONEq(t, `"aGk="`, string(doc.Invocations[3].Content))
}

func TestTreeFormatter_Hyperlambda(t *testing.T) {
	var buf bytes.Buffer
	f, err := New(Hyperlambda, &buf)
	require.NoError(t, err)

	f.FormatResult(okResult())
	f.FormatResult(erroredResult())

	expected := "http.get:int:200\n" +
		"   headers\n" +
		"      Content-Type:application/json\n" +
		"      X-Request-Id:abc\n" +
		"   content\n" +
		"      name:John\n" +
		"      age:int:30\n"
	assert.True(t, strings.HasPrefix(buf.String(), expected), buf.String())
	assert.Contains(t, buf.String(), "// error: broken.yaml: POST https://api.example.test/users")
}

func TestTreeFormatter_YAML(t *testing.T) {
	var buf bytes.Buffer
	f, err := New(YAML, &buf)
	require.NoError(t, err)

	named := okResult()
	named.Node.Name = "users"
	f.FormatResult(named)
	f.FormatResult(failedResult())

	out := buf.String()
	assert.Contains(t, out, "users:\n  status: 200\n")
	assert.Contains(t, out, "    name: John\n")
	assert.Contains(t, out, "---\nhttp.delete:\n  status: 404\n")

	// the result passed in is not modified
	assert.Equal(t, node.Int(200), named.Node.Value)
}

func TestJUnitFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, err := New(JUnit, &buf)
	require.NoError(t, err)

	f.FormatResult(okResult())
	f.FormatResult(failedResult())
	f.FormatResult(erroredResult())
	require.NoError(t, f.(Flushable).Flush(2*time.Second))

	assert.True(t, strings.HasPrefix(buf.String(), xml.Header))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))

	assert.Equal(t, 3, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	require.Len(t, suites.TestSuites, 2)

	users := suites.TestSuites[0]
	assert.Equal(t, "users.yaml", users.Name)
	require.Len(t, users.TestCases, 2)
	assert.Nil(t, users.TestCases[0].Failure)
	require.NotNil(t, users.TestCases[1].Failure)
	assert.Equal(t, "HTTP 404 Not Found", users.TestCases[1].Failure.Message)

	broken := suites.TestSuites[1]
	require.NotNil(t, broken.TestCases[0].Error)
	assert.Equal(t, "InvocationError", broken.TestCases[0].Error.Type)
}

func TestTAPFormatter(t *testing.T) {
	var buf bytes.Buffer
	f, err := New(TAP, &buf)
	require.NoError(t, err)

	f.FormatResult(okResult())
	f.FormatResult(failedResult())
	f.FormatResult(erroredResult())
	require.NoError(t, f.(Flushable).Flush(time.Second))

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "TAP version 13", lines[0])
	assert.Equal(t, "1..3", lines[1])
	assert.Equal(t, "ok 1 - users.yaml: GET https://api.example.test/users/1", lines[2])
	assert.Equal(t, "not ok 2 - users.yaml: DELETE https://api.example.test/users/2", lines[3])
	assert.Equal(t, "  ---", lines[4])
	assert.Equal(t, "  message: HTTP 404 Not Found", lines[5])
	assert.Equal(t, "  severity: fail", lines[6])
	assert.Equal(t, "  status: 404", lines[7])
	assert.Contains(t, buf.String(), "severity: error")
	assert.Contains(t, buf.String(), "# time 1s")
}
