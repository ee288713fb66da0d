package invoke

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/abdul-hamid-achik/hitlambda/packages/header"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"github.com/abdul-hamid-achik/hitlambda/packages/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func staticResponse(status int, contentType, body string) doerFunc {
	return func(req *http.Request) (*http.Response, error) {
		h := http.Header{}
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		return &http.Response{
			StatusCode: status,
			Header:     h,
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

func resolverOf(values map[string][]node.Value) node.Resolver {
	return node.ResolverFunc(func(_ context.Context, expr string) ([]node.Value, error) {
		return values[expr], nil
	})
}

type captured struct {
	method      string
	headers     http.Header
	body        string
	contentLen  int64
	requestHits int32
}

// recordingServer answers every request with status, contentType and body and
// records what it received.
func recordingServer(t *testing.T, status int, contentType, body string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&c.requestHits, 1)
		data, _ := io.ReadAll(r.Body)
		c.method = r.Method
		c.headers = r.Header.Clone()
		c.body = string(data)
		c.contentLen = r.ContentLength
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, c
}

func TestInvoke_ScenarioA_GetWithoutChildren(t *testing.T) {
	var seen *http.Request
	transport := doerFunc(func(req *http.Request) (*http.Response, error) {
		seen = req
		return staticResponse(200, "text/plain; charset=utf-8", "hello")(req)
	})

	decl := node.New("", node.String("https://example.test/x"))
	err := New(transport).Invoke(context.Background(), "GET", decl)
	require.NoError(t, err)

	assert.Equal(t, node.Int(200), decl.Value)
	require.NotNil(t, decl.Child(ResultHeaders))
	assert.Equal(t, "text/plain; charset=utf-8", decl.Child(ResultHeaders).Child("Content-Type").Value.Text())
	assert.Equal(t, node.String("hello"), decl.Child(ResultContent).Value)

	require.NotNil(t, seen)
	assert.Equal(t, "application/json", seen.Header.Get("Accept"))
	assert.Empty(t, seen.Header.Get("Content-Type"))
	assert.Nil(t, seen.Body)
}

func TestInvoke_ScenarioB_PostStructuredPayload(t *testing.T) {
	server, got := recordingServer(t, http.StatusCreated, "application/json", `{"id":101}`)

	decl := node.New("", node.String(server.URL+"/posts"),
		node.New(ArgPayload, node.None,
			node.Scalar("userId", 1),
			node.Scalar("id", 1),
		),
	)
	err := New(server.Client()).Post(context.Background(), decl)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, `{"userId":1,"id":1}`, got.body)
	assert.Equal(t, "application/json", got.headers.Get("Content-Type"))
	assert.Equal(t, "application/json", got.headers.Get("Accept"))

	assert.Equal(t, node.Int(201), decl.Value)
	assert.Equal(t, node.String(`{"id":101}`), decl.Child(ResultContent).Value)
	assert.Nil(t, decl.Child(ArgPayload))
}

func TestInvoke_ScenarioC_FileBody(t *testing.T) {
	root := t.TempDir()
	content := `{"hello":"world"}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "test.json"), []byte(content), 0o644))

	server, got := recordingServer(t, http.StatusOK, "application/json", `{}`)

	decl := node.New("", node.String(server.URL),
		node.Scalar(ArgFilename, "/test.json"),
	)
	err := New(server.Client(), WithRoot(transform.StaticRoot(root))).Invoke(context.Background(), "POST", decl)
	require.NoError(t, err)

	assert.Equal(t, content, got.body)
	assert.Equal(t, int64(len(content)), got.contentLen)
	assert.Equal(t, node.Int(200), decl.Value)
}

func TestInvoke_ScenarioD_AmbiguousReference(t *testing.T) {
	server, got := recordingServer(t, http.StatusOK, "", "")

	decl := node.New("", node.String(server.URL),
		node.New(ArgPayload, node.None,
			node.Scalar("id", node.Reference("@.ids/*")),
		),
	)
	before := decl.Clone()

	inv := New(server.Client(), WithResolver(resolverOf(map[string][]node.Value{
		"@.ids/*": {node.Int(1), node.Int(2)},
	})))
	err := inv.Put(context.Background(), decl)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousReference)
	assert.Contains(t, err.Error(), "[http.put]")
	assert.True(t, before.Equal(decl), "declaration must be left untouched")
	assert.Equal(t, int32(0), atomic.LoadInt32(&got.requestHits))
}

func TestInvoke_ScenarioE_ConvertJSON(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, "application/json; charset=utf-8", `{"id":1,"tags":["a","b"]}`)

	decl := node.New("", node.String(server.URL),
		node.New(ArgPayload, node.None, node.Scalar("title", "x")),
		node.Scalar(ArgConvert, true),
	)
	err := New(server.Client()).Post(context.Background(), decl)
	require.NoError(t, err)

	content := decl.Child(ResultContent)
	require.NotNil(t, content)
	assert.True(t, content.IsStructured())
	assert.Equal(t, node.Int(1), content.Child("id").Value)
	assert.Len(t, content.Child("tags").Children(), 2)
}

func TestInvoke_UnexpectedPayload(t *testing.T) {
	tests := []struct {
		verb  string
		child *node.Node
	}{
		{"GET", node.Scalar(ArgPayload, "body")},
		{"GET", node.Scalar(ArgFilename, "/test.json")},
		{"DELETE", node.New(ArgPayload, node.None, node.Scalar("id", 1))},
		{"delete", node.Scalar(ArgFilename, "x")},
	}

	inv := New(staticResponse(200, "", ""))
	for _, tt := range tests {
		t.Run(tt.verb+"/"+tt.child.Name, func(t *testing.T) {
			decl := node.New("", node.String("https://example.test"), tt.child)
			err := inv.Invoke(context.Background(), tt.verb, decl)
			assert.ErrorIs(t, err, ErrUnexpectedPayload)
		})
	}
}

func TestInvoke_UnexpectedPayloadWinsOverContentHeaders(t *testing.T) {
	decl := node.New("", node.String("https://example.test"),
		node.New(ArgHeaders, node.None, node.Scalar("Content-Type", "application/json")),
		node.Scalar(ArgPayload, "{}"),
	)
	err := New(staticResponse(200, "", "")).Get(context.Background(), decl)
	assert.ErrorIs(t, err, ErrUnexpectedPayload)
}

func TestInvoke_MissingPayload(t *testing.T) {
	tests := []struct {
		name string
		verb string
		decl *node.Node
	}{
		{"post without body", "POST", node.New("", node.String("https://example.test"))},
		{"put without body", "PUT", node.New("", node.String("https://example.test"), node.Scalar(ArgToken, "t"))},
		{"patch without body", "PATCH", node.New("", node.String("https://example.test"))},
		{"empty payload", "POST", node.New("", node.String("https://example.test"), node.New(ArgPayload, node.None))},
	}

	inv := New(staticResponse(200, "", ""))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := inv.Invoke(context.Background(), tt.verb, tt.decl)
			assert.ErrorIs(t, err, ErrMissingPayload)
		})
	}
}

func TestInvoke_PayloadReferenceWithoutValue(t *testing.T) {
	server, got := recordingServer(t, http.StatusOK, "", "")

	decl := node.New("", node.String(server.URL),
		node.Scalar(ArgPayload, node.Reference("@.body")),
	)
	inv := New(server.Client(), WithResolver(resolverOf(map[string][]node.Value{})))
	err := inv.Post(context.Background(), decl)

	assert.ErrorIs(t, err, ErrMissingPayload)
	assert.Contains(t, err.Error(), "http.post")
	assert.Zero(t, atomic.LoadInt32(&got.requestHits))
}

func TestInvoke_PayloadValueWinsOverChildren(t *testing.T) {
	server, got := recordingServer(t, http.StatusOK, "", "")

	decl := node.New("", node.String(server.URL),
		node.New(ArgPayload, node.String(`{"raw":true}`), node.Scalar("x", 1)),
	)
	require.NoError(t, New(server.Client()).Post(context.Background(), decl))

	assert.Equal(t, `{"raw":true}`, got.body)
}

func TestInvoke_InvalidDeclaration(t *testing.T) {
	tests := []struct {
		name string
		verb string
		decl *node.Node
	}{
		{
			name: "unknown child",
			verb: "GET",
			decl: node.New("", node.String("https://example.test"), node.Scalar("timeout", 5)),
		},
		{
			name: "duplicate child",
			verb: "GET",
			decl: node.New("", node.String("https://example.test"), node.Scalar(ArgToken, "a"), node.Scalar(ArgToken, "b")),
		},
		{
			name: "missing url",
			verb: "GET",
			decl: node.New("", node.None),
		},
		{
			name: "unsupported scheme",
			verb: "GET",
			decl: node.New("", node.String("ftp://example.test/file")),
		},
		{
			name: "content header on GET",
			verb: "GET",
			decl: node.New("", node.String("https://example.test"),
				node.New(ArgHeaders, node.None, node.Scalar("Content-Type", "application/json"))),
		},
		{
			name: "content header on DELETE matched case-insensitively",
			verb: "DELETE",
			decl: node.New("", node.String("https://example.test"),
				node.New(ArgHeaders, node.None, node.Scalar("content-md5", "abc"))),
		},
		{
			name: "both payload and filename",
			verb: "POST",
			decl: node.New("", node.String("https://example.test"),
				node.Scalar(ArgPayload, "x"), node.Scalar(ArgFilename, "y")),
		},
		{
			name: "nil declaration",
			verb: "GET",
		},
	}

	inv := New(staticResponse(200, "", ""))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := inv.Invoke(context.Background(), tt.verb, tt.decl)
			assert.ErrorIs(t, err, ErrInvalidDeclaration)
			assert.True(t, IsInvalidDeclaration(err))
		})
	}
}

func TestInvoke_HeaderPrecedence(t *testing.T) {
	t.Run("explicit headers suppress defaults", func(t *testing.T) {
		server, got := recordingServer(t, http.StatusOK, "text/plain", "ok")

		decl := node.New("", node.String(server.URL),
			node.New(ArgHeaders, node.None, node.Scalar("X-Custom", "1")),
		)
		require.NoError(t, New(server.Client()).Get(context.Background(), decl))

		assert.Equal(t, "1", got.headers.Get("X-Custom"))
		assert.Empty(t, got.headers.Get("Accept"))
	})

	t.Run("empty headers fall back to defaults", func(t *testing.T) {
		server, got := recordingServer(t, http.StatusOK, "text/plain", "ok")

		decl := node.New("", node.String(server.URL), node.New(ArgHeaders, node.None))
		require.NoError(t, New(server.Client()).Get(context.Background(), decl))

		assert.Equal(t, "application/json", got.headers.Get("Accept"))
	})

	t.Run("token overrides explicit authorization", func(t *testing.T) {
		server, got := recordingServer(t, http.StatusOK, "text/plain", "ok")

		decl := node.New("", node.String(server.URL),
			node.New(ArgHeaders, node.None,
				node.Scalar("Authorization", "Basic Zm9vOmJhcg=="),
				node.Scalar("Accept", "text/plain"),
			),
			node.Scalar(ArgToken, "secret"),
		)
		require.NoError(t, New(server.Client()).Get(context.Background(), decl))

		assert.Equal(t, "Bearer secret", got.headers.Get("Authorization"))
		assert.Equal(t, "text/plain", got.headers.Get("Accept"))
	})

	t.Run("token with default headers", func(t *testing.T) {
		server, got := recordingServer(t, http.StatusOK, "text/plain", "ok")

		decl := node.New("", node.String(server.URL),
			node.Scalar(ArgPayload, "raw"),
			node.Scalar(ArgToken, node.Reference("@.token")),
		)
		inv := New(server.Client(), WithResolver(resolverOf(map[string][]node.Value{
			"@.token": {node.String("resolved")},
		})))
		require.NoError(t, inv.Post(context.Background(), decl))

		assert.Equal(t, "Bearer resolved", got.headers.Get("Authorization"))
		assert.Equal(t, "application/json", got.headers.Get("Content-Type"))
		assert.Equal(t, "raw", got.body)
	})
}

func TestInvoke_StatusTransparency(t *testing.T) {
	server, _ := recordingServer(t, http.StatusNotFound, "application/json", `{"error":"not found"}`)

	decl := node.New("", node.String(server.URL))
	err := New(server.Client()).Get(context.Background(), decl)

	require.NoError(t, err)
	assert.Equal(t, node.Int(404), decl.Value)
	assert.Equal(t, node.String(`{"error":"not found"}`), decl.Child(ResultContent).Value)
}

func TestInvoke_WithStatusErrors(t *testing.T) {
	server, _ := recordingServer(t, http.StatusInternalServerError, "text/plain", "boom")

	decl := node.New("fetch", node.String(server.URL))
	err := New(server.Client(), WithStatusErrors(true)).Get(context.Background(), decl)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	se, ok := IsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, 500, se.StatusCode)
	assert.Equal(t, "fetch", se.Op)

	// the Result is still populated
	assert.Equal(t, node.Int(500), decl.Value)
	assert.Equal(t, node.String("boom"), decl.Child(ResultContent).Value)
}

func TestInvoke_UnsupportedContentType(t *testing.T) {
	decl := node.New("", node.String("https://example.test"),
		node.New(ArgHeaders, node.None, node.Scalar("Content-Type", "text/csv")),
		node.New(ArgPayload, node.None, node.Scalar("a", 1)),
	)
	err := New(staticResponse(200, "", "")).Post(context.Background(), decl)
	assert.ErrorIs(t, err, ErrUnsupportedContentType)
}

func TestInvoke_CustomTransformer(t *testing.T) {
	server, got := recordingServer(t, http.StatusOK, "text/csv", "a,b\n1,2\n")

	registry := transform.NewRegistry()
	registry.RegisterRequest("text/csv", func(_ context.Context, _ transform.Capabilities, payload *node.Node, _ string, _ *header.Set) (transform.Body, error) {
		var names, values []string
		for _, c := range payload.Children() {
			names = append(names, c.Name)
			values = append(values, c.Value.Text())
		}
		return transform.StringBody(strings.Join(names, ",") + "\n" + strings.Join(values, ",") + "\n"), nil
	})
	registry.RegisterResponse("text/csv", func(_ context.Context, _ transform.Capabilities, body []byte) (*node.Node, error) {
		root := node.New("", node.None)
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			root.Add(node.Scalar("row", line))
		}
		return root, nil
	})

	decl := node.New("", node.String(server.URL),
		node.New(ArgHeaders, node.None, node.Scalar("Content-Type", "text/csv")),
		node.New(ArgPayload, node.None, node.Scalar("a", 1), node.Scalar("b", 2)),
		node.Scalar(ArgConvert, true),
	)
	err := New(server.Client(), WithRegistry(registry)).Post(context.Background(), decl)
	require.NoError(t, err)

	assert.Equal(t, "a,b\n1,2\n", got.body)
	assert.Equal(t, 2, decl.Child(ResultContent).Count("row"))
}

func TestInvoke_FileNotFound(t *testing.T) {
	root := t.TempDir()
	inv := New(staticResponse(200, "", ""), WithRoot(transform.StaticRoot(root)))

	for _, filename := range []string{"/missing.json", "../../etc/passwd"} {
		decl := node.New("", node.String("https://example.test"), node.Scalar(ArgFilename, filename))
		err := inv.Post(context.Background(), decl)
		assert.ErrorIs(t, err, ErrFileNotFound, filename)
	}
}

func TestInvoke_NestedFormField(t *testing.T) {
	decl := node.New("", node.String("https://example.test"),
		node.New(ArgHeaders, node.None, node.Scalar("Content-Type", "application/x-www-form-urlencoded")),
		node.New(ArgPayload, node.None,
			node.New("address", node.None, node.Scalar("street", "Main")),
		),
	)
	err := New(staticResponse(200, "", "")).Post(context.Background(), decl)
	assert.ErrorIs(t, err, ErrNestedFormField)
}

func TestInvoke_URLEncodedPayload(t *testing.T) {
	server, got := recordingServer(t, http.StatusOK, "application/x-www-form-urlencoded", "status=ok&count=2")

	decl := node.New("", node.String(server.URL),
		node.New(ArgHeaders, node.None, node.Scalar("Content-Type", "application/x-www-form-urlencoded")),
		node.New(ArgPayload, node.None, node.Scalar("name", "John Doe"), node.Scalar("age", 30)),
		node.Scalar(ArgConvert, true),
	)
	require.NoError(t, New(server.Client()).Post(context.Background(), decl))

	assert.Equal(t, "name=John+Doe&age=30", got.body)
	content := decl.Child(ResultContent)
	assert.Equal(t, "ok", content.Child("status").Value.Text())
	assert.Equal(t, "2", content.Child("count").Value.Text())
}

func TestInvoke_MultipartPayload(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "report.txt"), []byte("report body"), 0o644))

	var title, fileContent, fileName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		title = r.FormValue("title")
		f, fh, err := r.FormFile("report")
		if err == nil {
			data, _ := io.ReadAll(f)
			fileContent = string(data)
			fileName = fh.Filename
			f.Close()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	decl := node.New("", node.String(server.URL),
		node.New(ArgHeaders, node.None, node.Scalar("Content-Type", "multipart/form-data")),
		node.New(ArgPayload, node.None,
			node.Scalar("title", "Q3"),
			node.New("report", node.None, node.Scalar("filename", "report.txt")),
		),
	)
	inv := New(server.Client(), WithRoot(transform.StaticRoot(root)))
	require.NoError(t, inv.Post(context.Background(), decl))

	assert.Equal(t, node.Int(204), decl.Value)
	assert.Equal(t, "Q3", title)
	assert.Equal(t, "report body", fileContent)
	assert.Equal(t, "report.txt", fileName)
}

func TestInvoke_ResponseHeadersMerged(t *testing.T) {
	transport := doerFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Header: http.Header{
				"X-Multi":      {"a", "b"},
				"Content-Type": {"text/plain"},
				"Allow":        {"GET", "POST"},
			},
			Body: io.NopCloser(strings.NewReader("")),
		}, nil
	})

	decl := node.New("", node.String("https://example.test"))
	require.NoError(t, New(transport).Get(context.Background(), decl))

	headers := decl.Child(ResultHeaders)
	require.NotNil(t, headers)
	names := make([]string, 0, headers.Len())
	for _, c := range headers.Children() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Allow", "Content-Type", "X-Multi"}, names)
	assert.Equal(t, "a, b", headers.Child("X-Multi").Value.Text())
	assert.Equal(t, "GET, POST", headers.Child("Allow").Value.Text())
}

func TestInvoke_ContentClassification(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		convert     bool
		want        node.Kind
		structured  bool
	}{
		{name: "text type", contentType: "text/html", want: node.KindString},
		{name: "xml", contentType: "application/xml", want: node.KindString},
		{name: "rss", contentType: "application/rss+xml", want: node.KindString},
		{name: "hyperlambda", contentType: "application/x-hyperlambda", want: node.KindString},
		{name: "binary", contentType: "image/png", want: node.KindBytes},
		{name: "octet stream", contentType: "application/octet-stream", want: node.KindBytes},
		{name: "missing content type is json", contentType: "", want: node.KindString},
		{name: "convert without transformer", contentType: "text/csv", convert: true, want: node.KindString},
		{name: "convert binary without transformer", contentType: "image/png", convert: true, want: node.KindBytes},
		{name: "convert missing content type", contentType: "", convert: true, structured: true},
		{name: "convert hyperlambda", contentType: "application/x-hyperlambda", convert: true, structured: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"id":1}`
			if tt.contentType == "application/x-hyperlambda" {
				body = "id:int:1\n"
			}
			decl := node.New("", node.String("https://example.test"))
			if tt.convert {
				decl.Add(node.Scalar(ArgConvert, true))
			}
			require.NoError(t, New(staticResponse(200, tt.contentType, body)).Get(context.Background(), decl))

			content := decl.Child(ResultContent)
			require.NotNil(t, content)
			if tt.structured {
				assert.Equal(t, node.Int(1), content.Child("id").Value)
				return
			}
			assert.Equal(t, tt.want, content.Value.Kind())
			assert.False(t, content.IsStructured())
		})
	}
}

func TestInvoke_ScalarBytesPayload(t *testing.T) {
	server, got := recordingServer(t, http.StatusOK, "", "")

	decl := node.New("", node.String(server.URL),
		node.New(ArgHeaders, node.None, node.Scalar("Content-Type", "application/octet-stream")),
		node.Scalar(ArgPayload, []byte{0xde, 0xad, 0xbe, 0xef}),
	)
	require.NoError(t, New(server.Client()).Post(context.Background(), decl))

	assert.Equal(t, string([]byte{0xde, 0xad, 0xbe, 0xef}), got.body)
	assert.Equal(t, "application/octet-stream", got.headers.Get("Content-Type"))
}

func TestInvoke_StructuredPayloadWithoutContentType(t *testing.T) {
	server, got := recordingServer(t, http.StatusOK, "", "")

	decl := node.New("", node.String(server.URL),
		node.New(ArgHeaders, node.None, node.Scalar("X-Trace", "1")),
		node.New(ArgPayload, node.None, node.Scalar("a", 1)),
	)
	require.NoError(t, New(server.Client()).Patch(context.Background(), decl))

	assert.Equal(t, http.MethodPatch, got.method)
	assert.Equal(t, `{"a":1}`, got.body)
	assert.Empty(t, got.headers.Get("Content-Type"))
}

func TestInvoke_ReferenceURL(t *testing.T) {
	server, got := recordingServer(t, http.StatusOK, "", "")

	decl := node.New("", node.Reference("@.endpoint"))
	inv := New(server.Client(), WithResolver(resolverOf(map[string][]node.Value{
		"@.endpoint": {node.String(server.URL + "/items")},
	})))
	require.NoError(t, inv.Delete(context.Background(), decl))
	assert.Equal(t, http.MethodDelete, got.method)
}

func TestInvoke_UnresolvedReferenceWithoutResolver(t *testing.T) {
	decl := node.New("", node.String("https://example.test"),
		node.New(ArgPayload, node.None, node.Scalar("id", node.Reference("@.id"))),
	)
	err := New(staticResponse(200, "", "")).Post(context.Background(), decl)
	assert.ErrorIs(t, err, ErrUnresolvedReference)
}

func TestInvoke_Idempotent(t *testing.T) {
	inv := New(staticResponse(200, "application/json", `{"ok":true}`))
	build := func() *node.Node {
		return node.New("", node.String("https://example.test"),
			node.New(ArgPayload, node.None, node.Scalar("id", 1)),
			node.Scalar(ArgConvert, true),
		)
	}

	first, second := build(), build()
	require.NoError(t, inv.Post(context.Background(), first))
	require.NoError(t, inv.Post(context.Background(), second))
	assert.True(t, first.Equal(second))
}

func TestInvokeAsync(t *testing.T) {
	server, _ := recordingServer(t, http.StatusAccepted, "text/plain", "queued")

	decl := node.New("", node.String(server.URL), node.Scalar(ArgPayload, "job"))
	done := New(server.Client()).InvokeAsync(context.Background(), "POST", decl)

	require.NoError(t, <-done)
	assert.Equal(t, node.Int(202), decl.Value)

	_, open := <-done
	assert.False(t, open)
}

func TestInvokeAsync_Error(t *testing.T) {
	decl := node.New("", node.String("https://example.test"), node.Scalar(ArgPayload, "x"))
	err := <-New(staticResponse(200, "", "")).InvokeAsync(context.Background(), "GET", decl)
	assert.ErrorIs(t, err, ErrUnexpectedPayload)
}

func TestInvoke_ContextCanceled(t *testing.T) {
	server, _ := recordingServer(t, http.StatusOK, "", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decl := node.New("", node.String(server.URL))
	err := New(server.Client()).Get(ctx, decl)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, node.String(server.URL), decl.Value)
}

func TestInvoke_TransportErrorLeavesDeclaration(t *testing.T) {
	boom := errors.New("connection refused")
	transport := doerFunc(func(*http.Request) (*http.Response, error) { return nil, boom })

	decl := node.New("", node.String("https://example.test"), node.Scalar(ArgToken, "t"))
	before := decl.Clone()

	err := New(transport).Get(context.Background(), decl)
	assert.ErrorIs(t, err, boom)
	assert.True(t, before.Equal(decl))
}

func TestInvoke_HostHeader(t *testing.T) {
	var host string
	transport := doerFunc(func(req *http.Request) (*http.Response, error) {
		host = req.Host
		return staticResponse(200, "", "")(req)
	})

	decl := node.New("", node.String("https://example.test"),
		node.New(ArgHeaders, node.None, node.Scalar("Host", "api.internal")),
	)
	require.NoError(t, New(transport).Get(context.Background(), decl))
	assert.Equal(t, "api.internal", host)
}

func TestOperationName(t *testing.T) {
	assert.Equal(t, "http.get", operationName("GET", node.New("", node.None)))
	assert.Equal(t, "fetch-user", operationName("GET", node.New("fetch-user", node.None)))
	assert.Equal(t, "http.post", operationName("POST", nil))
}
