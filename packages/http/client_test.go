package http

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/test", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"name":"test"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	client := NewClient()
	req, err := http.NewRequest("POST", server.URL+"/test", strings.NewReader(`{"name":"test"}`))
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	req, _ := http.NewRequest("GET", server.URL, nil)
	_, err := client.Do(req)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Client.Timeout")
}

func TestClient_Redirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("final"))
	}))
	defer server.Close()

	tests := []struct {
		name     string
		opts     []ClientOption
		expected int
	}{
		{"follows by default", nil, http.StatusOK},
		{"disabled", []ClientOption{WithFollowRedirects(false)}, http.StatusFound},
		{"max redirects reached", []ClientOption{WithMaxRedirects(0)}, http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.opts...)
			req, _ := http.NewRequest("GET", server.URL+"/redirect", nil)
			resp, err := client.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.expected, resp.StatusCode)
		})
	}
}

func TestClient_WithProxy(t *testing.T) {
	var proxied bool
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxied = true
		assert.Equal(t, "http://upstream.test/x", r.URL.String())
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	client := NewClient(WithProxy(proxy.URL))
	req, _ := http.NewRequest("GET", "http://upstream.test/x", nil)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.True(t, proxied)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestClient_DebugLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": {"text/plain"}},
			Body:       io.NopCloser(strings.NewReader("pong")),
			Request:    req,
			ProtoMajor: 1,
			ProtoMinor: 1,
		}, nil
	})

	client := NewClient(WithRoundTripper(rt), WithDebugLogging(logger))
	req, _ := http.NewRequest("GET", "http://example.test/ping", nil)
	resp, err := client.Do(req)
	require.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	out := logs.String()
	assert.Contains(t, out, `"message":"HTTP request"`)
	assert.Contains(t, out, `"message":"HTTP response"`)
	assert.Contains(t, out, "/ping")
	assert.Contains(t, out, `"status_code":200`)
}

func TestClient_DebugLoggingDisabledByDefault(t *testing.T) {
	client := NewClient()
	_, isDebug := client.httpClient.Transport.(*debugTransport)
	assert.False(t, isDebug)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.test/x", false},
		{"http://localhost:8080", false},
		{"ftp://example.test", true},
		{"example.test/path", true},
		{"http://", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
