package invoke

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/header"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// Result children.
const (
	ResultHeaders = "headers"
	ResultContent = "content"
)

var textTypes = map[string]bool{
	"application/json":                  true,
	"application/x-www-form-urlencoded": true,
	"application/x-hyperlambda":         true,
	"application/xml":                   true,
	"application/rss+xml":               true,
}

// IsText reports whether a media type is passed through as a string.
func IsText(mediaType string) bool {
	return strings.HasPrefix(mediaType, "text/") || textTypes[mediaType]
}

// sniff returns the response media type, defaulting to JSON.
func sniff(h http.Header) string {
	if mt := header.MediaType(h.Get("Content-Type")); mt != "" {
		return mt
	}
	return defaultContentType
}

// classify reads the response and rewrites decl into the Result. decl is only
// touched once the body has been read and converted.
func (i *Invoker) classify(ctx context.Context, d *declaration, decl *node.Node, resp *http.Response) (string, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("[%s] reading response: %w", d.op, err)
	}

	mediaType := sniff(resp.Header)

	var content *node.Node
	if d.convert {
		if fn, ok := i.registry.Response(mediaType); ok {
			converted, err := fn(ctx, i.capabilities(), body)
			if err != nil {
				return mediaType, fmt.Errorf("[%s] converting '%s' response: %w", d.op, mediaType, err)
			}
			if converted == nil {
				converted = node.New("", node.None)
			}
			content = node.New(ResultContent, converted.Value, converted.Children()...)
		}
	}
	if content == nil {
		if IsText(mediaType) {
			content = node.New(ResultContent, node.String(string(body)))
		} else {
			content = node.New(ResultContent, node.Bytes(body))
		}
	}

	decl.Clear()
	decl.Value = node.Int(int64(resp.StatusCode))
	decl.Add(responseHeaders(resp.Header), content)
	return mediaType, nil
}

func responseHeaders(h http.Header) *node.Node {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	headers := node.New(ResultHeaders, node.None)
	for _, name := range names {
		headers.Add(node.New(name, node.String(strings.Join(h[name], ", "))))
	}
	return headers
}
