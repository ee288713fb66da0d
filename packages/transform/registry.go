package transform

import (
	"context"
	"sort"
	"sync"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/header"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// Capabilities are the external collaborators a transformer may call.
type Capabilities struct {
	Codec    codec.Codec
	Resolver node.Resolver
	Root     Root
}

// RequestFunc converts a structured payload into a wire body. It may add or
// override headers, e.g. a multipart boundary.
type RequestFunc func(ctx context.Context, caps Capabilities, payload *node.Node, op string, headers *header.Set) (Body, error)

// ResponseFunc converts a raw response body into an anonymous root node.
type ResponseFunc func(ctx context.Context, caps Capabilities, body []byte) (*node.Node, error)

// Registry maps MIME types to request and response transformers. It is safe
// for concurrent use; registration is expected to be rare compared to lookups.
type Registry struct {
	mu       sync.RWMutex
	request  map[string]RequestFunc
	response map[string]ResponseFunc
}

// NewRegistry returns a registry populated with the built-in transformers.
func NewRegistry() *Registry {
	r := &Registry{
		request:  make(map[string]RequestFunc),
		response: make(map[string]ResponseFunc),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.request["application/json"] = TransformToJSON
	r.request["application/x-json"] = TransformToJSON
	r.request["application/x-hyperlambda"] = TransformToHyperlambda
	r.request["application/x-www-form-urlencoded"] = TransformToURLEncoded
	r.request["multipart/form-data"] = TransformToMultipart
	r.request["application/yaml"] = TransformToYAML
	r.request["application/x-yaml"] = TransformToYAML

	r.response["application/json"] = TransformFromJSON
	r.response["application/x-json"] = TransformFromJSON
	r.response["application/x-hyperlambda"] = TransformFromHyperlambda
	r.response["application/x-www-form-urlencoded"] = TransformFromURLEncoded
	r.response["application/yaml"] = TransformFromYAML
	r.response["application/x-yaml"] = TransformFromYAML
}

// RegisterRequest adds or replaces the request transformer for mimeType.
func (r *Registry) RegisterRequest(mimeType string, fn RequestFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.request[header.MediaType(mimeType)] = fn
}

// RegisterResponse adds or replaces the response transformer for mimeType.
func (r *Registry) RegisterResponse(mimeType string, fn ResponseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.response[header.MediaType(mimeType)] = fn
}

func (r *Registry) Request(mimeType string) (RequestFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.request[header.MediaType(mimeType)]
	return fn, ok
}

func (r *Registry) Response(mimeType string) (ResponseFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.response[header.MediaType(mimeType)]
	return fn, ok
}

// RequestTypes lists the registered request MIME types, sorted.
func (r *Registry) RequestTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.request)
}

// ResponseTypes lists the registered response MIME types, sorted.
func (r *Registry) ResponseTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.response)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
