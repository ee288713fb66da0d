package invoke

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/header"
	hlhttp "github.com/abdul-hamid-achik/hitlambda/packages/http"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"github.com/abdul-hamid-achik/hitlambda/packages/transform"
	"github.com/rs/zerolog"
)

// Invoker turns declarations into HTTP requests and responses back into
// Results. An Invoker is safe for concurrent use provided its transport is.
type Invoker struct {
	transport    hlhttp.Doer
	registry     *transform.Registry
	codec        codec.Codec
	resolver     node.Resolver
	root         transform.Root
	logger       zerolog.Logger
	statusErrors bool
}

type Option func(*Invoker)

// New creates an invoker sending requests through transport. A nil transport
// uses hlhttp.NewClient().
func New(transport hlhttp.Doer, opts ...Option) *Invoker {
	if transport == nil {
		transport = hlhttp.NewClient()
	}
	i := &Invoker{
		transport: transport,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.registry == nil {
		i.registry = transform.NewRegistry()
	}
	if i.codec == nil {
		i.codec = codec.New()
	}
	return i
}

// WithRegistry shares a transformer registry between invokers.
func WithRegistry(r *transform.Registry) Option {
	return func(i *Invoker) {
		i.registry = r
	}
}

func WithCodec(c codec.Codec) Option {
	return func(i *Invoker) {
		i.codec = c
	}
}

// WithResolver sets the capability evaluating reference values. Without one,
// any reference in a declaration fails with ErrUnresolvedReference.
func WithResolver(r node.Resolver) Option {
	return func(i *Invoker) {
		i.resolver = r
	}
}

// WithRoot sets the folder [filename] arguments are resolved against.
func WithRoot(r transform.Root) Option {
	return func(i *Invoker) {
		i.root = r
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(i *Invoker) {
		i.logger = logger
	}
}

// WithStatusErrors makes 4xx and 5xx responses return a *StatusError after
// the Result has been populated.
func WithStatusErrors(enabled bool) Option {
	return func(i *Invoker) {
		i.statusErrors = enabled
	}
}

// Registry returns the transformer registry, for registering custom types.
func (i *Invoker) Registry() *transform.Registry {
	return i.registry
}

func (i *Invoker) capabilities() transform.Capabilities {
	return transform.Capabilities{
		Codec:    i.codec,
		Resolver: i.resolver,
		Root:     i.root,
	}
}

// Invoke sends the request described by decl and rewrites decl into the
// Result: value is the status code, with [headers] and [content] children.
// On error decl is left as it was.
func (i *Invoker) Invoke(ctx context.Context, verb string, decl *node.Node) error {
	return i.invoke(ctx, verb, decl)
}

// InvokeAsync runs Invoke on its own goroutine. The channel receives exactly
// one value and is then closed. decl must not be touched until then.
func (i *Invoker) InvokeAsync(ctx context.Context, verb string, decl *node.Node) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- i.invoke(ctx, verb, decl)
	}()
	return done
}

func (i *Invoker) Get(ctx context.Context, decl *node.Node) error {
	return i.Invoke(ctx, http.MethodGet, decl)
}

func (i *Invoker) Post(ctx context.Context, decl *node.Node) error {
	return i.Invoke(ctx, http.MethodPost, decl)
}

func (i *Invoker) Put(ctx context.Context, decl *node.Node) error {
	return i.Invoke(ctx, http.MethodPut, decl)
}

func (i *Invoker) Patch(ctx context.Context, decl *node.Node) error {
	return i.Invoke(ctx, http.MethodPatch, decl)
}

func (i *Invoker) Delete(ctx context.Context, decl *node.Node) error {
	return i.Invoke(ctx, http.MethodDelete, decl)
}

func (i *Invoker) invoke(ctx context.Context, verb string, decl *node.Node) error {
	method := strings.ToUpper(strings.TrimSpace(verb))
	if method == "" {
		return fmt.Errorf("%w: [%s] no verb", ErrInvalidDeclaration, operationName(verb, decl))
	}

	err := i.exchange(ctx, method, decl)
	if err != nil {
		if _, isStatus := IsStatusError(err); !isStatus {
			invocationFailuresTotal.WithLabelValues(method).Inc()
		}
	}
	return err
}

func (i *Invoker) exchange(ctx context.Context, method string, decl *node.Node) error {
	d, err := i.parseDeclaration(ctx, method, decl)
	if err != nil {
		return err
	}

	if !hasBody(method) && (d.payload != nil || d.filename != nil) {
		return fmt.Errorf("%w: [%s] %s requests cannot have a [payload] or [filename]", ErrUnexpectedPayload, d.op, method)
	}

	headers, err := i.resolveHeaders(ctx, method, d)
	if err != nil {
		return err
	}

	body := transform.Body{}
	if hasBody(method) {
		body, err = i.resolvePayload(ctx, d, headers)
		if err != nil {
			return err
		}
	}
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, method, d.url, body.Reader)
	if err != nil {
		return fmt.Errorf("%w: [%s] %v", ErrInvalidDeclaration, d.op, err)
	}
	if body.Reader != nil && body.Size >= 0 {
		req.ContentLength = body.Size
	}
	applyHeaders(req, headers)

	i.logger.Debug().
		Str("op", d.op).
		Str("verb", method).
		Str("url", d.url).
		Msg("dispatching request")

	start := time.Now()
	resp, err := i.transport.Do(req)
	if err != nil {
		return fmt.Errorf("[%s] %s %s: %w", d.op, method, d.url, err)
	}
	defer resp.Body.Close()

	mediaType, err := i.classify(ctx, d, decl, resp)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	invocationsTotal.WithLabelValues(method, statusClass(resp.StatusCode)).Inc()
	invocationDuration.WithLabelValues(method).Observe(elapsed.Seconds())

	i.logger.Debug().
		Str("op", d.op).
		Str("verb", method).
		Str("url", d.url).
		Int("status", resp.StatusCode).
		Str("content_type", mediaType).
		Dur("duration", elapsed).
		Msg("request completed")

	if i.statusErrors && resp.StatusCode >= 400 {
		return &StatusError{Op: d.op, StatusCode: resp.StatusCode}
	}
	return nil
}

// applyHeaders writes transport headers onto the envelope and content headers
// onto the entity. Content-Length always follows the body.
func applyHeaders(req *http.Request, headers *header.Set) {
	transportHeaders, contentHeaders := headers.Partition()
	for _, f := range transportHeaders {
		if strings.EqualFold(f.Name, "Host") {
			req.Host = f.Value
			continue
		}
		req.Header.Set(f.Name, f.Value)
	}
	for _, f := range contentHeaders {
		if strings.EqualFold(f.Name, "Content-Length") {
			continue
		}
		req.Header.Set(f.Name, f.Value)
	}
}
