package invoke

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/hitlambda/packages/header"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"github.com/abdul-hamid-achik/hitlambda/packages/transform"
)

const defaultContentType = "application/json"

// resolvePayload produces the request body from [payload] or [filename]. A
// transformer may rewrite headers, e.g. to add a multipart boundary. The
// returned body must be closed by the caller.
func (i *Invoker) resolvePayload(ctx context.Context, d *declaration, headers *header.Set) (transform.Body, error) {
	if d.payload != nil && d.filename != nil {
		return transform.Body{}, fmt.Errorf("%w: [%s] cannot have both [payload] and [filename]", ErrInvalidDeclaration, d.op)
	}

	if d.payload != nil {
		// a value wins over children; only a valueless payload is structured
		if d.payload.Value.IsNone() {
			if d.payload.Len() > 0 {
				return i.transformPayload(ctx, d, headers)
			}
			return transform.Body{}, fmt.Errorf("%w: [%s] [payload] has neither a value nor children", ErrMissingPayload, d.op)
		}
		v, err := node.ResolveValue(ctx, d.payload.Value, i.resolver, d.op)
		if err != nil {
			return transform.Body{}, err
		}
		if v.IsNone() {
			return transform.Body{}, fmt.Errorf("%w: [%s] no [payload] value supplied", ErrMissingPayload, d.op)
		}
		if raw, ok := v.Raw(); ok {
			return transform.BytesBody(raw), nil
		}
		return transform.StringBody(v.Text()), nil
	}

	if d.filename != nil {
		v, err := node.ResolveValue(ctx, d.filename.Value, i.resolver, d.op)
		if err != nil {
			return transform.Body{}, err
		}
		if v.Text() == "" {
			return transform.Body{}, fmt.Errorf("%w: [%s] [filename] is empty", ErrMissingPayload, d.op)
		}
		return transform.OpenFile(ctx, i.root, v.Text())
	}

	return transform.Body{}, fmt.Errorf("%w: [%s] needs either [payload] or [filename]", ErrMissingPayload, d.op)
}

func (i *Invoker) transformPayload(ctx context.Context, d *declaration, headers *header.Set) (transform.Body, error) {
	contentType := headers.MediaType()
	if contentType == "" {
		contentType = defaultContentType
	}
	fn, ok := i.registry.Request(contentType)
	if !ok {
		return transform.Body{}, fmt.Errorf("%w: [%s] has no request transformer for '%s'", ErrUnsupportedContentType, d.op, contentType)
	}
	return fn(ctx, i.capabilities(), d.payload, d.op, headers)
}
