package invoke

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/header"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// Default headers, used only when the declaration has no [headers] of its own.
var (
	bodilessDefaults = []string{"Accept", "application/json"}
	bodyDefaults     = []string{"Content-Type", "application/json", "Accept", "application/json"}
)

// hasBody reports whether requests with this verb carry an entity.
func hasBody(verb string) bool {
	switch strings.ToUpper(verb) {
	case http.MethodGet, http.MethodDelete:
		return false
	}
	return true
}

func (i *Invoker) resolveHeaders(ctx context.Context, verb string, d *declaration) (*header.Set, error) {
	var headers *header.Set
	switch {
	case d.headers != nil && d.headers.Len() > 0:
		headers = header.NewSet()
		for _, c := range d.headers.Children() {
			if c.Len() > 0 {
				return nil, fmt.Errorf("%w: [%s] header [%s] cannot have children", ErrInvalidDeclaration, d.op, c.Name)
			}
			v, err := node.ResolveValue(ctx, c.Value, i.resolver, d.op)
			if err != nil {
				return nil, err
			}
			headers.Set(c.Name, v.Text())
		}
	case hasBody(verb):
		headers = header.FromPairs(bodyDefaults...)
	default:
		headers = header.FromPairs(bodilessDefaults...)
	}

	if d.token != nil {
		v, err := node.ResolveValue(ctx, d.token.Value, i.resolver, d.op)
		if err != nil {
			return nil, err
		}
		headers.Set("Authorization", "Bearer "+v.Text())
	}

	if !hasBody(verb) {
		for _, f := range headers.Fields() {
			if header.IsContent(f.Name) {
				return nil, fmt.Errorf("%w: [%s] cannot set the content header [%s] on a %s request", ErrInvalidDeclaration, d.op, f.Name, strings.ToUpper(verb))
			}
		}
	}

	return headers, nil
}
