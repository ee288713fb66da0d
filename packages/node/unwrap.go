package node

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAmbiguousReference is returned when a reference yields more than one value.
	ErrAmbiguousReference = errors.New("ambiguous reference")
	// ErrUnresolvedReference is returned when a reference is met but no Resolver is available.
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// Resolver evaluates a reference expression into concrete values.
type Resolver interface {
	Resolve(ctx context.Context, expr string) ([]Value, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, expr string) ([]Value, error)

func (f ResolverFunc) Resolve(ctx context.Context, expr string) ([]Value, error) {
	return f(ctx, expr)
}

// ResolveValue turns a Reference into the single value it points to. Non
// reference values are returned unchanged. A reference without matches
// resolves to None.
func ResolveValue(ctx context.Context, v Value, r Resolver, op string) (Value, error) {
	expr, ok := v.Expr()
	if !ok {
		return v, nil
	}
	if r == nil {
		return None, fmt.Errorf("%w: [%s] cannot evaluate %q", ErrUnresolvedReference, op, expr)
	}
	values, err := r.Resolve(ctx, expr)
	if err != nil {
		return None, err
	}
	switch len(values) {
	case 0:
		return None, nil
	case 1:
		if values[0].IsReference() {
			return None, fmt.Errorf("%w: [%s] %q resolved to another reference", ErrUnresolvedReference, op, expr)
		}
		return values[0], nil
	default:
		return None, fmt.Errorf("%w: multiple sources found for %q in lambda object supplied to [%s]", ErrAmbiguousReference, expr, op)
	}
}

// Unwrap replaces every reference value among n's children with its concrete
// value. When recurse is false only the direct children are visited.
func Unwrap(ctx context.Context, n *Node, r Resolver, op string, recurse bool) error {
	for _, c := range n.children {
		v, err := ResolveValue(ctx, c.Value, r, op)
		if err != nil {
			return err
		}
		c.Value = v
		if recurse {
			if err := Unwrap(ctx, c, r, op, true); err != nil {
				return err
			}
		}
	}
	return nil
}
