package env

import (
	"context"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitlambda/packages/builtin"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"github.com/tidwall/gjson"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Resolver evaluates reference expressions. It is safe for concurrent use.
//
// Expressions, tried in order:
//   - $NAME: environment variable
//   - name(args): built-in function call
//   - name: variable; a slice variable yields one value per element
//   - doc.path: gjson path into a stored JSON document; arrays yield one value
//     per element
//
// An expression matching nothing yields no values.
type Resolver struct {
	mu        sync.RWMutex
	variables map[string]any
	documents map[string][]byte
	funcs     *builtin.Registry
	warnFunc  WarnFunc
}

func NewResolver() *Resolver {
	return &Resolver{
		variables: make(map[string]any),
		documents: make(map[string][]byte),
		funcs:     builtin.NewRegistry(),
	}
}

// SetWarnFunc sets a function to be called when warnings occur (e.g., unresolved variables)
func (r *Resolver) SetWarnFunc(fn WarnFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnFunc = fn
}

func (r *Resolver) warn(format string, args ...any) {
	r.mu.RLock()
	fn := r.warnFunc
	r.mu.RUnlock()
	if fn != nil {
		fn(format, args...)
	}
}

// Functions exposes the built-in registry for registering custom functions.
func (r *Resolver) Functions() *builtin.Registry {
	return r.funcs
}

func (r *Resolver) SetVariables(vars map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range vars {
		r.variables[k] = v
	}
}

func (r *Resolver) SetVariable(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variables[name] = value
}

// SetDocument stores a JSON document that doc.path expressions can query.
func (r *Resolver) SetDocument(name string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.documents[name] = append([]byte(nil), data...)
}

func (r *Resolver) GetVariable(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variables[name]
	return v, ok
}

func (r *Resolver) HasVariable(name string) bool {
	_, ok := r.GetVariable(name)
	return ok
}

// Resolve implements node.Resolver.
func (r *Resolver) Resolve(ctx context.Context, expr string) ([]node.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "{{") && strings.HasSuffix(expr, "}}") {
		expr = strings.TrimSpace(expr[2 : len(expr)-2])
	}

	if strings.HasPrefix(expr, "$") {
		envVar := expr[1:]
		if val, ok := os.LookupEnv(envVar); ok {
			return []node.Value{node.String(val)}, nil
		}
		r.warn("unresolved environment variable: $%s", envVar)
		return nil, nil
	}

	if builtin.IsCall(expr) {
		v, err := r.funcs.Call(expr)
		if err != nil {
			return nil, err
		}
		if v.IsNone() {
			return nil, nil
		}
		return []node.Value{v}, nil
	}

	r.mu.RLock()
	val, isVar := r.variables[expr]
	var doc []byte
	var path string
	if !isVar {
		name, rest, _ := strings.Cut(expr, ".")
		doc, path = r.documents[name], rest
	}
	r.mu.RUnlock()

	if isVar {
		return valuesOf(val), nil
	}
	if doc != nil {
		result := gjson.ParseBytes(doc)
		if path != "" {
			result = result.Get(path)
		}
		if result.Exists() {
			return valuesOfJSON(result), nil
		}
	}

	r.warn("unresolved variable: %s", expr)
	return nil, nil
}

// Expand replaces every {{expr}} in input with the text of its value.
// Expressions yielding nothing are left as they are.
func (r *Resolver) Expand(ctx context.Context, input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		values, err := r.Resolve(ctx, match)
		if err != nil || len(values) == 0 {
			return match
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = v.Text()
		}
		return strings.Join(parts, ",")
	})
}

// HasUnresolved reports whether input still holds a {{expr}} after expansion.
func (r *Resolver) HasUnresolved(ctx context.Context, input string) bool {
	return len(r.Unresolved(ctx, input)) > 0
}

// Unresolved lists the expressions in input that yield nothing.
func (r *Resolver) Unresolved(ctx context.Context, input string) []string {
	var unresolved []string
	for _, m := range variablePattern.FindAllStringSubmatch(input, -1) {
		values, err := r.Resolve(ctx, m[1])
		if err != nil || len(values) == 0 {
			unresolved = append(unresolved, strings.TrimSpace(m[1]))
		}
	}
	return unresolved
}

func (r *Resolver) Clone() *Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewResolver()
	clone.funcs = r.funcs
	clone.warnFunc = r.warnFunc
	for k, v := range r.variables {
		clone.variables[k] = v
	}
	for k, v := range r.documents {
		clone.documents[k] = v
	}
	return clone
}

func valuesOf(v any) []node.Value {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]node.Value, 0, len(t))
		for _, item := range t {
			out = append(out, node.FromAny(item))
		}
		return out
	case []string:
		out := make([]node.Value, 0, len(t))
		for _, item := range t {
			out = append(out, node.String(item))
		}
		return out
	default:
		return []node.Value{node.FromAny(v)}
	}
}

func valuesOfJSON(r gjson.Result) []node.Value {
	if r.IsArray() {
		var out []node.Value
		r.ForEach(func(_, item gjson.Result) bool {
			out = append(out, jsonValue(item))
			return true
		})
		return out
	}
	return []node.Value{jsonValue(r)}
}

// jsonValue converts a gjson scalar. Objects and arrays are kept as raw JSON text.
func jsonValue(r gjson.Result) node.Value {
	switch r.Type {
	case gjson.String:
		return node.String(r.Str)
	case gjson.True:
		return node.Bool(true)
	case gjson.False:
		return node.Bool(false)
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			return node.Int(r.Int())
		}
		return node.Float(r.Num)
	case gjson.Null:
		return node.None
	default:
		return node.String(r.Raw)
	}
}
