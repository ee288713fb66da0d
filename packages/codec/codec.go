package codec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

const (
	JSON        = "json"
	Hyperlambda = "hyperlambda"
	YAML        = "yaml"
)

// ArrayItem is the child name marking an element of a list.
const ArrayItem = "."

var ErrUnknownFormat = errors.New("unknown codec format")

// Codec converts between node trees and a named wire format.
type Codec interface {
	Encode(ctx context.Context, format string, n *node.Node) (string, error)
	Decode(ctx context.Context, format string, data []byte) (*node.Node, error)
}

// Format is a single wire format. Encode serializes the children of n (or its
// value when n has no children); Decode returns an anonymous root node.
type Format interface {
	Encode(n *node.Node) (string, error)
	Decode(data []byte) (*node.Node, error)
}

// Formats is the default Codec, dispatching by format name.
type Formats struct {
	mu      sync.RWMutex
	formats map[string]Format
}

func New() *Formats {
	f := &Formats{
		formats: make(map[string]Format),
	}
	f.registerDefaults()
	return f
}

func (f *Formats) registerDefaults() {
	f.formats[JSON] = jsonFormat{}
	f.formats[Hyperlambda] = hyperlambdaFormat{}
	f.formats[YAML] = yamlFormat{}
}

// Register adds or replaces a format.
func (f *Formats) Register(name string, format Format) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.formats[name] = format
}

func (f *Formats) lookup(name string) (Format, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	format, ok := f.formats[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	return format, nil
}

func (f *Formats) Encode(ctx context.Context, format string, n *node.Node) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	impl, err := f.lookup(format)
	if err != nil {
		return "", err
	}
	return impl.Encode(n)
}

func (f *Formats) Decode(ctx context.Context, format string, data []byte) (*node.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	impl, err := f.lookup(format)
	if err != nil {
		return nil, err
	}
	return impl.Decode(data)
}

// isArray reports whether every child of n is an ArrayItem.
func isArray(n *node.Node) bool {
	if n.Len() == 0 {
		return false
	}
	for _, c := range n.Children() {
		if c.Name != ArrayItem {
			return false
		}
	}
	return true
}
