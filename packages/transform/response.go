package transform

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

func TransformFromJSON(ctx context.Context, caps Capabilities, body []byte) (*node.Node, error) {
	return decode(ctx, caps, codec.JSON, body)
}

func TransformFromHyperlambda(ctx context.Context, caps Capabilities, body []byte) (*node.Node, error) {
	return decode(ctx, caps, codec.Hyperlambda, body)
}

func TransformFromYAML(ctx context.Context, caps Capabilities, body []byte) (*node.Node, error) {
	return decode(ctx, caps, codec.YAML, body)
}

func decode(ctx context.Context, caps Capabilities, format string, body []byte) (*node.Node, error) {
	if caps.Codec == nil {
		return nil, fmt.Errorf("%w: cannot decode %s", ErrNoCodec, format)
	}
	return caps.Codec.Decode(ctx, format, body)
}

// TransformFromURLEncoded turns a form body into one child per pair, keeping
// the order in which pairs appear.
func TransformFromURLEncoded(_ context.Context, _ Capabilities, body []byte) (*node.Node, error) {
	root := node.New("", node.None)
	for _, pair := range strings.Split(string(body), "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		key, err := url.QueryUnescape(kv[0])
		if err != nil {
			return nil, fmt.Errorf("invalid form key %q: %w", kv[0], err)
		}
		value := ""
		if len(kv) == 2 {
			value, err = url.QueryUnescape(kv[1])
			if err != nil {
				return nil, fmt.Errorf("invalid form value for %q: %w", key, err)
			}
		}
		root.Add(node.New(key, node.String(value)))
	}
	return root, nil
}
