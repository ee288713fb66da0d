package invoke

import (
	"context"
	"fmt"
	"strings"

	hlhttp "github.com/abdul-hamid-achik/hitlambda/packages/http"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// Recognized declaration children.
const (
	ArgHeaders  = "headers"
	ArgToken    = "token"
	ArgPayload  = "payload"
	ArgFilename = "filename"
	ArgConvert  = "convert"
)

// declaration is the validated view of a declaration node. The node itself is
// not modified until the response is classified.
type declaration struct {
	op       string
	url      string
	headers  *node.Node
	token    *node.Node
	payload  *node.Node
	filename *node.Node

	convertNode *node.Node
	convert     bool
}

// operationName is the name errors are reported under.
func operationName(verb string, decl *node.Node) string {
	if decl != nil && decl.Name != "" {
		return decl.Name
	}
	return "http." + strings.ToLower(verb)
}

func (i *Invoker) parseDeclaration(ctx context.Context, verb string, decl *node.Node) (*declaration, error) {
	op := operationName(verb, decl)
	if decl == nil {
		return nil, fmt.Errorf("%w: [%s] no declaration", ErrInvalidDeclaration, op)
	}

	d := &declaration{op: op}
	for _, c := range decl.Children() {
		var slot **node.Node
		switch c.Name {
		case ArgHeaders:
			slot = &d.headers
		case ArgToken:
			slot = &d.token
		case ArgPayload:
			slot = &d.payload
		case ArgFilename:
			slot = &d.filename
		case ArgConvert:
			slot = &d.convertNode
		default:
			return nil, fmt.Errorf("%w: [%s] does not know how to handle the [%s] argument", ErrInvalidDeclaration, op, c.Name)
		}
		if *slot != nil {
			return nil, fmt.Errorf("%w: [%s] can only have one [%s] argument", ErrInvalidDeclaration, op, c.Name)
		}
		*slot = c
	}

	if d.convertNode != nil {
		v, err := node.ResolveValue(ctx, d.convertNode.Value, i.resolver, op)
		if err != nil {
			return nil, err
		}
		d.convert = v.Truthy()
	}

	u, err := node.ResolveValue(ctx, decl.Value, i.resolver, op)
	if err != nil {
		return nil, err
	}
	d.url = strings.TrimSpace(u.Text())
	if err := hlhttp.ValidateURL(d.url); err != nil {
		return nil, fmt.Errorf("%w: [%s] %v", ErrInvalidDeclaration, op, err)
	}

	return d, nil
}
