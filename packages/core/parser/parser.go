package parser

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/invoke"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

const slotPrefix = "http."

// Top level keys besides declaration arguments.
const (
	KeyVariables = "variables"
	KeyVerb      = "verb"
	KeyURL       = "url"
)

// Verbs lists the verbs a declaration may use.
var Verbs = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

var arguments = map[string]bool{
	invoke.ArgHeaders:  true,
	invoke.ArgToken:    true,
	invoke.ArgPayload:  true,
	invoke.ArgFilename: true,
	invoke.ArgConvert:  true,
}

var extensions = map[string]string{
	".yaml":        codec.YAML,
	".yml":         codec.YAML,
	".json":        codec.JSON,
	".hl":          codec.Hyperlambda,
	".hyperlambda": codec.Hyperlambda,
}

// FormatOf returns the codec format of a declaration file from its extension.
func FormatOf(path string) (string, bool) {
	format, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return format, ok
}

// Extensions returns the declaration file extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

func IsDeclarationFile(path string) bool {
	_, ok := FormatOf(path)
	return ok
}

// ValidVerb reports whether verb (any case) is one of Verbs.
func ValidVerb(verb string) bool {
	return slices.Contains(Verbs, strings.ToUpper(verb))
}

type Parser struct {
	codec codec.Codec
}

// NewParser returns a parser decoding documents with c, or with the default
// codec when c is nil.
func NewParser(c codec.Codec) *Parser {
	if c == nil {
		c = codec.New()
	}
	return &Parser{codec: c}
}

func ParseFile(path string) (*File, error) {
	return NewParser(nil).ParseFile(path)
}

func Parse(data []byte, filename string) (*File, error) {
	return NewParser(nil).Parse(data, filename)
}

func (p *Parser) ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(data, path)
}

// Parse decodes data in the format implied by the extension of filename.
func (p *Parser) Parse(data []byte, filename string) (*File, error) {
	format, ok := FormatOf(filename)
	if !ok {
		return nil, &ParseError{File: filename, Message: "unsupported file extension, expected .yaml, .yml, .json or .hl"}
	}
	return p.ParseFormat(data, filename, format)
}

func (p *Parser) ParseFormat(data []byte, filename, format string) (*File, error) {
	root, err := p.codec.Decode(context.Background(), format, data)
	if err != nil {
		return nil, &ParseError{File: filename, Message: "cannot decode " + format, Err: err}
	}

	file := &File{Path: filename, Format: format}
	flat := node.New("", node.None)

	for _, c := range root.Children() {
		var perr *ParseError
		switch {
		case c.Name == KeyVariables:
			if file.Variables != nil {
				perr = &ParseError{Key: c.Name, Message: "given twice"}
				break
			}
			file.Variables, perr = variables(c)
		case strings.HasPrefix(c.Name, slotPrefix):
			var decl *Declaration
			decl, perr = slotDeclaration(c)
			if perr == nil {
				decl.Index = len(file.Declarations)
				file.Declarations = append(file.Declarations, decl)
			}
		case c.Name == KeyVerb || c.Name == KeyURL || arguments[c.Name]:
			flat.Add(c)
		default:
			perr = &ParseError{Key: c.Name, Message: "unknown key"}
		}
		if perr != nil {
			perr.File = filename
			return nil, perr
		}
	}

	if flat.Len() > 0 {
		if len(file.Declarations) > 0 {
			return nil, &ParseError{
				File:    filename,
				Key:     flat.Children()[0].Name,
				Message: "top level arguments cannot be mixed with slot declarations",
			}
		}
		decl, perr := flatDeclaration(flat)
		if perr != nil {
			perr.File = filename
			return nil, perr
		}
		file.Declarations = append(file.Declarations, decl)
	}

	if len(file.Declarations) == 0 {
		return nil, &ParseError{File: filename, Message: "no declarations"}
	}
	return file, nil
}

func flatDeclaration(n *node.Node) (*Declaration, *ParseError) {
	for _, key := range []string{KeyURL, KeyVerb} {
		if n.Count(key) > 1 {
			return nil, &ParseError{Key: key, Message: "given twice"}
		}
	}

	decl := &Declaration{Node: node.New("", node.None)}
	for _, c := range n.Children() {
		switch c.Name {
		case KeyVerb:
			s, ok := c.Value.Str()
			if !ok || c.Len() > 0 || !ValidVerb(s) {
				return nil, &ParseError{Key: KeyVerb, Message: "must be one of " + strings.Join(Verbs, ", ")}
			}
			decl.Verb = strings.ToUpper(s)
		case KeyURL:
			if c.Len() > 0 {
				return nil, &ParseError{Key: KeyURL, Message: "must be a scalar"}
			}
			decl.Node.Value = c.Value
		default:
			decl.Node.Add(c)
		}
	}

	if decl.Node.Value.IsNone() {
		return nil, &ParseError{Key: KeyURL, Message: "is required"}
	}
	return decl, nil
}

func slotDeclaration(n *node.Node) (*Declaration, *ParseError) {
	verb := strings.ToUpper(strings.TrimPrefix(n.Name, slotPrefix))
	if !ValidVerb(verb) {
		return nil, &ParseError{Key: n.Name, Message: "unknown verb, expected one of " + strings.Join(Verbs, ", ")}
	}

	decl := &Declaration{Verb: verb, Node: node.New(n.Name, n.Value)}
	for _, c := range n.Children() {
		switch c.Name {
		case KeyURL:
			if !decl.Node.Value.IsNone() {
				return nil, &ParseError{Key: n.Name, Message: "URL given twice"}
			}
			if c.Len() > 0 {
				return nil, &ParseError{Key: n.Name, Message: "[url] must be a scalar"}
			}
			decl.Node.Value = c.Value
		case KeyVerb:
			return nil, &ParseError{Key: n.Name, Message: "the verb is implied by the slot name"}
		default:
			decl.Node.Add(c.Clone())
		}
	}

	if decl.Node.Value.IsNone() {
		return nil, &ParseError{Key: n.Name, Message: "needs a URL"}
	}
	return decl, nil
}

func variables(n *node.Node) (map[string]any, *ParseError) {
	vars := make(map[string]any, n.Len())
	if n.Len() == 0 {
		return vars, nil
	}
	if isList(n) {
		return nil, &ParseError{Key: n.Name, Message: "must be a mapping"}
	}
	for _, c := range n.Children() {
		vars[c.Name] = Plain(c)
	}
	return vars, nil
}

// Plain converts n to plain Go values: a map for named children, a slice for
// list items and the scalar value otherwise. References become their
// expression text.
func Plain(n *node.Node) any {
	if n.Len() == 0 {
		if expr, ok := n.Value.Expr(); ok {
			return expr
		}
		return n.Value.Any()
	}

	if isList(n) {
		items := make([]any, 0, n.Len())
		for _, c := range n.Children() {
			items = append(items, Plain(c))
		}
		return items
	}

	m := make(map[string]any, n.Len())
	for _, c := range n.Children() {
		m[c.Name] = Plain(c)
	}
	return m
}

func isList(n *node.Node) bool {
	for _, c := range n.Children() {
		if c.Name != codec.ArrayItem {
			return false
		}
	}
	return n.Len() > 0
}

// Expander replaces {{expr}} placeholders in text.
type Expander interface {
	Expand(ctx context.Context, input string) string
}

// Expand rewrites every string value of n holding a placeholder, the URL
// included.
func Expand(ctx context.Context, n *node.Node, e Expander) {
	_ = n.Walk(func(c *node.Node) error {
		if s, ok := c.Value.Str(); ok && strings.Contains(s, "{{") {
			c.Value = node.String(e.Expand(ctx, s))
		}
		return nil
	})
}
