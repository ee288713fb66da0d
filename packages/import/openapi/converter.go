// Package openapi generates declarations from OpenAPI 3 documents.
package openapi

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
	"github.com/abdul-hamid-achik/hitlambda/packages/invoke"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// BaseURLVariable is the variable every generated URL starts with.
const BaseURLVariable = "baseUrl"

const maxSchemaDepth = 5

// Converter converts OpenAPI documents to declaration files.
type Converter struct {
	baseURL     string
	includeTags []string
	excludeTags []string
	includeOnly []string // operation IDs
	convert     bool
	logger      zerolog.Logger
}

// Option is a functional option for Converter
type Option func(*Converter)

// WithBaseURL sets a custom base URL, overriding the first server of the document
func WithBaseURL(url string) Option {
	return func(c *Converter) {
		c.baseURL = url
	}
}

// WithTags keeps only operations carrying one of tags
func WithTags(tags []string) Option {
	return func(c *Converter) {
		c.includeTags = tags
	}
}

// WithExcludeTags drops operations carrying one of tags
func WithExcludeTags(tags []string) Option {
	return func(c *Converter) {
		c.excludeTags = tags
	}
}

// WithOperations keeps only the given operation IDs
func WithOperations(ops []string) Option {
	return func(c *Converter) {
		c.includeOnly = ops
	}
}

// WithConvert sets [convert] on declarations whose success response is JSON
func WithConvert(convert bool) Option {
	return func(c *Converter) {
		c.convert = convert
	}
}

// WithLogger sets the logger receiving validation warnings and skipped operations
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// NewConverter creates a new OpenAPI converter
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		convert: true,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertFile loads an OpenAPI document from a path or an http(s) URL and
// converts it.
func (c *Converter) ConvertFile(ctx context.Context, location string) (*parser.File, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.Context = ctx

	var doc *openapi3.T
	var err error
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		var u *url.URL
		u, err = url.Parse(location)
		if err == nil {
			doc, err = loader.LoadFromURI(u)
		}
	} else {
		doc, err = loader.LoadFromFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}

	file, err := c.Convert(ctx, doc)
	if err != nil {
		return nil, err
	}
	file.Path = location
	return file, nil
}

type operation struct {
	verb string
	op   *openapi3.Operation
}

// Convert converts an OpenAPI document. Operations are ordered by path, then
// by verb. HEAD, OPTIONS and TRACE operations are skipped.
func (c *Converter) Convert(ctx context.Context, doc *openapi3.T) (*parser.File, error) {
	if err := doc.Validate(ctx); err != nil {
		// most real-world documents have minor issues
		c.logger.Warn().Err(err).Msg("OpenAPI document does not validate")
	}

	baseURL := c.baseURL
	if baseURL == "" {
		baseURL = firstServer(doc)
	}
	file := &parser.File{
		Variables: map[string]any{BaseURLVariable: baseURL},
	}
	if doc.Paths == nil {
		return nil, fmt.Errorf("OpenAPI document has no paths")
	}

	paths := doc.Paths.InMatchingOrder()
	sort.Strings(paths)

	for _, path := range paths {
		item := doc.Paths.Value(path)
		if item == nil {
			continue
		}
		for _, o := range []operation{
			{"GET", item.Get},
			{"POST", item.Post},
			{"PUT", item.Put},
			{"PATCH", item.Patch},
			{"DELETE", item.Delete},
		} {
			if o.op == nil || !c.shouldInclude(o.op) {
				continue
			}
			params := append(append(openapi3.Parameters{}, item.Parameters...), o.op.Parameters...)
			decl := c.declaration(path, o.verb, o.op, params, file.Variables)
			decl.Index = len(file.Declarations)
			file.Declarations = append(file.Declarations, decl)
		}
		if item.Head != nil || item.Options != nil || item.Trace != nil {
			c.logger.Debug().Str("path", path).Msg("skipping HEAD, OPTIONS and TRACE operations")
		}
	}

	if len(file.Declarations) == 0 {
		return nil, fmt.Errorf("no operations left to convert")
	}
	return file, nil
}

func firstServer(doc *openapi3.T) string {
	if len(doc.Servers) > 0 && doc.Servers[0].URL != "" {
		return strings.TrimSuffix(doc.Servers[0].URL, "/")
	}
	return "http://localhost:3000"
}

func (c *Converter) shouldInclude(op *openapi3.Operation) bool {
	if len(c.includeOnly) > 0 && !contains(c.includeOnly, op.OperationID) {
		return false
	}
	if len(c.includeTags) > 0 && !anyOf(op.Tags, c.includeTags) {
		return false
	}
	return !anyOf(op.Tags, c.excludeTags)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func anyOf(tags, wanted []string) bool {
	for _, t := range tags {
		if contains(wanted, t) {
			return true
		}
	}
	return false
}

// declaration builds the declaration of one operation. Path parameters become
// variables seeded with an example value so the file runs as generated.
func (c *Converter) declaration(path, verb string, op *openapi3.Operation, params openapi3.Parameters, vars map[string]any) *parser.Declaration {
	name := op.OperationID
	if name == "" {
		name = strings.ToLower(verb) + "_" + path
	}

	target := "{{" + BaseURLVariable + "}}" + path
	var query []string
	headers := map[string]string{}

	for _, ref := range params {
		if ref == nil || ref.Value == nil {
			continue
		}
		p := ref.Value
		switch p.In {
		case openapi3.ParameterInPath:
			target = strings.ReplaceAll(target, "{"+p.Name+"}", "{{"+p.Name+"}}")
			if _, ok := vars[p.Name]; !ok {
				vars[p.Name] = paramExample(p)
			}
		case openapi3.ParameterInQuery:
			if p.Required {
				query = append(query, url.QueryEscape(p.Name)+"="+fmt.Sprint(paramExample(p)))
			}
		case openapi3.ParameterInHeader:
			headers[p.Name] = fmt.Sprint(paramExample(p))
		}
	}
	if len(query) > 0 {
		target += "?" + strings.Join(query, "&")
	}

	decl := &parser.Declaration{
		Verb: verb,
		Name: sanitizeName(name),
		Node: node.New("", node.String(target)),
	}

	var payload *node.Node
	if verb != "GET" && verb != "DELETE" && op.RequestBody != nil && op.RequestBody.Value != nil {
		var contentType string
		contentType, payload = requestPayload(op.RequestBody.Value)
		if contentType != "" {
			headers["Content-Type"] = contentType
		}
	}

	jsonResponse := successIsJSON(op)
	if jsonResponse {
		headers["Accept"] = "application/json"
	}

	if len(headers) > 0 {
		decl.Node.Add(parser.Tree(invoke.ArgHeaders, headers))
	}
	if payload != nil {
		decl.Node.Add(payload)
	}
	if c.convert && jsonResponse {
		decl.Node.Add(node.New(invoke.ArgConvert, node.Bool(true)))
	}
	return decl
}

func paramExample(p *openapi3.Parameter) any {
	var schema *openapi3.Schema
	if p.Schema != nil {
		schema = p.Schema.Value
	}
	if p.Example != nil {
		return typed(p.Example, schema)
	}
	if schema != nil {
		return example(schema, 0)
	}
	return "example"
}

// typed turns decoded JSON numbers of integer schemas back to integers.
func typed(v any, schema *openapi3.Schema) any {
	if f, ok := v.(float64); ok && schema != nil && schema.Type.Is(openapi3.TypeInteger) {
		return int64(f)
	}
	return v
}

// requestPayload returns the content type and [payload] of a request body,
// preferring JSON over forms.
func requestPayload(body *openapi3.RequestBody) (string, *node.Node) {
	types := make([]string, 0, len(body.Content))
	for ct := range body.Content {
		types = append(types, ct)
	}
	sort.Strings(types)

	for _, want := range []string{"json", "form"} {
		for _, ct := range types {
			media := body.Content[ct]
			if !strings.Contains(ct, want) || media == nil {
				continue
			}
			var value any = map[string]any{}
			switch {
			case media.Example != nil:
				value = media.Example
			case media.Schema != nil && media.Schema.Value != nil:
				value = example(media.Schema.Value, 0)
			}
			if want == "form" {
				return "application/x-www-form-urlencoded", node.New(invoke.ArgPayload, node.String(formBody(value)))
			}
			return "application/json", parser.Tree(invoke.ArgPayload, value)
		}
	}
	return "", nil
}

func formBody(value any) string {
	m, ok := value.(map[string]any)
	if !ok {
		return fmt.Sprint(value)
	}
	form := url.Values{}
	for k, v := range m {
		form.Set(k, fmt.Sprint(v))
	}
	return form.Encode()
}

func successIsJSON(op *openapi3.Operation) bool {
	if op.Responses == nil {
		return false
	}
	codes := make([]string, 0, op.Responses.Len())
	for code := range op.Responses.Map() {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		ref := op.Responses.Value(code)
		if !strings.HasPrefix(code, "2") || ref == nil || ref.Value == nil {
			continue
		}
		for ct := range ref.Value.Content {
			if strings.Contains(ct, "json") {
				return true
			}
		}
		return false
	}
	return false
}

// example builds a sample value for a schema: the schema example when there
// is one, otherwise a value of the right type. Objects are maps, arrays are
// one item lists.
func example(schema *openapi3.Schema, depth int) any {
	if schema == nil || depth > maxSchemaDepth {
		return nil
	}
	if schema.Example != nil {
		return typed(schema.Example, schema)
	}
	if len(schema.Enum) > 0 {
		return typed(schema.Enum[0], schema)
	}

	switch {
	case schema.Type.Is(openapi3.TypeObject), schema.Type == nil && len(schema.Properties) > 0:
		obj := make(map[string]any, len(schema.Properties))
		for name, prop := range schema.Properties {
			if prop == nil || prop.Value == nil || prop.Value.ReadOnly {
				continue
			}
			obj[name] = example(prop.Value, depth+1)
		}
		return obj
	case schema.Type.Is(openapi3.TypeArray):
		if schema.Items != nil && schema.Items.Value != nil {
			return []any{example(schema.Items.Value, depth+1)}
		}
		return []any{}
	case schema.Type.Is(openapi3.TypeInteger):
		if schema.Min != nil {
			return int64(*schema.Min)
		}
		return int64(1)
	case schema.Type.Is(openapi3.TypeNumber):
		if schema.Min != nil {
			return *schema.Min
		}
		return 1.5
	case schema.Type.Is(openapi3.TypeBoolean):
		return true
	case schema.Type.Is(openapi3.TypeString):
		switch schema.Format {
		case "date":
			return "2024-01-01"
		case "date-time":
			return "2024-01-01T00:00:00Z"
		case "email":
			return "user@example.com"
		case "uuid":
			return "{{uuid()}}"
		}
		return "example"
	}
	return nil
}

func sanitizeName(name string) string {
	result := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, name)

	for strings.Contains(result, "__") {
		result = strings.ReplaceAll(result, "__", "_")
	}
	return strings.Trim(result, "_")
}
