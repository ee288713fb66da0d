// Package schema validates declarations against a JSON schema before they
// are invoked. Every violation of a file is reported at once.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// Declaration is the built-in schema for a single declaration document.
const Declaration = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "hitlambda declaration",
  "type": "object",
  "required": ["url"],
  "additionalProperties": false,
  "properties": {
    "verb": {"enum": ["GET", "POST", "PUT", "PATCH", "DELETE"]},
    "url": {"type": "string", "minLength": 1},
    "headers": {
      "type": "object",
      "additionalProperties": {"type": ["string", "number", "boolean"]}
    },
    "token": {"type": ["string", "number"]},
    "payload": {"type": ["object", "array", "string", "number", "boolean"]},
    "filename": {"type": "string", "minLength": 1},
    "convert": {"type": ["boolean", "string"]}
  },
  "not": {"required": ["payload", "filename"]},
  "if": {
    "required": ["verb"],
    "properties": {"verb": {"enum": ["GET", "DELETE"]}}
  },
  "then": {
    "not": {"anyOf": [{"required": ["payload"]}, {"required": ["filename"]}]}
  }
}`

// Violation is one schema error of one declaration.
type Violation struct {
	Declaration int
	Slot        string
	Field       string
	Message     string
}

func (v Violation) String() string {
	name := v.Slot
	if name == "" {
		name = "declaration"
	}
	return fmt.Sprintf("%s #%d: %s: %s", name, v.Declaration, v.Field, v.Message)
}

// Result holds the violations found in a file.
type Result struct {
	File       string
	Violations []Violation
}

func (r *Result) Valid() bool {
	return len(r.Violations) == 0
}

// Err returns nil for a valid result, and an error listing every violation
// otherwise.
func (r *Result) Err() error {
	if r.Valid() {
		return nil
	}
	lines := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		lines[i] = "  " + v.String()
	}
	return fmt.Errorf("%s: %d schema violation(s):\n%s", r.File, len(r.Violations), strings.Join(lines, "\n"))
}

type Validator struct {
	schema *gojsonschema.Schema
}

// New compiles the built-in Declaration schema.
func New() (*Validator, error) {
	return NewFromBytes([]byte(Declaration))
}

// NewFromBytes compiles a custom declaration schema.
func NewFromBytes(data []byte) (*Validator, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// Validate checks every declaration of file.
func (v *Validator) Validate(file *parser.File) (*Result, error) {
	result := &Result{File: file.Path}
	for _, decl := range file.Declarations {
		violations, err := v.ValidateDeclaration(decl.Verb, decl.Node)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file.Path, err)
		}
		for i := range violations {
			violations[i].Declaration = decl.Index
			violations[i].Slot = decl.Slot()
		}
		result.Violations = append(result.Violations, violations...)
	}
	return result, nil
}

// ValidateDeclaration checks a single declaration node. verb may be empty.
func (v *Validator) ValidateDeclaration(verb string, decl *node.Node) ([]Violation, error) {
	var violations []Violation
	for _, c := range decl.Children() {
		if decl.Count(c.Name) > 1 && decl.Child(c.Name) == c {
			violations = append(violations, Violation{Field: c.Name, Message: "given more than once"})
		}
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(Document(verb, decl)))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	for _, e := range result.Errors() {
		violations = append(violations, Violation{Field: e.Field(), Message: e.Description()})
	}
	return violations, nil
}

// Document projects a declaration to the plain value the schema is checked
// against: its children keyed by name plus "url" and, when known, "verb".
func Document(verb string, decl *node.Node) map[string]any {
	doc := make(map[string]any, decl.Len()+2)
	for _, c := range decl.Children() {
		doc[c.Name] = parser.Plain(c)
	}
	if expr, ok := decl.Value.Expr(); ok {
		doc[parser.KeyURL] = expr
	} else if !decl.Value.IsNone() {
		doc[parser.KeyURL] = decl.Value.Any()
	}
	if verb != "" {
		doc[parser.KeyVerb] = strings.ToUpper(verb)
	}
	return doc
}
