package parser

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// File is a parsed declaration document.
type File struct {
	Path         string
	Format       string
	Variables    map[string]any
	Declarations []*Declaration
}

// Declaration is one invocation of a File. Node is ready to be handed to the
// invoker: its value is the URL and its children the declaration arguments.
type Declaration struct {
	// Verb is upper case, or empty when the file leaves it to the caller.
	Verb  string
	Index int
	Node  *node.Node
	Name  string // labels generated declarations, empty when parsed
}

// URL returns the URL text, or the reference expression when the URL is one.
func (d *Declaration) URL() string {
	if expr, ok := d.Node.Value.Expr(); ok {
		return expr
	}
	return d.Node.Value.Text()
}

// Slot returns the slot name the declaration invokes, e.g. "http.get".
func (d *Declaration) Slot() string {
	if d.Verb == "" {
		return ""
	}
	return slotPrefix + strings.ToLower(d.Verb)
}

type ParseError struct {
	File    string
	Key     string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	msg := e.Message
	if e.Key != "" {
		msg = fmt.Sprintf("[%s] %s", e.Key, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.File != "" {
		return e.File + ": " + msg
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }
