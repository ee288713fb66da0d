// Package header holds the ordered header set used while building a request
// and the fixed list of headers that describe a body rather than the envelope.
package header

import (
	"net/http"
	"strings"
)

// contentHeaders attach to the request body, never to the envelope.
var contentHeaders = map[string]bool{
	"Allow":               true,
	"Content-Disposition": true,
	"Content-Encoding":    true,
	"Content-Language":    true,
	"Content-Length":      true,
	"Content-Location":    true,
	"Content-Md5":         true, // canonical form of Content-MD5
	"Content-Range":       true,
	"Content-Type":        true,
	"Expires":             true,
	"Last-Modified":       true,
}

// IsContent reports whether name is one of the content headers. Matching is
// case-insensitive.
func IsContent(name string) bool {
	return contentHeaders[http.CanonicalHeaderKey(name)]
}

type Field struct {
	Name  string
	Value string
}

// Set is an ordered header mapping. Names keep the casing they were supplied
// with; lookups are case-insensitive.
type Set struct {
	fields []Field
}

func NewSet() *Set {
	return &Set{}
}

// FromPairs builds a Set from alternating name, value arguments.
func FromPairs(pairs ...string) *Set {
	s := NewSet()
	for i := 0; i+1 < len(pairs); i += 2 {
		s.Set(pairs[i], pairs[i+1])
	}
	return s
}

func (s *Set) index(name string) int {
	for i, f := range s.fields {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Set adds or replaces a header. A replaced header keeps its position.
func (s *Set) Set(name, value string) {
	if i := s.index(name); i >= 0 {
		s.fields[i].Value = value
		return
	}
	s.fields = append(s.fields, Field{Name: name, Value: value})
}

func (s *Set) Get(name string) string {
	if i := s.index(name); i >= 0 {
		return s.fields[i].Value
	}
	return ""
}

func (s *Set) Has(name string) bool {
	return s.index(name) >= 0
}

func (s *Set) Del(name string) {
	if i := s.index(name); i >= 0 {
		s.fields = append(s.fields[:i], s.fields[i+1:]...)
	}
}

func (s *Set) Len() int {
	return len(s.fields)
}

func (s *Set) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Partition splits the set into envelope (transport) headers and content
// headers, preserving order within each group.
func (s *Set) Partition() (transport, content []Field) {
	for _, f := range s.fields {
		if IsContent(f.Name) {
			content = append(content, f)
		} else {
			transport = append(transport, f)
		}
	}
	return transport, content
}

// MediaType returns the Content-Type without parameters, lower-cased.
func (s *Set) MediaType() string {
	return MediaType(s.Get("Content-Type"))
}

// MediaType strips parameters from a Content-Type value and lower-cases it.
func MediaType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
