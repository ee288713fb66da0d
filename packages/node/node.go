package node

import (
	"errors"
	"fmt"
)

var (
	ErrNotScalar     = errors.New("node is not a scalar")
	ErrNotStructured = errors.New("node is not structured")
)

// Node is the universal tree carrying both request declarations and results.
// Children are ordered and their names need not be unique.
type Node struct {
	Name     string
	Value    Value
	children []*Node
}

func New(name string, value Value, children ...*Node) *Node {
	n := &Node{Name: name, Value: value}
	n.children = append(n.children, children...)
	return n
}

// Scalar is shorthand for New(name, FromAny(x)).
func Scalar(name string, x any) *Node {
	return &Node{Name: name, Value: FromAny(x)}
}

func (n *Node) Add(children ...*Node) *Node {
	n.children = append(n.children, children...)
	return n
}

func (n *Node) Children() []*Node {
	return n.children
}

func (n *Node) Len() int {
	return len(n.children)
}

// Child returns the first child with the given name, or nil.
func (n *Node) Child(name string) *Node {
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (n *Node) Count(name string) int {
	count := 0
	for _, c := range n.children {
		if c.Name == name {
			count++
		}
	}
	return count
}

// Clear removes all children and resets the value.
func (n *Node) Clear() {
	n.children = nil
	n.Value = None
}

func (n *Node) IsScalar() bool {
	return len(n.children) == 0 && !n.Value.IsNone()
}

func (n *Node) IsStructured() bool {
	return len(n.children) > 0
}

func (n *Node) ExpectScalar() (Value, error) {
	if len(n.children) > 0 {
		return None, fmt.Errorf("%w: [%s] has %d children", ErrNotScalar, n.Name, len(n.children))
	}
	return n.Value, nil
}

func (n *Node) ExpectStructured() ([]*Node, error) {
	if len(n.children) == 0 {
		return nil, fmt.Errorf("%w: [%s] has no children", ErrNotStructured, n.Name)
	}
	return n.children, nil
}

// Clone returns a deep copy. Byte values are copied too.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{Name: n.Name, Value: n.Value}
	if raw, ok := n.Value.Raw(); ok {
		c.Value = Bytes(append([]byte(nil), raw...))
	}
	if len(n.children) > 0 {
		c.children = make([]*Node, len(n.children))
		for i, child := range n.children {
			c.children[i] = child.Clone()
		}
	}
	return c
}

// Equal compares name, value and children recursively.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.Name != o.Name || !n.Value.Equal(o.Value) || len(n.children) != len(o.children) {
		return false
	}
	for i := range n.children {
		if !n.children[i].Equal(o.children[i]) {
			return false
		}
	}
	return true
}

// Walk visits n and its descendants depth first, stopping at the first error.
func (n *Node) Walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}
