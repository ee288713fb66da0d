package parser

import (
	"fmt"
	"sort"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// Document builds the tree of a declaration file holding vars and decls, so
// that encoding it in format and parsing it again yields the same
// declarations.
//
// Hyperlambda keeps the URL as the slot value. YAML and JSON keep it in a
// url child and cannot hold two declarations of the same verb. A single
// declaration without a verb is written in the flat form.
func Document(format string, vars map[string]any, decls ...*Declaration) (*node.Node, error) {
	if len(decls) == 0 {
		return nil, fmt.Errorf("no declarations")
	}

	inline := format == codec.Hyperlambda
	root := node.New("", node.None)
	if len(vars) > 0 {
		root.Add(Tree(KeyVariables, vars))
	}

	seen := make(map[string]bool, len(decls))
	for _, d := range decls {
		slot := d.Slot()
		if slot == "" {
			if inline || len(decls) > 1 {
				return nil, fmt.Errorf("declaration #%d has no verb", d.Index)
			}
			root.Add(node.New(KeyURL, d.Node.Value))
			for _, c := range d.Node.Children() {
				root.Add(c.Clone())
			}
			continue
		}

		if seen[slot] && !inline {
			return nil, fmt.Errorf("%s holds one %s declaration at most, write %s instead", format, slot, codec.Hyperlambda)
		}
		seen[slot] = true

		n := node.New(slot, d.Node.Value)
		if !inline {
			n = node.New(slot, node.None, node.New(KeyURL, d.Node.Value))
		}
		for _, c := range d.Node.Children() {
			n.Add(c.Clone())
		}
		root.Add(n)
	}
	return root, nil
}

// Tree converts plain Go values to a node named name: maps become named
// children sorted by key, slices become list items. It is the inverse of
// Plain for everything but references.
func Tree(name string, x any) *node.Node {
	switch t := x.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		n := node.New(name, node.None)
		for _, k := range keys {
			n.Add(Tree(k, t[k]))
		}
		return n
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, v := range t {
			m[k] = v
		}
		return Tree(name, m)
	case []any:
		n := node.New(name, node.None)
		for _, item := range t {
			n.Add(Tree(codec.ArrayItem, item))
		}
		return n
	}
	return node.New(name, node.FromAny(x))
}
