package codec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"gopkg.in/yaml.v3"
)

// RefTag marks a YAML scalar as a reference, e.g. `userId: !ref user.id`.
const RefTag = "!ref"

type yamlFormat struct{}

func (yamlFormat) Encode(n *node.Node) (string, error) {
	doc, err := toYAML(n)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("yaml: %w", err)
	}
	return buf.String(), nil
}

func toYAML(n *node.Node) (*yaml.Node, error) {
	if n.Len() == 0 {
		return yamlScalar(n.Value), nil
	}

	if isArray(n) {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, c := range n.Children() {
			item, err := toYAML(c)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, item)
		}
		return seq, nil
	}

	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, c := range n.Children() {
		value, err := toYAML(c)
		if err != nil {
			return nil, err
		}
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: c.Name}
		m.Content = append(m.Content, key, value)
	}
	return m, nil
}

func yamlScalar(v node.Value) *yaml.Node {
	s := &yaml.Node{Kind: yaml.ScalarNode}
	switch v.Kind() {
	case node.KindNone:
		s.Tag, s.Value = "!!null", "null"
	case node.KindString:
		s.Tag, s.Value = "!!str", v.Text()
	case node.KindInt:
		s.Tag, s.Value = "!!int", v.Text()
	case node.KindFloat:
		f, _ := v.Float64()
		s.Tag = "!!float"
		switch {
		case math.IsNaN(f):
			s.Value = ".nan"
		case math.IsInf(f, 1):
			s.Value = ".inf"
		case math.IsInf(f, -1):
			s.Value = "-.inf"
		default:
			s.Value = strconv.FormatFloat(f, 'g', -1, 64)
		}
	case node.KindBool:
		s.Tag, s.Value = "!!bool", v.Text()
	case node.KindBytes:
		raw, _ := v.Raw()
		s.Tag, s.Value = "!!binary", base64.StdEncoding.EncodeToString(raw)
	case node.KindReference:
		s.Tag, s.Value = RefTag, v.Text()
	}
	return s
}

func (yamlFormat) Decode(data []byte) (*node.Node, error) {
	root := node.New("", node.None)
	if len(bytes.TrimSpace(data)) == 0 {
		return root, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		if err := fillYAML(root, doc.Content[0]); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func fillYAML(n *node.Node, y *yaml.Node) error {
	switch y.Kind {
	case yaml.AliasNode:
		return fillYAML(n, y.Alias)
	case yaml.MappingNode:
		for i := 0; i+1 < len(y.Content); i += 2 {
			child := node.New(y.Content[i].Value, node.None)
			if err := fillYAML(child, y.Content[i+1]); err != nil {
				return err
			}
			n.Add(child)
		}
	case yaml.SequenceNode:
		for _, item := range y.Content {
			child := node.New(ArrayItem, node.None)
			if err := fillYAML(child, item); err != nil {
				return err
			}
			n.Add(child)
		}
	case yaml.ScalarNode:
		v, err := fromYAMLScalar(y)
		if err != nil {
			return err
		}
		n.Value = v
	}
	return nil
}

func fromYAMLScalar(y *yaml.Node) (node.Value, error) {
	switch y.ShortTag() {
	case "!!null":
		return node.None, nil
	case "!!bool":
		var b bool
		if err := y.Decode(&b); err != nil {
			return node.None, fmt.Errorf("yaml: line %d: %w", y.Line, err)
		}
		return node.Bool(b), nil
	case "!!int":
		var i int64
		if err := y.Decode(&i); err != nil {
			// out of int64 range
			var f float64
			if ferr := y.Decode(&f); ferr != nil {
				return node.None, fmt.Errorf("yaml: line %d: %w", y.Line, err)
			}
			return node.Float(f), nil
		}
		return node.Int(i), nil
	case "!!float":
		var f float64
		if err := y.Decode(&f); err != nil {
			return node.None, fmt.Errorf("yaml: line %d: %w", y.Line, err)
		}
		return node.Float(f), nil
	case "!!binary":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(y.Value), ""))
		if err != nil {
			return node.None, fmt.Errorf("yaml: line %d: invalid binary: %w", y.Line, err)
		}
		return node.Bytes(b), nil
	case RefTag:
		return node.Reference(y.Value), nil
	default:
		return node.String(y.Value), nil
	}
}
