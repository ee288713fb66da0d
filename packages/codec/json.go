package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"github.com/tidwall/gjson"
)

type jsonFormat struct{}

func (jsonFormat) Encode(n *node.Node) (string, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeJSON(buf *bytes.Buffer, n *node.Node) error {
	if n.Len() == 0 {
		return writeJSONValue(buf, n.Value)
	}

	if isArray(n) {
		buf.WriteByte('[')
		for i, c := range n.Children() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}

	buf.WriteByte('{')
	for i, c := range n.Children() {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(buf, c.Name)
		buf.WriteByte(':')
		if err := writeJSON(buf, c); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeJSONValue(buf *bytes.Buffer, v node.Value) error {
	switch v.Kind() {
	case node.KindNone:
		buf.WriteString("null")
	case node.KindString:
		s, _ := v.Str()
		writeJSONString(buf, s)
	case node.KindInt:
		i, _ := v.Int64()
		buf.WriteString(strconv.FormatInt(i, 10))
	case node.KindFloat:
		f, _ := v.Float64()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("json: unsupported float value %v", f)
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case node.KindBool:
		b, _ := v.Boolean()
		buf.WriteString(strconv.FormatBool(b))
	case node.KindBytes:
		raw, _ := v.Raw()
		writeJSONString(buf, base64.StdEncoding.EncodeToString(raw))
	case node.KindReference:
		expr, _ := v.Expr()
		return fmt.Errorf("%w: json cannot encode %q", node.ErrUnresolvedReference, expr)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode terminates with a newline
	buf.Truncate(buf.Len() - 1)
}

// Decode parses data into a tree. A node has no way to tell an empty object or
// array from null, so [] and {} decode to a valueless node without children
// and encode back as null.
func (jsonFormat) Decode(data []byte) (*node.Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return node.New("", node.None), nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("json: invalid document")
	}
	root := node.New("", node.None)
	fillJSON(root, gjson.ParseBytes(data))
	return root, nil
}

// fillJSON copies r into n, keeping document order of object keys.
func fillJSON(n *node.Node, r gjson.Result) {
	switch {
	case r.IsObject():
		r.ForEach(func(key, value gjson.Result) bool {
			child := node.New(key.String(), node.None)
			fillJSON(child, value)
			n.Add(child)
			return true
		})
	case r.IsArray():
		r.ForEach(func(_, value gjson.Result) bool {
			child := node.New(ArrayItem, node.None)
			fillJSON(child, value)
			n.Add(child)
			return true
		})
	default:
		n.Value = jsonScalar(r)
	}
}

func jsonScalar(r gjson.Result) node.Value {
	switch r.Type {
	case gjson.String:
		return node.String(r.Str)
	case gjson.True:
		return node.Bool(true)
	case gjson.False:
		return node.Bool(false)
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
				return node.Int(i)
			}
		}
		return node.Float(r.Num)
	default:
		return node.None
	}
}
