package codec

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

const hlIndent = "   "

// Hyperlambda is an indentation based text format: one node per line as
// name:value, three spaces per level, typed values as name:type:value and
// references as name:x:expression.
type hyperlambdaFormat struct{}

func (hyperlambdaFormat) Encode(n *node.Node) (string, error) {
	var sb strings.Builder
	if n.Len() == 0 {
		if n.Value.IsNone() {
			return "", nil
		}
		v, err := hlValue(n.Value)
		if err != nil {
			return "", err
		}
		return v, nil
	}
	for _, c := range n.Children() {
		if err := writeHyperlambda(&sb, c, 0); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

func writeHyperlambda(sb *strings.Builder, n *node.Node, level int) error {
	sb.WriteString(strings.Repeat(hlIndent, level))
	sb.WriteString(hlName(n.Name))
	if !n.Value.IsNone() {
		v, err := hlValue(n.Value)
		if err != nil {
			return err
		}
		sb.WriteByte(':')
		sb.WriteString(v)
	}
	sb.WriteByte('\n')
	for _, c := range n.Children() {
		if err := writeHyperlambda(sb, c, level+1); err != nil {
			return err
		}
	}
	return nil
}

func hlName(name string) string {
	if name == "" || strings.ContainsAny(name, ":\"\n\r") || strings.TrimSpace(name) != name || strings.HasPrefix(name, "//") {
		return strconv.Quote(name)
	}
	return name
}

func hlValue(v node.Value) (string, error) {
	switch v.Kind() {
	case node.KindString:
		s, _ := v.Str()
		if s == "" || strings.ContainsAny(s, ":\"\n\r\t") || strings.TrimSpace(s) != s {
			return strconv.Quote(s), nil
		}
		return s, nil
	case node.KindInt:
		i, _ := v.Int64()
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return "int:" + strconv.FormatInt(i, 10), nil
		}
		return "long:" + strconv.FormatInt(i, 10), nil
	case node.KindFloat:
		f, _ := v.Float64()
		return "double:" + strconv.FormatFloat(f, 'g', -1, 64), nil
	case node.KindBool:
		b, _ := v.Boolean()
		return "bool:" + strconv.FormatBool(b), nil
	case node.KindBytes:
		raw, _ := v.Raw()
		return "bytes:" + base64.StdEncoding.EncodeToString(raw), nil
	case node.KindReference:
		expr, _ := v.Expr()
		if strings.ContainsAny(expr, "\"\n\r") {
			return "x:" + strconv.Quote(expr), nil
		}
		return "x:" + expr, nil
	default:
		return "", nil
	}
}

func (hyperlambdaFormat) Decode(data []byte) (*node.Node, error) {
	p := &hlParser{src: strings.ReplaceAll(string(data), "\r\n", "\n"), line: 1}
	return p.parse()
}

type hlParser struct {
	src  string
	pos  int
	line int
}

func (p *hlParser) errorf(format string, args ...any) error {
	return fmt.Errorf("hyperlambda: line %d: %s", p.line, fmt.Sprintf(format, args...))
}

func (p *hlParser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *hlParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

// restOfLine returns the text up to the next newline without consuming it.
func (p *hlParser) restOfLine() string {
	end := strings.IndexByte(p.src[p.pos:], '\n')
	if end < 0 {
		return p.src[p.pos:]
	}
	return p.src[p.pos : p.pos+end]
}

func (p *hlParser) skipLine() {
	p.pos += len(p.restOfLine())
	if !p.eof() {
		p.pos++
		p.line++
	}
}

func (p *hlParser) parse() (*node.Node, error) {
	root := node.New("", node.None)
	stack := []*node.Node{root}

	for !p.eof() {
		spaces := 0
		for p.peek() == ' ' {
			spaces++
			p.pos++
		}
		rest := strings.TrimSpace(p.restOfLine())
		if rest == "" || strings.HasPrefix(rest, "//") {
			p.skipLine()
			continue
		}
		if spaces%len(hlIndent) != 0 {
			return nil, p.errorf("indentation must be a multiple of %d spaces", len(hlIndent))
		}
		level := spaces / len(hlIndent)
		if level > len(stack)-1 {
			return nil, p.errorf("node is indented too far")
		}

		n, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		stack[level].Add(n)
		stack = append(stack[:level+1], n)

		if tail := strings.TrimSpace(p.restOfLine()); tail != "" {
			return nil, p.errorf("unexpected %q after value", tail)
		}
		p.skipLine()
	}
	return root, nil
}

func (p *hlParser) parseNode() (*node.Node, error) {
	var name string
	if p.peek() == '"' || strings.HasPrefix(p.src[p.pos:], `@"`) {
		s, err := p.parseQuoted()
		if err != nil {
			return nil, err
		}
		name = s
	} else {
		line := p.restOfLine()
		end := strings.IndexByte(line, ':')
		if end < 0 {
			end = len(line)
		}
		name = strings.TrimRight(line[:end], " \t\r")
		p.pos += end
	}

	n := node.New(name, node.None)
	if p.peek() != ':' {
		return n, nil
	}
	p.pos++

	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	n.Value = v
	return n, nil
}

func (p *hlParser) parseValue() (node.Value, error) {
	if p.peek() == '"' || strings.HasPrefix(p.src[p.pos:], `@"`) {
		s, err := p.parseQuoted()
		if err != nil {
			return node.None, err
		}
		return node.String(s), nil
	}

	line := p.restOfLine()
	if i := strings.IndexByte(line, ':'); i > 0 {
		if typ := line[:i]; isHLType(typ) {
			p.pos += i + 1
			var raw string
			if p.peek() == '"' || strings.HasPrefix(p.src[p.pos:], `@"`) {
				s, err := p.parseQuoted()
				if err != nil {
					return node.None, err
				}
				raw = s
			} else {
				raw = strings.TrimRight(p.restOfLine(), " \t\r")
				p.pos += len(p.restOfLine())
			}
			return p.typed(typ, raw)
		}
	}

	raw := strings.TrimRight(line, " \t\r")
	p.pos += len(line)
	return node.String(raw), nil
}

func isHLType(typ string) bool {
	switch typ {
	case "string", "int", "long", "short", "uint", "ulong", "ushort",
		"decimal", "double", "float", "bool", "bytes", "x":
		return true
	}
	return false
}

func (p *hlParser) typed(typ, raw string) (node.Value, error) {
	switch typ {
	case "string":
		return node.String(raw), nil
	case "int", "long", "short", "uint", "ulong", "ushort":
		i, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return node.None, p.errorf("invalid %s value %q", typ, raw)
		}
		return node.Int(i), nil
	case "decimal", "double", "float":
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return node.None, p.errorf("invalid %s value %q", typ, raw)
		}
		return node.Float(f), nil
	case "bool":
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return node.None, p.errorf("invalid bool value %q", raw)
		}
		return node.Bool(b), nil
	case "bytes":
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
		if err != nil {
			return node.None, p.errorf("invalid bytes value: %v", err)
		}
		return node.Bytes(b), nil
	case "x":
		return node.Reference(raw), nil
	}
	return node.None, p.errorf("unknown type %q", typ)
}

// parseQuoted reads either a "regular" string using Go escape rules or an
// @"verbatim" string where "" stands for a quote and newlines are allowed.
func (p *hlParser) parseQuoted() (string, error) {
	if strings.HasPrefix(p.src[p.pos:], `@"`) {
		p.pos += 2
		var sb strings.Builder
		for !p.eof() {
			ch := p.src[p.pos]
			p.pos++
			if ch == '"' {
				if p.peek() == '"' {
					sb.WriteByte('"')
					p.pos++
					continue
				}
				return sb.String(), nil
			}
			if ch == '\n' {
				p.line++
			}
			sb.WriteByte(ch)
		}
		return "", p.errorf("unterminated string")
	}

	start := p.pos
	p.pos++
	for !p.eof() {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case '\n':
			return "", p.errorf("newline in string")
		case '"':
			p.pos++
			s, err := strconv.Unquote(p.src[start:p.pos])
			if err != nil {
				return "", p.errorf("invalid string: %v", err)
			}
			return s, nil
		}
		p.pos++
	}
	return "", p.errorf("unterminated string")
}
