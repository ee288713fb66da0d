// Package curl converts curl command lines to declarations.
package curl

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/core/parser"
	"github.com/abdul-hamid-achik/hitlambda/packages/invoke"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

// Converter converts curl commands to declarations.
type Converter struct {
	codec   codec.Codec
	convert bool
}

// Option is a functional option for Converter.
type Option func(*Converter)

// WithConvert sets [convert] on every generated declaration.
func WithConvert(convert bool) Option {
	return func(c *Converter) {
		c.convert = convert
	}
}

// WithCodec sets the codec used to turn JSON bodies into payload trees.
func WithCodec(cd codec.Codec) Option {
	return func(c *Converter) {
		c.codec = cd
	}
}

// NewConverter creates a new curl converter.
func NewConverter(opts ...Option) *Converter {
	c := &Converter{
		codec:   codec.New(),
		convert: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ParsedCurl represents a parsed curl command.
type ParsedCurl struct {
	Method    string
	URL       string
	Headers   map[string]string
	Body      string
	BasicAuth string
	Name      string
}

// ConvertCommand converts a single curl command to a one declaration file.
func (c *Converter) ConvertCommand(curlCmd string) (*parser.File, error) {
	parsed, err := c.Parse(curlCmd)
	if err != nil {
		return nil, err
	}
	decl, err := c.Declaration(parsed)
	if err != nil {
		return nil, err
	}
	return &parser.File{Declarations: []*parser.Declaration{decl}}, nil
}

// ConvertFile converts a file containing curl commands, one per line or
// continued with a trailing backslash.
func (c *Converter) ConvertFile(path string) (*parser.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var commands []string
	var currentCmd strings.Builder
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasSuffix(line, "\\") {
			currentCmd.WriteString(strings.TrimSuffix(line, "\\"))
			currentCmd.WriteString(" ")
			continue
		}

		currentCmd.WriteString(line)
		commands = append(commands, currentCmd.String())
		currentCmd.Reset()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if currentCmd.Len() > 0 {
		commands = append(commands, currentCmd.String())
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("no curl commands in %s", path)
	}

	result := &parser.File{Path: path}
	for i, cmd := range commands {
		converted, err := c.ConvertCommand(cmd)
		if err != nil {
			return nil, fmt.Errorf("failed to convert command %d: %w", i+1, err)
		}
		decl := converted.Declarations[0]
		decl.Index = i
		result.Declarations = append(result.Declarations, decl)
	}
	return result, nil
}

// Parse parses a curl command string into a ParsedCurl struct.
func (c *Converter) Parse(curlCmd string) (*ParsedCurl, error) {
	parsed := &ParsedCurl{
		Method:  "GET",
		Headers: make(map[string]string),
	}

	curlCmd = strings.TrimSpace(curlCmd)
	if strings.HasPrefix(curlCmd, "curl ") {
		curlCmd = strings.TrimPrefix(curlCmd, "curl ")
	} else if curlCmd == "curl" {
		return nil, fmt.Errorf("no URL specified")
	}

	tokens := tokenize(curlCmd)
	explicitMethod := false

	value := func(i int) (string, error) {
		if i+1 < len(tokens) {
			return tokens[i+1], nil
		}
		return "", fmt.Errorf("missing value for %s", tokens[i])
	}

	i := 0
	for i < len(tokens) {
		token := tokens[i]

		switch token {
		case "-X", "--request":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Method = strings.ToUpper(v)
			explicitMethod = true
			i += 2

		case "-H", "--header":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			if key, val, ok := strings.Cut(v, ":"); ok {
				parsed.Headers[strings.TrimSpace(key)] = strings.TrimSpace(val)
			}
			i += 2

		case "-d", "--data", "--data-raw", "--data-binary", "--json":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			if parsed.Body != "" {
				parsed.Body += "&"
			}
			parsed.Body += v
			if token == "--json" {
				parsed.Headers["Content-Type"] = "application/json"
			}
			if !explicitMethod {
				parsed.Method = "POST"
			}
			i += 2

		case "-u", "--user":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.BasicAuth = v
			i += 2

		case "-A", "--user-agent":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Headers["User-Agent"] = v
			i += 2

		case "-e", "--referer":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Headers["Referer"] = v
			i += 2

		case "-b", "--cookie":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.Headers["Cookie"] = v
			i += 2

		case "--url":
			v, err := value(i)
			if err != nil {
				return nil, err
			}
			parsed.URL = v
			i += 2

		case "-k", "--insecure", "-L", "--location", "-s", "--silent", "-v", "--verbose", "-i", "--include", "--compressed":
			i++

		default:
			switch {
			case strings.HasPrefix(token, "-"):
				// unknown flag, skip its value when it has one
				if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") && !isURL(tokens[i+1]) {
					i += 2
				} else {
					i++
				}
			default:
				if parsed.URL == "" && isURL(token) {
					parsed.URL = token
				}
				i++
			}
		}
	}

	if parsed.URL == "" {
		return nil, fmt.Errorf("no URL found in curl command")
	}

	parsed.Name = generateName(parsed.URL, parsed.Method)
	return parsed, nil
}

// Declaration turns a parsed command into a declaration. A bearer
// Authorization header becomes [token], a JSON body becomes a payload tree and
// a @file body becomes [filename].
func (c *Converter) Declaration(parsed *ParsedCurl) (*parser.Declaration, error) {
	if !parser.ValidVerb(parsed.Method) {
		return nil, fmt.Errorf("unsupported verb %s, expected one of %s", parsed.Method, strings.Join(parser.Verbs, ", "))
	}

	decl := &parser.Declaration{
		Verb: strings.ToUpper(parsed.Method),
		Name: sanitizeName(parsed.Name),
		Node: node.New("", node.String(parsed.URL)),
	}

	headers := make(map[string]string, len(parsed.Headers)+1)
	var token string
	for key, value := range parsed.Headers {
		if strings.EqualFold(key, "Authorization") && strings.HasPrefix(value, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(value, "Bearer "))
			continue
		}
		headers[key] = value
	}
	if parsed.BasicAuth != "" {
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(parsed.BasicAuth))
	}

	body := parsed.Body
	if body != "" && contentType(headers) == "" {
		if looksLikeJSON(body) {
			headers["Content-Type"] = "application/json"
		} else if !strings.HasPrefix(body, "@") {
			headers["Content-Type"] = "application/x-www-form-urlencoded"
		}
	}

	if len(headers) > 0 {
		keys := make([]string, 0, len(headers))
		for k := range headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		h := node.New(invoke.ArgHeaders, node.None)
		decl.Node.Add(h)
		for _, k := range keys {
			h.Add(node.New(k, node.String(headers[k])))
		}
	}
	if token != "" {
		decl.Node.Add(node.New(invoke.ArgToken, node.String(token)))
	}

	switch {
	case body == "":
	case strings.HasPrefix(body, "@"):
		decl.Node.Add(node.New(invoke.ArgFilename, node.String(strings.TrimPrefix(body, "@"))))
	case strings.Contains(contentType(headers), "json") && looksLikeJSON(body):
		tree, err := c.codec.Decode(context.Background(), codec.JSON, []byte(body))
		if err != nil {
			// keep the body as written
			decl.Node.Add(node.New(invoke.ArgPayload, node.String(body)))
			break
		}
		tree.Name = invoke.ArgPayload
		decl.Node.Add(tree)
	default:
		decl.Node.Add(node.New(invoke.ArgPayload, node.String(body)))
	}

	if c.convert {
		decl.Node.Add(node.New(invoke.ArgConvert, node.Bool(true)))
	}
	return decl, nil
}

func contentType(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") {
			return strings.ToLower(v)
		}
	}
	return ""
}

func looksLikeJSON(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// tokenize splits a curl command into tokens, respecting quotes.
func tokenize(cmd string) []string {
	var tokens []string
	var current strings.Builder
	inSingleQuote := false
	inDoubleQuote := false
	escaped := false

	for _, r := range cmd {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		switch r {
		case '\\':
			if inSingleQuote {
				current.WriteRune(r)
			} else {
				escaped = true
			}
		case '\'':
			if !inDoubleQuote {
				inSingleQuote = !inSingleQuote
			} else {
				current.WriteRune(r)
			}
		case '"':
			if !inSingleQuote {
				inDoubleQuote = !inDoubleQuote
			} else {
				current.WriteRune(r)
			}
		case ' ', '\t', '\n':
			if inSingleQuote || inDoubleQuote {
				current.WriteRune(r)
			} else if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "{{")
}

var urlPathPattern = regexp.MustCompile(`https?://[^/]+(/[^?#]*)?`)

// generateName generates a declaration name from the URL and method.
func generateName(url, method string) string {
	matches := urlPathPattern.FindStringSubmatch(url)

	path := "/"
	if len(matches) > 1 && matches[1] != "" {
		path = matches[1]
	}

	path = strings.Trim(path, "/")
	if path == "" {
		path = "root"
	}

	path = strings.ReplaceAll(path, "/", "_")
	path = strings.ReplaceAll(path, "-", "_")

	return strings.ToLower(method) + "_" + path
}

var nonWord = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// sanitizeName sanitizes a name for use as a file name.
func sanitizeName(name string) string {
	return strings.Trim(nonWord.ReplaceAllString(name, "_"), "_")
}
