package builtin

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"github.com/google/uuid"
)

var ErrUnknownFunction = errors.New("unknown function")

// Func evaluates a call with its already split, unquoted arguments.
type Func func(args []string) (node.Value, error)

type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = funcNow
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["uuid"] = funcUUID
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["base64"] = funcBase64
	r.funcs["base64Decode"] = funcBase64Decode
	r.funcs["md5"] = funcMD5
	r.funcs["sha256"] = funcSHA256
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["urlDecode"] = funcURLDecode
	r.funcs["date"] = funcDate
	r.funcs["env"] = funcEnv
}

// Register adds or replaces a function.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Names lists the registered functions, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr looks like name(args).
func IsCall(expr string) bool {
	return funcCallPattern.MatchString(strings.TrimSpace(expr))
}

// Call evaluates an expression of the form name(arg, "quoted arg", ...).
func (r *Registry) Call(expr string) (node.Value, error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return node.None, fmt.Errorf("%w: %q is not a function call", ErrUnknownFunction, expr)
	}

	name := matches[1]
	argsStr := matches[2]

	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return node.None, fmt.Errorf("%w: %s()", ErrUnknownFunction, name)
	}

	var args []string
	if argsStr != "" {
		args = parseArgs(argsStr)
	}

	v, err := fn(args)
	if err != nil {
		return node.None, fmt.Errorf("%s(): %w", name, err)
	}
	return v, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !inQuote && (ch == '"' || ch == '\'') {
			inQuote = true
			quoteChar = ch
		} else if inQuote && ch == quoteChar {
			inQuote = false
			quoteChar = 0
		} else if !inQuote && ch == ',' {
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		} else {
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func firstArg(args []string) (string, error) {
	if len(args) < 1 {
		return "", errors.New("missing argument")
	}
	return args[0], nil
}

func intArg(args []string, i int, def int) (int, error) {
	if len(args) <= i {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d %q is not a valid integer", i+1, args[i])
	}
	return v, nil
}

func funcNow(_ []string) (node.Value, error) {
	return node.String(time.Now().UTC().Format(time.RFC3339)), nil
}

func funcTimestamp(_ []string) (node.Value, error) {
	return node.Int(time.Now().Unix()), nil
}

func funcTimestampMs(_ []string) (node.Value, error) {
	return node.Int(time.Now().UnixMilli()), nil
}

func funcUUID(_ []string) (node.Value, error) {
	return node.String(uuid.New().String()), nil
}

func funcRandom(args []string) (node.Value, error) {
	min, err := intArg(args, 0, 0)
	if err != nil {
		return node.None, err
	}
	max, err := intArg(args, 1, 100)
	if err != nil {
		return node.None, err
	}
	if max < min {
		return node.None, fmt.Errorf("max %d is smaller than min %d", max, min)
	}
	return node.Int(int64(rand.Intn(max-min+1) + min)), nil
}

func funcRandomString(args []string) (node.Value, error) {
	length, err := intArg(args, 0, 16)
	if err != nil {
		return node.None, err
	}
	return node.String(randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")), nil
}

func funcRandomEmail(_ []string) (node.Value, error) {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	domain := randomString(6, "abcdefghijklmnopqrstuvwxyz")
	return node.String(fmt.Sprintf("%s@%s.com", user, domain)), nil
}

func funcBase64(args []string) (node.Value, error) {
	s, err := firstArg(args)
	if err != nil {
		return node.None, err
	}
	return node.String(base64.StdEncoding.EncodeToString([]byte(s))), nil
}

// funcBase64Decode yields bytes, so the decoded content can be sent as a
// binary payload.
func funcBase64Decode(args []string) (node.Value, error) {
	s, err := firstArg(args)
	if err != nil {
		return node.None, err
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return node.None, err
	}
	return node.Bytes(decoded), nil
}

func funcMD5(args []string) (node.Value, error) {
	s, err := firstArg(args)
	if err != nil {
		return node.None, err
	}
	hash := md5.Sum([]byte(s))
	return node.String(hex.EncodeToString(hash[:])), nil
}

func funcSHA256(args []string) (node.Value, error) {
	s, err := firstArg(args)
	if err != nil {
		return node.None, err
	}
	hash := sha256.Sum256([]byte(s))
	return node.String(hex.EncodeToString(hash[:])), nil
}

func funcURLEncode(args []string) (node.Value, error) {
	s, err := firstArg(args)
	if err != nil {
		return node.None, err
	}
	return node.String(url.QueryEscape(s)), nil
}

func funcURLDecode(args []string) (node.Value, error) {
	s, err := firstArg(args)
	if err != nil {
		return node.None, err
	}
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return node.None, err
	}
	return node.String(decoded), nil
}

func funcDate(args []string) (node.Value, error) {
	format := "2006-01-02"
	if len(args) >= 1 {
		format = args[0]
	}
	return node.String(time.Now().UTC().Format(format)), nil
}

// funcEnv yields None for unset variables.
func funcEnv(args []string) (node.Value, error) {
	name, err := firstArg(args)
	if err != nil {
		return node.None, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return node.String(v), nil
	}
	return node.None, nil
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
