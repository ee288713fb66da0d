package builtin

import (
	"testing"

	"github.com/abdul-hamid-achik/hitlambda/packages/node"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		expr     string
		expected node.Value
	}{
		{`base64("hello")`, node.String("aGVsbG8=")},
		{`base64Decode(aGVsbG8=)`, node.Bytes([]byte("hello"))},
		{`md5('abc')`, node.String("900150983cd24fb0d6963f7d28e17f72")},
		{`urlEncode("a b&c")`, node.String("a+b%26c")},
		{`urlDecode("a+b%26c")`, node.String("a b&c")},
		{`random(5, 5)`, node.Int(5)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := r.Call(tt.expr)
			require.NoError(t, err)
			assert.True(t, tt.expected.Equal(v), "got %s", v)
		})
	}
}

func TestRegistry_UUID(t *testing.T) {
	v, err := NewRegistry().Call("uuid()")
	require.NoError(t, err)

	_, err = uuid.Parse(v.Text())
	assert.NoError(t, err)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Call("nope()")
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = r.Call("not a call")
	assert.ErrorIs(t, err, ErrUnknownFunction)

	_, err = r.Call("random(a, 3)")
	assert.Error(t, err)

	_, err = r.Call("base64()")
	assert.Error(t, err)
}

func TestRegistry_Env(t *testing.T) {
	t.Setenv("HITLAMBDA_TEST_VALUE", "present")
	r := NewRegistry()

	v, err := r.Call("env(HITLAMBDA_TEST_VALUE)")
	require.NoError(t, err)
	assert.Equal(t, "present", v.Text())

	v, err = r.Call("env(HITLAMBDA_TEST_UNSET_VALUE)")
	require.NoError(t, err)
	assert.True(t, v.IsNone())
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register("answer", func([]string) (node.Value, error) { return node.Int(42), nil })

	v, err := r.Call("answer()")
	require.NoError(t, err)
	assert.Equal(t, node.Int(42), v)
	assert.Contains(t, r.Names(), "answer")
}

func TestIsCall(t *testing.T) {
	assert.True(t, IsCall("uuid()"))
	assert.True(t, IsCall(` base64("x") `))
	assert.False(t, IsCall("user.id"))
}
