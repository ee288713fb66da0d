package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitlambda/packages/codec"
	"github.com/abdul-hamid-achik/hitlambda/packages/node"
)

func sampleDeclarations() []*Declaration {
	return []*Declaration{
		{
			Verb: "GET",
			Node: node.New("", node.String("{{base}}/users/1"),
				node.New("headers", node.None, node.New("Accept", node.String("application/json"))),
				node.New("convert", node.Bool(true)),
			),
		},
		{
			Verb:  "POST",
			Index: 1,
			Node: node.New("", node.String("{{base}}/users"),
				node.New("payload", node.None,
					node.New("name", node.String("John")),
					node.New("tags", node.None, node.New(".", node.String("a")), node.New(".", node.String("b"))),
				),
			),
		},
	}
}

func TestDocument_RoundTrip(t *testing.T) {
	vars := map[string]any{"base": "https://api.example.com", "retries": int64(2)}
	c := codec.New()

	for _, format := range []string{codec.YAML, codec.JSON, codec.Hyperlambda} {
		t.Run(format, func(t *testing.T) {
			decls := sampleDeclarations()
			doc, err := Document(format, vars, decls...)
			require.NoError(t, err)

			text, err := c.Encode(context.Background(), format, doc)
			require.NoError(t, err)

			file, err := NewParser(c).ParseFormat([]byte(text), "generated", format)
			require.NoError(t, err, text)

			assert.Equal(t, vars, file.Variables)
			require.Len(t, file.Declarations, 2)
			for i, got := range file.Declarations {
				assert.Equal(t, decls[i].Verb, got.Verb)
				assert.Equal(t, decls[i].URL(), got.URL())
				require.Equal(t, decls[i].Node.Len(), got.Node.Len())
				for j, child := range decls[i].Node.Children() {
					assert.True(t, child.Equal(got.Node.Children()[j]), "%s: child %s", format, child.Name)
				}
			}
		})
	}
}

func TestDocument_Flat(t *testing.T) {
	decl := &Declaration{Node: node.New("", node.String("https://example.com"), node.New("token", node.String("abc")))}

	doc, err := Document(codec.YAML, nil, decl)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyURL, "token"}, []string{doc.Children()[0].Name, doc.Children()[1].Name})

	_, err = Document(codec.Hyperlambda, nil, decl)
	assert.ErrorContains(t, err, "has no verb")
}

func TestDocument_DuplicateSlots(t *testing.T) {
	get := func() *Declaration {
		return &Declaration{Verb: "GET", Node: node.New("", node.String("https://example.com"))}
	}

	_, err := Document(codec.YAML, nil, get(), get())
	assert.ErrorContains(t, err, "http.get")

	doc, err := Document(codec.Hyperlambda, nil, get(), get())
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Count("http.get"))

	_, err = Document(codec.YAML, nil)
	assert.Error(t, err)
}

func TestTree(t *testing.T) {
	n := Tree("payload", map[string]any{
		"b":    []any{int64(1), "x"},
		"a":    true,
		"meta": map[string]string{"k": "v"},
	})

	require.Equal(t, 3, n.Len())
	assert.Equal(t, "a", n.Children()[0].Name)
	assert.Equal(t, node.Bool(true), n.Child("a").Value)
	assert.Equal(t, codec.ArrayItem, n.Child("b").Children()[0].Name)
	assert.Equal(t, node.Int(1), n.Child("b").Children()[0].Value)
	assert.Equal(t, node.String("v"), n.Child("meta").Child("k").Value)

	assert.Equal(t, map[string]any{"a": true, "b": []any{int64(1), "x"}, "meta": map[string]any{"k": "v"}}, Plain(n))
}
