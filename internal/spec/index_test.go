package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func parseNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var n yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &n))
	return &n
}

func TestKeyIndex_OrderAndPositions(t *testing.T) {
	t.Parallel()
	ix := NewKeyIndex(parseNode(t, `paths:
  /zoo:
    get: {}
  /a/{id}:
    post: {}
    get: {}
list:
  - first: 1
    second: 2
`))
	assert.Equal(t, []string{"paths", "list"}, ix.Keys(""))
	assert.Equal(t, []string{"/zoo", "/a/{id}"}, ix.Keys("/paths"))
	assert.Equal(t, []string{"post", "get"}, ix.Keys("#/paths/~1a~1{id}"))
	assert.Equal(t, []string{"first", "second"}, ix.Keys("/list/0"))

	pos, ok := ix.Position("/paths/~1a~1{id}/get")
	require.True(t, ok)
	assert.Equal(t, Position{Line: 6, Column: 5}, pos)
	assert.Equal(t, "6:5", pos.String())

	_, ok = ix.Position("/paths/~1missing")
	assert.False(t, ok)
}

func TestKeyIndex_LocateFallsBackToAncestor(t *testing.T) {
	t.Parallel()
	ix := NewKeyIndex(parseNode(t, "a:\n  b:\n    c: 1\n"))
	pos, ok := ix.Locate("#/a/b/missing/deeper")
	require.True(t, ok)
	assert.Equal(t, 2, pos.Line)

	var nilIx *KeyIndex
	assert.Nil(t, nilIx.Keys(""))
	_, ok = nilIx.Locate("/a")
	assert.False(t, ok)
}

func TestOrderedKeys(t *testing.T) {
	t.Parallel()
	ix := NewKeyIndex(parseNode(t, "m:\n  c: 1\n  a: 2\n  b: 3\n"))
	m := map[string]int{"a": 2, "b": 3, "c": 1, "z": 0, "y": 9}
	// Unindexed keys follow in lexical order.
	assert.Equal(t, []string{"c", "a", "b", "y", "z"}, orderedKeys(ix, "/m", m))
	assert.Equal(t, []string{"a", "b"}, orderedKeys[int](nil, "/m", map[string]int{"b": 1, "a": 1}))
}

func TestPointerTokens(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "~1pets~1{id}", EscapePointerToken("/pets/{id}"))
	assert.Equal(t, "a~0b", EscapePointerToken("a~b"))
	assert.Equal(t, "/pets/{id}", unescapePointerToken("~1pets~1{id}"))
	// ~01 decodes to ~1, not /.
	assert.Equal(t, "~1", unescapePointerToken("~01"))
	assert.Equal(t, "/paths/~1pets/get", JoinPointer("/paths", "/pets", "get"))
}

func TestRewriteLegacyRequired(t *testing.T) {
	t.Parallel()
	root := parseNode(t, `components:
  schemas:
    Pet:
      type: object
      required: [id]
      properties:
        id: {type: integer, required: true}
        name: {type: string, required: true}
        tag: {type: string, required: false}
        note: {type: string}
      example:
        properties:
          x: {required: true}
`)
	require.True(t, rewriteLegacyRequired(root))

	var out struct {
		Components struct {
			Schemas map[string]struct {
				Required   []string                  `yaml:"required"`
				Properties map[string]map[string]any `yaml:"properties"`
				Example    map[string]any            `yaml:"example"`
			} `yaml:"schemas"`
		} `yaml:"components"`
	}
	require.NoError(t, root.Decode(&out))
	pet := out.Components.Schemas["Pet"]
	assert.Equal(t, []string{"id", "name"}, pet.Required)
	for name, p := range pet.Properties {
		assert.NotContains(t, p, "required", name)
	}
	// Example payloads are data and stay untouched.
	assert.Contains(t, pet.Example["properties"].(map[string]any)["x"], "required")
}

func TestRewriteLegacyRequired_NoChange(t *testing.T) {
	t.Parallel()
	root := parseNode(t, `components:
  schemas:
    Pet:
      type: object
      required: [id]
      properties:
        id: {type: integer}
        required: {type: boolean}
`)
	assert.False(t, rewriteLegacyRequired(root))
}
