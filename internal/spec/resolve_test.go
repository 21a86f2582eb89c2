package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str() *Schema { return &Schema{Kind: KindEnumerable, Primitive: PrimitiveString} }

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Schemas.Add("Pet", Inline(&Schema{
		Kind: KindObject,
		Properties: []Property{
			{Name: "name", Required: true, Schema: Inline(str())},
			{Name: "tags", Schema: Inline(&Schema{Kind: KindArray, Items: Handle[Schema]("#/components/schemas/Tag")})},
			{Name: "a/b", Schema: Inline(&Schema{Kind: KindBoolean})},
		},
	}))
	reg.Schemas.Add("Tag", Inline(str()))
	reg.Schemas.Add("Alias", Handle[Schema]("#/components/schemas/Pet"))
	reg.Schemas.Add("AliasOfAlias", Handle[Schema]("#/components/schemas/Alias"))
	reg.Schemas.Add("Loop1", Handle[Schema]("#/components/schemas/Loop2"))
	reg.Schemas.Add("Loop2", Handle[Schema]("#/components/schemas/Loop1"))
	reg.Schemas.Add("Self", Handle[Schema]("#/components/schemas/Self"))
	reg.Schemas.Add("a~b", Inline(&Schema{Kind: KindBoolean}))
	reg.Parameters.Add("Limit", Inline(&Parameter{Name: "limit", In: InQuery, Schema: Inline(str())}))
	return reg
}

func TestResolve_InlinePassesThrough(t *testing.T) {
	t.Parallel()
	s := str()
	got, err := Resolve(nil, Inline(s))
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestResolve_Handles(t *testing.T) {
	t.Parallel()
	reg := testRegistry()
	pet, _ := reg.Schemas.Lookup("Pet")

	tests := []struct {
		name   string
		handle string
		want   Kind
	}{
		{"named", "#/components/schemas/Pet", KindObject},
		{"alias chain", "#/components/schemas/AliasOfAlias", KindObject},
		{"property", "#/components/schemas/Pet/properties/name", KindEnumerable},
		{"items through handle", "#/components/schemas/Pet/properties/tags/items", KindEnumerable},
		{"escaped property", "#/components/schemas/Pet/properties/a~1b", KindBoolean},
		{"escaped name", "#/components/schemas/a~0b", KindBoolean},
		{"property through alias", "#/components/schemas/Alias/properties/name", KindEnumerable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(reg, Handle[Schema](tt.handle))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Kind)
		})
	}

	got, err := Resolve(reg, Handle[Schema]("#/components/schemas/Alias"))
	require.NoError(t, err)
	assert.Same(t, pet.Value, got)
}

func TestResolve_Errors(t *testing.T) {
	t.Parallel()
	reg := testRegistry()
	tests := []struct {
		name   string
		handle string
		want   error
	}{
		{"missing name", "#/components/schemas/Nope", ErrDanglingReference},
		{"missing property", "#/components/schemas/Pet/properties/nope", ErrDanglingReference},
		{"items of object", "#/components/schemas/Pet/items", ErrDanglingReference},
		{"unknown category", "#/components/securitySchemes/Key", ErrDanglingReference},
		{"mutual loop", "#/components/schemas/Loop1", ErrCyclicReference},
		{"self loop", "#/components/schemas/Self", ErrCyclicReference},
		{"category mismatch", "#/components/parameters/Limit", ErrCategoryMismatch},
		{"not components", "#/definitions/Pet", ErrMalformedReference},
		{"too short", "#/components/schemas", ErrMalformedReference},
		{"empty segment", "#/components/schemas//x", ErrMalformedReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Resolve(reg, Handle[Schema](tt.handle))
			require.ErrorIs(t, err, tt.want)
			var re *ReferenceError
			require.ErrorAs(t, err, &re)
			assert.NotEmpty(t, re.Handle)
		})
	}
}

func TestResolve_OtherCategories(t *testing.T) {
	t.Parallel()
	reg := testRegistry()
	p, err := Resolve(reg, Handle[Parameter]("#/components/parameters/Limit"))
	require.NoError(t, err)
	assert.Equal(t, "limit", p.Name)

	_, err = Resolve(reg, Handle[Parameter]("#/components/parameters/Limit/schema"))
	assert.ErrorIs(t, err, ErrDanglingReference)
}

func TestResolve_NilRegistryAndEmptyRef(t *testing.T) {
	t.Parallel()
	_, err := Resolve(nil, Handle[Schema]("#/components/schemas/Pet"))
	assert.ErrorIs(t, err, ErrDanglingReference)
	_, err = Resolve(NewRegistry(), SchemaRef{})
	assert.ErrorIs(t, err, ErrDanglingReference)
}

func TestHandleName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Pet", HandleName("#/components/schemas/Pet"))
	assert.Equal(t, "a/b", HandleName("#/components/schemas/a~1b"))
	assert.Equal(t, "Pet", HandleName("Pet"))
}

func TestArena_ReplaceKeepsOrder(t *testing.T) {
	t.Parallel()
	var a Arena[Schema]
	a.Add("B", Inline(str()))
	a.Add("A", Inline(str()))
	i := a.Add("B", Inline(&Schema{Kind: KindBoolean}))
	assert.Equal(t, 0, i)
	assert.Equal(t, []string{"B", "A"}, a.Names())
	name, ref := a.At(0)
	assert.Equal(t, "B", name)
	assert.Equal(t, KindBoolean, ref.Value.Kind)
	assert.Equal(t, 2, a.Len())
}
