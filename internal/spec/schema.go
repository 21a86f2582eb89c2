package spec

import "strings"

// Kind tags a Schema with exactly one variant.
type Kind int

const (
	KindUnsupported Kind = iota
	KindEnumerable
	KindArray
	KindObject
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindEnumerable:
		return "enumerable"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindBoolean:
		return "boolean"
	default:
		return "unsupported"
	}
}

// Primitive kinds carried by enumerable schemas.
const (
	PrimitiveInteger = "integer"
	PrimitiveNumber  = "number"
	PrimitiveString  = "string"
)

// Schema is one node of the type graph.
//
//   - KindEnumerable: Primitive is integer, number or string; Enum optionally lists
//     the literal values in declared order.
//   - KindArray: Items is the element schema.
//   - KindObject: Properties in declared order.
//   - KindBoolean: no attributes.
//   - KindUnsupported: Primitive holds the raw type token that matched nothing.
type Schema struct {
	Kind        Kind
	Primitive   string
	Enum        []any
	Items       SchemaRef
	Properties  []Property
	Description string
	Deprecated  bool
}

type Property struct {
	Name     string
	Required bool
	Schema   SchemaRef
}

// Property returns the named property of an object schema.
func (s *Schema) Property(name string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// Ref is either a handle into the Registry or an inline value, never both.
type Ref[T any] struct {
	Handle string
	Value  *T
}

// SchemaRef is the schema instantiation used throughout the model.
type SchemaRef = Ref[Schema]

// IsHandle reports whether r points into the registry.
func (r Ref[T]) IsHandle() bool { return r.Handle != "" }

// IsZero reports whether r carries neither a handle nor a value.
func (r Ref[T]) IsZero() bool { return r.Handle == "" && r.Value == nil }

// Inline wraps v as an inline reference.
func Inline[T any](v *T) Ref[T] { return Ref[T]{Value: v} }

// Handle wraps a registry path as a reference.
func Handle[T any](path string) Ref[T] { return Ref[T]{Handle: path} }

// HandleName returns the final path segment of a handle, which is the name a
// separately declared type is emitted under.
func HandleName(handle string) string {
	if i := strings.LastIndexByte(handle, '/'); i >= 0 {
		return unescapePointerToken(handle[i+1:])
	}
	return unescapePointerToken(handle)
}
