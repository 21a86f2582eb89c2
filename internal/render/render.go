// Package render turns schema nodes into TypeScript type expressions.
package render

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/swagger2ts/internal/spec"
)

var (
	ErrUnsupportedKind    = errors.New("unsupported schema kind")
	ErrUnsupportedLiteral = errors.New("unsupported enum literal")
)

// Error reports a schema node that has no TypeScript rendering.
type Error struct {
	Kind      spec.Kind
	Primitive string // raw type token, empty when the schema declared none
	Err       error
}

func (e *Error) Error() string {
	if e.Primitive == "" {
		return fmt.Sprintf("%v: %s schema without a usable type", e.Err, e.Kind)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Primitive)
}

func (e *Error) Unwrap() error { return e.Err }

// Layout selects how the outermost object of an expansion is laid out.
type Layout string

const (
	LayoutInline Layout = "inline" // { a: string; b?: number; }
	LayoutBlock  Layout = "block"  // one property per line, two-space indent
)

// Renderer renders schema references against one registry. It holds no mutable
// state and may be shared between goroutines.
type Renderer struct {
	reg       *spec.Registry
	namespace string
	layout    Layout
}

type Option func(*Renderer)

// WithNamespace qualifies handle renderings as <ns>.<Name>. Empty means unqualified.
func WithNamespace(ns string) Option { return func(r *Renderer) { r.namespace = ns } }

func WithLayout(l Layout) Option { return func(r *Renderer) { r.layout = l } }

func New(reg *spec.Registry, opts ...Option) *Renderer {
	r := &Renderer{reg: reg, layout: LayoutInline}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the rendered name of a handle's target.
func (r *Renderer) Name(handle string) string {
	name := Identifier(spec.HandleName(handle))
	if r.namespace == "" {
		return name
	}
	return r.namespace + "." + name
}

// Render returns the type expression for ref. A handle always renders as the name
// of its target and is never expanded, which bounds recursion over cyclic schemas.
func (r *Renderer) Render(ref spec.SchemaRef) (string, error) {
	return r.render(ref, false)
}

// Expand renders the body of ref's target even when ref is a handle. Layout applies
// to the outermost object only.
func (r *Renderer) Expand(ref spec.SchemaRef) (string, error) {
	s, err := spec.Resolve(r.reg, ref)
	if err != nil {
		return "", err
	}
	return r.body(s, r.layout == LayoutBlock)
}

func (r *Renderer) render(ref spec.SchemaRef, block bool) (string, error) {
	if ref.IsHandle() {
		if _, err := spec.Resolve(r.reg, ref); err != nil {
			return "", err
		}
		return r.Name(ref.Handle), nil
	}
	if ref.Value == nil {
		return "", &spec.ReferenceError{Err: spec.ErrDanglingReference, Detail: "empty schema"}
	}
	return r.body(ref.Value, block)
}

func (r *Renderer) body(s *spec.Schema, block bool) (string, error) {
	switch s.Kind {
	case spec.KindEnumerable:
		if len(s.Enum) > 0 {
			return literalUnion(s.Enum)
		}
		switch s.Primitive {
		case spec.PrimitiveString:
			return "string", nil
		case spec.PrimitiveInteger, spec.PrimitiveNumber:
			return "number", nil
		}
		return "", &Error{Kind: s.Kind, Primitive: s.Primitive, Err: ErrUnsupportedKind}
	case spec.KindArray:
		if s.Items.IsZero() {
			return "", &Error{Kind: s.Kind, Err: ErrUnsupportedKind}
		}
		inner, err := r.render(s.Items, false)
		if err != nil {
			return "", err
		}
		return "Array<" + inner + ">", nil
	case spec.KindObject:
		return r.object(s, block)
	case spec.KindBoolean:
		return "boolean", nil
	default:
		return "", &Error{Kind: s.Kind, Primitive: s.Primitive, Err: ErrUnsupportedKind}
	}
}

func (r *Renderer) object(s *spec.Schema, block bool) (string, error) {
	if len(s.Properties) == 0 {
		return "{ }", nil
	}
	var b strings.Builder
	b.WriteString("{")
	for _, p := range s.Properties {
		t, err := r.render(p.Schema, false)
		if err != nil {
			return "", fmt.Errorf("property %s: %w", p.Name, err)
		}
		if block {
			b.WriteString("\n  ")
		} else {
			b.WriteByte(' ')
		}
		b.WriteString(PropertyKey(p.Name))
		if !p.Required {
			b.WriteByte('?')
		}
		b.WriteString(": ")
		b.WriteString(t)
		b.WriteByte(';')
	}
	if block {
		b.WriteString("\n}")
	} else {
		b.WriteString(" }")
	}
	return b.String(), nil
}

// literalUnion joins enum values in declared order: strings quoted, numbers in
// shortest form, booleans and null bare.
func literalUnion(values []any) (string, error) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		lit, err := literal(v)
		if err != nil {
			return "", err
		}
		parts = append(parts, lit)
	}
	return strings.Join(parts, " | "), nil
}

func literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return StringLiteral(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float64:
		return formatNumber(x)
	case float32:
		return formatNumber(float64(x))
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedLiteral, v)
}

func formatNumber(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedLiteral, f)
	}
	if math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}
