package spec

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedReference = errors.New("malformed reference")
	ErrDanglingReference  = errors.New("dangling reference")
	ErrCyclicReference    = errors.New("cyclic reference")
	ErrCategoryMismatch   = errors.New("reference category mismatch")
)

// ReferenceError reports a handle that could not be resolved against the registry.
type ReferenceError struct {
	Handle string
	Detail string
	Err    error
}

func (e *ReferenceError) Error() string {
	msg := fmt.Sprintf("resolve %q: %v", e.Handle, e.Err)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ReferenceError) Unwrap() error { return e.Err }

// SplitHandle returns the decoded segments of a handle after its fixed
// "#/components" prefix, e.g. ["schemas", "Pet"].
func SplitHandle(handle string) ([]string, error) {
	parts := strings.Split(handle, "/")
	if len(parts) < 4 || parts[0] != "#" || parts[1] != "components" {
		return nil, &ReferenceError{Handle: handle, Err: ErrMalformedReference, Detail: "want #/components/<category>/<name>"}
	}
	segs := make([]string, 0, len(parts)-2)
	for _, p := range parts[2:] {
		if p == "" {
			return nil, &ReferenceError{Handle: handle, Err: ErrMalformedReference, Detail: "empty segment"}
		}
		segs = append(segs, unescapePointerToken(p))
	}
	return segs, nil
}

// Resolve returns the value behind ref. Inline values pass through unchanged; handles
// are looked up in reg, following alias chains until a value is reached.
func Resolve[T any](reg *Registry, ref Ref[T]) (*T, error) {
	var seen map[string]struct{}
	for ref.IsHandle() {
		if reg == nil {
			return nil, &ReferenceError{Handle: ref.Handle, Err: ErrDanglingReference, Detail: "no registry"}
		}
		if seen == nil {
			seen = make(map[string]struct{}, 2)
		}
		if _, loop := seen[ref.Handle]; loop {
			return nil, &ReferenceError{Handle: ref.Handle, Err: ErrCyclicReference}
		}
		seen[ref.Handle] = struct{}{}
		next, err := lookup[T](reg, ref.Handle)
		if err != nil {
			return nil, err
		}
		ref = next
	}
	if ref.Value == nil {
		return nil, &ReferenceError{Err: ErrDanglingReference, Detail: "empty reference"}
	}
	return ref.Value, nil
}

func lookup[T any](reg *Registry, handle string) (Ref[T], error) {
	segs, err := SplitHandle(handle)
	if err != nil {
		return Ref[T]{}, err
	}
	arena, err := arenaFor[T](reg, segs[0], handle)
	if err != nil {
		return Ref[T]{}, err
	}
	entry, ok := arena.Lookup(segs[1])
	if !ok {
		return Ref[T]{}, &ReferenceError{Handle: handle, Err: ErrDanglingReference, Detail: fmt.Sprintf("no %s entry named %q", segs[0], segs[1])}
	}
	if len(segs) == 2 {
		return entry, nil
	}
	sref, ok := any(entry).(SchemaRef)
	if !ok {
		return Ref[T]{}, &ReferenceError{Handle: handle, Err: ErrDanglingReference, Detail: "only schema handles address nested nodes"}
	}
	nested, err := descend(reg, sref, segs[2:], handle)
	if err != nil {
		return Ref[T]{}, err
	}
	return any(nested).(Ref[T]), nil
}

// descend walks properties/<name> and items segments below a schema entry.
func descend(reg *Registry, ref SchemaRef, segs []string, handle string) (SchemaRef, error) {
	for len(segs) > 0 {
		node, err := Resolve(reg, ref)
		if err != nil {
			return SchemaRef{}, err
		}
		switch {
		case segs[0] == "items" && node.Kind == KindArray && !node.Items.IsZero():
			ref = node.Items
			segs = segs[1:]
		case segs[0] == "properties" && len(segs) > 1:
			p, ok := node.Property(segs[1])
			if !ok {
				return SchemaRef{}, &ReferenceError{Handle: handle, Err: ErrDanglingReference, Detail: fmt.Sprintf("no property %q", segs[1])}
			}
			ref = p.Schema
			segs = segs[2:]
		default:
			return SchemaRef{}, &ReferenceError{Handle: handle, Err: ErrDanglingReference, Detail: fmt.Sprintf("cannot step into %q", segs[0])}
		}
	}
	return ref, nil
}

func arenaFor[T any](reg *Registry, category, handle string) (*Arena[T], error) {
	var arena any
	switch category {
	case CategorySchemas:
		arena = &reg.Schemas
	case CategoryParameters:
		arena = &reg.Parameters
	case CategoryRequestBodies:
		arena = &reg.RequestBodies
	case CategoryResponses:
		arena = &reg.Responses
	case CategoryHeaders:
		arena = &reg.Headers
	default:
		return nil, &ReferenceError{Handle: handle, Err: ErrDanglingReference, Detail: fmt.Sprintf("unsupported component category %q", category)}
	}
	typed, ok := arena.(*Arena[T])
	if !ok {
		var zero T
		return nil, &ReferenceError{Handle: handle, Err: ErrCategoryMismatch, Detail: fmt.Sprintf("%s does not hold %T values", category, zero)}
	}
	return typed, nil
}
