package spec

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyIndex records the declared key order and source position of every mapping in a
// YAML or JSON document. Nodes are addressed by JSON pointer without the leading "#":
// "" is the root, "/paths/~1pets/get" an operation.
type KeyIndex struct {
	keys map[string][]string
	pos  map[string]Position
}

// Position is a 1-based line and column in the source document.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Column) }

// NewKeyIndex walks root and indexes every mapping and sequence below it.
func NewKeyIndex(root *yaml.Node) *KeyIndex {
	ix := &KeyIndex{keys: map[string][]string{}, pos: map[string]Position{}}
	if root == nil {
		return ix
	}
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	ix.walk("", root)
	return ix
}

func (ix *KeyIndex) walk(ptr string, n *yaml.Node) {
	ix.pos[ptr] = Position{Line: n.Line, Column: n.Column}
	switch n.Kind {
	case yaml.MappingNode:
		keys := make([]string, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Value == "<<" {
				continue
			}
			keys = append(keys, k.Value)
			child := ptr + "/" + EscapePointerToken(k.Value)
			ix.walk(child, v)
			// Keys locate better than their values in error messages.
			ix.pos[child] = Position{Line: k.Line, Column: k.Column}
		}
		ix.keys[ptr] = keys
	case yaml.SequenceNode:
		for i, v := range n.Content {
			ix.walk(ptr+"/"+strconv.Itoa(i), v)
		}
	}
}

// Keys returns the keys of the mapping at pointer in declared order.
func (ix *KeyIndex) Keys(pointer string) []string {
	if ix == nil {
		return nil
	}
	return ix.keys[strings.TrimPrefix(pointer, "#")]
}

// Position returns where the node at pointer starts in the source document.
func (ix *KeyIndex) Position(pointer string) (Position, bool) {
	if ix == nil {
		return Position{}, false
	}
	p, ok := ix.pos[strings.TrimPrefix(pointer, "#")]
	return p, ok
}

// Locate returns the deepest indexed ancestor position of pointer, so an error raised
// for a synthesized child still points near its source.
func (ix *KeyIndex) Locate(pointer string) (Position, bool) {
	ptr := strings.TrimPrefix(pointer, "#")
	for {
		if p, ok := ix.Position(ptr); ok && p.Line > 0 {
			return p, true
		}
		i := strings.LastIndexByte(ptr, '/')
		if i < 0 {
			return Position{}, false
		}
		ptr = ptr[:i]
	}
}

// orderedKeys returns the keys of m in the order they were declared under pointer.
// Keys the index does not know, such as those pulled in through external references,
// follow in lexical order.
func orderedKeys[V any](ix *KeyIndex, pointer string, m map[string]V) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, k := range ix.Keys(pointer) {
		if _, ok := m[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	var rest []string
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

var (
	pointerEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// EscapePointerToken encodes a single reference token per RFC 6901.
func EscapePointerToken(s string) string { return pointerEscaper.Replace(s) }

func unescapePointerToken(s string) string { return pointerUnescaper.Replace(s) }

// JoinPointer appends escaped tokens to a base pointer.
func JoinPointer(base string, tokens ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, t := range tokens {
		b.WriteByte('/')
		b.WriteString(EscapePointerToken(t))
	}
	return b.String()
}
