package render

import (
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// reserved lists words that cannot name a TypeScript binding or declaration.
var reserved = map[string]struct{}{
	"break": {}, "case": {}, "catch": {}, "class": {}, "const": {}, "continue": {},
	"debugger": {}, "default": {}, "delete": {}, "do": {}, "else": {}, "enum": {},
	"export": {}, "extends": {}, "false": {}, "finally": {}, "for": {}, "function": {},
	"if": {}, "import": {}, "in": {}, "instanceof": {}, "new": {}, "null": {},
	"return": {}, "super": {}, "switch": {}, "this": {}, "throw": {}, "true": {},
	"try": {}, "typeof": {}, "var": {}, "void": {}, "while": {}, "with": {},
	"implements": {}, "interface": {}, "let": {}, "package": {}, "private": {},
	"protected": {}, "public": {}, "static": {}, "yield": {}, "await": {},
	"any": {}, "boolean": {}, "number": {}, "string": {}, "symbol": {}, "never": {},
	"unknown": {}, "object": {}, "undefined": {},
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == '$'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

// Identifier turns a raw name into a TypeScript identifier: characters outside
// [A-Za-z0-9_$] become underscores, a leading digit gets an underscore prefix and
// reserved words get an underscore suffix.
func Identifier(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "_"
	}
	var b strings.Builder
	for _, r := range name {
		if isIdentPart(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	if _, ok := reserved[out]; ok {
		out += "_"
	}
	return out
}

// IsIdentifier reports whether s can be used unquoted as a property name.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) {
			return false
		}
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}

// PropertyKey returns name unchanged when it is a valid identifier and as a string
// literal otherwise.
func PropertyKey(name string) string {
	if IsIdentifier(name) {
		return name
	}
	return StringLiteral(name)
}

// StringLiteral renders s as a double-quoted literal. JSON string syntax is a subset
// of TypeScript's.
func StringLiteral(s string) string {
	b, err := json.Marshal(s, jsontext.AllowInvalidUTF8(true))
	if err != nil {
		return `""`
	}
	return string(b)
}

// ClassName builds a PascalCase identifier from a display name such as a tag:
// "pet store" and "pet-store" both become "PetStore", "userAccounts" becomes
// "UserAccounts".
func ClassName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return !isIdentPart(r) || r == '_' || r == '$' })
	if len(words) == 0 {
		return Identifier(name)
	}
	// A Caser keeps state between calls, so each call gets its own.
	titler := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, w := range words {
		b.WriteString(titler.String(w))
	}
	return Identifier(b.String())
}
