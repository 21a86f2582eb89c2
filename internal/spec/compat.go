package spec

import (
	"gopkg.in/yaml.v3"
)

// rewriteLegacyRequired moves per-property `required: true|false` flags, which older
// documents carry inside each property schema, into the enclosing object's `required`
// list so kin-openapi can decode the schema. It reports whether anything changed.
// Node positions are left intact, so an index built afterwards still maps to the
// original source lines.
func rewriteLegacyRequired(n *yaml.Node) bool {
	if n == nil {
		return false
	}
	changed := false
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			if rewriteLegacyRequired(c) {
				changed = true
			}
		}
	case yaml.MappingNode:
		if props := mappingValue(n, "properties"); props != nil && props.Kind == yaml.MappingNode {
			if liftRequiredFlags(n, props) {
				changed = true
			}
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i].Value, n.Content[i+1]
			if skipLiteralKey(key) {
				continue
			}
			// Property names are user data and never skipped.
			if key == "properties" && val.Kind == yaml.MappingNode {
				for j := 1; j < len(val.Content); j += 2 {
					if rewriteLegacyRequired(val.Content[j]) {
						changed = true
					}
				}
				continue
			}
			if rewriteLegacyRequired(val) {
				changed = true
			}
		}
	}
	return changed
}

// liftRequiredFlags handles one object schema: parent owns props.
func liftRequiredFlags(parent, props *yaml.Node) bool {
	var lifted []string
	changed := false
	for i := 0; i+1 < len(props.Content); i += 2 {
		name, prop := props.Content[i].Value, props.Content[i+1]
		if prop.Kind != yaml.MappingNode {
			continue
		}
		j := mappingIndex(prop, "required")
		if j < 0 {
			continue
		}
		flag := prop.Content[j+1]
		if flag.Kind != yaml.ScalarNode || flag.ShortTag() != "!!bool" {
			continue
		}
		if flag.Value == "true" {
			lifted = append(lifted, name)
		}
		prop.Content = append(prop.Content[:j], prop.Content[j+2:]...)
		changed = true
	}
	if len(lifted) == 0 {
		return changed
	}
	list := mappingValue(parent, "required")
	if list == nil || list.Kind != yaml.SequenceNode {
		list = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		setMappingValue(parent, "required", list)
	}
	have := make(map[string]struct{}, len(list.Content))
	for _, c := range list.Content {
		have[c.Value] = struct{}{}
	}
	for _, name := range lifted {
		if _, ok := have[name]; ok {
			continue
		}
		list.Content = append(list.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name})
	}
	return true
}

// skipLiteralKey reports keys whose values are data rather than schema structure.
func skipLiteralKey(k string) bool {
	switch k {
	case "example", "examples", "default", "enum", "const":
		return true
	}
	return len(k) > 2 && k[:2] == "x-"
}

func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if i := mappingIndex(m, key); i >= 0 {
		return m.Content[i+1]
	}
	return nil
}

func setMappingValue(m *yaml.Node, key string, v *yaml.Node) {
	if i := mappingIndex(m, key); i >= 0 {
		m.Content[i+1] = v
		return
	}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)
}

// detectSpecVersion returns 3 for OpenAPI v3 and 2 for Swagger v2.
func detectSpecVersion(root *yaml.Node) (int, error) {
	if root != nil && root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root == nil || root.Kind != yaml.MappingNode {
		return 0, errNotAMapping
	}
	if v := mappingValue(root, "openapi"); v != nil && hasVersionPrefix(v.Value, "3.") {
		return 3, nil
	}
	if v := mappingValue(root, "swagger"); v != nil && hasVersionPrefix(v.Value, "2.") {
		return 2, nil
	}
	return 0, errUnknownVersion
}
