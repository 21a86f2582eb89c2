package cli

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchemaJSON []byte

var configSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(configSchemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("config.schema.json")
})

// configFields maps normalized keys to their canonical camelCase spelling.
var configFields = map[string]string{
	"input":        "input",
	"out":          "out",
	"baseurl":      "baseUrl",
	"includetags":  "includeTags",
	"excludetags":  "excludeTags",
	"methods":      "methods",
	"paths":        "paths",
	"mode":         "mode",
	"bodyrequired": "bodyRequired",
	"modellayout":  "modelLayout",
	"format":       "format",
	"aliases":      "aliases",
	"dryrun":       "dryRun",
	"check":        "check",
	"force":        "force",
	"verbose":      "verbose",
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	canonical := make(map[string]any, len(raw))
	for key, value := range raw {
		field, ok := configFields[normalizeKey(key)]
		if !ok {
			return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
		}
		if _, dup := canonical[field]; dup {
			return newUsageError(fmt.Sprintf("config file %q: field %q set more than once", path, field))
		}
		canonical[field] = value
	}
	if err := validateConfig(canonical); err != nil {
		return newUsageError(fmt.Sprintf("config file %q: %v", path, err))
	}

	for field, value := range canonical {
		if err := setConfigField(cfg, field, value); err != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", field, err))
		}
	}
	return nil
}

// validateConfig checks value types and enums against the embedded schema.
func validateConfig(fields map[string]any) error {
	schema, err := configSchema()
	if err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	err = schema.Validate(inst)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	printer := message.NewPrinter(language.English)
	msgs := rootCauses(ve, printer)
	sort.Strings(msgs)
	return errors.New(strings.Join(msgs, "; "))
}

func rootCauses(ve *jsonschema.ValidationError, p *message.Printer) []string {
	if len(ve.Causes) == 0 {
		field := strings.Join(ve.InstanceLocation, ".")
		if field == "" {
			return []string{ve.ErrorKind.LocalizedString(p)}
		}
		return []string{fmt.Sprintf("%s: %s", field, ve.ErrorKind.LocalizedString(p))}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, rootCauses(c, p)...)
	}
	return out
}

func setConfigField(cfg *GenerateConfig, field string, value any) error {
	switch field {
	case "input", "out", "baseUrl", "mode", "bodyRequired", "modelLayout", "format":
		str, err := valueAsString(value)
		if err != nil {
			return err
		}
		switch field {
		case "input":
			cfg.Input = str
		case "out":
			cfg.Out = str
		case "baseUrl":
			cfg.BaseURL = str
		case "mode":
			cfg.Mode = str
		case "bodyRequired":
			cfg.BodyRequired = str
		case "modelLayout":
			cfg.ModelLayout = str
		case "format":
			cfg.Format = str
		}
	case "includeTags", "excludeTags", "methods", "paths":
		list, err := valueAsStringSlice(value)
		if err != nil {
			return err
		}
		switch field {
		case "includeTags":
			cfg.IncludeTags = sanitizeList(list)
		case "excludeTags":
			cfg.ExcludeTags = sanitizeList(list)
		case "methods":
			cfg.Methods = sanitizeList(list)
		case "paths":
			cfg.Paths = sanitizeList(list)
		}
	case "aliases", "dryRun", "check", "force", "verbose":
		val, err := valueAsBool(value)
		if err != nil {
			return err
		}
		switch field {
		case "aliases":
			cfg.Aliases = val
		case "dryRun":
			cfg.DryRun = val
		case "check":
			cfg.Check = val
		case "force":
			cfg.Force = val
		case "verbose":
			cfg.Verbose = val
		}
	default:
		return fmt.Errorf("unknown field")
	}
	return nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

// valueAsStringSlice accepts a list or a comma-separated string.
func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
