package tsemitter

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mark3labs/swagger2ts/internal/render"
	"github.com/mark3labs/swagger2ts/internal/spec"
)

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

type clientEmitter struct {
	doc      *spec.Document
	baseURL  string
	policy   spec.Policy
	renderer *render.Renderer
	logger   *slog.Logger
}

type clientData struct {
	Doc       string
	ClassName string
	Methods   []string
}

// ClientClassName returns the class generated for tag.
func ClientClassName(tag string) string {
	return render.ClassName(tag) + "ApiClient"
}

func (c *clientEmitter) emit(grp *spec.OperationGroup) ([]byte, error) {
	info := c.doc.TagInfo(grp.Tag)
	data := clientData{
		Doc:       jsdoc("", info.Name, info.Description),
		ClassName: ClientClassName(grp.Tag),
	}
	seen := make(map[string]string)
	for _, e := range grp.Entries() {
		op := e.Operation
		fail := func(err error) error {
			return &spec.OperationError{Method: op.Method, Path: e.Path, Pointer: op.Pointer, Err: err}
		}
		if strings.TrimSpace(op.ID) == "" {
			return nil, fail(ErrMissingOperationID)
		}
		name := render.Identifier(op.ID)
		if prev, dup := seen[name]; dup {
			return nil, fail(fmt.Errorf("%w: %q already used by %s", ErrDuplicateOperationID, op.ID, prev))
		}
		seen[name] = strings.ToUpper(string(op.Method)) + " " + e.Path
		m, err := c.method(name, e.Path, op)
		if err != nil {
			return nil, fail(err)
		}
		data.Methods = append(data.Methods, m)
	}
	return execute("client.ts.tmpl", data)
}

// argument is one parameter of a generated method.
type argument struct {
	ident    string
	key      string // wire name
	in       spec.ParameterLocation
	typ      string
	required bool
}

func (a argument) String() string {
	if a.required {
		return a.ident + ": " + a.typ
	}
	return a.ident + "?: " + a.typ
}

// arguments returns the body then parameters in source order, plus implicit string
// arguments for path placeholders no parameter declares.
func (c *clientEmitter) arguments(path string, op *spec.Operation) ([]argument, error) {
	var args []argument
	taken := map[string]bool{}
	claim := func(raw string, in spec.ParameterLocation) string {
		ident := render.Identifier(raw)
		if taken[ident] && in != "" {
			ident = render.Identifier(raw + "_" + string(in))
		}
		for base, i := ident, 2; taken[ident]; i++ {
			ident = fmt.Sprintf("%s%d", base, i)
		}
		taken[ident] = true
		return ident
	}

	if op.RequestBody != nil {
		rb, err := spec.Resolve(c.doc.Registry, *op.RequestBody)
		if err != nil {
			return nil, fmt.Errorf("request body: %w", err)
		}
		typ, err := c.bodyType(rb)
		if err != nil {
			return nil, fmt.Errorf("request body: %w", err)
		}
		args = append(args, argument{ident: claim("body", ""), key: "body", typ: typ, required: c.policy.BodyRequired(rb)})
	}

	declaredPath := map[string]bool{}
	for i, ref := range op.Parameters {
		p, err := spec.Resolve(c.doc.Registry, ref)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		if p.In == spec.InCookie {
			c.logger.Debug("skipping cookie parameter", "operation", op.ID, "name", p.Name)
			continue
		}
		typ := "string"
		if !p.Schema.IsZero() {
			if typ, err = c.renderer.Render(p.Schema); err != nil {
				return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
			}
		}
		if p.In == spec.InPath {
			declaredPath[p.Name] = true
		}
		args = append(args, argument{
			ident:    claim(p.Name, p.In),
			key:      p.Name,
			in:       p.In,
			typ:      typ,
			required: p.Required || p.In == spec.InPath,
		})
	}
	for _, m := range placeholderRe.FindAllStringSubmatch(path, -1) {
		if declaredPath[m[1]] {
			continue
		}
		declaredPath[m[1]] = true
		c.logger.Debug("undeclared path parameter", "operation", op.ID, "name", m[1])
		args = append(args, argument{ident: claim(m[1], spec.InPath), key: m[1], in: spec.InPath, typ: "string", required: true})
	}

	// Required before optional, each group keeps the order above.
	ordered := make([]argument, 0, len(args))
	for _, a := range args {
		if a.required {
			ordered = append(ordered, a)
		}
	}
	for _, a := range args {
		if !a.required {
			ordered = append(ordered, a)
		}
	}
	return ordered, nil
}

func (c *clientEmitter) bodyType(rb *spec.RequestBody) (string, error) {
	media, ok := spec.JSONMedia(rb.Content)
	if !ok {
		for _, m := range rb.Content {
			if !m.Schema.IsZero() {
				media, ok = m, true
				break
			}
		}
	}
	if !ok || media.Schema.IsZero() {
		return "unknown", nil
	}
	return c.renderer.Render(media.Schema)
}

// returnType joins the JSON schema of every response in declared order, dropping
// duplicates. Responses without JSON content contribute void.
func (c *clientEmitter) returnType(op *spec.Operation) (string, error) {
	var parts []string
	seen := map[string]bool{}
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			parts = append(parts, t)
		}
	}
	for _, r := range op.Responses {
		resp, err := spec.Resolve(c.doc.Registry, r.Response)
		if err != nil {
			return "", fmt.Errorf("response %s: %w", r.Status, err)
		}
		media, ok := spec.JSONMedia(resp.Content)
		if !ok || media.Schema.IsZero() {
			add("void")
			continue
		}
		t, err := c.renderer.Render(media.Schema)
		if err != nil {
			return "", fmt.Errorf("response %s: %w", r.Status, err)
		}
		add(t)
	}
	if len(parts) == 0 {
		return "void", nil
	}
	return strings.Join(parts, " | "), nil
}

func (c *clientEmitter) method(name, path string, op *spec.Operation) (string, error) {
	args, err := c.arguments(path, op)
	if err != nil {
		return "", err
	}
	ret, err := c.returnType(op)
	if err != nil {
		return "", err
	}

	pathIdents := map[string]string{}
	var sig []string
	var query, headers []argument
	for _, a := range args {
		sig = append(sig, a.String())
		switch a.in {
		case spec.InPath:
			pathIdents[a.key] = a.ident
		case spec.InQuery:
			query = append(query, a)
		case spec.InHeader:
			headers = append(headers, a)
		}
	}

	var b strings.Builder
	var deprecated string
	if op.Deprecated {
		deprecated = "@deprecated"
	}
	b.WriteString(jsdoc("  ", op.Summary, op.Description, deprecated))
	fmt.Fprintf(&b, "  public static async %s(%s): Promise<%s> {\n", name, strings.Join(sig, ", "), ret)
	fmt.Fprintf(&b, "    const response = await axios.request<%s>({\n", ret)
	fmt.Fprintf(&b, "      method: %q,\n", string(op.Method))
	fmt.Fprintf(&b, "      url: `%s`,\n", urlTemplate(c.baseURL, path, pathIdents))
	if op.RequestBody != nil {
		b.WriteString("      data: body,\n")
	}
	writeFields(&b, "params", query)
	writeFields(&b, "headers", headers)
	b.WriteString("    });\n")
	b.WriteString("    return response.data;\n")
	b.WriteString("  }")
	return b.String(), nil
}

func writeFields(b *strings.Builder, field string, args []argument) {
	if len(args) == 0 {
		return
	}
	fmt.Fprintf(b, "      %s: {\n", field)
	for _, a := range args {
		fmt.Fprintf(b, "        %s: %s,\n", render.PropertyKey(a.key), a.ident)
	}
	b.WriteString("      },\n")
}

// urlTemplate builds the body of a template literal: base URL plus path with every
// {name} placeholder replaced by ${ident}.
func urlTemplate(baseURL, path string, idents map[string]string) string {
	var b strings.Builder
	b.WriteString(escapeTemplate(baseURL))
	last := 0
	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(path, -1) {
		b.WriteString(escapeTemplate(path[last:loc[0]]))
		key := path[loc[2]:loc[3]]
		ident, ok := idents[key]
		if !ok {
			ident = render.Identifier(key)
		}
		b.WriteString("${" + ident + "}")
		last = loc[1]
	}
	b.WriteString(escapeTemplate(path[last:]))
	return b.String()
}

var templateEscaper = strings.NewReplacer("\\", "\\\\", "`", "\\`", "${", "\\${")

func escapeTemplate(s string) string { return templateEscaper.Replace(s) }

// jsdoc renders a comment block from non-empty paragraphs, separated by an empty
// comment line. It returns "" when every paragraph is empty.
func jsdoc(indent string, paragraphs ...string) string {
	var kept []string
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, strings.ReplaceAll(p, "*/", "*\\/"))
		}
	}
	if len(kept) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(indent + "/**\n")
	for i, p := range kept {
		if i > 0 {
			b.WriteString(indent + " *\n")
		}
		for _, line := range strings.Split(p, "\n") {
			line = strings.TrimRight(line, " \t\r")
			if line == "" {
				b.WriteString(indent + " *\n")
				continue
			}
			b.WriteString(indent + " * " + line + "\n")
		}
	}
	b.WriteString(indent + " */\n")
	return b.String()
}
