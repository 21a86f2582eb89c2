package spec

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Build converts a loaded source into the Document consumed by the renderer and
// emitters. Paths, operations, responses, media types, properties and component
// entries keep their declared order, and every local component reference becomes a
// registry handle rather than a copy of its target.
func Build(src *Source) (*Document, error) {
	if src == nil || src.Doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	b := &builder{
		ix:       src.Index,
		location: src.Location,
		reg:      NewRegistry(),
		active:   map[*openapi3.Schema]struct{}{},
	}
	doc := src.Doc
	out := &Document{
		Info:     toInfo(doc.Info),
		BaseURL:  baseURL(doc.Servers),
		Registry: b.reg,
	}
	for _, t := range doc.Tags {
		if t == nil || safeStr(t.Name) == "" {
			continue
		}
		out.Tags = append(out.Tags, Tag{Name: safeStr(t.Name), Description: safeStr(t.Description)})
	}
	if err := b.components(doc.Components); err != nil {
		return nil, err
	}
	for _, p := range orderedKeys(b.ix, "/paths", doc.Paths) {
		item := doc.Paths[p]
		if item == nil {
			continue
		}
		pi, err := b.pathItem(p, item)
		if err != nil {
			return nil, err
		}
		out.Paths = append(out.Paths, pi)
	}
	return out, nil
}

type builder struct {
	ix       *KeyIndex
	location string
	reg      *Registry
	// schemas being converted on the current stack; only inlined external
	// references can revisit one.
	active map[*openapi3.Schema]struct{}
}

func (b *builder) errorf(pointer string, cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &SpecError{
		Code:        ValidationError,
		Message:     msg,
		Location:    locate(b.location, pointer, b.ix),
		JSONPointer: "#" + pointer,
		Cause:       cause,
	}
}

func (b *builder) components(c *openapi3.Components) error {
	if c == nil {
		return nil
	}
	for _, name := range orderedKeys(b.ix, "/components/schemas", c.Schemas) {
		ref, err := b.schemaRef(c.Schemas[name], JoinPointer("/components/schemas", name))
		if err != nil {
			return err
		}
		b.reg.Schemas.Add(name, ref)
	}
	for _, name := range orderedKeys(b.ix, "/components/parameters", c.Parameters) {
		ref, err := b.parameterRef(c.Parameters[name], JoinPointer("/components/parameters", name))
		if err != nil {
			return err
		}
		b.reg.Parameters.Add(name, ref)
	}
	for _, name := range orderedKeys(b.ix, "/components/requestBodies", c.RequestBodies) {
		ref, err := b.requestBodyRef(c.RequestBodies[name], JoinPointer("/components/requestBodies", name))
		if err != nil {
			return err
		}
		b.reg.RequestBodies.Add(name, ref)
	}
	for _, name := range orderedKeys(b.ix, "/components/responses", c.Responses) {
		ref, err := b.responseRef(c.Responses[name], JoinPointer("/components/responses", name))
		if err != nil {
			return err
		}
		b.reg.Responses.Add(name, ref)
	}
	for _, name := range orderedKeys(b.ix, "/components/headers", c.Headers) {
		ref, err := b.headerRef(c.Headers[name], JoinPointer("/components/headers", name))
		if err != nil {
			return err
		}
		b.reg.Headers.Add(name, ref)
	}
	return nil
}

func (b *builder) pathItem(path string, item *openapi3.PathItem) (PathItem, error) {
	ptr := JoinPointer("/paths", path)
	pi := PathItem{Path: path, Operations: map[HttpMethod]*Operation{}}

	shared := make([]Ref[Parameter], 0, len(item.Parameters))
	sharedKeys := make([]string, 0, len(item.Parameters))
	for i, pr := range item.Parameters {
		ref, err := b.parameterRef(pr, fmt.Sprintf("%s/parameters/%d", ptr, i))
		if err != nil {
			return PathItem{}, err
		}
		shared = append(shared, ref)
		sharedKeys = append(sharedKeys, paramKeyOf(pr))
	}

	for _, m := range Methods {
		o := operationFor(item, m)
		if o == nil {
			continue
		}
		op, err := b.operation(path, m, o, JoinPointer(ptr, string(m)), shared, sharedKeys)
		if err != nil {
			return PathItem{}, err
		}
		pi.Operations[m] = op
	}
	return pi, nil
}

func operationFor(item *openapi3.PathItem, m HttpMethod) *openapi3.Operation {
	switch m {
	case GET:
		return item.Get
	case PUT:
		return item.Put
	case POST:
		return item.Post
	case DELETE:
		return item.Delete
	case OPTIONS:
		return item.Options
	case HEAD:
		return item.Head
	case PATCH:
		return item.Patch
	case TRACE:
		return item.Trace
	}
	return nil
}

func (b *builder) operation(path string, m HttpMethod, o *openapi3.Operation, ptr string, shared []Ref[Parameter], sharedKeys []string) (*Operation, error) {
	op := &Operation{
		ID:          safeStr(o.OperationID),
		Method:      m,
		Path:        path,
		Summary:     safeStr(o.Summary),
		Description: safeStr(o.Description),
		Deprecated:  o.Deprecated,
		Pointer:     "#" + ptr,
	}
	seen := make(map[string]struct{}, len(o.Tags))
	for _, t := range o.Tags {
		t = safeStr(t)
		if _, dup := seen[t]; dup || t == "" {
			continue
		}
		seen[t] = struct{}{}
		op.Tags = append(op.Tags, t)
	}

	// Path-level parameters first; an operation parameter with the same in+name
	// replaces the shared one in place.
	params := append([]Ref[Parameter](nil), shared...)
	keys := append([]string(nil), sharedKeys...)
	for i, pr := range o.Parameters {
		ref, err := b.parameterRef(pr, fmt.Sprintf("%s/parameters/%d", ptr, i))
		if err != nil {
			return nil, err
		}
		key := paramKeyOf(pr)
		replaced := false
		for j := range keys {
			if key != "" && keys[j] == key {
				params[j] = ref
				replaced = true
				break
			}
		}
		if !replaced {
			params = append(params, ref)
			keys = append(keys, key)
		}
	}
	op.Parameters = params

	if o.RequestBody != nil {
		rb, err := b.requestBodyRef(o.RequestBody, ptr+"/requestBody")
		if err != nil {
			return nil, err
		}
		op.RequestBody = &rb
	}

	for _, code := range orderedKeys(b.ix, ptr+"/responses", o.Responses) {
		rr := o.Responses[code]
		if rr == nil {
			continue
		}
		ref, err := b.responseRef(rr, JoinPointer(ptr+"/responses", code))
		if err != nil {
			return nil, err
		}
		op.Responses = append(op.Responses, ResponseEntry{Status: code, Response: ref})
	}
	return op, nil
}

// componentHandle returns ref when it addresses a local component of category.
func componentHandle(ref, category string) (string, bool) {
	if strings.HasPrefix(ref, "#/components/"+category+"/") {
		return ref, true
	}
	return "", false
}

func (b *builder) schemaRef(sr *openapi3.SchemaRef, ptr string) (SchemaRef, error) {
	if sr == nil {
		return SchemaRef{}, nil
	}
	if h, ok := componentHandle(sr.Ref, CategorySchemas); ok {
		return Handle[Schema](h), nil
	}
	if sr.Value == nil {
		return SchemaRef{}, b.errorf(ptr, ErrDanglingReference, "schema %q has no value", sr.Ref)
	}
	s, err := b.schema(sr.Value, ptr)
	if err != nil {
		return SchemaRef{}, err
	}
	return Inline(s), nil
}

func (b *builder) schema(v *openapi3.Schema, ptr string) (*Schema, error) {
	if _, loop := b.active[v]; loop {
		return nil, b.errorf(ptr, ErrCyclicReference, "schema refers back to itself outside components")
	}
	b.active[v] = struct{}{}
	defer delete(b.active, v)

	out := &Schema{Description: safeStr(v.Description), Deprecated: v.Deprecated}
	switch typ := inferType(v); typ {
	case PrimitiveInteger, PrimitiveNumber, PrimitiveString:
		out.Kind = KindEnumerable
		out.Primitive = typ
		out.Enum = append([]any(nil), v.Enum...)
	case "boolean":
		out.Kind = KindBoolean
	case "array":
		if v.Items == nil {
			return nil, b.errorf(ptr, nil, "array schema without items")
		}
		items, err := b.schemaRef(v.Items, ptr+"/items")
		if err != nil {
			return nil, err
		}
		out.Kind = KindArray
		out.Items = items
	case "object":
		out.Kind = KindObject
		required := make(map[string]struct{}, len(v.Required))
		for _, r := range v.Required {
			required[r] = struct{}{}
		}
		for _, name := range orderedKeys(b.ix, ptr+"/properties", v.Properties) {
			ps, err := b.schemaRef(v.Properties[name], JoinPointer(ptr+"/properties", name))
			if err != nil {
				return nil, err
			}
			if ps.IsZero() {
				continue
			}
			_, req := required[name]
			out.Properties = append(out.Properties, Property{Name: name, Required: req, Schema: ps})
		}
	default:
		out.Kind = KindUnsupported
		out.Primitive = typ
	}
	return out, nil
}

// inferType returns the declared type, or a type implied by the keywords present
// when the schema declares none. Composition keywords are reported by name.
func inferType(v *openapi3.Schema) string {
	if t := safeStr(v.Type); t != "" {
		return t
	}
	switch {
	case len(v.Properties) > 0:
		return "object"
	case v.Items != nil:
		return "array"
	case len(v.Enum) > 0:
		return enumType(v.Enum)
	case len(v.AllOf) > 0:
		return "allOf"
	case len(v.OneOf) > 0:
		return "oneOf"
	case len(v.AnyOf) > 0:
		return "anyOf"
	}
	return ""
}

func enumType(values []any) string {
	typ := ""
	for _, e := range values {
		var t string
		switch e.(type) {
		case string:
			t = PrimitiveString
		case float64, float32, int, int64:
			t = PrimitiveNumber
		default:
			return PrimitiveString
		}
		if typ != "" && typ != t {
			return PrimitiveString
		}
		typ = t
	}
	return typ
}

func paramKeyOf(pr *openapi3.ParameterRef) string {
	if pr == nil || pr.Value == nil {
		return ""
	}
	return paramKey(pr.Value.In, pr.Value.Name)
}

func paramKey(in, name string) string { return in + ":" + name }

func (b *builder) parameterRef(pr *openapi3.ParameterRef, ptr string) (Ref[Parameter], error) {
	if pr == nil {
		return Ref[Parameter]{}, b.errorf(ptr, ErrDanglingReference, "empty parameter")
	}
	if h, ok := componentHandle(pr.Ref, CategoryParameters); ok {
		return Handle[Parameter](h), nil
	}
	if pr.Value == nil {
		return Ref[Parameter]{}, b.errorf(ptr, ErrDanglingReference, "parameter %q has no value", pr.Ref)
	}
	p := pr.Value
	out := &Parameter{
		Name:        safeStr(p.Name),
		In:          ParameterLocation(strings.ToLower(safeStr(p.In))),
		Description: safeStr(p.Description),
		Required:    p.Required,
	}
	if out.In == InPath {
		out.Required = true
	}
	switch {
	case p.Schema != nil:
		s, err := b.schemaRef(p.Schema, ptr+"/schema")
		if err != nil {
			return Ref[Parameter]{}, err
		}
		out.Schema = s
	case len(p.Content) > 0:
		content, err := b.media(p.Content, ptr+"/content")
		if err != nil {
			return Ref[Parameter]{}, err
		}
		if m, ok := JSONMedia(content); ok {
			out.Schema = m.Schema
		}
	}
	if out.Schema.IsZero() {
		// Parameters travel as text when nothing narrower is declared.
		out.Schema = Inline(&Schema{Kind: KindEnumerable, Primitive: PrimitiveString})
	}
	return Inline(out), nil
}

func (b *builder) requestBodyRef(rr *openapi3.RequestBodyRef, ptr string) (Ref[RequestBody], error) {
	if rr == nil {
		return Ref[RequestBody]{}, b.errorf(ptr, ErrDanglingReference, "empty request body")
	}
	if h, ok := componentHandle(rr.Ref, CategoryRequestBodies); ok {
		return Handle[RequestBody](h), nil
	}
	if rr.Value == nil {
		return Ref[RequestBody]{}, b.errorf(ptr, ErrDanglingReference, "request body %q has no value", rr.Ref)
	}
	content, err := b.media(rr.Value.Content, ptr+"/content")
	if err != nil {
		return Ref[RequestBody]{}, err
	}
	return Inline(&RequestBody{
		Description: safeStr(rr.Value.Description),
		Required:    rr.Value.Required,
		Content:     content,
	}), nil
}

func (b *builder) responseRef(rr *openapi3.ResponseRef, ptr string) (Ref[Response], error) {
	if rr == nil {
		return Ref[Response]{}, b.errorf(ptr, ErrDanglingReference, "empty response")
	}
	if h, ok := componentHandle(rr.Ref, CategoryResponses); ok {
		return Handle[Response](h), nil
	}
	if rr.Value == nil {
		return Ref[Response]{}, b.errorf(ptr, ErrDanglingReference, "response %q has no value", rr.Ref)
	}
	content, err := b.media(rr.Value.Content, ptr+"/content")
	if err != nil {
		return Ref[Response]{}, err
	}
	desc := ""
	if rr.Value.Description != nil {
		desc = safeStr(*rr.Value.Description)
	}
	return Inline(&Response{Description: desc, Content: content}), nil
}

func (b *builder) headerRef(hr *openapi3.HeaderRef, ptr string) (Ref[Header], error) {
	if hr == nil {
		return Ref[Header]{}, nil
	}
	if h, ok := componentHandle(hr.Ref, CategoryHeaders); ok {
		return Handle[Header](h), nil
	}
	if hr.Value == nil {
		return Ref[Header]{}, b.errorf(ptr, ErrDanglingReference, "header %q has no value", hr.Ref)
	}
	out := &Header{Description: safeStr(hr.Value.Description), Required: hr.Value.Required}
	if hr.Value.Schema != nil {
		s, err := b.schemaRef(hr.Value.Schema, ptr+"/schema")
		if err != nil {
			return Ref[Header]{}, err
		}
		out.Schema = s
	}
	return Inline(out), nil
}

func (b *builder) media(content openapi3.Content, ptr string) ([]Media, error) {
	if len(content) == 0 {
		return nil, nil
	}
	out := make([]Media, 0, len(content))
	for _, mime := range orderedKeys(b.ix, ptr, content) {
		mt := content[mime]
		if mt == nil {
			continue
		}
		s, err := b.schemaRef(mt.Schema, JoinPointer(ptr, mime, "schema"))
		if err != nil {
			return nil, err
		}
		out = append(out, Media{Mime: mime, Schema: s})
	}
	return out, nil
}

// isJSONMime matches structured-syntax JSON media types such as
// application/problem+json and any */json subtype.
func isJSONMime(mime string) bool {
	mt := strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return strings.HasSuffix(mt, "/json") || strings.HasSuffix(mt, "+json")
}

func toInfo(info *openapi3.Info) Info {
	if info == nil {
		return Info{}
	}
	out := Info{
		Title:          safeStr(info.Title),
		Description:    safeStr(info.Description),
		Version:        safeStr(info.Version),
		TermsOfService: safeStr(info.TermsOfService),
	}
	if c := info.Contact; c != nil {
		out.Contact = &Contact{Name: safeStr(c.Name), URL: safeStr(c.URL), Email: safeStr(c.Email)}
	}
	if l := info.License; l != nil {
		out.License = &License{Name: safeStr(l.Name), URL: safeStr(l.URL)}
	}
	return out
}

// baseURL returns the first server URL with its variables replaced by their defaults.
func baseURL(servers openapi3.Servers) string {
	if len(servers) == 0 || servers[0] == nil {
		return ""
	}
	s := servers[0]
	u := safeStr(s.URL)
	for name, v := range s.Variables {
		if v == nil {
			continue
		}
		u = strings.ReplaceAll(u, "{"+name+"}", v.Default)
	}
	return u
}

func safeStr(s string) string { return strings.TrimSpace(s) }
