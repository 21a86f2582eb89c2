package spec

// Internal Model (IM) definitions consumed by the renderer and emitters.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	PUT     HttpMethod = "put"
	POST    HttpMethod = "post"
	DELETE  HttpMethod = "delete"
	OPTIONS HttpMethod = "options"
	HEAD    HttpMethod = "head"
	PATCH   HttpMethod = "patch"
	TRACE   HttpMethod = "trace"
)

// Methods is the fixed verb iteration order used wherever operations are walked.
var Methods = []HttpMethod{GET, PUT, POST, DELETE, OPTIONS, HEAD, PATCH, TRACE}

// Document is the parsed input after normalization. It is built once per run and
// never mutated afterwards.
type Document struct {
	Info     Info
	BaseURL  string // servers[0].url, empty when the document declares no servers
	Tags     []Tag
	Paths    []PathItem // declared order
	Registry *Registry
}

type Info struct {
	Title          string
	Description    string
	Version        string
	TermsOfService string
	Contact        *Contact
	License        *License
}

type Contact struct {
	Name  string
	URL   string
	Email string
}

type License struct {
	Name string
	URL  string
}

// Tag is the display metadata declared in the top-level tags list.
type Tag struct {
	Name        string
	Description string
}

// TagInfo returns the declared metadata for name. Tags used by operations but never
// declared yield a Tag with only the name set.
func (d *Document) TagInfo(name string) Tag {
	for _, t := range d.Tags {
		if t.Name == name {
			return t
		}
	}
	return Tag{Name: name}
}

type PathItem struct {
	Path       string
	Operations map[HttpMethod]*Operation
}

type Operation struct {
	ID          string // operationId; may be empty, emitters reject that
	Method      HttpMethod
	Path        string
	Summary     string
	Description string
	Deprecated  bool
	Tags        []string
	Parameters  []Ref[Parameter] // path-level merged with operation-level, source order
	RequestBody *Ref[RequestBody]
	Responses   []ResponseEntry // declared order
	Pointer     string          // JSON pointer of the operation inside the input document
}

type ResponseEntry struct {
	Status   string // 200, 4XX, default
	Response Ref[Response]
}

type ParameterLocation string

const (
	InQuery  ParameterLocation = "query"
	InHeader ParameterLocation = "header"
	InPath   ParameterLocation = "path"
	InCookie ParameterLocation = "cookie"
)

type Parameter struct {
	Name        string
	In          ParameterLocation
	Description string
	Required    bool // always true for path parameters
	Schema      SchemaRef
}

type RequestBody struct {
	Description string
	Required    bool
	Content     []Media
}

type Response struct {
	Description string
	Content     []Media
}

type Header struct {
	Description string
	Required    bool
	Schema      SchemaRef
}

type Media struct {
	Mime   string
	Schema SchemaRef
}

// JSONMedia picks the media entry rendered for a body: application/json first,
// then any +json or */json variant, in declared order.
func JSONMedia(content []Media) (Media, bool) {
	for _, m := range content {
		if m.Mime == "application/json" {
			return m, true
		}
	}
	for _, m := range content {
		if isJSONMime(m.Mime) {
			return m, true
		}
	}
	return Media{}, false
}
