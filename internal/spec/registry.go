package spec

// Arena stores the named entries of one component category. Entries are addressed by
// index; the name index is only consulted when a handle is resolved. An entry is
// itself a Ref because a component may alias another component.
type Arena[T any] struct {
	names []string
	items []Ref[T]
	index map[string]int
}

// Add appends a named entry and returns its index. Re-adding a name replaces the
// entry in place so declared order is kept.
func (a *Arena[T]) Add(name string, entry Ref[T]) int {
	if a.index == nil {
		a.index = make(map[string]int)
	}
	if i, ok := a.index[name]; ok {
		a.items[i] = entry
		return i
	}
	a.names = append(a.names, name)
	a.items = append(a.items, entry)
	a.index[name] = len(a.items) - 1
	return len(a.items) - 1
}

func (a *Arena[T]) Lookup(name string) (Ref[T], bool) {
	i, ok := a.index[name]
	if !ok {
		return Ref[T]{}, false
	}
	return a.items[i], true
}

func (a *Arena[T]) At(i int) (string, Ref[T]) { return a.names[i], a.items[i] }

func (a *Arena[T]) Len() int { return len(a.items) }

// Names returns entry names in declared order.
func (a *Arena[T]) Names() []string { return append([]string(nil), a.names...) }

// Registry is the document's shared component store, keyed by category then name.
// It is filled while the document is normalized and read-only afterwards, so it is
// safe for concurrent readers.
type Registry struct {
	Schemas       Arena[Schema]
	Parameters    Arena[Parameter]
	RequestBodies Arena[RequestBody]
	Responses     Arena[Response]
	Headers       Arena[Header]
}

// Component categories as they appear in handles.
const (
	CategorySchemas       = "schemas"
	CategoryParameters    = "parameters"
	CategoryRequestBodies = "requestBodies"
	CategoryResponses     = "responses"
	CategoryHeaders       = "headers"
)

func NewRegistry() *Registry { return &Registry{} }
