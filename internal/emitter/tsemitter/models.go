package tsemitter

import (
	"fmt"

	"github.com/mark3labs/swagger2ts/internal/render"
	"github.com/mark3labs/swagger2ts/internal/spec"
)

type modelsData struct {
	Declarations []string
}

// emitModels declares every named object schema as an interface, in declared order.
// Other named schemas become type aliases when aliases is set and are skipped
// otherwise.
func emitModels(reg *spec.Registry, layout render.Layout, aliases bool) ([]byte, error) {
	if reg == nil {
		reg = spec.NewRegistry()
	}
	// Every named schema claims its identifier, declared or not.
	owners := make(map[string]string, reg.Schemas.Len())
	for i := 0; i < reg.Schemas.Len(); i++ {
		name, _ := reg.Schemas.At(i)
		ident := render.Identifier(name)
		if prev, dup := owners[ident]; dup {
			return nil, fmt.Errorf("%w: schemas %q and %q both map to %s", ErrModelNameCollision, prev, name, ident)
		}
		owners[ident] = name
	}

	r := render.New(reg, render.WithLayout(layout))
	var data modelsData
	for i := 0; i < reg.Schemas.Len(); i++ {
		name, ref := reg.Schemas.At(i)
		s, err := spec.Resolve(reg, ref)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		if s.Kind != spec.KindObject && !aliases {
			continue
		}
		body, err := r.Expand(ref)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		var deprecated string
		if s.Deprecated {
			deprecated = "@deprecated"
		}
		decl := jsdoc("", s.Description, deprecated)
		if s.Kind == spec.KindObject {
			decl += "export interface " + render.Identifier(name) + " " + body
		} else {
			decl += "export type " + render.Identifier(name) + " = " + body + ";"
		}
		data.Declarations = append(data.Declarations, decl)
	}
	return execute("models.ts.tmpl", data)
}
