package tsemitter

import "github.com/mark3labs/swagger2ts/internal/spec"

func emitReadme(info spec.Info) ([]byte, error) {
	return execute("README.md.tmpl", info)
}
