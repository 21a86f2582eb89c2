// Package tsemitter renders a Document into TypeScript client modules, a models
// module and a README, then writes them all at once.
package tsemitter

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/swagger2ts/internal/render"
	"github.com/mark3labs/swagger2ts/internal/spec"
)

var (
	ErrMissingBaseURL       = errors.New("no base URL: document declares no servers and none was given")
	ErrMissingOperationID   = errors.New("operation has no operationId")
	ErrDuplicateOperationID = errors.New("duplicate operationId")
	ErrFileCollision        = errors.New("output file name collision")
	ErrModelNameCollision   = errors.New("model name collision")
	ErrOutputNotEmpty       = errors.New("output directory is not empty (use --force to overwrite)")
	ErrOutOfDate            = errors.New("generated output is out of date")
)

const (
	ModelsFile = "models.ts"
	ReadmeFile = "README.md"
	// ModelsNamespace qualifies model references inside client modules.
	ModelsNamespace = "Models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("tsemitter").ParseFS(templateFS, "templates/*.tmpl"))

// Options controls how the TypeScript emitter renders and writes its output.
type Options struct {
	OutDir  string // required; target directory
	BaseURL string // overrides servers[0].url when set
	Policy  spec.Policy
	Layout  render.Layout // layout of model declaration bodies
	Aliases bool          // emit non-object named schemas as type aliases
	Force   bool          // write into a non-empty directory
	DryRun  bool          // don't write, only plan
	Check   bool          // don't write, fail when output would change
	Logger  *slog.Logger
}

// FileStatus says what committing a planned file would do.
type FileStatus string

const (
	StatusCreate    FileStatus = "create"
	StatusUpdate    FileStatus = "update"
	StatusUnchanged FileStatus = "unchanged"
)

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
	Status  FileStatus
	Tag     string // empty for models and README
}

// Result returns the planned files and what was written.
type Result struct {
	BaseURL string
	Planned []PlannedFile
	Written int
}

// Emit renders every artifact in memory and, unless DryRun or Check is set, writes
// them to OutDir. Nothing is written when any artifact fails to render.
func Emit(ctx context.Context, doc *spec.Document, table *spec.OperationTable, opts Options) (*Result, error) {
	if doc == nil {
		return nil, fmt.Errorf("tsemitter: nil document")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("tsemitter: OutDir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = doc.BaseURL
	}
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if table == nil {
		table = &spec.OperationTable{}
	}

	files, tags, err := renderAll(ctx, doc, table, baseURL, opts, logger)
	if err != nil {
		return nil, err
	}

	planned, err := plan(opts.OutDir, files, tags)
	if err != nil {
		return nil, err
	}
	res := &Result{BaseURL: baseURL, Planned: planned}

	switch {
	case opts.DryRun:
		return res, nil
	case opts.Check:
		var stale []string
		for _, pf := range planned {
			if pf.Status != StatusUnchanged {
				stale = append(stale, pf.RelPath)
			}
		}
		if len(stale) > 0 {
			return res, fmt.Errorf("%w: %s", ErrOutOfDate, strings.Join(stale, ", "))
		}
		return res, nil
	}

	n, err := commit(opts.OutDir, files, planned, opts.Force)
	if err != nil {
		return nil, err
	}
	res.Written = n
	logger.Debug("wrote output", "dir", opts.OutDir, "files", n)
	return res, nil
}

// renderAll renders client modules concurrently, then models and README. It returns
// file contents keyed by relative path and the tag owning each client file.
func renderAll(ctx context.Context, doc *spec.Document, table *spec.OperationTable, baseURL string, opts Options, logger *slog.Logger) (map[string][]byte, map[string]string, error) {
	groups := table.Groups()
	names, err := clientFileNames(groups)
	if err != nil {
		return nil, nil, err
	}

	rendered := make([][]byte, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	for i, grp := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c := &clientEmitter{
				doc:      doc,
				baseURL:  baseURL,
				policy:   opts.Policy,
				renderer: render.New(doc.Registry, render.WithNamespace(ModelsNamespace)),
				logger:   logger.With("tag", grp.Tag),
			}
			b, err := c.emit(grp)
			if err != nil {
				return fmt.Errorf("tag %q: %w", grp.Tag, err)
			}
			rendered[i] = b
			logger.Debug("rendered client", "tag", grp.Tag, "file", names[i], "operations", grp.Len())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	files := make(map[string][]byte, len(groups)+2)
	tags := make(map[string]string, len(groups))
	for i, grp := range groups {
		files[names[i]] = rendered[i]
		tags[names[i]] = grp.Tag
	}
	models, err := emitModels(doc.Registry, opts.Layout, opts.Aliases)
	if err != nil {
		return nil, nil, err
	}
	files[ModelsFile] = models
	readme, err := emitReadme(doc.Info)
	if err != nil {
		return nil, nil, err
	}
	files[ReadmeFile] = readme
	return files, tags, nil
}

// clientFileNames maps each group to "<tag>.ts", rejecting names that collide with
// each other or with the fixed artifacts.
func clientFileNames(groups []*spec.OperationGroup) ([]string, error) {
	taken := map[string]string{
		strings.ToLower(ModelsFile): "models",
		strings.ToLower(ReadmeFile): "README",
	}
	out := make([]string, len(groups))
	for i, grp := range groups {
		name := tagFileName(grp.Tag) + ".ts"
		key := strings.ToLower(name)
		if owner, dup := taken[key]; dup {
			return nil, fmt.Errorf("%w: tag %q and %s both map to %s", ErrFileCollision, grp.Tag, owner, name)
		}
		taken[key] = fmt.Sprintf("tag %q", grp.Tag)
		out[i] = name
	}
	return out, nil
}

// tagFileName keeps [A-Za-z0-9._-] and replaces everything else with '-'.
func tagFileName(tag string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(tag) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name := strings.TrimLeft(b.String(), ".")
	if name == "" {
		return "_"
	}
	return name
}

func execute(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("exec %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func sortedKeys(files map[string][]byte) []string {
	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)
	return rels
}
