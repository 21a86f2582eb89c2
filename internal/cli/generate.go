package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mark3labs/swagger2ts/internal/emitter/tsemitter"
	"github.com/mark3labs/swagger2ts/internal/render"
	genspec "github.com/mark3labs/swagger2ts/internal/spec"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input        string
	Out          string
	BaseURL      string
	IncludeTags  []string
	ExcludeTags  []string
	Methods      []string
	Paths        []string
	Mode         string
	BodyRequired string
	ModelLayout  string
	Aliases      bool
	ConfigPath   string
	DryRun       bool
	Check        bool
	Force        bool
	Format       string
	Verbose      bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{
		Out:          "api",
		Mode:         string(genspec.ModeStrict),
		BodyRequired: string(genspec.BodyDeclared),
		ModelLayout:  string(render.LayoutInline),
		Format:       "text",
	}
}

var generateRunner = runGenerate

// stdout receives reports; stderr receives logs.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a TypeScript API client from an OpenAPI 3 document",
		Long: "Generate one axios client class per tag, a models module and a README from an " +
			"OpenAPI 3 document. Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  swagger2ts generate --input openapi.yaml --out ./src/api
  swagger2ts generate --input https://example.com/openapi.json --base-url http://localhost:8080 --dry-run
  swagger2ts --config swagger2ts.yaml generate --check`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or http(s) URL of the OpenAPI 3 document")
	flags.String("out", "", "Output directory (default \"api\")")
	flags.String("base-url", "", "Base URL for requests; overrides servers[0].url")
	flags.StringSlice("include-tags", nil, "Only emit clients for these tags")
	flags.StringSlice("exclude-tags", nil, "Skip clients for these tags")
	flags.StringSlice("methods", nil, "Only include operations using these HTTP methods")
	flags.StringSlice("paths", nil, "Only include paths matching one of these regular expressions")
	flags.String("mode", "", "Untagged operations: strict fails, lenient skips (default strict)")
	flags.String("body-required", "", "Request body requiredness: declared|presence (default declared)")
	flags.String("model-layout", "", "Model declaration layout: inline|block (default inline)")
	flags.Bool("aliases", false, "Emit non-object named schemas as type aliases")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("check", false, "Fail when the output directory is not up to date; writes nothing")
	flags.Bool("force", false, "Write into a non-empty output directory")
	flags.String("format", "", "Report format: text|json (default text)")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"input":         &cfg.Input,
		"out":           &cfg.Out,
		"base-url":      &cfg.BaseURL,
		"mode":          &cfg.Mode,
		"body-required": &cfg.BodyRequired,
		"model-layout":  &cfg.ModelLayout,
		"format":        &cfg.Format,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	lists := map[string]*[]string{
		"include-tags": &cfg.IncludeTags,
		"exclude-tags": &cfg.ExcludeTags,
		"methods":      &cfg.Methods,
		"paths":        &cfg.Paths,
	}
	for name, dst := range lists {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*dst = sanitizeList(value)
	}

	bools := map[string]*bool{
		"aliases": &cfg.Aliases,
		"dry-run": &cfg.DryRun,
		"check":   &cfg.Check,
		"force":   &cfg.Force,
		"verbose": &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	if c.Out == "" {
		c.Out = "api"
	}
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.BodyRequired = strings.ToLower(strings.TrimSpace(c.BodyRequired))
	c.ModelLayout = strings.ToLower(strings.TrimSpace(c.ModelLayout))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	c.IncludeTags = sanitizeList(c.IncludeTags)
	c.ExcludeTags = sanitizeList(c.ExcludeTags)
	c.Paths = sanitizeList(c.Paths)
	methods := make([]string, 0, len(c.Methods))
	for _, m := range c.Methods {
		methods = append(methods, strings.ToLower(m))
	}
	c.Methods = sanitizeList(methods)
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}
	if err := oneOf("--mode", &c.Mode, string(genspec.ModeStrict), string(genspec.ModeLenient)); err != nil {
		return err
	}
	if err := oneOf("--body-required", &c.BodyRequired, string(genspec.BodyDeclared), string(genspec.BodyPresence)); err != nil {
		return err
	}
	if err := oneOf("--model-layout", &c.ModelLayout, string(render.LayoutInline), string(render.LayoutBlock)); err != nil {
		return err
	}
	if err := oneOf("--format", &c.Format, "text", "json"); err != nil {
		return err
	}

	known := make(map[string]struct{}, len(genspec.Methods))
	names := make([]string, 0, len(genspec.Methods))
	for _, m := range genspec.Methods {
		known[string(m)] = struct{}{}
		names = append(names, string(m))
	}
	for _, m := range c.Methods {
		if _, ok := known[m]; !ok {
			return newUsageError(fmt.Sprintf("generate: unsupported method %q (allowed: %s)", m, strings.Join(names, ", ")))
		}
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	if c.DryRun && c.Check {
		return newUsageError("generate: --dry-run and --check cannot be combined")
	}

	return nil
}

// oneOf defaults an empty value to the first allowed one.
func oneOf(flag string, value *string, allowed ...string) error {
	if *value == "" {
		*value = allowed[0]
		return nil
	}
	for _, a := range allowed {
		if *value == a {
			return nil
		}
	}
	return newUsageError(fmt.Sprintf("generate: unsupported %s %q (allowed: %s)", flag, *value, strings.Join(allowed, ", ")))
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	logger := newLogger(stderr, cfg.Verbose)

	// 1) Load and normalize the document
	src, err := genspec.Load(ctx, cfg.Input, genspec.WithLogger(logger))
	if err != nil {
		return specUsageError(err)
	}
	doc, err := genspec.Build(src)
	if err != nil {
		return specUsageError(err)
	}
	logger.Debug("document loaded", "title", doc.Info.Title, "paths", len(doc.Paths), "schemas", doc.Registry.Schemas.Len())

	// 2) Group operations by tag
	policy := genspec.Policy{
		Mode:            genspec.Mode(cfg.Mode),
		BodyRequirement: genspec.BodyRequirement(cfg.BodyRequired),
	}
	methods := make([]genspec.HttpMethod, 0, len(cfg.Methods))
	for _, m := range cfg.Methods {
		methods = append(methods, genspec.HttpMethod(m))
	}
	table, err := genspec.Group(doc, policy,
		genspec.WithIncludeTags(cfg.IncludeTags),
		genspec.WithExcludeTags(cfg.ExcludeTags),
		genspec.WithMethods(methods),
		genspec.WithPathPatterns(cfg.Paths),
		genspec.WithGroupLogger(logger),
	)
	if err != nil {
		return specUsageError(err)
	}
	if table.Len() == 0 {
		logger.Warn("no operations matched; only models and README will be emitted")
	}

	// 3) Emit
	absOut := cfg.Out
	if ap, err := filepath.Abs(cfg.Out); err == nil {
		absOut = ap
	}
	res, err := tsemitter.Emit(ctx, doc, table, tsemitter.Options{
		OutDir:  cfg.Out,
		BaseURL: cfg.BaseURL,
		Policy:  policy,
		Layout:  render.Layout(cfg.ModelLayout),
		Aliases: cfg.Aliases,
		Force:   cfg.Force,
		DryRun:  cfg.DryRun,
		Check:   cfg.Check,
		Logger:  logger,
	})
	if err != nil {
		if errors.Is(err, tsemitter.ErrOutOfDate) && res != nil {
			if perr := printReport(stdout, cfg, absOut, res); perr != nil {
				return perr
			}
			return err
		}
		if errors.Is(err, tsemitter.ErrMissingBaseURL) {
			return newUsageError(fmt.Sprintf("generate: %v\nHint: pass --base-url or declare servers in the document.", err))
		}
		var opErr *genspec.OperationError
		if errors.As(err, &opErr) {
			return specUsageError(err)
		}
		if errors.Is(err, tsemitter.ErrModelNameCollision) {
			return usageError{msg: fmt.Sprintf("spec: %v\nHint: rename one of the schemas.", err), cause: err}
		}
		return wrapOutputError(err, absOut)
	}
	return printReport(stdout, cfg, absOut, res)
}

type report struct {
	OutDir  string       `json:"outDir"`
	BaseURL string       `json:"baseUrl"`
	Action  string       `json:"action"`
	Written int          `json:"written"`
	Files   []reportFile `json:"files"`
}

type reportFile struct {
	Path   string `json:"path"`
	Size   int    `json:"size"`
	Status string `json:"status"`
	Tag    string `json:"tag,omitempty"`
}

func printReport(w io.Writer, cfg *GenerateConfig, outDir string, res *tsemitter.Result) error {
	action := "write"
	switch {
	case cfg.DryRun:
		action = "dry-run"
	case cfg.Check:
		action = "check"
	}

	if cfg.Format == "json" {
		r := report{OutDir: outDir, BaseURL: res.BaseURL, Action: action, Written: res.Written, Files: []reportFile{}}
		for _, pf := range res.Planned {
			r.Files = append(r.Files, reportFile{Path: pf.RelPath, Size: pf.Size, Status: string(pf.Status), Tag: pf.Tag})
		}
		if err := json.MarshalWrite(w, r, jsontext.WithIndent("  ")); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n")
		return err
	}

	p := message.NewPrinter(language.English)
	total := 0
	for _, pf := range res.Planned {
		total += pf.Size
	}
	switch action {
	case "dry-run":
		p.Fprintf(w, "Planned writes to %s (%d files, %d bytes):\n", outDir, len(res.Planned), total)
		for _, pf := range res.Planned {
			p.Fprintf(w, "- %s (%d bytes, %s)\n", pf.RelPath, pf.Size, pf.Status)
		}
	case "check":
		stale := 0
		for _, pf := range res.Planned {
			if pf.Status != tsemitter.StatusUnchanged {
				stale++
				p.Fprintf(w, "- %s (%s)\n", pf.RelPath, pf.Status)
			}
		}
		if stale == 0 {
			p.Fprintf(w, "%s is up to date (%d files)\n", outDir, len(res.Planned))
		} else {
			p.Fprintf(w, "%s is out of date (%d of %d files)\n", outDir, stale, len(res.Planned))
		}
	default:
		p.Fprintf(w, "Wrote %d of %d files to %s (%d bytes)\n", res.Written, len(res.Planned), outDir, total)
	}
	return nil
}

func wrapOutputError(err error, outDir string) error {
	if errors.Is(err, tsemitter.ErrOutputNotEmpty) || errors.Is(err, tsemitter.ErrFileCollision) {
		return newUsageError(fmt.Sprintf("output error for %s: %v\nHint: choose a different --out or use --force when appropriate.", outDir, err))
	}
	// Provide clearer guidance for common FS failures.
	lower := strings.ToLower(err.Error())
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") {
		return newUsageError(fmt.Sprintf("output error for %s: %v\nHint: choose a different --out or use --force when appropriate.", outDir, err))
	}
	return err
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}
