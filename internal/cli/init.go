package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

const defaultConfigName = "swagger2ts.yaml"

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample swagger2ts configuration file",
		Long:  "Scaffold a commented swagger2ts configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", defaultConfigName, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx
	logger := newLogger(stderr, cfg.Verbose)

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultConfigName
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", absPath))
		}
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot create parent directory: %v", err))
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"

	// Atomic write via temp + rename
	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return newUsageError(fmt.Sprintf("init: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return newUsageError(fmt.Sprintf("init: cannot place file at %s: %v", absPath, err))
	}
	logger.Debug("sample config written", "path", absPath, "bytes", len(content))
	fmt.Fprintf(stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# swagger2ts configuration (YAML)
# All fields are optional. Command-line flags override config values.
# Keys may also be written in kebab-case or snake_case.

# Path or URL to the OpenAPI 3 document (http/https or local file).
# input: ./openapi.yaml

# Output directory for <tag>.ts, models.ts and README.md.
# out: ./api

# Base URL for every request. Defaults to the document's first server.
# baseUrl: https://api.example.com

# Only emit clients for these tags (comma-separated or list).
# includeTags: [pets, store]

# Skip clients for these tags (comma-separated or list).
# excludeTags: [internal]

# Only include operations using these HTTP methods.
# methods: [get, post]

# Only include paths matching one of these regular expressions.
# paths: ["^/pets"]

# Untagged operations: strict fails the run, lenient skips them.
# mode: strict

# When a request body argument is required: declared follows the body's
# required flag, presence makes every declared body required.
# bodyRequired: declared

# Layout of model declarations: inline or block.
# modelLayout: inline

# Emit non-object named schemas as type aliases.
# aliases: false

# Preview planned outputs without writing files.
# dryRun: false

# Fail when the output directory is not up to date.
# check: false

# Overwrite a non-empty output directory.
# force: false

# Report format: text or json.
# format: text

# Enable verbose logging.
# verbose: false
`
