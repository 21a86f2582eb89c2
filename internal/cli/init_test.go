package cli

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

func TestInit_WritesSampleConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("init execute: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "swagger2ts configuration") {
		t.Fatalf("unexpected config contents: %s", s)
	}
}

func TestInit_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected error for existing file without --force")
	}
	if _, ok := err.(usageError); !ok {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}
}

func TestInit_SampleConfigIsValid(t *testing.T) {
	t.Parallel()
	keyLine := regexp.MustCompile(`^# ([a-zA-Z]+): `)
	var lines []string
	for _, line := range strings.Split(sampleConfigYAML, "\n") {
		if keyLine.MatchString(line) {
			lines = append(lines, strings.TrimPrefix(line, "# "))
		}
	}
	if len(lines) != len(configFields) {
		t.Fatalf("sample documents %d fields, want %d", len(lines), len(configFields))
	}
	path := filepath.Join(t.TempDir(), "sample.yaml")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := defaultGenerateConfig()
	if err := applyGenerateConfigFromFile(&cfg, path); err != nil {
		t.Fatalf("sample config rejected: %v", err)
	}
	if cfg.Input != "./openapi.yaml" || cfg.BaseURL != "https://api.example.com" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if want := []string{"^/pets"}; !equalStringSlices(cfg.Paths, want) {
		t.Fatalf("paths: want %v got %v", want, cfg.Paths)
	}
}
