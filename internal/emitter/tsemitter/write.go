package tsemitter

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// plan compares every rendered file with what is on disk, in path order.
func plan(outDir string, files map[string][]byte, tags map[string]string) ([]PlannedFile, error) {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("resolve out dir: %w", err)
	}
	planned := make([]PlannedFile, 0, len(files))
	for _, rel := range sortedKeys(files) {
		content := files[rel]
		status := StatusCreate
		existing, err := os.ReadFile(filepath.Join(abs, rel))
		switch {
		case err == nil && bytes.Equal(existing, content):
			status = StatusUnchanged
		case err == nil:
			status = StatusUpdate
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read existing %s: %w", rel, err)
		}
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(content), Mode: 0o644, Status: status, Tag: tags[rel]})
	}
	return planned, nil
}

// commit stages every changed file next to its target, then renames them into
// place. A failure while staging removes what was staged and leaves the
// directory as it was.
func commit(outDir string, files map[string][]byte, planned []PlannedFile, force bool) (int, error) {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return 0, fmt.Errorf("resolve out dir: %w", err)
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return 0, fmt.Errorf("%w: %s", ErrOutputNotEmpty, abs)
		}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	type staged struct{ tmp, dst, rel string }
	var batch []staged
	cleanup := func() {
		for _, s := range batch {
			_ = os.Remove(s.tmp)
		}
	}
	for _, pf := range planned {
		if pf.Status == StatusUnchanged {
			continue
		}
		dst := filepath.Join(abs, pf.RelPath)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			cleanup()
			return 0, fmt.Errorf("mkdir: %w", err)
		}
		tmp := dst + ".tmp"
		if err := os.WriteFile(tmp, files[pf.RelPath], pf.Mode); err != nil {
			_ = os.Remove(tmp)
			cleanup()
			return 0, fmt.Errorf("write temp %s: %w", pf.RelPath, err)
		}
		batch = append(batch, staged{tmp: tmp, dst: dst, rel: pf.RelPath})
	}
	for i, s := range batch {
		if err := os.Rename(s.tmp, s.dst); err != nil {
			batch = batch[i:]
			cleanup()
			return i, fmt.Errorf("rename %s: %w", s.rel, err)
		}
	}
	return len(batch), nil
}
