package buildpipeline

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// DirWriter writes artifacts below Root, which stands for the build root.
// Files are replaced atomically and files whose content did not change are
// left alone so their timestamps survive.
type DirWriter struct {
	Root string
}

// WriteArtifact implements modulemap.ArtifactWriter.
func (w DirWriter) WriteArtifact(rel string, content []byte) error {
	_, err := w.WriteFile(rel, content)
	return err
}

// WriteFile writes content to rel and reports whether the file changed.
func (w DirWriter) WriteFile(rel string, content []byte) (bool, error) {
	if err := checkArtifactPath(rel); err != nil {
		return false, err
	}
	p := filepath.Join(w.Root, filepath.FromSlash(rel))

	// #nosec G304 -- path is built from the output root and a validated artifact path
	if old, err := os.ReadFile(p); err == nil && bytes.Equal(old, content) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return false, fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(p), ".modulemap-*")
	if err != nil {
		return false, err
	}
	tmp := f.Name()
	// no-op after a successful rename
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return false, err
	}
	if err := f.Close(); err != nil {
		return false, err
	}
	// #nosec G302 -- generated modulemaps are read by compilers run as other users
	if err := os.Chmod(tmp, 0o644); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, p); err != nil {
		return false, err
	}
	return true, nil
}

func checkArtifactPath(rel string) error {
	switch {
	case rel == "" || rel == ".":
		return fmt.Errorf("empty artifact path")
	case strings.HasPrefix(rel, "/"):
		return fmt.Errorf("artifact path %q is absolute", rel)
	case path.Clean(rel) != rel:
		return fmt.Errorf("artifact path %q is not clean", rel)
	case rel == ".." || strings.HasPrefix(rel, "../"):
		return fmt.Errorf("artifact path %q escapes the output dir", rel)
	}
	return nil
}

// MemoryWriter keeps artifacts in memory. It is safe for concurrent use.
type MemoryWriter struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryWriter creates an empty MemoryWriter.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{files: make(map[string][]byte)}
}

// WriteArtifact implements modulemap.ArtifactWriter. Writing the same path
// twice is an error.
func (w *MemoryWriter) WriteArtifact(rel string, content []byte) error {
	if err := checkArtifactPath(rel); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[rel]; ok {
		return fmt.Errorf("artifact %s written twice", rel)
	}
	w.files[rel] = slices.Clone(content)
	return nil
}

// File returns the content stored for rel.
func (w *MemoryWriter) File(rel string) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	content, ok := w.files[rel]
	return content, ok
}

// Len returns the number of stored artifacts.
func (w *MemoryWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files)
}
