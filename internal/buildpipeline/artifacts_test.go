package buildpipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirWriter(t *testing.T) {
	root := t.TempDir()
	w := DirWriter{Root: root}

	changed, err := w.WriteFile("out/pkg/lib.modulemap", []byte("module lib {\n    export *\n}\n"))
	if err != nil || !changed {
		t.Fatalf("first write = %v, %v; want changed", changed, err)
	}
	changed, err = w.WriteFile("out/pkg/lib.modulemap", []byte("module lib {\n    export *\n}\n"))
	if err != nil || changed {
		t.Fatalf("second write = %v, %v; want unchanged", changed, err)
	}
	if err := w.WriteArtifact("out/pkg/lib.modulemap", []byte("module other {\n    export *\n}\n")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "out", "pkg", "lib.modulemap"))
	if err != nil || string(got) != "module other {\n    export *\n}\n" {
		t.Fatalf("content = %q, %v", got, err)
	}

	entries, err := os.ReadDir(filepath.Join(root, "out", "pkg"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("temp files left behind: %v, %v", entries, err)
	}
}

func TestArtifactPathChecks(t *testing.T) {
	w := DirWriter{Root: t.TempDir()}
	for _, bad := range []string{"", "/abs/x.modulemap", "../x.modulemap", "a/../../x.modulemap", "a//b.modulemap"} {
		if err := w.WriteArtifact(bad, nil); err == nil {
			t.Errorf("WriteArtifact(%q) = nil, want error", bad)
		}
	}
}

func TestMemoryWriter(t *testing.T) {
	w := NewMemoryWriter()
	if err := w.WriteArtifact("b/y.modulemap", []byte("y")); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteArtifact("a/x.modulemap", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteArtifact("a/x.modulemap", []byte("again")); err == nil {
		t.Fatalf("expected error on second write of the same path")
	}
	if content, ok := w.File("a/x.modulemap"); !ok || string(content) != "x" {
		t.Fatalf("File = %q, %v", content, ok)
	}
	if w.Len() != 2 {
		t.Fatalf("len = %d, want 2", w.Len())
	}
}
