package modulemap

import (
	"bytes"
	"errors"
	"testing"
)

type recordingWriter struct {
	files map[string][]byte
	calls int
	err   error
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{files: make(map[string][]byte)}
}

func (w *recordingWriter) WriteArtifact(path string, content []byte) error {
	w.calls++
	if w.err != nil {
		return w.err
	}
	w.files[path] = bytes.Clone(content)
	return nil
}

func TestHeaderPath(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		artifact string
		wsRel    bool
		want     string
	}{
		{name: "workspace relative", header: "a/b/c.h", artifact: "bazel-out/bin/x/y/mod.modulemap", wsRel: true, want: "a/b/c.h"},
		{name: "two segments", header: "a/b/c.h", artifact: "x/y/mod.modulemap", want: "../../a/b/c.h"},
		{name: "artifact at root", header: "a/b/c.h", artifact: "mod.modulemap", want: "a/b/c.h"},
		{name: "deep", header: "c.h", artifact: "bazel-out/k8/bin/p/q/r.modulemap", want: "../../../../../c.h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HeaderPath(tt.header, tt.artifact, tt.wsRel); got != tt.want {
				t.Fatalf("HeaderPath = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderEmpty(t *testing.T) {
	got := ModuleMap{Name: "Name", Artifact: "x/Name.modulemap"}.Render()
	want := "module Name {\n    export *\n}\n"
	if string(got) != want {
		t.Fatalf("Render = %q, want %q", got, want)
	}
}

func TestRenderOrdering(t *testing.T) {
	mm := ModuleMap{
		Name:           "zlib",
		Headers:        []string{"zlib/zlib.h", "zlib/zconf.h"},
		TextualHeaders: []string{"zlib/inline.inc"},
		Artifact:       "out/zlib/zlib.modulemap",
	}
	want := "module zlib {\n" +
		"    header \"../../zlib/zlib.h\"\n" +
		"    header \"../../zlib/zconf.h\"\n" +
		"    textual header \"../../zlib/inline.inc\"\n" +
		"    export *\n" +
		"}\n"
	if got := string(mm.Render()); got != want {
		t.Fatalf("Render =\n%s\nwant\n%s", got, want)
	}

	mm.WorkspaceRelative = true
	if got := string(mm.Render()); !bytes.Contains([]byte(got), []byte("    header \"zlib/zlib.h\"\n")) {
		t.Fatalf("workspace relative render kept prefix:\n%s", got)
	}
}

func TestRenderDeterministic(t *testing.T) {
	mm := ModuleMap{Name: "M", Headers: []string{"a.h", "b.h"}, TextualHeaders: []string{"c.inc"}, Artifact: "o/m.modulemap"}
	first := mm.Render()
	for i := 0; i < 10; i++ {
		if !bytes.Equal(first, mm.Render()) {
			t.Fatalf("render %d differs from the first one", i)
		}
	}
}

func TestWriteOnce(t *testing.T) {
	w := newRecordingWriter()
	mm := ModuleMap{Name: "M", Artifact: "o/m.modulemap"}
	content, err := mm.Write(w)
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if w.calls != 1 {
		t.Fatalf("writer called %d times, want 1", w.calls)
	}
	if !bytes.Equal(w.files["o/m.modulemap"], content) {
		t.Fatalf("written content differs from returned content")
	}

	failing := &recordingWriter{err: errors.New("disk full")}
	if _, err := mm.Write(failing); err == nil {
		t.Fatalf("expected write error")
	}
}
