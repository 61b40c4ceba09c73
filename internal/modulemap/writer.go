package modulemap

import (
	"bytes"
	"fmt"
)

// ArtifactWriter persists generated artifacts. Paths are relative to the
// build root; implementations decide where that root lives.
type ArtifactWriter interface {
	WriteArtifact(path string, content []byte) error
}

// ModuleMap is everything needed to render one modulemap file.
type ModuleMap struct {
	Name              string
	Headers           []string
	TextualHeaders    []string
	Artifact          string // where the file will be written
	WorkspaceRelative bool
}

// Render produces the modulemap text. Identical inputs give identical bytes.
func (m ModuleMap) Render() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "module %s {\n", m.Name)
	for _, h := range m.Headers {
		fmt.Fprintf(&buf, "    header \"%s\"\n", HeaderPath(h, m.Artifact, m.WorkspaceRelative))
	}
	for _, h := range m.TextualHeaders {
		fmt.Fprintf(&buf, "    textual header \"%s\"\n", HeaderPath(h, m.Artifact, m.WorkspaceRelative))
	}
	buf.WriteString("    export *\n")
	buf.WriteString("}\n")
	return buf.Bytes()
}

// Write renders the modulemap and hands it to w exactly once.
func (m ModuleMap) Write(w ArtifactWriter) ([]byte, error) {
	content := m.Render()
	if err := w.WriteArtifact(m.Artifact, content); err != nil {
		return nil, fmt.Errorf("write modulemap %s: %w", m.Artifact, err)
	}
	return content, nil
}
