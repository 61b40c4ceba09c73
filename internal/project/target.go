package project

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"modmap/internal/label"
	"modmap/internal/modulemap"
)

// DefaultOutputRoot is used when the workspace does not name one.
const DefaultOutputRoot = "bazel-bin"

// Workspace holds graph-wide settings.
type Workspace struct {
	Name       string
	OutputRoot string
	// WorkspaceRelative is nil when the graph file leaves the choice to the
	// command line.
	WorkspaceRelative *bool
}

// Graph is a loaded graph description.
type Graph struct {
	Path      string
	Digest    Digest // content digest of the graph file
	Workspace Workspace
	Targets   []TargetMeta
}

// TargetMeta is one declared target.
type TargetMeta struct {
	Label       label.Label
	Rule        string
	Kind        modulemap.NodeKind
	Tags        []string
	Hdrs        []string
	TextualHdrs []string
	Deps        []label.Label
	HasDepsAttr bool
	ModuleName  string   // module of a native producer
	Generated   []string // artifacts a native producer already exposes
	Source      string   // graph file the target came from
}

var (
	producerRules = map[string]struct{}{
		"swift_library":      {},
		"swift_import":       {},
		"swift_c_module":     {},
		"swift_binary":       {},
		"swift_test":         {},
		"swift_module_alias": {},
	}
	headerLibraryRules = map[string]struct{}{
		"cc_library":   {},
		"objc_library": {},
		"cc_import":    {},
	}
)

// ResolveKind maps a declared rule onto the propagation kind. A target with a
// module name is always a producer; otherwise known header rules are header
// libraries and anything with a deps attribute is a pass-through.
func ResolveKind(rule, moduleName string, hasDeps bool) modulemap.NodeKind {
	if moduleName != "" {
		return modulemap.KindModuleProducer
	}
	if _, ok := producerRules[rule]; ok {
		return modulemap.KindModuleProducer
	}
	if _, ok := headerLibraryRules[rule]; ok {
		return modulemap.KindHeaderLibrary
	}
	if hasDeps {
		return modulemap.KindPassThrough
	}
	return modulemap.KindOpaque
}

// ParseKind reads an explicit kind override from a graph file.
func ParseKind(s string) (modulemap.NodeKind, error) {
	switch strings.TrimSpace(s) {
	case "module":
		return modulemap.KindModuleProducer, nil
	case "header_library":
		return modulemap.KindHeaderLibrary, nil
	case "pass_through":
		return modulemap.KindPassThrough, nil
	case "opaque":
		return modulemap.KindOpaque, nil
	default:
		return modulemap.KindOpaque, fmt.Errorf("unknown kind %q (expected module|header_library|pass_through|opaque)", s)
	}
}

// ValidateHeaderPath checks that h is a clean path inside the build root that
// can be written verbatim between the quotes of a modulemap header line.
func ValidateHeaderPath(h string) error {
	switch {
	case h == "":
		return fmt.Errorf("empty header path")
	case strings.ContainsRune(h, '"'):
		return fmt.Errorf("header %q must not contain a double quote", h)
	case strings.ContainsFunc(h, unicode.IsControl):
		return fmt.Errorf("header %q must not contain control characters", h)
	case strings.HasPrefix(h, "/"):
		return fmt.Errorf("header %q must be relative to the build root", h)
	case strings.Contains(h, "\\"):
		return fmt.Errorf("header %q must use forward slashes", h)
	case path.Clean(h) != h:
		return fmt.Errorf("header %q is not a clean path (want %q)", h, path.Clean(h))
	case h == ".." || strings.HasPrefix(h, "../"):
		return fmt.Errorf("header %q escapes the build root", h)
	}
	return nil
}

// Node converts the target into the propagator's view. A producer's Existing
// descriptor carries only its own module and generated files; the pipeline
// adds what its dependencies expose before visiting it. A producer without
// module_name gets the default derivation of its label.
func (m *TargetMeta) Node() *modulemap.Node {
	n := &modulemap.Node{
		Label:          m.Label,
		Kind:           m.Kind,
		Tags:           m.Tags,
		Headers:        m.Hdrs,
		TextualHeaders: m.TextualHdrs,
		Deps:           m.Deps,
	}
	if m.Kind == modulemap.KindModuleProducer {
		artifacts := make([]modulemap.Artifact, len(m.Generated))
		for i, p := range m.Generated {
			artifacts[i] = modulemap.Artifact{Path: p, Owner: m.Label}
		}
		name := m.ModuleName
		if name == "" {
			name = modulemap.DefaultModuleName(m.Label)
		}
		n.Existing = modulemap.NewDescriptor(name, artifacts...)
	}
	return n
}

// OutputRootOrDefault returns the configured output root or the default.
func (w Workspace) OutputRootOrDefault() string {
	if strings.TrimSpace(w.OutputRoot) == "" {
		return DefaultOutputRoot
	}
	return path.Clean(w.OutputRoot)
}
