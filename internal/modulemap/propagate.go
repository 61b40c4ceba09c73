package modulemap

import (
	"fmt"
	"path"

	"modmap/internal/label"
)

// NodeKind tells the propagator how a target participates in module
// propagation. The host resolves it once per target.
type NodeKind uint8

const (
	// KindOpaque targets have no dependency edges to follow and never carry
	// a descriptor.
	KindOpaque NodeKind = iota
	// KindModuleProducer targets already carry a descriptor from native
	// processing; it is passed through untouched.
	KindModuleProducer
	// KindHeaderLibrary targets are foreign libraries with public headers.
	// They get a synthesized modulemap.
	KindHeaderLibrary
	// KindPassThrough targets merge the descriptors of their dependencies.
	KindPassThrough
)

func (k NodeKind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindModuleProducer:
		return "module"
	case KindHeaderLibrary:
		return "header_library"
	case KindPassThrough:
		return "pass_through"
	default:
		return "unknown"
	}
}

// Node is the propagator's read-only view of a target.
type Node struct {
	Label          label.Label
	Kind           NodeKind
	Tags           []string
	Headers        []string
	TextualHeaders []string
	Deps           []label.Label
	// Existing is the natively produced descriptor of a KindModuleProducer
	// target. It may be nil when the producer exposes no module.
	Existing *Descriptor
}

// Lookup returns descriptors already computed for deps, in the same order.
// Entries are nil for targets without a descriptor.
type Lookup interface {
	Descriptors(deps []label.Label) []*Descriptor
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(deps []label.Label) []*Descriptor

// Descriptors implements Lookup.
func (f LookupFunc) Descriptors(deps []label.Label) []*Descriptor { return f(deps) }

// Config is the toolchain configuration visible to the propagator.
type Config struct {
	// WorkspaceRelative embeds header paths relative to the build root
	// instead of relative to the modulemap's own directory.
	WorkspaceRelative bool
	// OutputRoot is the build-root relative directory generated files go to,
	// e.g. "bazel-bin".
	OutputRoot string
}

// ArtifactPath returns where the modulemap of l is written.
func (c Config) ArtifactPath(l label.Label) string {
	parts := []string{c.OutputRoot}
	if l.Repo != "" {
		parts = append(parts, "external", l.Repo)
	}
	parts = append(parts, l.Package, l.Name+".modulemap")
	return path.Join(parts...)
}

// Skip explains why a header library got no module.
type Skip struct {
	Label  label.Label
	Reason string
}

// Result is the outcome of visiting one target.
type Result struct {
	// Descriptor is nil when the target has no module information.
	Descriptor *Descriptor
	// Written is the artifact produced by this visit, if any.
	Written *Artifact
	// Content is the rendered modulemap of Written.
	Content []byte
	// Skipped is set when module name derivation was refused.
	Skipped *Skip
}

// Propagator computes descriptors one target at a time.
type Propagator struct {
	Config Config
	Writer ArtifactWriter
}

// NewPropagator creates a propagator writing artifacts through w.
func NewPropagator(cfg Config, w ArtifactWriter) *Propagator {
	return &Propagator{Config: cfg, Writer: w}
}

// Visit computes the descriptor of n. Every dependency of n must already have
// been visited so lookup can answer for them.
func (p *Propagator) Visit(n *Node, lookup Lookup) (Result, error) {
	switch n.Kind {
	case KindModuleProducer:
		return Result{Descriptor: n.Existing}, nil
	case KindHeaderLibrary:
		return p.visitHeaderLibrary(n)
	case KindPassThrough:
		if len(n.Deps) == 0 || lookup == nil {
			return Result{}, nil
		}
		return Result{Descriptor: Merge(lookup.Descriptors(n.Deps)...)}, nil
	case KindOpaque:
		return Result{}, nil
	default:
		return Result{}, fmt.Errorf("%s: unknown node kind %d", n.Label, n.Kind)
	}
}

func (p *Propagator) visitHeaderLibrary(n *Node) (Result, error) {
	name, ok := DeriveModuleName(n.Label, n.Tags)
	if !ok {
		reason := fmt.Sprintf("target name %q cannot be turned into a module name; add a %s= tag", n.Label.Name, ModuleNameTag)
		if override, tagged := ModuleNameOverride(n.Tags); tagged {
			reason = fmt.Sprintf("%s=%q is not a valid module name", ModuleNameTag, override)
		}
		return Result{Skipped: &Skip{Label: n.Label, Reason: reason}}, nil
	}

	mm := ModuleMap{
		Name:              name,
		Headers:           n.Headers,
		TextualHeaders:    n.TextualHeaders,
		Artifact:          p.Config.ArtifactPath(n.Label),
		WorkspaceRelative: p.Config.WorkspaceRelative,
	}
	content, err := mm.Write(p.Writer)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", n.Label, err)
	}

	artifact := Artifact{Path: mm.Artifact, Owner: n.Label}
	// Dependency descriptors are dropped on purpose: modules from foreign
	// library subgraphs are not merged upward, only this target's own map is.
	// TODO: let an allow-list of labels opt back into merging their deps.
	return Result{
		Descriptor: NewDescriptor(name, artifact),
		Written:    &artifact,
		Content:    content,
	}, nil
}
