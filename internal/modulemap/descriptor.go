package modulemap

import (
	"slices"
	"strings"

	"modmap/internal/label"
)

// Artifact is a generated modulemap file. Two artifacts are the same file
// when their paths are equal.
type Artifact struct {
	Path  string
	Owner label.Label // target that defined the module
}

// Descriptor is the module information attached to a target.
type Descriptor struct {
	// ModuleName is set only on the target that defines the module.
	ModuleName string
	// Artifacts holds every modulemap visible at the target, sorted by path
	// and free of duplicates.
	Artifacts []Artifact
}

// NewDescriptor builds a descriptor, normalizing the artifact set.
func NewDescriptor(moduleName string, artifacts ...Artifact) *Descriptor {
	return &Descriptor{ModuleName: moduleName, Artifacts: normalizeArtifacts(artifacts)}
}

// DefinesModule reports whether the descriptor's target defines a module.
func (d *Descriptor) DefinesModule() bool {
	return d != nil && d.ModuleName != ""
}

// ArtifactPaths returns the artifact paths in order.
func (d *Descriptor) ArtifactPaths() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.Artifacts))
	for i, a := range d.Artifacts {
		out[i] = a.Path
	}
	return out
}

// Merge unions the artifacts of ds. The result never carries a module name.
// Nil inputs are ignored; Merge returns nil when nothing is left.
func Merge(ds ...*Descriptor) *Descriptor {
	var artifacts []Artifact
	found := false
	for _, d := range ds {
		if d == nil {
			continue
		}
		found = true
		artifacts = append(artifacts, d.Artifacts...)
	}
	if !found {
		return nil
	}
	return &Descriptor{Artifacts: normalizeArtifacts(artifacts)}
}

func normalizeArtifacts(in []Artifact) []Artifact {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.SortStableFunc(out, func(a, b Artifact) int {
		return strings.Compare(a.Path, b.Path)
	})
	return slices.CompactFunc(out, func(a, b Artifact) bool {
		return a.Path == b.Path
	})
}
