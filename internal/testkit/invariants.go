// Package testkit holds checks shared by tests of several packages.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"modmap/internal/label"
	"modmap/internal/modulemap"
)

// CheckDescriptorInvariants runs a minimal set of invariants over the output
// of a propagation pass:
// 1) every descriptor's artifacts are sorted by path without duplicates
// 2) the owner of a written artifact has a named descriptor holding exactly
// that artifact
// 3) descriptors without a module name never own a written artifact alone
func CheckDescriptorInvariants(descs map[label.Label]*modulemap.Descriptor, written []modulemap.Artifact) error {
	for l, d := range descs {
		if d == nil {
			return fmt.Errorf("%s: nil descriptor stored", l)
		}
		// 1) normalized artifact set
		for i := 1; i < len(d.Artifacts); i++ {
			if d.Artifacts[i-1].Path >= d.Artifacts[i].Path {
				idx, err := safecast.Conv[uint32](i)
				if err != nil {
					return fmt.Errorf("%s: artifact index overflow: %w", l, err)
				}
				return fmt.Errorf("%s: artifacts not sorted/unique at %d: %q, %q", l, idx, d.Artifacts[i-1].Path, d.Artifacts[i].Path)
			}
		}
	}

	// 2) and 3) writers own their artifact
	for _, a := range written {
		d, ok := descs[a.Owner]
		if !ok {
			return fmt.Errorf("%s: written by %s, which has no descriptor", a.Path, a.Owner)
		}
		if !d.DefinesModule() {
			return fmt.Errorf("%s: owner %s has no module name", a.Path, a.Owner)
		}
		if len(d.Artifacts) != 1 || d.Artifacts[0] != a {
			return fmt.Errorf("%s: descriptor of %s = %v, want only its own artifact", a.Path, a.Owner, d.ArtifactPaths())
		}
	}
	return nil
}
