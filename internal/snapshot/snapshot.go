// Package snapshot persists the descriptors computed by a build so later
// commands can query them without re-running propagation.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"modmap/internal/buildpipeline"
	"modmap/internal/label"
	"modmap/internal/modulemap"
	"modmap/internal/project"
)

// SchemaVersion - increment when the Snapshot layout changes.
const SchemaVersion uint16 = 2

// ErrSchemaMismatch is returned by Load for snapshots written by another
// schema version.
var ErrSchemaMismatch = errors.New("snapshot schema mismatch")

// Snapshot is the on-disk form of a build result.
type Snapshot struct {
	Schema    uint16
	Workspace string
	// Graph is the absolute path of the graph file, GraphDigest its content
	// when the snapshot was taken.
	Graph             string
	GraphDigest       project.Digest
	OutputRoot        string
	WorkspaceRelative bool
	// Fingerprint covers every entry, so two snapshots with equal
	// fingerprints describe the same descriptors.
	Fingerprint project.Digest
	Entries     []Entry // sorted by label
}

// Entry is the descriptor of one target.
type Entry struct {
	Label      string
	ModuleName string
	Artifacts  []ArtifactEntry
}

// ArtifactEntry is one modulemap visible at a target. Digest is zero for
// artifacts this tool did not generate.
type ArtifactEntry struct {
	Path   string
	Owner  string
	Digest project.Digest
}

// DefaultPath returns where build stores the snapshot for outputDir.
func DefaultPath(outputDir string) string {
	return filepath.Join(outputDir, ".modmap", "snapshot.mp")
}

// FromResult captures the descriptors of a pipeline run.
func FromResult(res *buildpipeline.Result) *Snapshot {
	s := &Snapshot{
		Schema:            SchemaVersion,
		OutputRoot:        res.Config.OutputRoot,
		WorkspaceRelative: res.Config.WorkspaceRelative,
	}
	if res.Graph != nil {
		s.Workspace = res.Graph.Workspace.Name
		s.Graph = res.Graph.Path
		if abs, err := filepath.Abs(res.Graph.Path); err == nil {
			s.Graph = abs
		}
		s.GraphDigest = res.Graph.Digest
	}

	digests := make(map[string]project.Digest, len(res.Contents))
	for p, content := range res.Contents {
		digests[p] = project.ContentDigest(content)
	}

	labels := make([]label.Label, 0, len(res.Descriptors))
	for l := range res.Descriptors {
		labels = append(labels, l)
	}
	slices.SortFunc(labels, compareLabels)

	s.Entries = make([]Entry, 0, len(labels))
	for _, l := range labels {
		d := res.Descriptors[l]
		e := Entry{Label: l.String(), ModuleName: d.ModuleName, Artifacts: make([]ArtifactEntry, len(d.Artifacts))}
		for i, a := range d.Artifacts {
			e.Artifacts[i] = ArtifactEntry{Path: a.Path, Owner: a.Owner.String(), Digest: digests[a.Path]}
		}
		s.Entries = append(s.Entries, e)
	}
	s.Fingerprint = s.computeFingerprint()
	return s
}

func compareLabels(a, b label.Label) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

func (s *Snapshot) computeFingerprint() project.Digest {
	acc := project.ContentDigest([]byte(s.Workspace))
	for _, e := range s.Entries {
		parts := []project.Digest{project.ContentDigest([]byte(e.Label + "\x00" + e.ModuleName))}
		for _, a := range e.Artifacts {
			parts = append(parts, project.ContentDigest([]byte(a.Path)), a.Digest)
		}
		acc = project.Combine(acc, parts...)
	}
	return acc
}

// Stale reports whether the graph file changed since the snapshot was taken.
// A graph file that can no longer be read counts as changed.
func (s *Snapshot) Stale() (bool, error) {
	if s.Graph == "" {
		return false, nil
	}
	current, err := project.FileDigest(s.Graph)
	if err != nil {
		return true, err
	}
	return current != s.GraphDigest, nil
}

// Lookup finds the entry of l.
func (s *Snapshot) Lookup(l label.Label) (*Entry, bool) {
	i, ok := slices.BinarySearchFunc(s.Entries, l, func(e Entry, target label.Label) int {
		el, err := label.Parse(e.Label)
		if err != nil {
			return strings.Compare(e.Label, target.String())
		}
		return compareLabels(el, target)
	})
	if !ok {
		return nil, false
	}
	return &s.Entries[i], true
}

// Descriptor converts the entry back into a descriptor.
func (e *Entry) Descriptor() (*modulemap.Descriptor, error) {
	artifacts := make([]modulemap.Artifact, len(e.Artifacts))
	for i, a := range e.Artifacts {
		owner, err := label.Parse(a.Owner)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Label, err)
		}
		artifacts[i] = modulemap.Artifact{Path: a.Path, Owner: owner}
	}
	return modulemap.NewDescriptor(e.ModuleName, artifacts...), nil
}

// Save writes s to path, replacing any previous snapshot atomically.
func Save(path string, s *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	// no-op after a successful rename
	defer func() { _ = os.Remove(tmp) }()

	if err := msgpack.NewEncoder(f).Encode(s); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	// атомарная замена
	return os.Rename(tmp, path)
}

// Load reads a snapshot written by Save.
func Load(path string) (*Snapshot, error) {
	// #nosec G304 -- path comes from the command line or the output dir
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var s Snapshot
	if err := msgpack.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if s.Schema != SchemaVersion {
		return nil, fmt.Errorf("%s: %w (got %d, want %d)", path, ErrSchemaMismatch, s.Schema, SchemaVersion)
	}
	return &s, nil
}
