// Package label models build target coordinates of the form `@repo//pkg/path:name`.
//
// A Label is an immutable value: it is comparable, usable as a map key and
// always printed in canonical form by String.
package label

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is wrapped by every parse failure.
var ErrInvalid = errors.New("invalid label")

// Label identifies a single target in the graph.
type Label struct {
	Repo    string // external repository name, empty for the main repository
	Package string // slash separated package path, empty for the root package
	Name    string // target name within the package
}

// String returns the canonical form: `//pkg:name` or `@repo//pkg:name`.
func (l Label) String() string {
	var sb strings.Builder
	if l.Repo != "" {
		sb.WriteByte('@')
		sb.WriteString(l.Repo)
	}
	sb.WriteString("//")
	sb.WriteString(l.Package)
	sb.WriteByte(':')
	sb.WriteString(l.Name)
	return sb.String()
}

// IsZero reports whether the label is the zero value.
func (l Label) IsZero() bool {
	return l == Label{}
}

// Less orders labels by repository, package and name.
func (l Label) Less(other Label) bool {
	if l.Repo != other.Repo {
		return l.Repo < other.Repo
	}
	if l.Package != other.Package {
		return l.Package < other.Package
	}
	return l.Name < other.Name
}

// Parse parses an absolute label.
//
// Accepted forms are `//pkg:name`, `//pkg` (name defaults to the last package
// segment) and `@repo//pkg:name`. Relative labels (`:name`) need a package
// context, see ParseRelative.
func Parse(raw string) (Label, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Label{}, fmt.Errorf("%w: empty", ErrInvalid)
	}

	var l Label
	if strings.HasPrefix(s, "@") {
		idx := strings.Index(s, "//")
		if idx < 0 {
			return Label{}, fmt.Errorf("%w: %q: missing '//' after repository", ErrInvalid, raw)
		}
		l.Repo = strings.TrimPrefix(s[1:idx], "@")
		if l.Repo == "" {
			return Label{}, fmt.Errorf("%w: %q: empty repository name", ErrInvalid, raw)
		}
		s = s[idx:]
	}
	if !strings.HasPrefix(s, "//") {
		return Label{}, fmt.Errorf("%w: %q: expected '//' prefix", ErrInvalid, raw)
	}
	s = s[2:]

	pkg, name, hasName := strings.Cut(s, ":")
	if err := validatePackage(pkg); err != nil {
		return Label{}, fmt.Errorf("%w: %q: %v", ErrInvalid, raw, err)
	}
	l.Package = pkg
	if hasName {
		l.Name = name
	} else {
		// `//a/b` is shorthand for `//a/b:b`
		l.Name = pkg[strings.LastIndexByte(pkg, '/')+1:]
	}
	if l.Name == "" {
		return Label{}, fmt.Errorf("%w: %q: empty target name", ErrInvalid, raw)
	}
	if strings.ContainsAny(l.Name, ":\n\t ") {
		return Label{}, fmt.Errorf("%w: %q: bad character in target name", ErrInvalid, raw)
	}
	return l, nil
}

// ParseRelative parses raw in the context of base: `:name` and `name` resolve
// to a target in base's repository and package, anything else is parsed as an
// absolute label. A `//` label inside an external repository stays in it.
func ParseRelative(base Label, raw string) (Label, error) {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "@"):
		return Parse(s)
	case strings.HasPrefix(s, "//"):
		l, err := Parse(s)
		if err != nil {
			return Label{}, err
		}
		l.Repo = base.Repo
		return l, nil
	}
	name := strings.TrimPrefix(s, ":")
	if name == "" {
		return Label{}, fmt.Errorf("%w: %q: empty target name", ErrInvalid, raw)
	}
	return Parse(base.withName(name).String())
}

// MustParse is Parse that panics on error. Intended for tests and constants.
func MustParse(raw string) Label {
	l, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return l
}

func (l Label) withName(name string) Label {
	l.Name = name
	return l
}

func validatePackage(pkg string) error {
	if pkg == "" {
		return nil
	}
	if strings.HasPrefix(pkg, "/") || strings.HasSuffix(pkg, "/") {
		return errors.New("package path must not start or end with '/'")
	}
	for _, seg := range strings.Split(pkg, "/") {
		switch seg {
		case "":
			return errors.New("empty package segment")
		case ".", "..":
			return fmt.Errorf("package segment %q is not allowed", seg)
		}
	}
	return nil
}
