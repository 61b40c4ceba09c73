package modulemap

import (
	"strings"
	"unicode"

	"modmap/internal/label"
)

// ModuleNameTag is the tag key that overrides the derived module name:
// a target tagged `swift_module=Foo` defines module Foo.
const ModuleNameTag = "swift_module"

// ModuleNameOverride returns the value of the last `swift_module=` tag.
// Later tags win over earlier ones; the key is matched case-sensitively.
func ModuleNameOverride(tags []string) (string, bool) {
	name, found := "", false
	for _, tag := range tags {
		key, value, ok := strings.Cut(tag, "=")
		if !ok || key != ModuleNameTag {
			continue
		}
		name, found = value, true
	}
	return name, found
}

// DefaultModuleName derives the module name the toolchain uses for native
// module targets: `//some/pkg:my-lib` becomes `some_pkg_my_lib`.
func DefaultModuleName(l label.Label) string {
	parts := make([]string, 0, 3)
	if l.Repo != "" {
		parts = append(parts, sanitizeIdent(l.Repo))
	}
	if l.Package != "" {
		parts = append(parts, sanitizeIdent(l.Package))
	}
	parts = append(parts, sanitizeIdent(l.Name))

	name := strings.Join(parts, "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

// DeriveModuleName picks the module name for a header library.
//
// An explicit tag always wins. Without a tag, labels whose name contains a
// path separator or '+' are refused (ok == false): their default derivation
// could collide with a sibling target, so no module is synthesized for them.
//
// Any name that is not a valid module identifier is refused as well, whether
// it came from a tag or from the label. In particular an empty `swift_module=`
// value is refused rather than treated as if the tag were absent.
func DeriveModuleName(l label.Label, tags []string) (name string, ok bool) {
	if name, found := ModuleNameOverride(tags); found {
		return name, IsModuleIdentifier(name)
	}
	if strings.ContainsAny(l.Name, "/+") {
		return "", false
	}
	name = DefaultModuleName(l)
	return name, IsModuleIdentifier(name)
}

// IsModuleIdentifier reports whether s can be written as a module name in a
// modulemap: a letter or '_' followed by letters, digits or '_'.
func IsModuleIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

func sanitizeIdent(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '-', '.', '@', '~':
			return '_'
		}
		return r
	}, s)
}
