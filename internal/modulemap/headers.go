package modulemap

import (
	"path"
	"strings"
)

// HeaderPath returns the string to embed for header inside the modulemap
// written at artifact. Both paths are slash separated and relative to the
// build root.
//
// In workspace-relative mode the header path is used as is. Otherwise the
// result climbs out of the artifact's directory with one "../" per directory
// segment and then descends to the header.
func HeaderPath(header, artifact string, workspaceRelative bool) string {
	if workspaceRelative {
		return header
	}
	return strings.Repeat("../", dirDepth(artifact)) + header
}

// dirDepth counts the segments of the directory holding p.
func dirDepth(p string) int {
	dir := path.Dir(p)
	if dir == "." || dir == "/" || dir == "" {
		return 0
	}
	return len(strings.Split(strings.Trim(dir, "/"), "/"))
}
