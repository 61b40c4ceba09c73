package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// WorkspaceFileNames lists the graph files FindWorkspaceFile looks for, in
// order of preference.
var WorkspaceFileNames = []string{"modmap.toml", "modmap.hcl"}

// ErrWorkspaceMissing is returned when no graph file exists up to the
// filesystem root.
var ErrWorkspaceMissing = errors.New("no modmap.toml or modmap.hcl found")

// FindWorkspaceFile walks up from startDir to locate a graph file.
func FindWorkspaceFile(startDir string) (string, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		for _, name := range WorkspaceFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("failed to stat %q: %w", candidate, err)
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", ErrWorkspaceMissing
}
