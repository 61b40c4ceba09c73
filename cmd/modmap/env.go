package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables consulted when the matching flag is not set.
const (
	envOutputDir         = "MODMAP_OUTPUT_DIR"
	envWorkspaceRelative = "MODMAP_WORKSPACE_RELATIVE"
	envJobs              = "MODMAP_JOBS"
)

type envDefaults struct {
	OutputDir         string
	WorkspaceRelative *bool
	Jobs              int
}

// loadEnvDefaults reads an optional .env from the working directory, then
// the MODMAP_* variables. Variables already set in the process win over the
// file.
func loadEnvDefaults() (envDefaults, error) {
	// a missing .env is the common case
	_ = godotenv.Load()
	return readEnvDefaults(os.Getenv)
}

func readEnvDefaults(getenv func(string) string) (envDefaults, error) {
	var d envDefaults
	d.OutputDir = strings.TrimSpace(getenv(envOutputDir))

	if raw := strings.TrimSpace(getenv(envWorkspaceRelative)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return d, fmt.Errorf("%s: %w", envWorkspaceRelative, err)
		}
		d.WorkspaceRelative = &v
	}

	if raw := strings.TrimSpace(getenv(envJobs)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return d, fmt.Errorf("%s: invalid job count %q", envJobs, raw)
		}
		d.Jobs = n
	}
	return d, nil
}
