package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"modmap/internal/label"
	"modmap/internal/snapshot"
)

var queryCmd = &cobra.Command{
	Use:   "query [flags] [label...]",
	Short: "Show descriptors recorded by the last build",
	Long: `Show the module descriptors recorded in the snapshot written by
"modmap build". Without labels every target with a descriptor is listed.`,
	RunE: queryExecution,
}

func init() {
	queryCmd.Flags().String("snapshot", "", "snapshot path (default: located from the graph file)")
	queryCmd.Flags().String("format", "text", "output format (text|json)")
}

type queryArtifact struct {
	Path   string `json:"path"`
	Owner  string `json:"owner"`
	Digest string `json:"digest,omitempty"`
}

type queryEntry struct {
	Label      string          `json:"label"`
	ModuleName string          `json:"module_name,omitempty"`
	Artifacts  []queryArtifact `json:"artifacts"`
}

func queryExecution(cmd *cobra.Command, args []string) error {
	snapshotPath, err := cmd.Flags().GetString("snapshot")
	if err != nil {
		return err
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be text or json)", format)
	}

	if snapshotPath == "" {
		snapshotPath, err = defaultSnapshotPath()
		if err != nil {
			return err
		}
	}
	snap, err := snapshot.Load(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to read snapshot (run modmap build first): %w", err)
	}
	if err := warnIfStale(cmd.ErrOrStderr(), snap); err != nil {
		return err
	}

	entries, err := selectEntries(snap, args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	return renderQueryText(out, snap, entries)
}

// defaultSnapshotPath finds the snapshot of the nearest graph, honouring
// MODMAP_OUTPUT_DIR the same way build does.
func defaultSnapshotPath() (string, error) {
	env, err := loadEnvDefaults()
	if err != nil {
		return "", err
	}
	if env.OutputDir != "" {
		return snapshot.DefaultPath(env.OutputDir), nil
	}
	graphPath, err := resolveGraphPath(nil)
	if err != nil {
		return "", err
	}
	return snapshot.DefaultPath(filepath.Dir(graphPath)), nil
}

func selectEntries(snap *snapshot.Snapshot, args []string) ([]queryEntry, error) {
	var picked []*snapshot.Entry
	if len(args) == 0 {
		for i := range snap.Entries {
			picked = append(picked, &snap.Entries[i])
		}
	}
	for _, arg := range args {
		l, err := label.Parse(arg)
		if err != nil {
			return nil, err
		}
		e, ok := snap.Lookup(l)
		if !ok {
			return nil, fmt.Errorf("%s: no descriptor recorded", l)
		}
		picked = append(picked, e)
	}

	out := make([]queryEntry, len(picked))
	for i, e := range picked {
		d, err := e.Descriptor()
		if err != nil {
			return nil, err
		}
		digests := make(map[string]string, len(e.Artifacts))
		for _, a := range e.Artifacts {
			if !a.Digest.IsZero() {
				digests[a.Path] = a.Digest.Short()
			}
		}
		qe := queryEntry{Label: e.Label, ModuleName: d.ModuleName, Artifacts: make([]queryArtifact, len(d.Artifacts))}
		for j, a := range d.Artifacts {
			qe.Artifacts[j] = queryArtifact{Path: a.Path, Owner: a.Owner.String(), Digest: digests[a.Path]}
		}
		out[i] = qe
	}
	return out, nil
}

// warnIfStale tells the user when the graph changed after the snapshot was
// written; the recorded descriptors may no longer match it.
func warnIfStale(out io.Writer, snap *snapshot.Snapshot) error {
	stale, err := snap.Stale()
	if !stale {
		return nil
	}
	reason := "changed since the last build"
	if err != nil {
		reason = fmt.Sprintf("cannot be read (%v)", err)
	}
	_, werr := fmt.Fprintf(out, "%s graph %s %s; run modmap build to refresh\n", warningColor.Sprint("warning:"), snap.Graph, reason)
	return werr
}

func renderQueryText(out io.Writer, snap *snapshot.Snapshot, entries []queryEntry) error {
	if _, err := fmt.Fprintf(out, "workspace %q fingerprint %s\n", snap.Workspace, snap.Fingerprint.Short()); err != nil {
		return err
	}
	for _, e := range entries {
		line := e.Label
		if e.ModuleName != "" {
			line += " module " + okColor.Sprint(e.ModuleName)
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
		for _, a := range e.Artifacts {
			digest := a.Digest
			if digest == "" {
				digest = "native"
			}
			if _, err := fmt.Fprintf(out, "  %s %s %s\n", a.Path, noteColor.Sprintf("(%s)", a.Owner), digest); err != nil {
				return err
			}
		}
	}
	return nil
}
