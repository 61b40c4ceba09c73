package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"modmap/internal/diag"
	"modmap/internal/snapshot"
)

const cliGraph = `
[workspace]
name = "cli"

[[target]]
label = "//third_party/zlib:zlib"
rule = "cc_library"
hdrs = ["third_party/zlib/zlib.h"]

[[target]]
label = "//vendor:sub/lib"
rule = "cc_library"
hdrs = ["vendor/lib.h"]

[[target]]
label = "//app:bundle"
rule = "filegroup"
deps = ["//third_party/zlib", "//vendor:sub/lib"]
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envOutputDir, envWorkspaceRelative, envJobs} {
		t.Setenv(key, "")
	}
}

func TestBuildThenQuery(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	graphPath := filepath.Join(dir, "modmap.toml")
	if err := os.WriteFile(graphPath, []byte(cliGraph), 0o600); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, err := execute(t, "build", "--ui=off", "--color=off", "--out", dir, graphPath)
	if err != nil {
		t.Fatalf("build failed: %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "wrote 1 modulemap(s), 1 target(s) skipped") {
		t.Fatalf("unexpected summary:\n%s", stdout)
	}
	if !strings.Contains(stderr, "info MOD3001 //vendor:sub/lib") {
		t.Fatalf("refusal not reported:\n%s", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "bazel-bin", "third_party", "zlib", "zlib.modulemap")); err != nil {
		t.Fatalf("modulemap not written: %v", err)
	}

	snapPath := snapshot.DefaultPath(dir)
	stdout, _, err = execute(t, "query", "--color=off", "--format=text", "--snapshot", snapPath, "//app:bundle")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !strings.Contains(stdout, "//app:bundle\n  bazel-bin/third_party/zlib/zlib.modulemap (//third_party/zlib:zlib)") {
		t.Fatalf("unexpected query output:\n%s", stdout)
	}

	if _, _, err := execute(t, "query", "--snapshot", snapPath, "//vendor:sub/lib"); err == nil {
		t.Fatalf("query of a skipped target must fail")
	}
}

func TestQueryWarnsWhenGraphChanged(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	graphPath := filepath.Join(dir, "modmap.toml")
	if err := os.WriteFile(graphPath, []byte(cliGraph), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, stderr, err := execute(t, "build", "--ui=off", "--color=off", "--out", dir, graphPath); err != nil {
		t.Fatalf("build failed: %v\nstderr:\n%s", err, stderr)
	}
	snapPath := snapshot.DefaultPath(dir)

	_, stderr, err := execute(t, "query", "--color=off", "--snapshot", snapPath)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if strings.Contains(stderr, "warning:") {
		t.Fatalf("fresh snapshot reported as stale:\n%s", stderr)
	}

	edited := cliGraph + "\n[[target]]\nlabel = \"//extra:lib\"\nrule = \"cc_library\"\n"
	if err := os.WriteFile(graphPath, []byte(edited), 0o600); err != nil {
		t.Fatal(err)
	}
	_, stderr, err = execute(t, "query", "--color=off", "--snapshot", snapPath)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !strings.Contains(stderr, "warning: graph ") || !strings.Contains(stderr, "changed since the last build") {
		t.Fatalf("stale snapshot not reported:\n%s", stderr)
	}
}

func TestNameCommand(t *testing.T) {
	stdout, _, err := execute(t, "name", "--color=off", "//third_party/lib-x:lib.core")
	if err != nil {
		t.Fatalf("name failed: %v", err)
	}
	if strings.TrimSpace(stdout) != "third_party_lib_x_lib_core" {
		t.Fatalf("name = %q", stdout)
	}

	stdout, _, err = execute(t, "name", "--color=off", "-t", "swift_module=Nested", "//pkg:sub/lib")
	if err != nil || strings.TrimSpace(stdout) != "Nested" {
		t.Fatalf("tagged name = %q, %v", stdout, err)
	}
}

func TestRenderCommand(t *testing.T) {
	stdout, _, err := execute(t, "render", "--color=off", "--hdr", "pkg/a.h", "--textual-hdr", "pkg/a.inc", "//pkg:a")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	want := "module pkg_a {\n    header \"../../pkg/a.h\"\n    textual header \"../../pkg/a.inc\"\n    export *\n}\n"
	if stdout != want {
		t.Fatalf("render = %q, want %q", stdout, want)
	}
	if _, _, err := execute(t, "render", "--hdr", "/abs.h", "//pkg:b"); err == nil {
		t.Fatalf("absolute header accepted")
	}
}

func TestReadEnvDefaults(t *testing.T) {
	env := map[string]string{
		envOutputDir:         " out ",
		envWorkspaceRelative: "true",
		envJobs:              "4",
	}
	d, err := readEnvDefaults(func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("readEnvDefaults: %v", err)
	}
	if d.OutputDir != "out" || d.WorkspaceRelative == nil || !*d.WorkspaceRelative || d.Jobs != 4 {
		t.Fatalf("defaults = %+v", d)
	}

	for key, bad := range map[string]string{envWorkspaceRelative: "sometimes", envJobs: "-1"} {
		_, err := readEnvDefaults(func(k string) string {
			if k == key {
				return bad
			}
			return ""
		})
		if err == nil {
			t.Errorf("%s=%q accepted", key, bad)
		}
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, "on": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := readUIMode("fancy"); err == nil {
		t.Fatalf("expected error")
	}
	if shouldUseTUI(uiModeAuto, true, false) || shouldUseTUI(uiModeAuto, false, true) {
		t.Fatalf("quiet or stderr tracing must disable the progress view")
	}
}

func TestPrintDiagnosticsQuiet(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = orig })

	items := []diag.Diagnostic{
		diag.New(diag.SevError, diag.GraphMissingTarget, "//a:a", "depends on undeclared target //b:b"),
		diag.New(diag.SevInfo, diag.ModNameRefused, "//c:d/e", "refused"),
	}
	var buf bytes.Buffer
	if err := printDiagnostics(&buf, items, true); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "error GRAPH2001 //a:a depends on undeclared target //b:b\n" {
		t.Fatalf("quiet output = %q", got)
	}
}
