package buildpipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"testing"

	"modmap/internal/diag"
	"modmap/internal/label"
	"modmap/internal/modulemap"
	"modmap/internal/project"
	"modmap/internal/testkit"
)

const pipelineGraph = `
[workspace]
name = "demo"

[[target]]
label = "//third_party/zlib:zlib"
rule = "cc_library"
hdrs = ["third_party/zlib/zlib.h"]
deps = [":zconf"]

[[target]]
label = "//third_party/zlib:zconf"
rule = "cc_library"
hdrs = ["third_party/zlib/zconf.h"]
textual_hdrs = ["third_party/zlib/zconf.inc"]

[[target]]
label = "//vendor:sub/lib"
rule = "cc_library"
hdrs = ["vendor/lib.h"]

[[target]]
label = "//app:bundle"
rule = "filegroup"
deps = ["//third_party/zlib", "//vendor:sub/lib"]

[[target]]
label = "//app:core"
rule = "swift_library"
module_name = "Core"
generated = ["bazel-bin/app/Core.swiftmodule.modulemap"]
deps = [":bundle"]
`

const (
	zlibMap  = "bazel-bin/third_party/zlib/zlib.modulemap"
	zconfMap = "bazel-bin/third_party/zlib/zconf.modulemap"
)

func writeGraph(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "modmap.toml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write graph: %v", err)
	}
	return p
}

func runOrFail(t *testing.T, req *Request) Result {
	t.Helper()
	res, err := Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run returned error: %v\n%s", err, diag.Format(res.Bag.Items(), true))
	}
	return res
}

func TestRunWritesModulemaps(t *testing.T) {
	graphPath := writeGraph(t, pipelineGraph)
	res := runOrFail(t, &Request{GraphPath: graphPath})

	paths := make([]string, len(res.Written))
	for i, a := range res.Written {
		paths[i] = a.Path
	}
	if want := []string{zconfMap, zlibMap}; !slices.Equal(paths, want) {
		t.Fatalf("written = %v, want %v", paths, want)
	}

	got, err := os.ReadFile(filepath.Join(filepath.Dir(graphPath), filepath.FromSlash(zlibMap)))
	if err != nil {
		t.Fatalf("read zlib modulemap: %v", err)
	}
	want := "module third_party_zlib_zlib {\n    header \"../../../third_party/zlib/zlib.h\"\n    export *\n}\n"
	if string(got) != want {
		t.Fatalf("zlib modulemap = %q, want %q", got, want)
	}

	zlib := res.Descriptors[label.MustParse("//third_party/zlib:zlib")]
	if zlib == nil || zlib.ModuleName != "third_party_zlib_zlib" || !slices.Equal(zlib.ArtifactPaths(), []string{zlibMap}) {
		t.Fatalf("zlib descriptor = %+v", zlib)
	}
	bundle := res.Descriptors[label.MustParse("//app:bundle")]
	if bundle == nil || bundle.ModuleName != "" || !slices.Equal(bundle.ArtifactPaths(), []string{zlibMap}) {
		t.Fatalf("bundle descriptor = %+v", bundle)
	}
	core := res.Descriptors[label.MustParse("//app:core")]
	if core == nil || core.ModuleName != "Core" || !slices.Equal(core.ArtifactPaths(), []string{"bazel-bin/app/Core.swiftmodule.modulemap", zlibMap}) {
		t.Fatalf("core descriptor = %+v", core)
	}
	if _, ok := res.Descriptors[label.MustParse("//vendor:sub/lib")]; ok {
		t.Fatalf("refused target must not have a descriptor")
	}
	if err := testkit.CheckDescriptorInvariants(res.Descriptors, res.Written); err != nil {
		t.Fatalf("descriptor invariants: %v", err)
	}

	if len(res.Skipped) != 1 || res.Skipped[0].Label != label.MustParse("//vendor:sub/lib") {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if res.Bag.HasErrors() || res.Bag.Count(diag.SevInfo) != 1 {
		t.Fatalf("diagnostics:\n%s", diag.Format(res.Bag.Items(), true))
	}
	if res.Bag.Items()[0].Code != diag.ModNameRefused {
		t.Fatalf("code = %v, want %v", res.Bag.Items()[0].Code, diag.ModNameRefused)
	}

	wantOrder := []string{"//third_party/zlib:zconf", "//vendor:sub/lib", "//third_party/zlib:zlib", "//app:bundle", "//app:core"}
	order := make([]string, len(res.Order))
	for i, l := range res.Order {
		order[i] = l.String()
	}
	if !slices.Equal(order, wantOrder) {
		t.Fatalf("order = %v, want %v", order, wantOrder)
	}
	for _, stage := range Stages {
		if !res.Timings.Has(stage) {
			t.Errorf("missing timing for stage %s", stage)
		}
	}
}

func TestRunProducerForwardsDependencyModulemaps(t *testing.T) {
	content := `
[[target]]
label = "//c:zlib"
rule = "cc_library"
hdrs = ["c/zlib.h"]

[[target]]
label = "//swift:core"
rule = "swift_library"
deps = ["//c:zlib"]

[[target]]
label = "//app:bin"
rule = "filegroup"
deps = ["//swift:core"]
`
	res := runOrFail(t, &Request{GraphPath: writeGraph(t, content), DryRun: true})
	want := []string{"bazel-bin/c/zlib.modulemap"}

	core := res.Descriptors[label.MustParse("//swift:core")]
	if core == nil || core.ModuleName != "swift_core" || !slices.Equal(core.ArtifactPaths(), want) {
		t.Fatalf("core descriptor = %+v, want module swift_core with %v", core, want)
	}
	bin := res.Descriptors[label.MustParse("//app:bin")]
	if bin == nil || bin.ModuleName != "" || !slices.Equal(bin.ArtifactPaths(), want) {
		t.Fatalf("bin descriptor = %+v, want %v without a module", bin, want)
	}
	if err := testkit.CheckDescriptorInvariants(res.Descriptors, res.Written); err != nil {
		t.Fatalf("descriptor invariants: %v", err)
	}
}

func TestRunRejectsUnquotableModulemapInput(t *testing.T) {
	content := `
[[target]]
label = "//c:weird"
rule = "cc_library"
hdrs = ['c/we"ird.h']

[[target]]
label = "//c:spaced"
rule = "cc_library"
tags = ["swift_module=C Lib"]
hdrs = ["c/spaced.h"]
`
	res, err := Run(context.Background(), &Request{GraphPath: writeGraph(t, content), DryRun: true})
	if !errors.Is(err, ErrGraphErrors) {
		t.Fatalf("err = %v, want ErrGraphErrors", err)
	}
	if res.Bag.Count(diag.SevError) != 1 || res.Bag.Items()[0].Code != diag.LoadBadHeaderPath {
		t.Fatalf("diagnostics:\n%s", diag.Format(res.Bag.Items(), true))
	}

	content = `
[[target]]
label = "//c:spaced"
rule = "cc_library"
tags = ["swift_module=C Lib"]
hdrs = ["c/spaced.h"]
`
	res = runOrFail(t, &Request{GraphPath: writeGraph(t, content), DryRun: true})
	if len(res.Written) != 0 || len(res.Skipped) != 1 {
		t.Fatalf("written = %v, skipped = %v; want the tagged target skipped", res.Written, res.Skipped)
	}
	if res.Bag.Items()[0].Code != diag.ModNameRefused {
		t.Fatalf("diagnostics:\n%s", diag.Format(res.Bag.Items(), true))
	}
}

func TestRunSecondPassLeavesFilesUnchanged(t *testing.T) {
	graphPath := writeGraph(t, pipelineGraph)
	runOrFail(t, &Request{GraphPath: graphPath})
	res := runOrFail(t, &Request{GraphPath: graphPath})
	if res.Unchanged != 2 {
		t.Fatalf("unchanged = %d, want 2", res.Unchanged)
	}
}

func TestRunDryRun(t *testing.T) {
	graphPath := writeGraph(t, pipelineGraph)
	res := runOrFail(t, &Request{GraphPath: graphPath, DryRun: true})

	if _, err := os.Stat(filepath.Join(filepath.Dir(graphPath), "bazel-bin")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run touched the output dir: %v", err)
	}
	if len(res.Contents) != 2 || len(res.Contents[zconfMap]) == 0 {
		t.Fatalf("contents = %v", res.Contents)
	}
	if res.Timings.Has(StageWrite) {
		t.Fatalf("dry run recorded a write stage")
	}
}

func TestRunWorkspaceRelativeOverride(t *testing.T) {
	on := true
	res := runOrFail(t, &Request{GraphPath: writeGraph(t, pipelineGraph), DryRun: true, WorkspaceRelative: &on})
	want := "module third_party_zlib_zconf {\n    header \"third_party/zlib/zconf.h\"\n    textual header \"third_party/zlib/zconf.inc\"\n    export *\n}\n"
	if got := string(res.Contents[zconfMap]); got != want {
		t.Fatalf("zconf modulemap = %q, want %q", got, want)
	}
	if !res.Config.WorkspaceRelative {
		t.Fatalf("config = %+v", res.Config)
	}
}

func TestRunSerialAndParallelAgree(t *testing.T) {
	graphPath := writeGraph(t, pipelineGraph)
	serial := runOrFail(t, &Request{GraphPath: graphPath, Jobs: 1, DryRun: true})
	parallel := runOrFail(t, &Request{GraphPath: graphPath, Jobs: 8, DryRun: true})

	if !reflect.DeepEqual(serial.Descriptors, parallel.Descriptors) {
		t.Fatalf("descriptors differ:\nserial:   %v\nparallel: %v", serial.Descriptors, parallel.Descriptors)
	}
	if !reflect.DeepEqual(serial.Contents, parallel.Contents) {
		t.Fatalf("contents differ")
	}
	if !reflect.DeepEqual(serial.Written, parallel.Written) || !reflect.DeepEqual(serial.Skipped, parallel.Skipped) {
		t.Fatalf("written/skipped differ")
	}
}

func TestRunProgressEvents(t *testing.T) {
	var (
		mu     sync.Mutex
		events []Event
	)
	sink := SinkFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})
	runOrFail(t, &Request{GraphPath: writeGraph(t, pipelineGraph), DryRun: true, Progress: sink})

	final := map[string]Status{}
	for _, ev := range events {
		if ev.Target != "" && ev.Stage == StagePropagate {
			final[ev.Target] = ev.Status
		}
	}
	want := map[string]Status{
		"//third_party/zlib:zlib":  StatusDone,
		"//third_party/zlib:zconf": StatusDone,
		"//vendor:sub/lib":         StatusSkipped,
		"//app:bundle":             StatusDone,
		"//app:core":               StatusDone,
	}
	if !reflect.DeepEqual(final, want) {
		t.Fatalf("final statuses = %v, want %v", final, want)
	}
}

func TestRunGraphErrors(t *testing.T) {
	content := `
[[target]]
label = "//app:bundle"
rule = "filegroup"
deps = ["//missing:lib"]
`
	res, err := Run(context.Background(), &Request{GraphPath: writeGraph(t, content)})
	if !errors.Is(err, ErrGraphErrors) {
		t.Fatalf("err = %v, want ErrGraphErrors", err)
	}
	if res.Bag.Len() != 1 || res.Bag.Items()[0].Code != diag.GraphMissingTarget {
		t.Fatalf("diagnostics:\n%s", diag.Format(res.Bag.Items(), true))
	}
	if res.Descriptors != nil {
		t.Fatalf("propagation ran despite graph errors")
	}
}

func TestRunArtifactClash(t *testing.T) {
	content := `
[[target]]
label = "//a:b/c"
rule = "cc_library"
tags = ["swift_module=Nested"]
hdrs = ["a/nested.h"]

[[target]]
label = "//a/b:c"
rule = "cc_library"
hdrs = ["a/b/c.h"]
`
	res, err := Run(context.Background(), &Request{GraphPath: writeGraph(t, content), DryRun: true})
	if !errors.Is(err, ErrGraphErrors) {
		t.Fatalf("err = %v, want ErrGraphErrors", err)
	}
	found := false
	for _, d := range res.Bag.Items() {
		found = found || d.Code == diag.ModArtifactClash
	}
	if !found {
		t.Fatalf("no clash diagnostic:\n%s", diag.Format(res.Bag.Items(), true))
	}
}

func TestRunDuplicateModuleName(t *testing.T) {
	content := `
[[target]]
label = "//a:one"
rule = "cc_library"
tags = ["swift_module=Shared"]

[[target]]
label = "//b:two"
rule = "cc_library"
tags = ["swift_module=Shared"]
`
	res := runOrFail(t, &Request{GraphPath: writeGraph(t, content), DryRun: true})
	if res.Bag.Count(diag.SevWarning) != 1 || res.Bag.Items()[0].Code != diag.ModDuplicateModule {
		t.Fatalf("diagnostics:\n%s", diag.Format(res.Bag.Items(), true))
	}
	if res.Bag.Items()[0].Subject != "//b:two" {
		t.Fatalf("warning subject = %q, want //b:two", res.Bag.Items()[0].Subject)
	}
}

func TestRunMissingRequest(t *testing.T) {
	if _, err := Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil request")
	}
	if _, err := Run(context.Background(), &Request{}); err == nil {
		t.Fatalf("expected error for empty graph path")
	}
}

func TestConfigForPrecedence(t *testing.T) {
	on, off := true, false
	cfg := configFor(workspaceWith(&on), nil)
	if !cfg.WorkspaceRelative || cfg.OutputRoot != "bazel-bin" {
		t.Fatalf("config = %+v", cfg)
	}
	if cfg := configFor(workspaceWith(&on), &off); cfg.WorkspaceRelative {
		t.Fatalf("override ignored: %+v", cfg)
	}
	if cfg := configFor(workspaceWith(nil), nil); cfg != (modulemap.Config{OutputRoot: "bazel-bin"}) {
		t.Fatalf("default config = %+v", cfg)
	}
}

func workspaceWith(rel *bool) project.Workspace {
	return project.Workspace{WorkspaceRelative: rel}
}
