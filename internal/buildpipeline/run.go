// Package buildpipeline turns a graph file into modulemaps: it loads the
// graph, orders it dependency-first, propagates descriptors batch by batch
// and writes the generated files.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"modmap/internal/diag"
	"modmap/internal/label"
	"modmap/internal/modulemap"
	"modmap/internal/project"
	"modmap/internal/project/dag"
	"modmap/internal/trace"
)

// ErrGraphErrors is returned when loading or ordering reported errors.
var ErrGraphErrors = errors.New("graph has errors")

// Request configures one pipeline run.
type Request struct {
	GraphPath string
	// OutputDir is the directory standing for the build root. Defaults to
	// the directory of GraphPath.
	OutputDir string
	// WorkspaceRelative overrides the graph file's setting when non-nil.
	WorkspaceRelative *bool
	Jobs              int // <= 0 means GOMAXPROCS
	DryRun            bool
	Progress          ProgressSink
	MaxDiagnostics    int
}

// Result captures what a run computed.
type Result struct {
	Graph       *project.Graph
	Config      modulemap.Config
	OutputDir   string
	Order       []label.Label // declared targets, dependencies first
	Descriptors map[label.Label]*modulemap.Descriptor
	Written     []modulemap.Artifact // sorted by path
	Contents    map[string][]byte    // rendered modulemaps by artifact path
	Skipped     []modulemap.Skip     // sorted by label
	Unchanged   int                  // artifacts whose file already had this content
	Bag         *diag.Bag
	Timings     Timings
}

type plan struct {
	idx   dag.Index
	topo  *dag.Topo
	nodes []*modulemap.Node // nil for labels that are only referenced
}

type pipeline struct {
	req  *Request
	rep  *countingReporter
	res  *Result
	jobs int
}

// Run executes the pipeline. Diagnostics are collected in Result.Bag even
// when an error is returned.
func Run(ctx context.Context, req *Request) (Result, error) {
	var result Result
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, fmt.Errorf("missing request")
	}
	if strings.TrimSpace(req.GraphPath) == "" {
		return result, fmt.Errorf("missing graph path")
	}

	result.Bag = diag.NewBag(req.MaxDiagnostics)
	defer result.Bag.Sort()

	p := &pipeline{
		req:  req,
		rep:  &countingReporter{next: diag.NewLockedReporter(diag.BagReporter{Bag: result.Bag})},
		res:  &result,
		jobs: req.Jobs,
	}
	if p.jobs <= 0 {
		p.jobs = runtime.GOMAXPROCS(0)
	}
	result.OutputDir = req.OutputDir
	if result.OutputDir == "" {
		result.OutputDir = filepath.Dir(req.GraphPath)
	}

	span, ctx := trace.Start(ctx, trace.ScopeDriver, "pipeline")
	span.WithExtra("graph", req.GraphPath)
	err := p.run(ctx)
	if err != nil {
		span.End(err.Error())
	} else {
		span.End("")
	}
	return result, err
}

func (p *pipeline) run(ctx context.Context) error {
	g, err := p.load(ctx)
	if err != nil {
		return err
	}
	p.res.Graph = g
	p.res.Config = configFor(g.Workspace, p.req.WorkspaceRelative)

	pl, err := p.order(ctx, g)
	if err != nil {
		return err
	}
	mem, results, err := p.propagate(ctx, pl)
	if err != nil {
		return err
	}
	p.collect(pl, mem, results)
	return p.write(ctx, mem)
}

func configFor(ws project.Workspace, override *bool) modulemap.Config {
	cfg := modulemap.Config{OutputRoot: ws.OutputRootOrDefault()}
	if ws.WorkspaceRelative != nil {
		cfg.WorkspaceRelative = *ws.WorkspaceRelative
	}
	if override != nil {
		cfg.WorkspaceRelative = *override
	}
	return cfg
}

func (p *pipeline) load(ctx context.Context) (*project.Graph, error) {
	span, _ := trace.Start(ctx, trace.ScopeStage, string(StageLoad))
	emitStage(p.req.Progress, StageLoad, StatusWorking, nil, 0)
	start := time.Now()

	g, err := project.LoadGraph(p.req.GraphPath, p.rep)
	elapsed := time.Since(start)
	p.res.Timings.Set(StageLoad, elapsed)
	if err != nil {
		span.End("failed")
		emitStage(p.req.Progress, StageLoad, StatusError, err, elapsed)
		return nil, err
	}
	span.WithExtra("targets", strconv.Itoa(len(g.Targets))).End("")
	emitStage(p.req.Progress, StageLoad, StatusDone, nil, elapsed)
	return g, nil
}

func (p *pipeline) order(ctx context.Context, g *project.Graph) (*plan, error) {
	span, _ := trace.Start(ctx, trace.ScopeStage, string(StageOrder))
	emitStage(p.req.Progress, StageOrder, StatusWorking, nil, 0)
	start := time.Now()

	idx := dag.BuildIndex(g.Targets)
	graph, slots := dag.BuildGraph(idx, g.Targets, p.rep)
	topo := dag.ToposortKahn(graph)
	if topo.Cyclic {
		dag.ReportCycles(idx, slots, topo, p.rep)
	}

	pl := &plan{idx: idx, topo: topo, nodes: make([]*modulemap.Node, len(slots))}
	for id := range slots {
		if slots[id].Present {
			pl.nodes[id] = slots[id].Meta.Node()
		}
	}
	p.reportArtifactClashes(pl)

	elapsed := time.Since(start)
	p.res.Timings.Set(StageOrder, elapsed)
	span.WithExtra("batches", strconv.Itoa(len(topo.Batches))).End("")

	if n := p.rep.Errors(); n > 0 {
		err := fmt.Errorf("%s: %w (%d)", p.req.GraphPath, ErrGraphErrors, n)
		emitStage(p.req.Progress, StageOrder, StatusError, err, elapsed)
		return nil, err
	}

	p.res.Order = idx.Labels(topo.Order)
	for _, l := range p.res.Order {
		emit(p.req.Progress, l.String(), StagePropagate, StatusQueued, nil, 0)
	}
	emitStage(p.req.Progress, StageOrder, StatusDone, nil, elapsed)
	return pl, nil
}

// reportArtifactClashes finds header libraries whose modulemaps would land
// on the same path, e.g. //a:b/c tagged with a module name and //a/b:c.
func (p *pipeline) reportArtifactClashes(pl *plan) {
	owners := make(map[string]label.Label)
	for _, n := range pl.nodes {
		if n == nil || n.Kind != modulemap.KindHeaderLibrary {
			continue
		}
		if _, ok := modulemap.DeriveModuleName(n.Label, n.Tags); !ok {
			continue
		}
		artifact := p.res.Config.ArtifactPath(n.Label)
		if first, ok := owners[artifact]; ok {
			p.rep.Report(diag.New(diag.SevError, diag.ModArtifactClash, n.Label.String(),
				fmt.Sprintf("modulemap %s is also written by %s", artifact, first)).
				WithNote(first.String(), "first writer"))
			continue
		}
		owners[artifact] = n.Label
	}
}

func (p *pipeline) propagate(ctx context.Context, pl *plan) (*MemoryWriter, []modulemap.Result, error) {
	span, ctx := trace.Start(ctx, trace.ScopeStage, string(StagePropagate))
	emitStage(p.req.Progress, StagePropagate, StatusWorking, nil, 0)
	start := time.Now()

	mem := NewMemoryWriter()
	prop := modulemap.NewPropagator(p.res.Config, mem)
	results := make([]modulemap.Result, len(pl.nodes))

	// Reads only slots of earlier batches, which are complete once their
	// errgroup returned.
	lookup := modulemap.LookupFunc(func(deps []label.Label) []*modulemap.Descriptor {
		out := make([]*modulemap.Descriptor, len(deps))
		for i, dep := range deps {
			if id, ok := pl.idx.LabelToID[dep]; ok {
				out[i] = results[id].Descriptor
			}
		}
		return out
	})

	for bi, batch := range pl.topo.Batches {
		bspan, bctx := trace.Start(ctx, trace.ScopeBatch, "batch "+strconv.Itoa(bi))
		eg, egctx := errgroup.WithContext(bctx)
		eg.SetLimit(p.jobs)
		for _, id := range batch {
			eg.Go(func() error {
				if err := egctx.Err(); err != nil {
					return err
				}
				res, err := p.visit(egctx, prop, pl.nodes[id], lookup)
				results[id] = res
				return err
			})
		}
		err := eg.Wait()
		bspan.WithExtra("targets", strconv.Itoa(len(batch))).End("")
		if err != nil {
			elapsed := time.Since(start)
			p.res.Timings.Set(StagePropagate, elapsed)
			span.End("failed")
			emitStage(p.req.Progress, StagePropagate, StatusError, err, elapsed)
			return nil, nil, err
		}
	}

	elapsed := time.Since(start)
	p.res.Timings.Set(StagePropagate, elapsed)
	span.WithExtra("artifacts", strconv.Itoa(mem.Len())).End("")
	emitStage(p.req.Progress, StagePropagate, StatusDone, nil, elapsed)
	return mem, results, nil
}

func (p *pipeline) visit(ctx context.Context, prop *modulemap.Propagator, n *modulemap.Node, lookup modulemap.Lookup) (modulemap.Result, error) {
	target := n.Label.String()
	span, ctx := trace.Start(ctx, trace.ScopeTarget, target)
	span.WithExtra("kind", n.Kind.String())
	emit(p.req.Progress, target, StagePropagate, StatusWorking, nil, 0)
	start := time.Now()

	if n.Kind == modulemap.KindModuleProducer {
		n = withNativeDescriptor(n, lookup)
	}
	res, err := prop.Visit(n, lookup)
	elapsed := time.Since(start)
	switch {
	case err != nil:
		p.rep.Report(diag.New(diag.SevError, diag.ModWriteFailed, target, err.Error()))
		span.End("error")
		emit(p.req.Progress, target, StagePropagate, StatusError, err, elapsed)
		return res, err
	case res.Skipped != nil:
		p.rep.Report(diag.New(diag.SevInfo, diag.ModNameRefused, target, res.Skipped.Reason))
		trace.Point(ctx, trace.ScopeTarget, target, "module name refused")
		span.End("skipped")
		emit(p.req.Progress, target, StagePropagate, StatusSkipped, nil, elapsed)
	default:
		if res.Descriptor.DefinesModule() {
			span.WithExtra("module", res.Descriptor.ModuleName)
		}
		if res.Descriptor != nil {
			span.WithExtra("artifacts", strconv.Itoa(len(res.Descriptor.Artifacts)))
		}
		span.End("")
		emit(p.req.Progress, target, StagePropagate, StatusDone, nil, elapsed)
	}
	return res, nil
}

// withNativeDescriptor returns a copy of the producer n whose descriptor also
// exposes every modulemap its dependencies expose, the way native module
// rules forward them to their dependents. The module name stays n's own.
func withNativeDescriptor(n *modulemap.Node, lookup modulemap.Lookup) *modulemap.Node {
	ds := append([]*modulemap.Descriptor{n.Existing}, lookup.Descriptors(n.Deps)...)
	merged := modulemap.Merge(ds...)
	if merged == nil {
		return n
	}
	if n.Existing != nil {
		merged.ModuleName = n.Existing.ModuleName
	}
	out := *n
	out.Existing = merged
	return &out
}

// collect moves per-target results into the Result and reports module names
// defined by more than one target.
func (p *pipeline) collect(pl *plan, mem *MemoryWriter, results []modulemap.Result) {
	p.res.Descriptors = make(map[label.Label]*modulemap.Descriptor)
	p.res.Contents = make(map[string][]byte, mem.Len())
	definedBy := make(map[string]label.Label)

	for id, res := range results {
		if pl.nodes[id] == nil {
			continue
		}
		l := pl.nodes[id].Label
		if res.Skipped != nil {
			p.res.Skipped = append(p.res.Skipped, *res.Skipped)
		}
		if res.Written != nil {
			p.res.Written = append(p.res.Written, *res.Written)
			p.res.Contents[res.Written.Path] = res.Content
		}
		if res.Descriptor == nil {
			continue
		}
		p.res.Descriptors[l] = res.Descriptor
		if !res.Descriptor.DefinesModule() {
			continue
		}
		name := res.Descriptor.ModuleName
		if first, ok := definedBy[name]; ok {
			p.rep.Report(diag.New(diag.SevWarning, diag.ModDuplicateModule, l.String(),
				fmt.Sprintf("module %s is already defined by %s", name, first)).
				WithNote(first.String(), "first definition"))
			continue
		}
		definedBy[name] = l
	}

	slices.SortFunc(p.res.Written, func(a, b modulemap.Artifact) int {
		return strings.Compare(a.Path, b.Path)
	})
	slices.SortFunc(p.res.Skipped, func(a, b modulemap.Skip) int {
		switch {
		case a.Label.Less(b.Label):
			return -1
		case b.Label.Less(a.Label):
			return 1
		}
		return 0
	})
}

func (p *pipeline) write(ctx context.Context, mem *MemoryWriter) error {
	if p.req.DryRun {
		emitStage(p.req.Progress, StageWrite, StatusSkipped, nil, 0)
		return nil
	}
	span, ctx := trace.Start(ctx, trace.ScopeStage, string(StageWrite))
	emitStage(p.req.Progress, StageWrite, StatusWorking, nil, 0)
	start := time.Now()

	w := DirWriter{Root: p.res.OutputDir}
	var unchanged atomic.Int64
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.jobs)
	for _, a := range p.res.Written {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			content, _ := mem.File(a.Path)
			owner := a.Owner.String()
			changed, err := w.WriteFile(a.Path, content)
			if err != nil {
				p.rep.Report(diag.New(diag.SevError, diag.ModWriteFailed, owner, err.Error()))
				emit(p.req.Progress, owner, StageWrite, StatusError, err, 0)
				return fmt.Errorf("write %s: %w", a.Path, err)
			}
			if !changed {
				unchanged.Add(1)
			}
			emit(p.req.Progress, owner, StageWrite, StatusDone, nil, 0)
			return nil
		})
	}
	err := eg.Wait()
	elapsed := time.Since(start)
	p.res.Timings.Set(StageWrite, elapsed)
	p.res.Unchanged = int(unchanged.Load())
	if err != nil {
		span.End("failed")
		emitStage(p.req.Progress, StageWrite, StatusError, err, elapsed)
		return err
	}
	span.WithExtra("written", strconv.Itoa(len(p.res.Written))).
		WithExtra("unchanged", strconv.Itoa(p.res.Unchanged)).
		End("")
	emitStage(p.req.Progress, StageWrite, StatusDone, nil, elapsed)
	return nil
}

// countingReporter counts errors passing through, independent of any limit
// the underlying bag applies.
type countingReporter struct {
	next   diag.Reporter
	errors atomic.Int64
}

func (r *countingReporter) Report(d diag.Diagnostic) {
	if d.Severity >= diag.SevError {
		r.errors.Add(1)
	}
	r.next.Report(d)
}

func (r *countingReporter) Errors() int {
	return int(r.errors.Load())
}
