package dag

import (
	"fmt"
	"slices"
	"strings"

	"modmap/internal/diag"
	"modmap/internal/project"
)

type Graph struct {
	Deps       [][]TargetID // Deps[id] = зависимости, только объявленные цели
	Dependents [][]TargetID // обратные рёбра
	Pending    []int        // число зависимостей для Kahn
	Present    []bool       // цель объявлена, а не только упомянута в deps
}

type TargetSlot struct {
	Meta    project.TargetMeta
	Present bool
}

// BuildGraph links declared targets to their dependencies.
//
// Duplicate declarations keep the first one. Dependencies on undeclared
// targets and on the target itself are reported and dropped from the edge
// set; the target's own Deps list is left as declared.
func BuildGraph(idx Index, targets []project.TargetMeta, r diag.Reporter) (Graph, []TargetSlot) {
	if r == nil {
		r = diag.NopReporter{}
	}
	nodeCount := len(idx.IDToLabel)
	g := Graph{
		Deps:       make([][]TargetID, nodeCount),
		Dependents: make([][]TargetID, nodeCount),
		Pending:    make([]int, nodeCount),
		Present:    make([]bool, nodeCount),
	}
	slots := make([]TargetSlot, nodeCount)
	for i, l := range idx.IDToLabel {
		slots[i].Meta.Label = l
	}

	for i := range targets {
		meta := targets[i]
		id, ok := idx.LabelToID[meta.Label]
		if !ok {
			// не должно происходить, индекс строится на тех же данных
			continue
		}
		slot := &slots[int(id)]
		if slot.Present {
			d := diag.New(diag.SevError, diag.GraphDuplicateTarget, meta.Label.String(),
				fmt.Sprintf("target %s declared twice", meta.Label))
			if slot.Meta.Source != "" {
				d = d.WithNote(slot.Meta.Source, "first declaration is used")
			}
			r.Report(d)
			continue
		}
		slot.Meta = meta
		slot.Present = true
		g.Present[int(id)] = true
	}

	for from := range slots {
		slot := &slots[from]
		if !slot.Present || len(slot.Meta.Deps) == 0 {
			continue
		}
		seen := make(map[TargetID]struct{}, len(slot.Meta.Deps))
		for _, dep := range slot.Meta.Deps {
			toID := idx.LabelToID[dep]
			if TargetID(from) == toID {
				r.Report(diag.New(diag.SevError, diag.GraphSelfDependency, slot.Meta.Label.String(),
					fmt.Sprintf("target %s depends on itself", slot.Meta.Label)))
				continue
			}
			if !g.Present[int(toID)] {
				r.Report(diag.New(diag.SevError, diag.GraphMissingTarget, slot.Meta.Label.String(),
					fmt.Sprintf("depends on undeclared target %s", dep)))
				continue
			}
			if _, dup := seen[toID]; dup {
				continue
			}
			seen[toID] = struct{}{}
			g.Deps[from] = append(g.Deps[from], toID)
			g.Dependents[int(toID)] = append(g.Dependents[int(toID)], TargetID(from))
			g.Pending[from]++
		}
		slices.Sort(g.Deps[from])
	}
	for i := range g.Dependents {
		slices.Sort(g.Dependents[i])
	}

	return g, slots
}

func ReportCycles(idx Index, slots []TargetSlot, topo *Topo, r diag.Reporter) {
	if r == nil || topo == nil || !topo.Cyclic || len(topo.Cycles) == 0 {
		return
	}
	names := make([]string, 0, len(topo.Cycles))
	for _, l := range idx.Labels(topo.Cycles) {
		names = append(names, l.String())
	}
	summary := strings.Join(names, ", ")

	for _, id := range topo.Cycles {
		slot := slots[int(id)]
		if !slot.Present {
			continue
		}
		r.Report(diag.New(diag.SevError, diag.GraphCycle, slot.Meta.Label.String(),
			fmt.Sprintf("target is part of a dependency cycle among: %s", summary)))
	}
}
