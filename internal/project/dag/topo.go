package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

type Topo struct {
	Order   []TargetID   // зависимости раньше зависимых (только объявленные цели)
	Batches [][]TargetID // волны независимых целей
	Cyclic  bool
	Cycles  []TargetID // цели, оставшиеся в цикле
}

// ToposortKahn orders declared targets so that every target comes after all
// of its dependencies. Targets in the same batch do not depend on each other.
func ToposortKahn(g Graph) *Topo {
	nodeCount := len(g.Deps)
	pending := slices.Clone(g.Pending)

	topo := &Topo{
		Order:   make([]TargetID, 0, nodeCount),
		Batches: make([][]TargetID, 0),
	}

	active := 0
	current := make([]TargetID, 0, nodeCount)
	for i := range nodeCount {
		if !g.Present[i] {
			continue
		}
		active++
		if pending[i] == 0 {
			current = append(current, mustID(i))
		}
	}

	for len(current) > 0 {
		batch := slices.Clone(current)
		topo.Batches = append(topo.Batches, batch)

		next := make([]TargetID, 0)
		for _, id := range batch {
			topo.Order = append(topo.Order, id)
			for _, up := range g.Dependents[int(id)] {
				pending[int(up)]--
				if pending[int(up)] == 0 {
					next = append(next, up)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	if len(topo.Order) != active {
		topo.Cyclic = true
		for i := range nodeCount {
			if g.Present[i] && pending[i] > 0 {
				topo.Cycles = append(topo.Cycles, mustID(i))
			}
		}
	}

	return topo
}

func mustID(i int) TargetID {
	id, err := safecast.Conv[TargetID](i)
	if err != nil {
		panic(fmt.Errorf("target id overflow: %w", err))
	}
	return id
}
