package dag

import (
	"slices"

	"modmap/internal/label"
	"modmap/internal/project"
)

type TargetID uint32

type Index struct {
	LabelToID map[label.Label]TargetID
	IDToLabel []label.Label
}

// собрать уникальные метки (цели и их зависимости), отсортировать, раздать ID по порядку
func BuildIndex(targets []project.TargetMeta) Index {
	uniq := make(map[label.Label]struct{}, len(targets))
	for i := range targets {
		uniq[targets[i].Label] = struct{}{}
		for _, dep := range targets[i].Deps {
			uniq[dep] = struct{}{}
		}
	}

	labels := make([]label.Label, 0, len(uniq))
	for l := range uniq {
		labels = append(labels, l)
	}
	slices.SortFunc(labels, func(a, b label.Label) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})

	labelToID := make(map[label.Label]TargetID, len(labels))
	for i, l := range labels {
		labelToID[l] = TargetID(i)
	}

	return Index{
		LabelToID: labelToID,
		IDToLabel: labels,
	}
}

// Labels maps ids back to labels.
func (idx Index) Labels(ids []TargetID) []label.Label {
	out := make([]label.Label, len(ids))
	for i, id := range ids {
		out[i] = idx.IDToLabel[int(id)]
	}
	return out
}
