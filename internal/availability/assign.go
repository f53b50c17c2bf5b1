package availability

import (
	"sort"

	"tablebook/internal/model"
)

// SortByFit orders candidates by wasted seats (max_capacity - partySize),
// smallest first. Tables too small for the party go after every table that
// fits, nearest shortfall first. Ties keep input order.
func SortByFit(tables []model.Table, partySize int) []model.Table {
	sorted := make([]model.Table, len(tables))
	copy(sorted, tables)

	sort.SliceStable(sorted, func(i, j int) bool {
		wi := sorted[i].MaxCapacity - partySize
		wj := sorted[j].MaxCapacity - partySize
		fi, fj := wi >= 0, wj >= 0
		if fi != fj {
			return fi
		}
		if fi {
			return wi < wj
		}
		return wi > wj
	})
	return sorted
}

// PickBestTable proposes the best-fit table. It does not combine tables; the
// second return is false when there are no candidates.
func PickBestTable(tables []model.Table, partySize int) (model.Table, bool) {
	if len(tables) == 0 {
		return model.Table{}, false
	}
	return SortByFit(tables, partySize)[0], true
}
