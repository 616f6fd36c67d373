// Package ranking orders operation names by how often they are invoked,
// so remediation can start with the most referenced names.
package ranking

import (
	"sort"

	"github.com/phobologic/invokeaudit/internal/model"
)

// Frequencies counts call sites per distinct name. Rows are sorted by
// descending count; equal counts keep first-seen order.
func Frequencies(sites []model.CallSite) []model.NameCount {
	index := make(map[string]int)
	var rows []model.NameCount
	for _, cs := range sites {
		i, ok := index[cs.Name]
		if !ok {
			i = len(rows)
			index[cs.Name] = i
			rows = append(rows, model.NameCount{Name: cs.Name})
		}
		rows[i].Count++
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// TopNames returns the n most frequent names. If n is <= 0 or exceeds the
// number of distinct names, all rows are returned.
func TopNames(sites []model.CallSite, n int) []model.NameCount {
	rows := Frequencies(sites)
	if n <= 0 || n >= len(rows) {
		return rows
	}
	return rows[:n]
}
