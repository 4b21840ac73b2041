package search

import "github.com/sha1n/mot-search/internal/domain"

// Concat appends the rows of tables in argument order. Nil tables count as
// empty. Partitions are disjoint, so no deduplication happens here.
func Concat(tables ...*domain.ResultTable) *domain.ResultTable {
	total := 0
	for _, t := range tables {
		total += t.Len()
	}

	out := domain.NewResultTable()
	out.Rows = make([]domain.ResultRow, 0, total)
	for _, t := range tables {
		if t == nil {
			continue
		}
		out.Rows = append(out.Rows, t.Rows...)
	}
	return out
}
