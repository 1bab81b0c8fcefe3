package grid

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FilterAll is the filter value that disables a filter.
const FilterAll = "all"

// Direction is the sort direction of a column.
type Direction int

const (
	Unsorted Direction = iota
	Ascending
	Descending
)

// ParseDirection accepts asc/ascending and desc/descending; anything else is Unsorted.
func ParseDirection(s string) Direction {
	switch strings.ToLower(s) {
	case "asc", "ascending":
		return Ascending
	case "desc", "descending":
		return Descending
	}
	return Unsorted
}

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "asc"
	case Descending:
		return "desc"
	}
	return ""
}

// SortState is the active sort column and direction.
type SortState struct {
	Key       string
	Direction Direction
}

// Toggle cycles the same column unsorted -> asc -> desc -> unsorted.
// A different column starts at ascending.
func (s SortState) Toggle(key string) SortState {
	if s.Key != key || s.Direction == Unsorted {
		return SortState{Key: key, Direction: Ascending}
	}
	if s.Direction == Ascending {
		return SortState{Key: key, Direction: Descending}
	}
	return SortState{}
}

// Active reports whether a sort is applied.
func (s SortState) Active() bool {
	return s.Key != "" && s.Direction != Unsorted
}

// Search keeps rows whose key field contains query, ignoring case.
// An empty query or an unknown key returns rows unchanged.
func Search[R any](rows []R, cols []Column[R], key, query string) []R {
	if query == "" {
		return rows
	}
	col, ok := findColumn(cols, key)
	if !ok {
		return rows
	}
	fold := cases.Fold()
	q := fold.String(query)

	res := make([]R, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(fold.String(Format(col.value(r))), q) {
			res = append(res, r)
		}
	}
	return res
}

// Filter keeps rows whose field string form equals the filter value for every
// active filter. An empty value matches empty fields. FilterAll and unknown keys
// are ignored.
func Filter[R any](rows []R, cols []Column[R], filters map[string]string) []R {
	type predicate struct {
		col   *Column[R]
		value string
	}
	var preds []predicate
	for key, v := range filters {
		if v == FilterAll {
			continue
		}
		col, ok := findColumn(cols, key)
		if !ok {
			continue
		}
		preds = append(preds, predicate{col: col, value: v})
	}
	if len(preds) == 0 {
		return rows
	}

	res := make([]R, 0, len(rows))
	for _, r := range rows {
		match := true
		for _, p := range preds {
			if Format(p.col.value(r)) != p.value {
				match = false
				break
			}
		}
		if match {
			res = append(res, r)
		}
	}
	return res
}

// Sort returns a stably sorted copy of rows. Numbers and times compare by value,
// everything else by the collation order of lang. Unsorted, unknown or
// non-sortable columns return rows unchanged.
func Sort[R any](rows []R, cols []Column[R], key string, dir Direction, lang language.Tag) []R {
	if dir == Unsorted {
		return rows
	}
	col, ok := findColumn(cols, key)
	if !ok || !col.Sortable {
		return rows
	}
	cl := collate.New(lang)

	res := slices.Clone(rows)
	slices.SortStableFunc(res, func(a, b R) int {
		c := compare(cl, col.value(a), col.value(b))
		if dir == Descending {
			return -c
		}
		return c
	})
	return res
}

func compare(cl *collate.Collator, a, b any) int {
	if na, ok := number(a); ok {
		if nb, ok := number(b); ok {
			return na.Cmp(nb)
		}
	}
	if ta, ok := instant(a); ok {
		if tb, ok := instant(b); ok {
			return ta.Compare(tb)
		}
	}
	return cl.CompareString(Format(a), Format(b))
}
