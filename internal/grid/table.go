package grid

import (
	"slices"

	"golang.org/x/text/language"
)

// DefaultIDKey is the column used for row identity unless overridden.
const DefaultIDKey = "id"

// Query is the full view state applied to a table in one go.
type Query struct {
	SearchKey string
	Search    string
	Filters   map[string]string
	Sort      SortState
	Selected  []string
	// OnlySelected limits Records to selected rows of the view.
	OnlySelected bool
}

// Grid is the row type independent surface of a Table.
type Grid interface {
	Name() string
	Headers() []Header
	Apply(q Query)
	Records() []Record
	Total() int
	Len() int
	Selected() []string
}

// Option configures a Table.
type Option func(*options)

type options struct {
	idKey string
	lang  language.Tag
}

// WithIDKey sets the identity column used by selection.
func WithIDKey(key string) Option {
	return func(o *options) {
		o.idKey = key
	}
}

// WithLanguage sets the collation language used for string sorting.
func WithLanguage(tag language.Tag) Option {
	return func(o *options) {
		o.lang = tag
	}
}

// Table holds rows, columns and the current view state. It is not safe for
// concurrent use; build one per request.
type Table[R any] struct {
	name string
	cols []Column[R]
	rows []R
	opts options

	searchKey    string
	query        string
	filters      map[string]string
	sort         SortState
	selected     map[string]struct{}
	onlySelected bool
}

// New creates a table over rows. rows is not modified.
func New[R any](name string, cols []Column[R], rows []R, opts ...Option) *Table[R] {
	o := options{idKey: DefaultIDKey, lang: language.English}
	for _, opt := range opts {
		opt(&o)
	}
	if o.idKey == "" {
		o.idKey = DefaultIDKey
	}
	return &Table[R]{
		name:     name,
		cols:     cols,
		rows:     rows,
		opts:     o,
		filters:  make(map[string]string),
		selected: make(map[string]struct{}),
	}
}

func (t *Table[R]) Name() string {
	return t.name
}

// Columns returns the column descriptors.
func (t *Table[R]) Columns() []Column[R] {
	return t.cols
}

// Total is the number of backing rows.
func (t *Table[R]) Total() int {
	return len(t.rows)
}

// Len is the number of rows in the current view.
func (t *Table[R]) Len() int {
	return len(t.View())
}

// SetSearch sets the search column and query.
func (t *Table[R]) SetSearch(key, query string) {
	t.searchKey = key
	t.query = query
}

// SetFilter sets or clears (with FilterAll) the filter on key.
func (t *Table[R]) SetFilter(key, value string) {
	if value == FilterAll {
		delete(t.filters, key)
		return
	}
	t.filters[key] = value
}

// ClearFilters removes all filters.
func (t *Table[R]) ClearFilters() {
	clear(t.filters)
}

// ToggleSort advances the sort cycle for key. Non-sortable columns are ignored.
func (t *Table[R]) ToggleSort(key string) SortState {
	if col, ok := findColumn(t.cols, key); ok && col.Sortable {
		t.sort = t.sort.Toggle(key)
	}
	return t.sort
}

// SetSort sets the sort state directly.
func (t *Table[R]) SetSort(s SortState) {
	t.sort = s
}

// Sorting returns the current sort.
func (t *Table[R]) Sorting() SortState {
	return t.sort
}

// Apply replaces search, filters and sort with q and adds q.Selected to the selection.
func (t *Table[R]) Apply(q Query) {
	t.SetSearch(q.SearchKey, q.Search)
	t.ClearFilters()
	for k, v := range q.Filters {
		t.SetFilter(k, v)
	}
	t.sort = SortState{}
	if col, ok := findColumn(t.cols, q.Sort.Key); ok && col.Sortable {
		t.sort = q.Sort
	}
	for _, id := range q.Selected {
		t.Select(id)
	}
	t.onlySelected = q.OnlySelected
}

// Matching is the searched and filtered row set, in backing order.
func (t *Table[R]) Matching() []R {
	rows := Search(t.rows, t.cols, t.searchKey, t.query)
	return Filter(rows, t.cols, t.filters)
}

// View is the materialized view: search, then filter, then sort.
func (t *Table[R]) View() []R {
	rows := t.Matching()
	if t.sort.Active() {
		rows = Sort(rows, t.cols, t.sort.Key, t.sort.Direction, t.opts.lang)
	}
	return rows
}

// ID returns the identity of r.
func (t *Table[R]) ID(r R) string {
	col, ok := findColumn(t.cols, t.opts.idKey)
	if !ok {
		return ""
	}
	return Format(col.value(r))
}

// Select marks id as selected.
func (t *Table[R]) Select(id string) {
	t.selected[id] = struct{}{}
}

// Deselect removes id from the selection.
func (t *Table[R]) Deselect(id string) {
	delete(t.selected, id)
}

// ToggleSelected flips the selection of id and reports the new state.
func (t *Table[R]) ToggleSelected(id string) bool {
	if t.IsSelected(id) {
		t.Deselect(id)
		return false
	}
	t.Select(id)
	return true
}

// IsSelected reports whether id is selected.
func (t *Table[R]) IsSelected(id string) bool {
	_, ok := t.selected[id]
	return ok
}

// SelectAll selects every row of the current searched and filtered view.
func (t *Table[R]) SelectAll() {
	for _, r := range t.Matching() {
		t.Select(t.ID(r))
	}
}

// AllSelected reports whether every row of the current view is selected.
func (t *Table[R]) AllSelected() bool {
	rows := t.Matching()
	if len(rows) == 0 {
		return false
	}
	for _, r := range rows {
		if !t.IsSelected(t.ID(r)) {
			return false
		}
	}
	return true
}

// ClearSelection deselects everything.
func (t *Table[R]) ClearSelection() {
	clear(t.selected)
}

// Selected returns the selected ids in sorted order.
func (t *Table[R]) Selected() []string {
	ids := make([]string, 0, len(t.selected))
	for id := range t.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SelectedRows returns the selected rows of the current view, in view order.
func (t *Table[R]) SelectedRows() []R {
	var res []R
	for _, r := range t.View() {
		if t.IsSelected(t.ID(r)) {
			res = append(res, r)
		}
	}
	return res
}

// Headers returns the export header row in column order.
func (t *Table[R]) Headers() []Header {
	hs := make([]Header, 0, len(t.cols))
	for _, c := range t.cols {
		hs = append(hs, Header{Key: c.Key, Label: c.Label, Sortable: c.Sortable})
	}
	return hs
}

// Records materializes the view (or its selected part) into export records.
func (t *Table[R]) Records() []Record {
	rows := t.View()
	if t.onlySelected {
		rows = t.SelectedRows()
	}
	res := make([]Record, 0, len(rows))
	for _, r := range rows {
		res = append(res, t.record(r))
	}
	return res
}

func (t *Table[R]) record(r R) Record {
	rec := Record{Fields: make([]Field, 0, len(t.cols))}
	for i := range t.cols {
		c := &t.cols[i]
		rec.Fields = append(rec.Fields, Field{
			Key:   c.Key,
			Value: c.value(r),
			Text:  c.text(r),
		})
	}
	return rec
}
