// Package report defines the named tabular views built from a computed
// snapshot and its dataset.
package report

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/jekabolt/grbpwr-crm/internal/grid"
	"golang.org/x/text/language"
)

type Config struct {
	// Locale is the BCP 47 tag used to collate string columns.
	Locale string `mapstructure:"locale"`
}

func DefaultConfig() Config {
	return Config{
		Locale: "en",
	}
}

// Info describes an available view.
type Info struct {
	Name  string `json:"name"`
	Title string `json:"title"`
}

type builder func(ds *entity.Dataset, snap *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid

type view struct {
	Info
	build builder
}

// Registry resolves view names into grids.
type Registry struct {
	lang  language.Tag
	views []view
}

func New(c *Config) (*Registry, error) {
	if c == nil {
		dc := DefaultConfig()
		c = &dc
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return nil, fmt.Errorf("can't parse locale %q: %w", c.Locale, err)
	}
	return &Registry{
		lang: tag,
		views: []view{
			{Info{"orders", "Orders"}, ordersView},
			{Info{"status-counts", "Orders by status"}, statusCountsView},
			{Info{"daily-revenue", "Revenue"}, dailyRevenueView},
			{Info{"customers", "Customers"}, customersView},
			{Info{"top-customers", "Top customers"}, topCustomersView},
			{Info{"products", "Products"}, productsView},
			{Info{"top-products", "Top products"}, topProductsView},
			{Info{"low-stock", "Low stock"}, lowStockView},
			{Info{"abandoned-carts", "Abandoned carts"}, abandonedCartsView},
			{Info{"partners", "Delivery partners"}, partnersView},
			{Info{"summary", "Summary"}, summaryView},
		},
	}, nil
}

// Views lists every view in display order.
func (r *Registry) Views() []Info {
	res := make([]Info, 0, len(r.views))
	for _, v := range r.views {
		res = append(res, v.Info)
	}
	return res
}

// Lookup returns the description of the named view.
func (r *Registry) Lookup(name string) (Info, error) {
	for _, v := range r.views {
		if v.Name == name {
			return v.Info, nil
		}
	}
	return Info{}, fmt.Errorf("report %q: %w", name, gerr.UnknownReport)
}

// Build creates a fresh grid for the named view. Grids are not shared, so
// each request gets its own view state.
func (r *Registry) Build(name string, ds *entity.Dataset, snap *entity.MetricsSnapshot) (grid.Grid, error) {
	if ds == nil || snap == nil {
		return nil, fmt.Errorf("can't build %q: %w", name, gerr.NoSnapshot)
	}
	for _, v := range r.views {
		if v.Name == name {
			return v.build(ds, snap, grid.WithLanguage(r.lang)), nil
		}
	}
	return nil, fmt.Errorf("report %q: %w", name, gerr.UnknownReport)
}

// Query parameter names understood by ParseQuery.
const (
	ParamSearchKey    = "search_key"
	ParamSearch       = "q"
	ParamFilterPrefix = "f."
	ParamSort         = "sort"
	ParamDirection    = "dir"
	ParamSelected     = "selected"
	ParamScope        = "scope"
	ScopeSelected     = "selected"
)

// ParseQuery reads view state from query parameters. Selected ids may be
// repeated or comma separated.
func ParseQuery(v url.Values) grid.Query {
	q := grid.Query{
		SearchKey: v.Get(ParamSearchKey),
		Search:    v.Get(ParamSearch),
		Filters:   map[string]string{},
		Sort: grid.SortState{
			Key:       v.Get(ParamSort),
			Direction: grid.ParseDirection(v.Get(ParamDirection)),
		},
		OnlySelected: v.Get(ParamScope) == ScopeSelected,
	}
	if q.Sort.Key != "" && q.Sort.Direction == grid.Unsorted {
		q.Sort.Direction = grid.Ascending
	}
	for key, vals := range v {
		if !strings.HasPrefix(key, ParamFilterPrefix) || len(vals) == 0 {
			continue
		}
		q.Filters[strings.TrimPrefix(key, ParamFilterPrefix)] = vals[0]
	}
	for _, s := range v[ParamSelected] {
		for _, id := range strings.Split(s, ",") {
			if id = strings.TrimSpace(id); id != "" {
				q.Selected = append(q.Selected, id)
			}
		}
	}
	return q
}
