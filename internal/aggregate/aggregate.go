// Package aggregate turns raw order, customer, product and cart collections
// into a metrics snapshot for one reporting period.
package aggregate

import (
	"fmt"
	"time"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/jekabolt/grbpwr-crm/internal/metrics"
)

// Config holds aggregation settings.
type Config struct {
	Timezone          string `mapstructure:"timezone"`
	LowStockThreshold int    `mapstructure:"low_stock_threshold"`
	TopN              int    `mapstructure:"top_n"`
	Granularity       string `mapstructure:"granularity"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		Timezone:          "UTC",
		LowStockThreshold: 5,
		TopN:              10,
		Granularity:       "day",
	}
}

// Engine computes snapshots. It holds no state between runs and is safe for concurrent use.
type Engine struct {
	c   *Config
	loc *time.Location
	g   metrics.Granularity
	now func() time.Time
}

// New creates a new aggregation engine.
func New(c *Config) (*Engine, error) {
	if c == nil {
		dc := DefaultConfig()
		c = &dc
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.LowStockThreshold <= 0 {
		c.LowStockThreshold = 5
	}
	if c.TopN <= 0 {
		c.TopN = 10
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("can't load timezone %q: %w", c.Timezone, err)
	}
	g, err := metrics.ParseGranularity(c.Granularity)
	if err != nil {
		return nil, err
	}
	return &Engine{
		c:   c,
		loc: loc,
		g:   g,
		now: time.Now,
	}, nil
}

// Location is the reporting timezone used for day boundaries.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Compute produces a complete snapshot from ds or fails without a partial result.
func (e *Engine) Compute(ds *entity.Dataset, f entity.ReportFilter) (*entity.MetricsSnapshot, error) {
	if ds == nil {
		return nil, fmt.Errorf("dataset is missing: %w", gerr.SourceFetchFailure)
	}
	if err := f.Period.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), gerr.InvalidPeriod)
	}

	ms := &entity.MetricsSnapshot{
		Period: f.Period,
		Status: f.Status,
	}

	cur := summarizeOrders(ds.Orders)
	prev := summarizeOrders(ds.PreviousOrders)

	ms.StatusCounts = statusCounts(ds.Orders)
	ms.TotalOrders = cur.count
	ms.DeliveredOrders = cur.delivered
	ms.ReturnedOrders = cur.returned
	ms.TotalRevenue = cur.revenue
	ms.AvgOrderValue = cur.avgOrderValue()
	ms.PendingPayments = cur.pendingPayments
	ms.ReceivedPayments = cur.receivedPayments

	ms.PreviousPeriodRevenue = prev.revenue
	ms.PreviousPeriodOrders = prev.count
	ms.RevenueChangePct = metrics.PercentChangeDecimal(cur.revenue, prev.revenue)
	ms.OrdersChangePct = metrics.PercentChangeInt(cur.count, prev.count)

	e.customerRollups(ms, ds.Customers, f.Period)
	cartRollups(ms, ds.AbandonedCarts)
	ms.ConversionRate = metrics.RatePercent(ms.TotalOrders, ms.TotalOrders+ms.AbandonedCarts)
	e.stockRollups(ms, ds.Products)

	ms.DailyRevenue = revenueSeries(ds.Orders, e.loc, e.g)
	ms.TopProducts = topProducts(ds.LineItems, ds.Products, e.c.TopN)
	ms.TopCustomers = topCustomers(ds.Customers, e.c.TopN)
	ms.PartnerPerformance = partnerPerformance(ds.Partners, ds.Orders)

	ms.ComputedAt = e.now().UTC()
	return ms, nil
}

func (e *Engine) customerRollups(ms *entity.MetricsSnapshot, customers []entity.Customer, p entity.Period) {
	since := metrics.StartOfDay(p.From, e.loc)
	for _, c := range customers {
		ms.TotalCustomers++
		if c.Premium {
			ms.PremiumCustomers++
		}
		if !c.CreatedAt.Before(since) {
			ms.NewCustomers++
		}
	}
}

func cartRollups(ms *entity.MetricsSnapshot, carts []entity.AbandonedCart) {
	for _, c := range carts {
		if c.Recovered {
			continue
		}
		ms.AbandonedCarts++
		ms.AbandonedValue = ms.AbandonedValue.Add(c.CartTotal)
	}
}

func (e *Engine) stockRollups(ms *entity.MetricsSnapshot, products []entity.Product) {
	for _, p := range products {
		if !p.Active {
			continue
		}
		ms.ActiveProducts++
		switch {
		case p.StockQuantity == 0:
			ms.OutOfStock++
		case p.StockQuantity > 0 && p.StockQuantity <= e.c.LowStockThreshold:
			ms.LowStock++
			ms.LowStockItems = append(ms.LowStockItems, p)
		}
	}
}
