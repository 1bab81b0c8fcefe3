package entity

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// MetricsSnapshot contains every rollup, ranking and series computed for a reporting period.
type MetricsSnapshot struct {
	Period Period       `json:"period"`
	Status *OrderStatus `json:"status,omitempty"`

	// Orders
	StatusCounts    []StatusCount   `json:"statusCounts"`
	TotalOrders     int             `json:"totalOrders"`
	DeliveredOrders int             `json:"deliveredOrders"`
	ReturnedOrders  int             `json:"returnedOrders"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	AvgOrderValue   decimal.Decimal `json:"avgOrderValue"`

	// Partner payments
	PendingPayments  decimal.Decimal `json:"pendingPayments"`
	ReceivedPayments decimal.Decimal `json:"receivedPayments"`

	// Comparison with the previous period
	PreviousPeriodRevenue decimal.Decimal `json:"previousPeriodRevenue"`
	PreviousPeriodOrders  int             `json:"previousPeriodOrders"`
	RevenueChangePct      float64         `json:"revenueChangePct"`
	OrdersChangePct       float64         `json:"ordersChangePct"`

	// Customers
	NewCustomers     int `json:"newCustomers"`
	TotalCustomers   int `json:"totalCustomers"`
	PremiumCustomers int `json:"premiumCustomers"`

	// Carts
	AbandonedCarts int             `json:"abandonedCarts"`
	AbandonedValue decimal.Decimal `json:"abandonedValue"`
	ConversionRate float64         `json:"conversionRate"`

	// Inventory
	ActiveProducts int       `json:"activeProducts"`
	LowStock       int       `json:"lowStock"`
	OutOfStock     int       `json:"outOfStock"`
	LowStockItems  []Product `json:"lowStockItems"`

	DailyRevenue       []DailyRevenuePoint         `json:"dailyRevenue"`
	TopProducts        []RankedEntry[ProductSales] `json:"topProducts"`
	TopCustomers       []RankedEntry[Customer]     `json:"topCustomers"`
	PartnerPerformance []PartnerPerformanceEntry   `json:"partnerPerformance"`

	ComputedAt time.Time `json:"computedAt"`
}

// StatusCount is the number of orders in one status bucket.
type StatusCount struct {
	Status OrderStatus `json:"status"`
	Count  int         `json:"count"`
}

// DailyRevenuePoint is one non-empty bucket of the revenue series.
type DailyRevenuePoint struct {
	Date       string          `json:"date"`
	Revenue    decimal.Decimal `json:"revenue"`
	OrderCount int             `json:"orderCount"`
}

// RankedEntry pairs an item with its 1-based rank.
type RankedEntry[T any] struct {
	Rank int `json:"rank"`
	Item T   `json:"item"`
}

// ProductSales is the all-time sales rollup of one product.
type ProductSales struct {
	Product  Product         `json:"product"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// PartnerPerformanceEntry aggregates the period orders assigned to a delivery partner.
type PartnerPerformanceEntry struct {
	Partner         DeliveryPartner `json:"partner"`
	Sent            int             `json:"sent"`
	Delivered       int             `json:"delivered"`
	Returned        int             `json:"returned"`
	PendingPayment  decimal.Decimal `json:"pendingPayment"`
	ReceivedPayment decimal.Decimal `json:"receivedPayment"`
	SuccessRate     float64         `json:"successRate"`
}

// Clone returns a deep copy so callers never share slices with the published snapshot.
func (ms *MetricsSnapshot) Clone() *MetricsSnapshot {
	if ms == nil {
		return nil
	}
	c := *ms
	if ms.Status != nil {
		st := *ms.Status
		c.Status = &st
	}
	c.StatusCounts = slices.Clone(ms.StatusCounts)
	c.LowStockItems = cloneProducts(ms.LowStockItems)
	c.DailyRevenue = slices.Clone(ms.DailyRevenue)
	c.TopProducts = make([]RankedEntry[ProductSales], len(ms.TopProducts))
	for i, tp := range ms.TopProducts {
		tp.Item.Product.Images = slices.Clone(tp.Item.Product.Images)
		c.TopProducts[i] = tp
	}
	c.TopCustomers = slices.Clone(ms.TopCustomers)
	c.PartnerPerformance = slices.Clone(ms.PartnerPerformance)
	return &c
}

func cloneProducts(ps []Product) []Product {
	if ps == nil {
		return nil
	}
	out := make([]Product, len(ps))
	for i, p := range ps {
		p.Images = slices.Clone(p.Images)
		out[i] = p
	}
	return out
}
