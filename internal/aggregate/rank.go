package aggregate

import (
	"slices"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	"github.com/jekabolt/grbpwr-crm/internal/metrics"
	"github.com/shopspring/decimal"
)

// topProducts ranks products by all-time line item revenue. Equal revenue keeps
// the product list order.
func topProducts(items []entity.OrderLineItem, products []entity.Product, n int) []entity.RankedEntry[entity.ProductSales] {
	type sales struct {
		qty     int
		revenue decimal.Decimal
	}
	byProduct := make(map[int]*sales)
	for i := range items {
		li := &items[i]
		s, ok := byProduct[li.ProductID]
		if !ok {
			s = &sales{}
			byProduct[li.ProductID] = s
		}
		s.qty += li.Quantity
		s.revenue = s.revenue.Add(li.Revenue())
	}

	seen := make(map[int]struct{}, len(products))
	joined := make([]entity.ProductSales, 0, len(byProduct))
	for _, p := range products {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		s, ok := byProduct[p.ID]
		if !ok {
			continue
		}
		joined = append(joined, entity.ProductSales{
			Product:  p,
			Quantity: s.qty,
			Revenue:  s.revenue,
		})
	}

	slices.SortStableFunc(joined, func(a, b entity.ProductSales) int {
		return b.Revenue.Cmp(a.Revenue)
	})
	return rank(joined, n)
}

// topCustomers ranks customers by total spent, stable on ties.
func topCustomers(customers []entity.Customer, n int) []entity.RankedEntry[entity.Customer] {
	sorted := slices.Clone(customers)
	slices.SortStableFunc(sorted, func(a, b entity.Customer) int {
		return b.TotalSpent.Cmp(a.TotalSpent)
	})
	return rank(sorted, n)
}

func rank[T any](items []T, n int) []entity.RankedEntry[T] {
	if len(items) > n {
		items = items[:n]
	}
	res := make([]entity.RankedEntry[T], 0, len(items))
	for i, it := range items {
		res = append(res, entity.RankedEntry[T]{Rank: i + 1, Item: it})
	}
	return res
}

func partnerPerformance(partners []entity.DeliveryPartner, orders []entity.Order) []entity.PartnerPerformanceEntry {
	byPartner := make(map[int]*orderSummary, len(partners))
	for i := range orders {
		id, ok := orders[i].PartnerID()
		if !ok {
			continue
		}
		s, ok := byPartner[id]
		if !ok {
			s = &orderSummary{}
			byPartner[id] = s
		}
		s.add(&orders[i])
	}

	res := make([]entity.PartnerPerformanceEntry, 0, len(partners))
	for _, p := range partners {
		if !p.Active {
			continue
		}
		s := byPartner[p.ID]
		if s == nil {
			s = &orderSummary{}
		}
		res = append(res, entity.PartnerPerformanceEntry{
			Partner:         p,
			Sent:            s.count,
			Delivered:       s.delivered,
			Returned:        s.returned,
			PendingPayment:  s.pendingPayments,
			ReceivedPayment: s.receivedPayments,
			SuccessRate:     metrics.RatePercent(s.delivered, s.count),
		})
	}
	return res
}
