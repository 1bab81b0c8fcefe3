package aggregate

import (
	"slices"
	"strings"
	"time"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	"github.com/jekabolt/grbpwr-crm/internal/metrics"
	"github.com/shopspring/decimal"
)

type orderSummary struct {
	count            int
	delivered        int
	returned         int
	revenue          decimal.Decimal
	pendingPayments  decimal.Decimal
	receivedPayments decimal.Decimal
}

func summarizeOrders(orders []entity.Order) orderSummary {
	var s orderSummary
	for i := range orders {
		s.add(&orders[i])
	}
	return s
}

func (s *orderSummary) add(o *entity.Order) {
	s.count++
	if o.Delivered() {
		s.delivered++
		s.revenue = s.revenue.Add(o.Total)
	}
	if o.Returned() {
		s.returned++
	}
	switch o.PartnerPaymentStatus {
	case entity.PartnerPaymentPending:
		if o.Delivered() {
			s.pendingPayments = s.pendingPayments.Add(o.PendingPaymentAmount())
		}
	case entity.PartnerPaymentReceived:
		s.receivedPayments = s.receivedPayments.Add(o.ReceivedPaymentAmount())
	}
}

// avgOrderValue guards on the delivered count, the actual denominator.
func (s *orderSummary) avgOrderValue() decimal.Decimal {
	if s.delivered == 0 {
		return decimal.Zero
	}
	return s.revenue.Div(decimal.NewFromInt(int64(s.delivered)))
}

func statusCounts(orders []entity.Order) []entity.StatusCount {
	counts := make(map[entity.OrderStatus]int, len(entity.OrderStatuses))
	var unknown []entity.OrderStatus
	for _, o := range orders {
		if _, ok := counts[o.Status]; !ok && !o.Status.Valid() {
			unknown = append(unknown, o.Status)
		}
		counts[o.Status]++
	}

	res := make([]entity.StatusCount, 0, len(entity.OrderStatuses)+len(unknown))
	for _, st := range entity.OrderStatuses {
		res = append(res, entity.StatusCount{Status: st, Count: counts[st]})
	}
	slices.Sort(unknown)
	for _, st := range unknown {
		res = append(res, entity.StatusCount{Status: st, Count: counts[st]})
	}
	return res
}

// revenueSeries is sparse: buckets without orders are omitted.
func revenueSeries(orders []entity.Order, loc *time.Location, g metrics.Granularity) []entity.DailyRevenuePoint {
	buckets := make(map[string]*entity.DailyRevenuePoint)
	for _, o := range orders {
		key := metrics.BucketKey(o.CreatedAt, loc, g)
		p, ok := buckets[key]
		if !ok {
			p = &entity.DailyRevenuePoint{Date: key, Revenue: decimal.Zero}
			buckets[key] = p
		}
		p.OrderCount++
		if o.Delivered() {
			p.Revenue = p.Revenue.Add(o.Total)
		}
	}

	res := make([]entity.DailyRevenuePoint, 0, len(buckets))
	for _, p := range buckets {
		res = append(res, *p)
	}
	slices.SortFunc(res, func(a, b entity.DailyRevenuePoint) int {
		return strings.Compare(a.Date, b.Date)
	})
	return res
}
