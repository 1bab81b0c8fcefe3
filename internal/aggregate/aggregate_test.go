package aggregate

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	e, err := New(nil)
	require.NoError(t, err)
	e.now = func() time.Time { return time.Date(2025, 1, 8, 12, 0, 0, 0, time.UTC) }
	return e
}

func testFilter(t *testing.T) entity.ReportFilter {
	p, err := entity.ParsePeriod("2025-01-01", "2025-01-07", time.UTC)
	require.NoError(t, err)
	return entity.ReportFilter{Period: p}
}

func day(d int) time.Time {
	return time.Date(2025, 1, d, 10, 0, 0, 0, time.UTC)
}

func order(status entity.OrderStatus, total int64, created time.Time) entity.Order {
	return entity.Order{
		Status:               status,
		Total:                decimal.NewFromInt(total),
		CreatedAt:            created,
		PartnerPaymentStatus: entity.PartnerPaymentNone,
	}
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func assertDec(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %d got %s", want, got.String())
}

func TestComputeRevenueScenario(t *testing.T) {
	e := newTestEngine(t)
	ds := &entity.Dataset{
		Orders: []entity.Order{
			order(entity.OrderStatusDelivered, 1000, day(2)),
			order(entity.OrderStatusPending, 500, day(3)),
			order(entity.OrderStatusDelivered, 2000, day(2)),
		},
	}

	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	assert.Equal(t, 3, ms.TotalOrders)
	assert.Equal(t, 2, ms.DeliveredOrders)
	assertDec(t, 3000, ms.TotalRevenue)
	assertDec(t, 1500, ms.AvgOrderValue)

	require.Len(t, ms.DailyRevenue, 2)
	assert.Equal(t, "2025-01-02", ms.DailyRevenue[0].Date)
	assertDec(t, 3000, ms.DailyRevenue[0].Revenue)
	assert.Equal(t, 2, ms.DailyRevenue[0].OrderCount)
	assert.Equal(t, "2025-01-03", ms.DailyRevenue[1].Date)
	assertDec(t, 0, ms.DailyRevenue[1].Revenue)
	assert.Equal(t, 1, ms.DailyRevenue[1].OrderCount)

	counts := map[entity.OrderStatus]int{}
	for _, sc := range ms.StatusCounts {
		counts[sc.Status] = sc.Count
	}
	assert.Equal(t, 2, counts[entity.OrderStatusDelivered])
	assert.Equal(t, 1, counts[entity.OrderStatusPending])
	assert.Equal(t, 0, counts[entity.OrderStatusCancelled])
	assert.Len(t, ms.StatusCounts, len(entity.OrderStatuses))
}

func TestComputeDailySeriesSumsToRevenue(t *testing.T) {
	e := newTestEngine(t)
	statuses := entity.OrderStatuses
	var orders []entity.Order
	for i := 0; i < 40; i++ {
		orders = append(orders, order(statuses[i%len(statuses)], int64(100+i*7), day(1+i%7).Add(time.Duration(i)*time.Hour)))
	}

	ms, err := e.Compute(&entity.Dataset{Orders: orders}, testFilter(t))
	require.NoError(t, err)

	sum := decimal.Zero
	count := 0
	for i, p := range ms.DailyRevenue {
		sum = sum.Add(p.Revenue)
		count += p.OrderCount
		if i > 0 {
			assert.Less(t, ms.DailyRevenue[i-1].Date, p.Date)
		}
	}
	assert.True(t, sum.Equal(ms.TotalRevenue))
	assert.Equal(t, ms.TotalOrders, count)
}

func TestComputeAvgOrderValueWithoutDeliveries(t *testing.T) {
	e := newTestEngine(t)
	ds := &entity.Dataset{
		Orders: []entity.Order{
			order(entity.OrderStatusPending, 500, day(3)),
			order(entity.OrderStatusShipped, 700, day(4)),
		},
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	assert.Equal(t, 2, ms.TotalOrders)
	assert.True(t, ms.AvgOrderValue.IsZero())

	ms, err = e.Compute(&entity.Dataset{}, testFilter(t))
	require.NoError(t, err)
	assert.True(t, ms.AvgOrderValue.IsZero())
	assert.Equal(t, 0.0, ms.ConversionRate)
	assert.Empty(t, ms.DailyRevenue)
}

func TestComputeAvgOrderValueRounding(t *testing.T) {
	e := newTestEngine(t)
	ds := &entity.Dataset{
		Orders: []entity.Order{
			order(entity.OrderStatusDelivered, 10, day(2)),
			order(entity.OrderStatusDelivered, 10, day(2)),
			order(entity.OrderStatusDelivered, 11, day(2)),
		},
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)
	assert.Equal(t, "10.33", ms.AvgOrderValue.StringFixed(2))
	// kept at full precision, rounding is a display concern
	assert.False(t, ms.AvgOrderValue.Equal(ms.AvgOrderValue.Round(2)))
	assert.True(t, ms.AvgOrderValue.Mul(decimal.NewFromInt(3)).Round(8).Equal(decimal.NewFromInt(31)))
}

func TestComputePayments(t *testing.T) {
	e := newTestEngine(t)

	pendingDelivered := order(entity.OrderStatusDelivered, 300, day(2))
	pendingDelivered.PartnerPaymentStatus = entity.PartnerPaymentPending

	pendingWithAmount := order(entity.OrderStatusDelivered, 300, day(2))
	pendingWithAmount.PartnerPaymentStatus = entity.PartnerPaymentPending
	pendingWithAmount.PartnerPaymentAmount = decimal.NewNullDecimal(dec(250))

	pendingShipped := order(entity.OrderStatusShipped, 900, day(2))
	pendingShipped.PartnerPaymentStatus = entity.PartnerPaymentPending

	received := order(entity.OrderStatusDelivered, 400, day(3))
	received.PartnerPaymentStatus = entity.PartnerPaymentReceived
	received.PartnerPaymentAmount = decimal.NewNullDecimal(dec(380))

	receivedNoAmount := order(entity.OrderStatusDelivered, 400, day(3))
	receivedNoAmount.PartnerPaymentStatus = entity.PartnerPaymentReceived

	ds := &entity.Dataset{
		Orders: []entity.Order{pendingDelivered, pendingWithAmount, pendingShipped, received, receivedNoAmount},
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	assertDec(t, 550, ms.PendingPayments)
	assertDec(t, 380, ms.ReceivedPayments)
}

func TestComputePreviousPeriod(t *testing.T) {
	e := newTestEngine(t)
	ds := &entity.Dataset{
		Orders: []entity.Order{
			order(entity.OrderStatusDelivered, 1500, day(2)),
			order(entity.OrderStatusPending, 100, day(3)),
			order(entity.OrderStatusPending, 100, day(4)),
		},
		PreviousOrders: []entity.Order{
			order(entity.OrderStatusDelivered, 1000, time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)),
			order(entity.OrderStatusCancelled, 100, time.Date(2024, 12, 29, 0, 0, 0, 0, time.UTC)),
		},
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	assertDec(t, 1000, ms.PreviousPeriodRevenue)
	assert.Equal(t, 2, ms.PreviousPeriodOrders)
	assert.InDelta(t, 50.0, ms.RevenueChangePct, 1e-9)
	assert.InDelta(t, 50.0, ms.OrdersChangePct, 1e-9)

	ds.PreviousOrders = nil
	ms, err = e.Compute(ds, testFilter(t))
	require.NoError(t, err)
	assert.Equal(t, 0.0, ms.RevenueChangePct)
	assert.Equal(t, 0.0, ms.OrdersChangePct)
}

func TestComputeCustomersAndCarts(t *testing.T) {
	e := newTestEngine(t)
	ds := &entity.Dataset{
		Orders: []entity.Order{
			order(entity.OrderStatusDelivered, 100, day(2)),
			order(entity.OrderStatusPending, 100, day(2)),
			order(entity.OrderStatusPending, 100, day(2)),
		},
		Customers: []entity.Customer{
			{ID: 1, CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
			{ID: 2, CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Premium: true},
			{ID: 3, CreatedAt: day(5)},
		},
		AbandonedCarts: []entity.AbandonedCart{
			{CartTotal: dec(40)},
			{CartTotal: dec(60), Recovered: true},
		},
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	assert.Equal(t, 2, ms.NewCustomers)
	assert.Equal(t, 3, ms.TotalCustomers)
	assert.Equal(t, 1, ms.PremiumCustomers)
	assert.Equal(t, 1, ms.AbandonedCarts)
	assertDec(t, 40, ms.AbandonedValue)
	assert.InDelta(t, 75.0, ms.ConversionRate, 1e-9)
}

func TestComputeStock(t *testing.T) {
	e := newTestEngine(t)
	ds := &entity.Dataset{
		Products: []entity.Product{
			{ID: 1, Active: true, StockQuantity: 0},
			{ID: 2, Active: true, StockQuantity: 5},
			{ID: 3, Active: true, StockQuantity: 6},
			{ID: 4, Active: true, StockQuantity: 1},
			{ID: 5, Active: false, StockQuantity: 0},
			{ID: 6, Active: false, StockQuantity: 2},
		},
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	assert.Equal(t, 4, ms.ActiveProducts)
	assert.Equal(t, 1, ms.OutOfStock)
	assert.Equal(t, 2, ms.LowStock)
	require.Len(t, ms.LowStockItems, 2)
	assert.Equal(t, 2, ms.LowStockItems[0].ID)
	assert.Equal(t, 4, ms.LowStockItems[1].ID)
}

func TestTopProductsTieBreak(t *testing.T) {
	e := newTestEngine(t)
	ds := &entity.Dataset{
		LineItems: []entity.OrderLineItem{
			{ProductID: 1, Quantity: 2, UnitPrice: dec(100)},
			{ProductID: 2, Quantity: 1, UnitPrice: dec(300)},
			{ProductID: 1, Quantity: 1, UnitPrice: dec(100)},
		},
		Products: []entity.Product{
			{ID: 1, Name: "A"},
			{ID: 2, Name: "B"},
			{ID: 3, Name: "no sales"},
		},
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	require.Len(t, ms.TopProducts, 2)
	assert.Equal(t, 1, ms.TopProducts[0].Rank)
	assert.Equal(t, "A", ms.TopProducts[0].Item.Product.Name)
	assert.Equal(t, 3, ms.TopProducts[0].Item.Quantity)
	assertDec(t, 300, ms.TopProducts[0].Item.Revenue)
	assert.Equal(t, 2, ms.TopProducts[1].Rank)
	assert.Equal(t, "B", ms.TopProducts[1].Item.Product.Name)
	assert.Equal(t, 1, ms.TopProducts[1].Item.Quantity)
	assertDec(t, 300, ms.TopProducts[1].Item.Revenue)
}

func TestTopProductsTruncated(t *testing.T) {
	e := newTestEngine(t)
	ds := &entity.Dataset{}
	for i := 1; i <= 25; i++ {
		ds.Products = append(ds.Products, entity.Product{ID: i, Name: fmt.Sprintf("p%d", i)})
		ds.LineItems = append(ds.LineItems, entity.OrderLineItem{ProductID: i, Quantity: 1, UnitPrice: dec(int64((i * 37) % 11))})
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	require.Len(t, ms.TopProducts, 10)
	for i := 1; i < len(ms.TopProducts); i++ {
		prev, cur := ms.TopProducts[i-1].Item, ms.TopProducts[i].Item
		assert.True(t, prev.Revenue.GreaterThanOrEqual(cur.Revenue))
		if prev.Revenue.Equal(cur.Revenue) {
			assert.Less(t, prev.Product.ID, cur.Product.ID)
		}
		assert.Equal(t, i+1, ms.TopProducts[i].Rank)
	}
}

func TestTopCustomers(t *testing.T) {
	e := newTestEngine(t)
	ds := &entity.Dataset{
		Customers: []entity.Customer{
			{ID: 1, TotalSpent: dec(100)},
			{ID: 2, TotalSpent: dec(500)},
			{ID: 3, TotalSpent: dec(100)},
			{ID: 4, TotalSpent: dec(900)},
		},
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	var ids []int
	for i, tc := range ms.TopCustomers {
		assert.Equal(t, i+1, tc.Rank)
		ids = append(ids, tc.Item.ID)
	}
	assert.Equal(t, []int{4, 2, 1, 3}, ids)
	// input untouched
	assert.Equal(t, 1, ds.Customers[0].ID)
}

func TestPartnerPerformance(t *testing.T) {
	e := newTestEngine(t)
	withPartner := func(o entity.Order, id int32) entity.Order {
		o.DeliveryPartnerID = sql.NullInt32{Int32: id, Valid: true}
		return o
	}

	returned := withPartner(order(entity.OrderStatusDelivered, 200, day(3)), 1)
	returned.ReturnRequestedAt = sql.NullTime{Time: day(5), Valid: true}
	returned.PartnerPaymentStatus = entity.PartnerPaymentReceived
	returned.PartnerPaymentAmount = decimal.NewNullDecimal(dec(200))

	pending := withPartner(order(entity.OrderStatusDelivered, 150, day(3)), 1)
	pending.PartnerPaymentStatus = entity.PartnerPaymentPending

	ds := &entity.Dataset{
		Orders: []entity.Order{
			returned,
			pending,
			withPartner(order(entity.OrderStatusShipped, 100, day(4)), 1),
			withPartner(order(entity.OrderStatusCancelled, 100, day(4)), 1),
			withPartner(order(entity.OrderStatusDelivered, 100, day(4)), 9),
			order(entity.OrderStatusDelivered, 100, day(4)),
		},
		Partners: []entity.DeliveryPartner{
			{ID: 1, Name: "fast", Active: true},
			{ID: 2, Name: "idle", Active: true},
			{ID: 3, Name: "retired", Active: false},
		},
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	require.Len(t, ms.PartnerPerformance, 2)
	fast := ms.PartnerPerformance[0]
	assert.Equal(t, "fast", fast.Partner.Name)
	assert.Equal(t, 4, fast.Sent)
	assert.Equal(t, 2, fast.Delivered)
	assert.Equal(t, 1, fast.Returned)
	assertDec(t, 150, fast.PendingPayment)
	assertDec(t, 200, fast.ReceivedPayment)
	assert.InDelta(t, 50.0, fast.SuccessRate, 1e-9)

	idle := ms.PartnerPerformance[1]
	assert.Equal(t, 0, idle.Sent)
	assert.Equal(t, 0.0, idle.SuccessRate)
}

func TestComputeErrors(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Compute(nil, testFilter(t))
	assert.True(t, errors.Is(err, gerr.SourceFetchFailure))

	_, err = e.Compute(&entity.Dataset{}, entity.ReportFilter{})
	assert.True(t, errors.Is(err, gerr.InvalidPeriod))
}

func TestComputeWeeklySeries(t *testing.T) {
	e, err := New(&Config{Granularity: "week"})
	require.NoError(t, err)

	ds := &entity.Dataset{
		Orders: []entity.Order{
			order(entity.OrderStatusDelivered, 100, day(2)),
			order(entity.OrderStatusDelivered, 100, day(6)),
			order(entity.OrderStatusDelivered, 100, day(7)),
		},
	}
	ms, err := e.Compute(ds, testFilter(t))
	require.NoError(t, err)

	require.Len(t, ms.DailyRevenue, 2)
	assert.Equal(t, "2024-12-30", ms.DailyRevenue[0].Date)
	assert.Equal(t, 1, ms.DailyRevenue[0].OrderCount)
	assert.Equal(t, "2025-01-06", ms.DailyRevenue[1].Date)
	assertDec(t, 200, ms.DailyRevenue[1].Revenue)
}

func TestNewBadConfig(t *testing.T) {
	_, err := New(&Config{Timezone: "Nowhere/Atlantis"})
	assert.Error(t, err)
	_, err = New(&Config{Granularity: "hourly"})
	assert.Error(t, err)
}
