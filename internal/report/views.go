package report

import (
	"strconv"
	"time"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	"github.com/jekabolt/grbpwr-crm/internal/grid"
	"github.com/shopspring/decimal"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func percent(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64) + "%"
}

func ordersView(ds *entity.Dataset, _ *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	partners := make(map[int]string, len(ds.Partners))
	for _, p := range ds.Partners {
		partners[p.ID] = p.Name
	}
	partner := func(o entity.Order) string {
		id, ok := o.PartnerID()
		if !ok {
			return ""
		}
		if name, ok := partners[id]; ok {
			return name
		}
		return strconv.Itoa(id)
	}

	cols := []grid.Column[entity.Order]{
		{Key: "id", Label: "ID", Sortable: true, Value: func(o entity.Order) any { return o.ID }},
		{Key: "order_number", Label: "Order", Sortable: true, Value: func(o entity.Order) any { return o.OrderNumber }},
		{Key: "status", Label: "Status", Sortable: true, Value: func(o entity.Order) any { return o.Status }},
		{
			Key: "total", Label: "Total", Sortable: true,
			Value:  func(o entity.Order) any { return o.Total },
			Render: func(o entity.Order) string { return money(o.Total) },
		},
		{Key: "created_at", Label: "Created", Sortable: true, Value: func(o entity.Order) any { return o.CreatedAt }},
		{
			Key: "returned", Label: "Returned", Sortable: true,
			Value:  func(o entity.Order) any { return o.Returned() },
			Render: func(o entity.Order) string { return yesNo(o.Returned()) },
		},
		{Key: "partner", Label: "Delivery partner", Sortable: true, Value: func(o entity.Order) any { return partner(o) }},
		{Key: "partner_payment_status", Label: "Partner payment", Sortable: true, Value: func(o entity.Order) any { return string(o.PartnerPaymentStatus) }},
		{
			Key: "partner_payment_amount", Label: "Partner amount", Sortable: true,
			Value: func(o entity.Order) any { return o.PartnerPaymentAmount },
			Render: func(o entity.Order) string {
				if !o.PartnerPaymentAmount.Valid {
					return ""
				}
				return money(o.PartnerPaymentAmount.Decimal)
			},
		},
	}
	return grid.New("orders", cols, ds.Orders, opts...)
}

func statusCountsView(_ *entity.Dataset, snap *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	cols := []grid.Column[entity.StatusCount]{
		{Key: "status", Label: "Status", Sortable: true, Value: func(s entity.StatusCount) any { return s.Status }},
		{Key: "count", Label: "Orders", Sortable: true, Value: func(s entity.StatusCount) any { return s.Count }},
	}
	return grid.New("status_counts", cols, snap.StatusCounts, append(opts, grid.WithIDKey("status"))...)
}

func dailyRevenueView(_ *entity.Dataset, snap *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	cols := []grid.Column[entity.DailyRevenuePoint]{
		{Key: "date", Label: "Date", Sortable: true, Value: func(p entity.DailyRevenuePoint) any { return p.Date }},
		{
			Key: "revenue", Label: "Revenue", Sortable: true,
			Value:  func(p entity.DailyRevenuePoint) any { return p.Revenue },
			Render: func(p entity.DailyRevenuePoint) string { return money(p.Revenue) },
		},
		{Key: "order_count", Label: "Orders", Sortable: true, Value: func(p entity.DailyRevenuePoint) any { return p.OrderCount }},
	}
	return grid.New("daily_revenue", cols, snap.DailyRevenue, append(opts, grid.WithIDKey("date"))...)
}

func customerColumns() []grid.Column[entity.Customer] {
	return []grid.Column[entity.Customer]{
		{Key: "id", Label: "ID", Sortable: true, Value: func(c entity.Customer) any { return c.ID }},
		{Key: "name", Label: "Name", Sortable: true, Value: func(c entity.Customer) any { return c.Name }},
		{Key: "email", Label: "Email", Sortable: true, Value: func(c entity.Customer) any { return c.Email }},
		{Key: "total_orders", Label: "Orders", Sortable: true, Value: func(c entity.Customer) any { return c.TotalOrders }},
		{
			Key: "total_spent", Label: "Total spent", Sortable: true,
			Value:  func(c entity.Customer) any { return c.TotalSpent },
			Render: func(c entity.Customer) string { return money(c.TotalSpent) },
		},
		{
			Key: "premium", Label: "Premium", Sortable: true,
			Value:  func(c entity.Customer) any { return c.Premium },
			Render: func(c entity.Customer) string { return yesNo(c.Premium) },
		},
		{Key: "created_at", Label: "Joined", Sortable: true, Value: func(c entity.Customer) any { return c.CreatedAt }},
	}
}

func customersView(ds *entity.Dataset, _ *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	return grid.New("customers", customerColumns(), ds.Customers, opts...)
}

func topCustomersView(_ *entity.Dataset, snap *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	cols := []grid.Column[entity.RankedEntry[entity.Customer]]{
		{Key: "rank", Label: "#", Sortable: true, Value: func(e entity.RankedEntry[entity.Customer]) any { return e.Rank }},
	}
	for _, c := range customerColumns() {
		cols = append(cols, liftRanked(c))
	}
	return grid.New("top_customers", cols, snap.TopCustomers, opts...)
}

// liftRanked adapts a column of T to ranked entries of T.
func liftRanked[T any](c grid.Column[T]) grid.Column[entity.RankedEntry[T]] {
	res := grid.Column[entity.RankedEntry[T]]{
		Key:      c.Key,
		Label:    c.Label,
		Sortable: c.Sortable,
		Value:    func(e entity.RankedEntry[T]) any { return c.Value(e.Item) },
	}
	if c.Render != nil {
		res.Render = func(e entity.RankedEntry[T]) string { return c.Render(e.Item) }
	}
	return res
}

const (
	stockIn       = "in stock"
	stockLow      = "low"
	stockOut      = "out of stock"
	stockInactive = "inactive"
)

func productColumns(low map[int]struct{}) []grid.Column[entity.Product] {
	state := func(p entity.Product) string {
		switch _, isLow := low[p.ID]; {
		case !p.Active:
			return stockInactive
		case p.StockQuantity == 0:
			return stockOut
		case isLow:
			return stockLow
		}
		return stockIn
	}
	return []grid.Column[entity.Product]{
		{Key: "id", Label: "ID", Sortable: true, Value: func(p entity.Product) any { return p.ID }},
		{Key: "thumbnail", Label: "Image", Value: func(p entity.Product) any { return p.Thumbnail() }},
		{Key: "name", Label: "Name", Sortable: true, Value: func(p entity.Product) any { return p.Name }},
		{
			Key: "price", Label: "Price", Sortable: true,
			Value:  func(p entity.Product) any { return p.Price },
			Render: func(p entity.Product) string { return money(p.Price) },
		},
		{Key: "stock_quantity", Label: "Stock", Sortable: true, Value: func(p entity.Product) any { return p.StockQuantity }},
		{Key: "stock_state", Label: "Stock state", Sortable: true, Value: func(p entity.Product) any { return state(p) }},
	}
}

func lowStockSet(snap *entity.MetricsSnapshot) map[int]struct{} {
	low := make(map[int]struct{}, len(snap.LowStockItems))
	for _, p := range snap.LowStockItems {
		low[p.ID] = struct{}{}
	}
	return low
}

func productsView(ds *entity.Dataset, snap *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	return grid.New("products", productColumns(lowStockSet(snap)), ds.Products, opts...)
}

func lowStockView(_ *entity.Dataset, snap *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	return grid.New("low_stock", productColumns(lowStockSet(snap)), snap.LowStockItems, opts...)
}

func topProductsView(_ *entity.Dataset, snap *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	type row = entity.RankedEntry[entity.ProductSales]
	cols := []grid.Column[row]{
		{Key: "rank", Label: "#", Sortable: true, Value: func(e row) any { return e.Rank }},
		{Key: "id", Label: "ID", Sortable: true, Value: func(e row) any { return e.Item.Product.ID }},
		{Key: "thumbnail", Label: "Image", Value: func(e row) any { return e.Item.Product.Thumbnail() }},
		{Key: "name", Label: "Product", Sortable: true, Value: func(e row) any { return e.Item.Product.Name }},
		{Key: "quantity", Label: "Units sold", Sortable: true, Value: func(e row) any { return e.Item.Quantity }},
		{
			Key: "revenue", Label: "Revenue", Sortable: true,
			Value:  func(e row) any { return e.Item.Revenue },
			Render: func(e row) string { return money(e.Item.Revenue) },
		},
	}
	return grid.New("top_products", cols, snap.TopProducts, opts...)
}

func abandonedCartsView(ds *entity.Dataset, _ *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	cols := []grid.Column[entity.AbandonedCart]{
		{Key: "id", Label: "ID", Sortable: true, Value: func(c entity.AbandonedCart) any { return c.ID }},
		{
			Key: "cart_total", Label: "Cart total", Sortable: true,
			Value:  func(c entity.AbandonedCart) any { return c.CartTotal },
			Render: func(c entity.AbandonedCart) string { return money(c.CartTotal) },
		},
		{Key: "created_at", Label: "Created", Sortable: true, Value: func(c entity.AbandonedCart) any { return c.CreatedAt }},
		{
			Key: "age_days", Label: "Age (days)", Sortable: true,
			Value: func(c entity.AbandonedCart) any { return int(time.Since(c.CreatedAt).Hours() / 24) },
		},
	}
	return grid.New("abandoned_carts", cols, ds.AbandonedCarts, opts...)
}

func partnersView(_ *entity.Dataset, snap *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	type row = entity.PartnerPerformanceEntry
	cols := []grid.Column[row]{
		{Key: "id", Label: "ID", Sortable: true, Value: func(p row) any { return p.Partner.ID }},
		{Key: "name", Label: "Partner", Sortable: true, Value: func(p row) any { return p.Partner.Name }},
		{Key: "sent", Label: "Sent", Sortable: true, Value: func(p row) any { return p.Sent }},
		{Key: "delivered", Label: "Delivered", Sortable: true, Value: func(p row) any { return p.Delivered }},
		{Key: "returned", Label: "Returned", Sortable: true, Value: func(p row) any { return p.Returned }},
		{
			Key: "pending_payment", Label: "Pending payment", Sortable: true,
			Value:  func(p row) any { return p.PendingPayment },
			Render: func(p row) string { return money(p.PendingPayment) },
		},
		{
			Key: "received_payment", Label: "Received payment", Sortable: true,
			Value:  func(p row) any { return p.ReceivedPayment },
			Render: func(p row) string { return money(p.ReceivedPayment) },
		},
		{
			Key: "success_rate", Label: "Success rate", Sortable: true,
			Value:  func(p row) any { return p.SuccessRate },
			Render: func(p row) string { return percent(p.SuccessRate) },
		},
	}
	return grid.New("partners", cols, snap.PartnerPerformance, opts...)
}

type kpi struct {
	Key   string
	Label string
	Value any
	Text  string
}

func moneyKPI(key, label string, d decimal.Decimal) kpi {
	return kpi{Key: key, Label: label, Value: d, Text: money(d)}
}

func countKPI(key, label string, n int) kpi {
	return kpi{Key: key, Label: label, Value: n, Text: strconv.Itoa(n)}
}

func percentKPI(key, label string, f float64) kpi {
	return kpi{Key: key, Label: label, Value: f, Text: percent(f)}
}

// summaryView lists the headline figures of the snapshot, one per row.
func summaryView(_ *entity.Dataset, snap *entity.MetricsSnapshot, opts ...grid.Option) grid.Grid {
	rows := []kpi{
		moneyKPI("total_revenue", "Revenue", snap.TotalRevenue),
		percentKPI("revenue_change", "Revenue change", snap.RevenueChangePct),
		countKPI("total_orders", "Orders", snap.TotalOrders),
		percentKPI("orders_change", "Orders change", snap.OrdersChangePct),
		countKPI("delivered_orders", "Delivered", snap.DeliveredOrders),
		countKPI("returned_orders", "Returned", snap.ReturnedOrders),
		moneyKPI("avg_order_value", "Average order value", snap.AvgOrderValue),
		moneyKPI("pending_payments", "Pending partner payments", snap.PendingPayments),
		moneyKPI("received_payments", "Received partner payments", snap.ReceivedPayments),
		countKPI("new_customers", "New customers", snap.NewCustomers),
		countKPI("total_customers", "Customers", snap.TotalCustomers),
		countKPI("premium_customers", "Premium customers", snap.PremiumCustomers),
		countKPI("abandoned_carts", "Abandoned carts", snap.AbandonedCarts),
		moneyKPI("abandoned_value", "Abandoned value", snap.AbandonedValue),
		percentKPI("conversion_rate", "Conversion rate", snap.ConversionRate),
		countKPI("active_products", "Active products", snap.ActiveProducts),
		countKPI("low_stock", "Low stock", snap.LowStock),
		countKPI("out_of_stock", "Out of stock", snap.OutOfStock),
	}
	cols := []grid.Column[kpi]{
		{Key: "key", Label: "Key", Value: func(k kpi) any { return k.Key }},
		{Key: "metric", Label: "Metric", Sortable: true, Value: func(k kpi) any { return k.Label }},
		{
			Key: "value", Label: "Value", Sortable: true,
			Value:  func(k kpi) any { return k.Value },
			Render: func(k kpi) string { return k.Text },
		},
	}
	return grid.New("summary", cols, rows, append(opts, grid.WithIDKey("key"))...)
}
