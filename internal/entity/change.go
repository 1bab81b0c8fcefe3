package entity

import "fmt"

// Table names a source collection that emits change notifications.
type Table string

const (
	TableOrders          Table = "orders"
	TableCustomers       Table = "customers"
	TableProducts        Table = "products"
	TableAbandonedCarts  Table = "abandoned_carts"
	TableOrderItems      Table = "order_items"
	TableDeliveryPartner Table = "delivery_partners"
)

// WatchedTables are the tables whose changes trigger a recomputation.
var WatchedTables = []Table{
	TableOrders,
	TableCustomers,
	TableProducts,
	TableAbandonedCarts,
}

// Watched reports whether a change to t should trigger recomputation.
func (t Table) Watched() bool {
	for _, w := range WatchedTables {
		if t == w {
			return true
		}
	}
	return false
}

// ParseTable validates a table name.
func ParseTable(s string) (Table, error) {
	t := Table(s)
	switch t {
	case TableOrders, TableCustomers, TableProducts, TableAbandonedCarts, TableOrderItems, TableDeliveryPartner:
		return t, nil
	}
	return "", fmt.Errorf("unknown table %q", s)
}

// ChangeEvent signals that a table changed. Only its arrival matters.
type ChangeEvent struct {
	Table Table `json:"table"`
}
