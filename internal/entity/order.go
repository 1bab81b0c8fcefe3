package entity

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in display order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	for _, os := range OrderStatuses {
		if s == os {
			return true
		}
	}
	return false
}

// ParseOrderStatus parses a status name. Empty string and "all" yield nil (no filter).
func ParseOrderStatus(s string) (*OrderStatus, error) {
	if s == "" || s == "all" {
		return nil, nil
	}
	st := OrderStatus(s)
	if !st.Valid() {
		return nil, fmt.Errorf("unknown order status %q", s)
	}
	return &st, nil
}

// PartnerPaymentStatus tracks settlement of cash collected by a delivery partner.
type PartnerPaymentStatus string

const (
	PartnerPaymentNone     PartnerPaymentStatus = "none"
	PartnerPaymentPending  PartnerPaymentStatus = "pending"
	PartnerPaymentReceived PartnerPaymentStatus = "received"
)

// Order represents the customer_order table
type Order struct {
	ID                   int                  `db:"id"`
	OrderNumber          string               `db:"order_number"`
	Status               OrderStatus          `db:"status"`
	Total                decimal.Decimal      `db:"total"`
	CreatedAt            time.Time            `db:"created_at"`
	ReturnRequestedAt    sql.NullTime         `db:"return_requested_at"`
	DeliveryPartnerID    sql.NullInt32        `db:"delivery_partner_id"`
	PartnerPaymentStatus PartnerPaymentStatus `db:"partner_payment_status"`
	PartnerPaymentAmount decimal.NullDecimal  `db:"partner_payment_amount"`
}

// Delivered reports whether the order counts towards revenue.
func (o *Order) Delivered() bool {
	return o.Status == OrderStatusDelivered
}

// Returned reports whether a return was requested for the order.
func (o *Order) Returned() bool {
	return o.ReturnRequestedAt.Valid
}

// PartnerID returns the assigned delivery partner id, if any.
func (o *Order) PartnerID() (int, bool) {
	if !o.DeliveryPartnerID.Valid {
		return 0, false
	}
	return int(o.DeliveryPartnerID.Int32), true
}

// PendingPaymentAmount is the partner payment amount falling back to the order total.
func (o *Order) PendingPaymentAmount() decimal.Decimal {
	if o.PartnerPaymentAmount.Valid {
		return o.PartnerPaymentAmount.Decimal
	}
	return o.Total
}

// ReceivedPaymentAmount is the partner payment amount falling back to zero.
func (o *Order) ReceivedPaymentAmount() decimal.Decimal {
	if o.PartnerPaymentAmount.Valid {
		return o.PartnerPaymentAmount.Decimal
	}
	return decimal.Zero
}

// OrderLineItem represents the order_item table
type OrderLineItem struct {
	ID        int             `db:"id"`
	OrderID   int             `db:"order_id"`
	ProductID int             `db:"product_id"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

// Revenue is quantity times the unit price at the time of sale.
func (li *OrderLineItem) Revenue() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}
