package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer represents the customer table
type Customer struct {
	ID          int             `db:"id"`
	Name        string          `db:"name"`
	Email       string          `db:"email"`
	TotalOrders int             `db:"total_orders"`
	TotalSpent  decimal.Decimal `db:"total_spent"`
	Premium     bool            `db:"premium"`
	CreatedAt   time.Time       `db:"created_at"`
}

// AbandonedCart represents the abandoned_cart table
type AbandonedCart struct {
	ID        int             `db:"id"`
	CartTotal decimal.Decimal `db:"cart_total"`
	Recovered bool            `db:"recovered"`
	CreatedAt time.Time       `db:"created_at"`
}

// DeliveryPartner represents the delivery_partner table
type DeliveryPartner struct {
	ID     int    `db:"id"`
	Name   string `db:"name"`
	Active bool   `db:"active"`
}
