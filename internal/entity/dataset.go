package entity

// Dataset is the full set of raw collections one aggregation run consumes.
type Dataset struct {
	// Orders created within the filter period, status filter applied.
	Orders []Order
	// PreviousOrders are orders of the preceding window of the same length.
	PreviousOrders []Order
	// Customers are not date filtered.
	Customers []Customer
	// AbandonedCarts holds unrecovered carts only.
	AbandonedCarts []AbandonedCart
	Products       []Product
	// LineItems span all history.
	LineItems []OrderLineItem
	// Partners holds active delivery partners only.
	Partners []DeliveryPartner
}
