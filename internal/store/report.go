package store

import (
	"context"
	"fmt"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"golang.org/x/sync/errgroup"
)

const (
	ordersQuery = `
	SELECT id, order_number, status, total, created_at, return_requested_at,
		delivery_partner_id, partner_payment_status, partner_payment_amount
	FROM customer_order
	WHERE created_at BETWEEN :from AND :to
		AND (:status = '' OR status = :status)
	ORDER BY created_at, id`

	customersQuery = `
	SELECT id, name, email, total_orders, total_spent, premium, created_at
	FROM customer
	ORDER BY id`

	abandonedCartsQuery = `
	SELECT id, cart_total, recovered, created_at
	FROM abandoned_cart
	WHERE recovered = FALSE
	ORDER BY id`

	productsQuery = `
	SELECT id, name, COALESCE(images, '') AS images, stock_quantity, price, active
	FROM product
	ORDER BY id`

	lineItemsQuery = `
	SELECT id, order_id, product_id, quantity, unit_price
	FROM order_item
	ORDER BY id`

	partnersQuery = `
	SELECT id, name, active
	FROM delivery_partner
	WHERE active = TRUE
	ORDER BY id`
)

// FetchDataset loads all collections for f concurrently. The first failure
// cancels the rest and the whole fetch fails with gerr.SourceFetchFailure.
func (ms *MYSQLStore) FetchDataset(ctx context.Context, f entity.ReportFilter) (*entity.Dataset, error) {
	ds := &entity.Dataset{}
	prev := f.Period.Previous()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ds.Orders, err = ms.ordersBetween(ctx, f.Period, f.Status)
		return wrapFetch("orders", err)
	})
	g.Go(func() error {
		var err error
		ds.PreviousOrders, err = ms.ordersBetween(ctx, prev, f.Status)
		return wrapFetch("previous period orders", err)
	})
	g.Go(func() error {
		var err error
		ds.Customers, err = QueryListNamed[entity.Customer](ctx, ms.db, customersQuery, nil)
		return wrapFetch("customers", err)
	})
	g.Go(func() error {
		var err error
		ds.AbandonedCarts, err = QueryListNamed[entity.AbandonedCart](ctx, ms.db, abandonedCartsQuery, nil)
		return wrapFetch("abandoned carts", err)
	})
	g.Go(func() error {
		var err error
		ds.Products, err = QueryListNamed[entity.Product](ctx, ms.db, productsQuery, nil)
		return wrapFetch("products", err)
	})
	g.Go(func() error {
		var err error
		ds.LineItems, err = QueryListNamed[entity.OrderLineItem](ctx, ms.db, lineItemsQuery, nil)
		return wrapFetch("order items", err)
	})
	g.Go(func() error {
		var err error
		ds.Partners, err = QueryListNamed[entity.DeliveryPartner](ctx, ms.db, partnersQuery, nil)
		return wrapFetch("delivery partners", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (ms *MYSQLStore) ordersBetween(ctx context.Context, p entity.Period, status *entity.OrderStatus) ([]entity.Order, error) {
	st := ""
	if status != nil {
		st = string(*status)
	}
	return QueryListNamed[entity.Order](ctx, ms.db, ordersQuery, map[string]any{
		"from":   p.From,
		"to":     p.To,
		"status": st,
	})
}

func wrapFetch(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("can't fetch %s: %s: %w", what, err.Error(), gerr.SourceFetchFailure)
}
