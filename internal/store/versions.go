package store

import (
	"context"
	"fmt"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
)

var watchedTables = map[entity.Table]string{
	entity.TableOrders:         "customer_order",
	entity.TableCustomers:      "customer",
	entity.TableProducts:       "product",
	entity.TableAbandonedCarts: "abandoned_cart",
}

type tableVersion struct {
	Rows    int64 `db:"row_count"`
	Updated int64 `db:"last_update"`
}

// TableVersions returns a fingerprint per watched table made of the row count
// and the latest update time. Any insert, update or delete changes it.
func (ms *MYSQLStore) TableVersions(ctx context.Context) (map[entity.Table]string, error) {
	res := make(map[entity.Table]string, len(watchedTables))
	for t, name := range watchedTables {
		query := fmt.Sprintf(`
		SELECT COUNT(*) AS row_count,
			CAST(COALESCE(UNIX_TIMESTAMP(MAX(updated_at)) * 1000000, 0) AS SIGNED) AS last_update
		FROM %s`, name)
		v, err := QueryNamedOne[tableVersion](ctx, ms.db, query, nil)
		if err != nil {
			return nil, fmt.Errorf("can't get version of %s: %w", name, err)
		}
		res[t] = fmt.Sprintf("%d:%d", v.Rows, v.Updated)
	}
	return res, nil
}
