package dependency

import (
	"context"
	"database/sql"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	"github.com/jmoiron/sqlx"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type (
	// DataSource loads every raw collection an aggregation run needs.
	DataSource interface {
		// FetchDataset returns period orders (status filter applied), previous period
		// orders, all customers, unrecovered carts, all products, all line items and
		// active delivery partners. Any failure aborts the whole fetch.
		FetchDataset(ctx context.Context, f entity.ReportFilter) (*entity.Dataset, error)
	}

	// ChangeNotifier emits an event whenever a source table changes.
	ChangeNotifier interface {
		// Subscribe returns a channel closed when ctx is done.
		Subscribe(ctx context.Context) (<-chan entity.ChangeEvent, error)
	}

	// ChangePublisher accepts change events from external producers.
	ChangePublisher interface {
		Publish(ctx context.Context, ev entity.ChangeEvent) error
	}

	// Aggregator computes a snapshot from a dataset.
	Aggregator interface {
		Compute(ds *entity.Dataset, f entity.ReportFilter) (*entity.MetricsSnapshot, error)
	}

	// FileDelivery hands a rendered export to a delivery channel and returns
	// where it ended up (url, recipient, path).
	FileDelivery interface {
		Deliver(ctx context.Context, f *entity.File) (string, error)
	}

	// TableVersioner reports a version fingerprint per watched table.
	TableVersioner interface {
		TableVersions(ctx context.Context) (map[entity.Table]string, error)
	}

	Sender interface {
		SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
	}

	DB interface {
		BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

		// sqlx methods
		GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
		QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
		QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
		SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	}
)
