package app

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/jekabolt/grbpwr-crm/config"
	"github.com/jekabolt/grbpwr-crm/internal/aggregate"
	httpapi "github.com/jekabolt/grbpwr-crm/internal/api/http"
	"github.com/jekabolt/grbpwr-crm/internal/apisrv/admin"
	"github.com/jekabolt/grbpwr-crm/internal/apisrv/auth"
	"github.com/jekabolt/grbpwr-crm/internal/bucket"
	"github.com/jekabolt/grbpwr-crm/internal/changefeed"
	"github.com/jekabolt/grbpwr-crm/internal/dependency"
	"github.com/jekabolt/grbpwr-crm/internal/mail"
	"github.com/jekabolt/grbpwr-crm/internal/ratelimit"
	"github.com/jekabolt/grbpwr-crm/internal/recompute"
	"github.com/jekabolt/grbpwr-crm/internal/report"
	"github.com/jekabolt/grbpwr-crm/internal/store"
)

// Storage is the database surface the app runs on.
type Storage interface {
	dependency.DataSource
	dependency.TableVersioner
	httpapi.Pinger
	Close()
}

// App is the main application
type App struct {
	hs      *httpapi.Server
	db      Storage
	ctrl    *recompute.Controller
	poller  *changefeed.Poller
	limiter *ratelimit.Limiter
	c       *config.Config
	done    chan struct{}

	openStore func(ctx context.Context, c store.Config) (Storage, error)
}

// New returns a new instance of App
func New(c *config.Config) *App {
	return &App{
		c:    c,
		done: make(chan struct{}),
		openStore: func(ctx context.Context, c store.Config) (Storage, error) {
			ms, err := store.New(ctx, c)
			if err != nil {
				return nil, err
			}
			return ms, nil
		},
	}
}

// Start starts the app. On failure everything started so far is stopped again.
func (a *App) Start(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			a.Stop(ctx)
		}
	}()
	slog.Default().InfoContext(ctx, "starting grbpwr crm")

	a.db, err = a.openStore(ctx, a.c.DB)
	if err != nil {
		slog.Default().ErrorContext(ctx, "couldn't connect to mysql",
			slog.String("err", err.Error()),
		)
		return err
	}

	engine, err := aggregate.New(&a.c.Reports.Config)
	if err != nil {
		return fmt.Errorf("can't create aggregation engine: %w", err)
	}
	reports, err := report.New(&a.c.Reports.Grid)
	if err != nil {
		return fmt.Errorf("can't create report registry: %w", err)
	}

	broker := changefeed.NewBroker()
	a.ctrl = recompute.New(&a.c.Recompute, a.db, broker, engine, engine.Location())
	if err := a.ctrl.Start(ctx); err != nil {
		a.ctrl = nil
		return fmt.Errorf("can't start recompute controller: %w", err)
	}

	if a.c.ChangeFeed.Enabled {
		a.poller = changefeed.NewPoller(&a.c.ChangeFeed, a.db, broker)
		if err := a.poller.Start(ctx); err != nil {
			a.poller = nil
			return fmt.Errorf("can't start change poller: %w", err)
		}
	}

	deliveries, err := a.deliveries()
	if err != nil {
		return err
	}

	authS, err := auth.New(&a.c.Auth)
	if err != nil {
		slog.Default().ErrorContext(ctx, "failed create new auth server",
			slog.String("err", err.Error()),
		)
		return err
	}
	adminS := admin.New(a.ctrl, reports, broker, deliveries)
	a.limiter = ratelimit.NewLimiter(&a.c.RateLimit)

	hs := httpapi.New(&a.c.HTTP)
	if err = hs.Start(ctx, hs.Handler(adminS, authS, a.limiter, a.db)); err != nil {
		slog.Default().ErrorContext(ctx, "cannot start http server",
			slog.String("err", err.Error()),
		)
		return err
	}
	a.hs = hs

	go func() {
		<-hs.Done()
		select {
		case <-a.done:
		default:
			close(a.done)
		}
	}()

	return nil
}

// deliveries builds the configured export delivery channels.
func (a *App) deliveries() (map[string]dependency.FileDelivery, error) {
	res := map[string]dependency.FileDelivery{}
	if a.c.Bucket.S3Endpoint != "" {
		b, err := bucket.New(&a.c.Bucket)
		if err != nil {
			return nil, fmt.Errorf("can't create bucket delivery: %w", err)
		}
		res["bucket"] = b
	}
	if a.c.Mailer.APIKey != "" {
		m, err := mail.New(&a.c.Mailer)
		if err != nil {
			return nil, fmt.Errorf("can't create mail delivery: %w", err)
		}
		res["mail"] = m
	}
	return res, nil
}

// Stop stops the application and waits for all services to exit. It is safe
// to call more than once.
func (a *App) Stop(ctx context.Context) {
	if a.hs != nil {
		if err := a.hs.Stop(ctx); err != nil {
			slog.Default().ErrorContext(ctx, "can't stop http server",
				slog.String("err", err.Error()),
			)
		}
		a.hs = nil
	}
	if a.poller != nil {
		if err := a.poller.Stop(); err != nil {
			slog.Default().ErrorContext(ctx, "can't stop change poller",
				slog.String("err", err.Error()),
			)
		}
		a.poller = nil
	}
	if a.ctrl != nil {
		if err := a.ctrl.Stop(); err != nil {
			slog.Default().ErrorContext(ctx, "can't stop recompute controller",
				slog.String("err", err.Error()),
			)
		}
		a.ctrl = nil
	}
	if a.limiter != nil {
		a.limiter.Close()
		a.limiter = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}

// Done returns a channel that is closed after the http listener has exited
func (a *App) Done() <-chan struct{} {
	return a.done
}
