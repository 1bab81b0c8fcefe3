package changefeed

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/jekabolt/grbpwr-crm/internal/dependency"
	"github.com/jekabolt/grbpwr-crm/internal/entity"
)

// Config holds configuration for the change poller.
type Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		PollInterval: 5 * time.Second,
	}
}

// Poller periodically fingerprints the watched tables and publishes a change
// event for every table whose fingerprint moved since the previous poll.
type Poller struct {
	c        *Config
	versions dependency.TableVersioner
	pub      dependency.ChangePublisher
	last     map[entity.Table]string
	ctx      context.Context
	stop     context.CancelFunc
	done     chan struct{}
}

// NewPoller creates a new change poller.
func NewPoller(c *Config, versions dependency.TableVersioner, pub dependency.ChangePublisher) *Poller {
	if c == nil {
		dc := DefaultConfig()
		c = &dc
	}
	if c.PollInterval == 0 {
		c.PollInterval = 5 * time.Second
	}
	return &Poller{
		c:        c,
		versions: versions,
		pub:      pub,
	}
}

// Start takes the initial fingerprint and starts polling.
func (p *Poller) Start(ctx context.Context) error {
	if p.ctx != nil && p.stop != nil {
		return fmt.Errorf("change poller already started")
	}
	p.ctx, p.stop = context.WithCancel(ctx)
	p.done = make(chan struct{})

	last, err := p.versions.TableVersions(p.ctx)
	if err != nil {
		slog.Default().ErrorContext(ctx, "can't get initial table versions",
			slog.String("err", err.Error()),
		)
	}
	p.last = last

	go p.worker(p.ctx)
	return nil
}

// Stop stops the poller and waits for the current poll to finish.
func (p *Poller) Stop() error {
	if p.stop == nil {
		return fmt.Errorf("change poller already stopped or not started")
	}
	p.stop()
	<-p.done
	p.stop = nil
	p.ctx = nil
	return nil
}

func (p *Poller) worker(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.c.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				slog.Default().ErrorContext(ctx, "can't poll table versions",
					slog.String("err", err.Error()),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	cur, err := p.versions.TableVersions(ctx)
	if err != nil {
		return fmt.Errorf("can't get table versions: %w", err)
	}
	// first successful poll after a failed start only records the baseline
	if p.last == nil {
		p.last = cur
		return nil
	}

	for _, t := range entity.WatchedTables {
		v, ok := cur[t]
		if !ok || v == p.last[t] {
			continue
		}
		slog.Default().DebugContext(ctx, "table changed",
			slog.String("table", string(t)),
			slog.String("version", v),
		)
		if err := p.pub.Publish(ctx, entity.ChangeEvent{Table: t}); err != nil {
			return fmt.Errorf("can't publish change of %s: %w", t, err)
		}
	}
	p.last = cur
	return nil
}
