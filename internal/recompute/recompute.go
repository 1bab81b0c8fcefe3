// Package recompute keeps the metrics snapshot current. Filter changes, change
// notifications and manual refreshes are collapsed by a trailing debounce into
// at most one aggregation run at a time; results of superseded filters are dropped.
package recompute

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jekabolt/grbpwr-crm/internal/dependency"
	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
)

// Config holds configuration for the recomputation controller.
type Config struct {
	Debounce     time.Duration `mapstructure:"debounce"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// DefaultDays is the length of the initial period ending today.
	DefaultDays int `mapstructure:"default_days"`
}

// DefaultConfig returns default configuration values.
func DefaultConfig() Config {
	return Config{
		Debounce:     300 * time.Millisecond,
		FetchTimeout: 30 * time.Second,
		DefaultDays:  30,
	}
}

// State of the controller.
type State int32

const (
	Idle State = iota
	Computing
)

func (s State) String() string {
	if s == Computing {
		return "computing"
	}
	return "idle"
}

// Result is one successful run. It is never mutated after publication.
type Result struct {
	Generation uint64
	Filter     entity.ReportFilter
	Dataset    *entity.Dataset
	Snapshot   *entity.MetricsSnapshot
	ComputedAt time.Time
}

// Update is pushed to subscribers after every finished, non-stale run.
type Update struct {
	Generation uint64
	Result     *Result
	Err        error
}

type request struct {
	filter     entity.ReportFilter
	generation uint64
}

// Controller owns the current snapshot.
type Controller struct {
	c        *Config
	source   dependency.DataSource
	notifier dependency.ChangeNotifier
	engine   dependency.Aggregator
	loc      *time.Location

	// req pairs the filter with its generation so both are swapped together.
	req     atomic.Pointer[request]
	current atomic.Pointer[Result]
	lastErr atomic.Pointer[error]
	state   atomic.Int32
	runs    atomic.Uint64

	// onRequest runs in the loop right after a run captured its request.
	onRequest func()

	kick chan struct{}

	mu   sync.Mutex
	subs map[chan Update]struct{}

	ctx  context.Context
	stop context.CancelFunc
	done chan struct{}
}

// New creates a new controller. notifier may be nil.
func New(c *Config, source dependency.DataSource, notifier dependency.ChangeNotifier, engine dependency.Aggregator, loc *time.Location) *Controller {
	if c == nil {
		dc := DefaultConfig()
		c = &dc
	}
	if c.Debounce <= 0 {
		c.Debounce = 300 * time.Millisecond
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
	if c.DefaultDays <= 0 {
		c.DefaultDays = 30
	}
	if loc == nil {
		loc = time.UTC
	}
	ctrl := &Controller{
		c:        c,
		source:   source,
		notifier: notifier,
		engine:   engine,
		loc:      loc,
		kick:     make(chan struct{}, 1),
		subs:     make(map[chan Update]struct{}),
	}
	f := entity.LastDays(time.Now(), c.DefaultDays, loc)
	ctrl.req.Store(&request{filter: f})
	return ctrl
}

// Start subscribes to change notifications and computes the first snapshot.
func (ctrl *Controller) Start(ctx context.Context) error {
	if ctrl.ctx != nil && ctrl.stop != nil {
		return fmt.Errorf("recompute controller already started")
	}
	ctrl.ctx, ctrl.stop = context.WithCancel(ctx)
	ctrl.done = make(chan struct{})

	if ctrl.notifier != nil {
		events, err := ctrl.notifier.Subscribe(ctrl.ctx)
		if err != nil {
			ctrl.stop()
			ctrl.ctx, ctrl.stop = nil, nil
			return fmt.Errorf("can't subscribe to change notifications: %w", err)
		}
		go ctrl.listen(ctrl.ctx, events)
	}

	go ctrl.loop(ctrl.ctx)
	ctrl.trigger()
	return nil
}

// Stop stops the controller and waits for the loop to exit.
func (ctrl *Controller) Stop() error {
	if ctrl.stop == nil {
		return fmt.Errorf("recompute controller already stopped or not started")
	}
	ctrl.stop()
	ctrl.stop = nil
	<-ctrl.done
	return nil
}

// SetFilter requests a recomputation for f. A different filter supersedes any
// run in flight.
func (ctrl *Controller) SetFilter(f entity.ReportFilter) error {
	if err := f.Period.Validate(); err != nil {
		return fmt.Errorf("%s: %w", err.Error(), gerr.InvalidPeriod)
	}
	if f.Status != nil && !f.Status.Valid() {
		return fmt.Errorf("status %q: %w", *f.Status, gerr.InvalidFilter)
	}
	for {
		cur := ctrl.req.Load()
		if cur.filter.Equal(f) {
			break
		}
		if ctrl.req.CompareAndSwap(cur, &request{filter: f, generation: cur.generation + 1}) {
			break
		}
	}
	ctrl.trigger()
	return nil
}

// Refresh requests a recomputation with the current filter.
func (ctrl *Controller) Refresh() {
	ctrl.trigger()
}

// Notify handles a change event. Tables outside entity.WatchedTables are ignored.
func (ctrl *Controller) Notify(ev entity.ChangeEvent) bool {
	if !ev.Table.Watched() {
		return false
	}
	ctrl.trigger()
	return true
}

// Filter is the most recently requested filter.
func (ctrl *Controller) Filter() entity.ReportFilter {
	return ctrl.req.Load().filter
}

// Current is the last successful result, nil before the first one.
func (ctrl *Controller) Current() *Result {
	return ctrl.current.Load()
}

// Snapshot returns a copy of the current snapshot or gerr.NoSnapshot.
func (ctrl *Controller) Snapshot() (*entity.MetricsSnapshot, error) {
	res := ctrl.current.Load()
	if res == nil {
		return nil, gerr.NoSnapshot
	}
	return res.Snapshot.Clone(), nil
}

// LastError is the error of the latest finished run, nil after a success.
func (ctrl *Controller) LastError() error {
	if p := ctrl.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// State reports whether a run is in flight.
func (ctrl *Controller) State() State {
	return State(ctrl.state.Load())
}

// Generation is the current filter generation.
func (ctrl *Controller) Generation() uint64 {
	return ctrl.req.Load().generation
}

// Runs is the number of aggregation runs started so far.
func (ctrl *Controller) Runs() uint64 {
	return ctrl.runs.Load()
}

// Location is the reporting timezone.
func (ctrl *Controller) Location() *time.Location {
	return ctrl.loc
}

// Subscribe returns a channel that receives the latest update. Slow readers
// only see the most recent one. Call the returned func to unsubscribe.
func (ctrl *Controller) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)
	ctrl.mu.Lock()
	ctrl.subs[ch] = struct{}{}
	ctrl.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			ctrl.mu.Lock()
			delete(ctrl.subs, ch)
			ctrl.mu.Unlock()
		})
	}
}

func (ctrl *Controller) publish(u Update) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	for ch := range ctrl.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

func (ctrl *Controller) trigger() {
	select {
	case ctrl.kick <- struct{}{}:
	default:
	}
}
