package recompute

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jekabolt/grbpwr-crm/internal/aggregate"
	"github.com/jekabolt/grbpwr-crm/internal/dependency"
	"github.com/jekabolt/grbpwr-crm/internal/entity"
	gerr "github.com/jekabolt/grbpwr-crm/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeSource struct {
	mu    sync.Mutex
	calls []entity.ReportFilter
	block chan struct{}
	err   error
}

func (fs *fakeSource) FetchDataset(ctx context.Context, f entity.ReportFilter) (*entity.Dataset, error) {
	fs.mu.Lock()
	fs.calls = append(fs.calls, f)
	block, err := fs.block, fs.err
	fs.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &entity.Dataset{
		Orders: []entity.Order{{
			Status:    entity.OrderStatusDelivered,
			Total:     decimal.NewFromInt(10),
			CreatedAt: f.Period.From,
		}},
	}, nil
}

func (fs *fakeSource) setBlock(ch chan struct{}) {
	fs.mu.Lock()
	fs.block = ch
	fs.mu.Unlock()
}

func (fs *fakeSource) setErr(err error) {
	fs.mu.Lock()
	fs.err = err
	fs.mu.Unlock()
}

func (fs *fakeSource) count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.calls)
}

type fakeNotifier struct {
	ch chan entity.ChangeEvent
}

func (fn *fakeNotifier) Subscribe(ctx context.Context) (<-chan entity.ChangeEvent, error) {
	return fn.ch, nil
}

func newTestController(t *testing.T, src *fakeSource, notifier dependency.ChangeNotifier) *Controller {
	e, err := aggregate.New(nil)
	require.NoError(t, err)
	c := &Config{Debounce: 20 * time.Millisecond, FetchTimeout: time.Second, DefaultDays: 7}
	return New(c, src, notifier, e, time.UTC)
}

func startController(t *testing.T, ctrl *Controller) {
	require.NoError(t, ctrl.Start(context.Background()))
	t.Cleanup(func() {
		_ = ctrl.Stop()
	})
}

func filterFor(t *testing.T, from, to string) entity.ReportFilter {
	p, err := entity.ParsePeriod(from, to, time.UTC)
	require.NoError(t, err)
	return entity.ReportFilter{Period: p}
}

func TestInitialRun(t *testing.T) {
	src := &fakeSource{}
	ctrl := newTestController(t, src, nil)

	_, err := ctrl.Snapshot()
	assert.ErrorIs(t, err, gerr.NoSnapshot)

	startController(t, ctrl)
	require.Eventually(t, func() bool { return ctrl.Current() != nil }, waitFor, tick)

	ms, err := ctrl.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, ms.TotalOrders)
	assert.Equal(t, 7, ctrl.Current().Filter.Period.Days())
	assert.Equal(t, Idle, ctrl.State())
	assert.NoError(t, ctrl.LastError())
}

func TestBurstCollapses(t *testing.T) {
	src := &fakeSource{}
	n := &fakeNotifier{ch: make(chan entity.ChangeEvent, 32)}
	ctrl := newTestController(t, src, n)
	startController(t, ctrl)
	require.Eventually(t, func() bool { return ctrl.Current() != nil }, waitFor, tick)
	require.Equal(t, 1, src.count())

	for i := 0; i < 10; i++ {
		n.ch <- entity.ChangeEvent{Table: entity.TableOrders}
		n.ch <- entity.ChangeEvent{Table: entity.TableProducts}
	}

	require.Eventually(t, func() bool { return src.count() == 2 }, waitFor, tick)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, src.count())
}

func TestUnwatchedTableIgnored(t *testing.T) {
	src := &fakeSource{}
	ctrl := newTestController(t, src, nil)
	startController(t, ctrl)
	require.Eventually(t, func() bool { return ctrl.Current() != nil }, waitFor, tick)

	assert.False(t, ctrl.Notify(entity.ChangeEvent{Table: entity.TableOrderItems}))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, src.count())

	assert.True(t, ctrl.Notify(entity.ChangeEvent{Table: entity.TableAbandonedCarts}))
	require.Eventually(t, func() bool { return src.count() == 2 }, waitFor, tick)
}

func TestTriggerDuringRunSchedulesOneTrailingRun(t *testing.T) {
	src := &fakeSource{}
	ctrl := newTestController(t, src, nil)
	startController(t, ctrl)
	require.Eventually(t, func() bool { return ctrl.Current() != nil }, waitFor, tick)

	block := make(chan struct{})
	src.setBlock(block)
	ctrl.Refresh()
	require.Eventually(t, func() bool { return ctrl.State() == Computing }, waitFor, tick)
	require.Equal(t, 2, src.count())

	for i := 0; i < 5; i++ {
		ctrl.Notify(entity.ChangeEvent{Table: entity.TableCustomers})
		time.Sleep(2 * time.Millisecond)
	}
	// let the debounce elapse while the run is still blocked
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 2, src.count())

	close(block)
	require.Eventually(t, func() bool { return src.count() == 3 && ctrl.State() == Idle }, waitFor, tick)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 3, src.count())
}

func TestFilterChangeDropsStaleRun(t *testing.T) {
	src := &fakeSource{}
	block := make(chan struct{})
	src.setBlock(block)

	ctrl := newTestController(t, src, nil)
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()
	startController(t, ctrl)
	require.Eventually(t, func() bool { return src.count() == 1 }, waitFor, tick)

	want := filterFor(t, "2025-01-01", "2025-01-07")
	require.NoError(t, ctrl.SetFilter(want))
	assert.Equal(t, uint64(1), ctrl.Generation())

	require.Eventually(t, func() bool { return src.count() == 2 }, waitFor, tick)
	close(block)

	require.Eventually(t, func() bool { return ctrl.Current() != nil }, waitFor, tick)
	res := ctrl.Current()
	assert.True(t, want.Equal(res.Filter))
	assert.Equal(t, uint64(1), res.Generation)
	assert.NoError(t, ctrl.LastError())

	select {
	case u := <-updates:
		assert.NoError(t, u.Err)
		assert.Equal(t, uint64(1), u.Generation)
	case <-time.After(waitFor):
		t.Fatal("no update received")
	}
}

func TestFilterChangeWhileRunStarts(t *testing.T) {
	src := &fakeSource{}
	ctrl := newTestController(t, src, nil)
	initial := ctrl.Filter()
	want := filterFor(t, "2025-02-01", "2025-02-10")

	var once sync.Once
	ctrl.onRequest = func() {
		once.Do(func() {
			assert.NoError(t, ctrl.SetFilter(want))
		})
	}
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()
	startController(t, ctrl)

	select {
	case u := <-updates:
		require.NoError(t, u.Err)
		require.NotNil(t, u.Result)
		assert.Equal(t, uint64(1), u.Generation)
		assert.True(t, want.Equal(u.Result.Filter))
	case <-time.After(waitFor):
		t.Fatal("no update received")
	}

	res := ctrl.Current()
	require.NotNil(t, res)
	assert.True(t, want.Equal(res.Filter))

	src.mu.Lock()
	defer src.mu.Unlock()
	require.Len(t, src.calls, 2)
	assert.True(t, initial.Equal(src.calls[0]))
	assert.True(t, want.Equal(src.calls[1]))
}

func TestSameFilterKeepsGeneration(t *testing.T) {
	ctrl := newTestController(t, &fakeSource{}, nil)
	f := filterFor(t, "2025-01-01", "2025-01-07")

	require.NoError(t, ctrl.SetFilter(f))
	require.NoError(t, ctrl.SetFilter(f))
	assert.Equal(t, uint64(1), ctrl.Generation())
	assert.True(t, f.Equal(ctrl.Filter()))
}

func TestFailureKeepsPreviousSnapshot(t *testing.T) {
	src := &fakeSource{}
	ctrl := newTestController(t, src, nil)
	startController(t, ctrl)
	require.Eventually(t, func() bool { return ctrl.Current() != nil }, waitFor, tick)
	prev := ctrl.Current()

	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	src.setErr(errors.New("db down"))
	ctrl.Refresh()

	select {
	case u := <-updates:
		require.Error(t, u.Err)
		assert.Nil(t, u.Result)
	case <-time.After(waitFor):
		t.Fatal("no failure update received")
	}
	assert.EqualError(t, ctrl.LastError(), "db down")
	assert.Same(t, prev, ctrl.Current())

	// no automatic retry
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, src.count())

	src.setErr(nil)
	ctrl.Refresh()
	require.Eventually(t, func() bool { return ctrl.Current() != prev }, waitFor, tick)
	assert.NoError(t, ctrl.LastError())
}

func TestSetFilterValidation(t *testing.T) {
	ctrl := newTestController(t, &fakeSource{}, nil)
	assert.ErrorIs(t, ctrl.SetFilter(entity.ReportFilter{}), gerr.InvalidPeriod)

	bad := entity.OrderStatus("lost")
	f := filterFor(t, "2025-01-01", "2025-01-02")
	f.Status = &bad
	assert.ErrorIs(t, ctrl.SetFilter(f), gerr.InvalidFilter)
	assert.Equal(t, uint64(0), ctrl.Generation())
}

func TestStartStop(t *testing.T) {
	ctrl := newTestController(t, &fakeSource{}, nil)
	assert.Error(t, ctrl.Stop())
	require.NoError(t, ctrl.Start(context.Background()))
	assert.Error(t, ctrl.Start(context.Background()))
	assert.NoError(t, ctrl.Stop())
	assert.Error(t, ctrl.Stop())
}
