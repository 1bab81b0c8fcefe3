package changefeed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := b.Subscribe(ctx)
	require.NoError(t, err)
	c, err := b.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Subscribers())

	require.NoError(t, b.Publish(ctx, entity.ChangeEvent{Table: entity.TableOrders}))
	assert.Equal(t, entity.TableOrders, (<-a).Table)
	assert.Equal(t, entity.TableOrders, (<-c).Table)
}

func TestBrokerRejectsUnknownTable(t *testing.T) {
	b := NewBroker()
	err := b.Publish(context.Background(), entity.ChangeEvent{Table: "payments"})
	assert.Error(t, err)
}

func TestBrokerUnsubscribeOnCancel(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers())

	_, err = b.Subscribe(ctx)
	assert.Error(t, err)
}

func TestBrokerDoesNotBlock(t *testing.T) {
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := b.Subscribe(ctx)
	require.NoError(t, err)

	for i := 0; i < subscriberBuffer*2; i++ {
		require.NoError(t, b.Publish(ctx, entity.ChangeEvent{Table: entity.TableProducts}))
	}
}

type fakeVersions struct {
	mu  sync.Mutex
	v   map[entity.Table]string
	err error
}

func (f *fakeVersions) set(t entity.Table, v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.v[t] = v
}

func (f *fakeVersions) TableVersions(context.Context) (map[entity.Table]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	res := make(map[entity.Table]string, len(f.v))
	for k, v := range f.v {
		res[k] = v
	}
	return res, nil
}

func TestPollerPublishesChangedTables(t *testing.T) {
	fv := &fakeVersions{v: map[entity.Table]string{
		entity.TableOrders:    "1:1",
		entity.TableCustomers: "1:1",
	}}
	b := NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := b.Subscribe(ctx)
	require.NoError(t, err)

	p := NewPoller(&Config{Enabled: true, PollInterval: 10 * time.Millisecond}, fv, b)
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	fv.set(entity.TableCustomers, "2:5")

	select {
	case ev := <-events:
		assert.Equal(t, entity.TableCustomers, ev.Table)
	case <-time.After(time.Second):
		t.Fatal("no change event")
	}
}

func TestPollerFailedPollKeepsBaseline(t *testing.T) {
	fv := &fakeVersions{v: map[entity.Table]string{entity.TableOrders: "1:1"}}
	b := NewBroker()
	p := NewPoller(&Config{PollInterval: time.Hour}, fv, b)
	p.last = map[entity.Table]string{entity.TableOrders: "1:1"}

	fv.err = errors.New("connection refused")
	assert.Error(t, p.poll(context.Background()))
	assert.Equal(t, "1:1", p.last[entity.TableOrders])
}

func TestPollerStartStop(t *testing.T) {
	fv := &fakeVersions{v: map[entity.Table]string{}}
	p := NewPoller(nil, fv, NewBroker())
	assert.Error(t, p.Stop())
	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))
	require.NoError(t, p.Stop())
	assert.Error(t, p.Stop())
}
