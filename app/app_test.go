package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jekabolt/grbpwr-crm/config"
	"github.com/jekabolt/grbpwr-crm/internal/changefeed"
	"github.com/jekabolt/grbpwr-crm/internal/entity"
	"github.com/jekabolt/grbpwr-crm/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	fetches int
	closed  bool
}

func (m *memStore) FetchDataset(ctx context.Context, f entity.ReportFilter) (*entity.Dataset, error) {
	m.mu.Lock()
	m.fetches++
	m.mu.Unlock()
	return &entity.Dataset{}, nil
}

func (m *memStore) TableVersions(ctx context.Context) (map[entity.Table]string, error) {
	return map[entity.Table]string{}, nil
}

func (m *memStore) Ping(ctx context.Context) error {
	return nil
}

func (m *memStore) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *memStore) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func testApp(db Storage, err error) *App {
	c := &config.Config{}
	c.Recompute.Debounce = time.Millisecond
	c.ChangeFeed = changefeed.DefaultConfig()
	a := New(c)
	a.openStore = func(context.Context, store.Config) (Storage, error) {
		return db, err
	}
	return a
}

func TestStartUnwindsOnFailure(t *testing.T) {
	db := &memStore{}
	// empty jwt secret fails after the controller and poller are running
	a := testApp(db, nil)

	err := a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret")

	assert.True(t, db.isClosed())
	assert.Nil(t, a.ctrl)
	assert.Nil(t, a.poller)
	assert.Nil(t, a.limiter)
	assert.Nil(t, a.hs)

	// a second stop is a no-op
	assert.NotPanics(t, func() { a.Stop(context.Background()) })
}

func TestStartStoreFailure(t *testing.T) {
	a := testApp(nil, errors.New("connection refused"))

	err := a.Start(context.Background())
	require.EqualError(t, err, "connection refused")
	assert.Nil(t, a.db)
	assert.Nil(t, a.ctrl)
}
