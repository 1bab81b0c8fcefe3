// Package changefeed turns source table changes into change events.
// The Broker fans events out to subscribers and the Poller detects changes
// by comparing table fingerprints.
package changefeed

import (
	"context"
	"fmt"
	"sync"

	"log/slog"

	"github.com/jekabolt/grbpwr-crm/internal/entity"
)

const subscriberBuffer = 16

// Broker delivers published events to every live subscriber. A slow
// subscriber loses events rather than blocking publishers; any event is
// enough to trigger a recomputation.
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan entity.ChangeEvent
	nextID int
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[int]chan entity.ChangeEvent),
	}
}

// Subscribe registers a subscriber. The returned channel is closed once ctx is done.
func (b *Broker) Subscribe(ctx context.Context) (<-chan entity.ChangeEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("can't subscribe: %w", err)
	}
	ch := make(chan entity.ChangeEvent, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Publish fans ev out to all subscribers without blocking.
func (b *Broker) Publish(ctx context.Context, ev entity.ChangeEvent) error {
	if _, err := entity.ParseTable(string(ev.Table)); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			slog.Default().DebugContext(ctx, "subscriber is behind, dropping change event",
				slog.Int("subscriber", id),
				slog.String("table", string(ev.Table)),
			)
		}
	}
	return nil
}

// Subscribers returns the number of live subscribers.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
