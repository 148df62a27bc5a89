// Package bus carries server-pushed and timer-driven events from their
// transports to the notification aggregator, which is the sole subscriber
// translating them into cache invalidations.
package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Event is a single message on the bus. Data holds the raw JSON payload as
// delivered by the transport; consumers pick out the fields they need.
type Event struct {
	Name string
	Data []byte
}

// Bus fans events out to registered watchers.
type Bus struct {
	logger   *zap.Logger
	mu       sync.RWMutex
	watchers map[chan *Event]struct{}
}

// New creates a new event bus.
func New(logger *zap.Logger) *Bus {
	return &Bus{
		logger:   logger.Named("bus"),
		watchers: make(map[chan *Event]struct{}),
	}
}

// Watch registers a watcher and returns its channel. The channel is closed
// when ctx is done.
func (b *Bus) Watch(ctx context.Context) <-chan *Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Event, 32)
	b.watchers[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.watchers, ch)
		close(ch)
	}()

	return ch
}

// Publish delivers an event to all watchers in the order publishers call it.
// A watcher that has fallen behind is skipped rather than blocked on; the
// consumers invalidate idempotently, so a dropped event costs at most one
// stale interval.
func (b *Bus) Publish(ev *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("watcher channel is full, skipping event",
				zap.String("event", ev.Name))
		}
	}
}
