// Package cache implements the process-wide keyed store the synchronizer
// hangs every query on. Values are written through per-key generation
// counters: a fetch begun before the latest invalidation (or forced write)
// loses, regardless of when its response arrives.
package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// entry holds the cached value for one key.
type entry struct {
	value any
	valid bool   // false after Invalidate until the next successful write
	gen   uint64 // latest generation handed out for this key
}

// Store is a keyed value store with subscriber notification and
// generation-guarded writes.
type Store struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	entries map[string]*entry

	subMu sync.RWMutex
	subs  map[chan string]map[string]struct{} // channel -> set of keys it watches
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:  logger.Named("cache.store"),
		entries: make(map[string]*entry),
		subs:    make(map[chan string]map[string]struct{}),
	}
}

// Get returns the cached value for key and whether a settled value exists.
// An invalidated key reports its last value with ok=false so callers can
// keep rendering stale data while a refetch is in flight.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, e.valid
}

// Generation returns the current generation for key.
func (s *Store) Generation(key string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[key]; ok {
		return e.gen
	}
	return 0
}

// Begin marks the start of a fetch for key and returns the generation the
// eventual Complete call must present.
func (s *Store) Begin(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.ensure(key)
	e.gen++
	return e.gen
}

// Complete stores the result of a fetch begun with Begin. The write is
// discarded when a newer generation has been handed out in the meantime,
// which is exactly the logout-beats-inflight-refresh guard.
func (s *Store) Complete(key string, gen uint64, value any) bool {
	s.mu.Lock()
	e := s.ensure(key)
	if gen != e.gen {
		current := e.gen
		s.mu.Unlock()
		s.logger.Debug("discarding stale fetch result",
			zap.String("key", key),
			zap.Uint64("gen", gen),
			zap.Uint64("current", current))
		return false
	}
	e.value = value
	e.valid = true
	s.mu.Unlock()

	s.notify(key)
	return true
}

// SetValue force-writes a value, superseding any fetch still in flight.
func (s *Store) SetValue(key string, value any) {
	s.mu.Lock()
	e := s.ensure(key)
	e.gen++
	e.value = value
	e.valid = true
	s.mu.Unlock()

	s.notify(key)
}

// Invalidate marks key stale and bumps its generation so in-flight fetches
// begun earlier are discarded. Invalidating an already-stale key is a no-op
// apart from the generation bump; re-invalidating fresh data is always safe.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	e := s.ensure(key)
	e.gen++
	e.valid = false
	s.mu.Unlock()

	s.notify(key)
}

// Subscribe returns a channel that receives the key name whenever one of the
// given keys changes. The channel is closed when ctx is done. Notifications
// are dropped, not blocked on, when the subscriber falls behind.
func (s *Store) Subscribe(ctx context.Context, keys ...string) <-chan string {
	ch := make(chan string, 16)
	watched := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		watched[k] = struct{}{}
	}

	s.subMu.Lock()
	s.subs[ch] = watched
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subs, ch)
		s.subMu.Unlock()
		close(ch)
	}()

	return ch
}

func (s *Store) notify(key string) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for ch, watched := range s.subs {
		if _, ok := watched[key]; !ok {
			continue
		}
		select {
		case ch <- key:
		default:
			s.logger.Warn("subscriber channel is full, dropping notification",
				zap.String("key", key))
		}
	}
}

// ensure must be called with mu held.
func (s *Store) ensure(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}
