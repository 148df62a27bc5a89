// Package session is the single source of truth for who is logged in. It
// reconciles a persisted optimistic snapshot with the authoritative identity
// fetch and owns the logout teardown.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/fustanlabs/fustan-sync/internal/cache"
	"github.com/fustanlabs/fustan-sync/internal/client"
	"github.com/fustanlabs/fustan-sync/internal/common/cnst"
	"github.com/fustanlabs/fustan-sync/internal/storage"

	"go.uber.org/zap"
)

// API is the slice of the REST client the session store depends on.
type API interface {
	Me(ctx context.Context) (*client.User, error)
	Logout(ctx context.Context) error
}

// State is the session snapshot handed to consumers. IsAuthenticated is
// true exactly when User is non-nil.
type State struct {
	User            *client.User
	IsAuthenticated bool
	Loading         bool
	LogoutPending   bool
	Err             error
}

// Manager owns the session cache entry, the persisted snapshot and the
// logout flow. Refresh and Logout never return errors to callers; failures
// surface through the Err field or the log.
type Manager struct {
	logger *zap.Logger
	api    API
	cache  *cache.Store
	store  storage.Store
	nav    Navigator

	mu            sync.Mutex
	inflight      int
	logoutPending bool
	lastErr       error
}

// NewManager creates the session store and seeds the cache from the
// persisted snapshot, if one exists. The seed is optimistic only; the first
// authoritative fetch supersedes it no matter what it resolves to.
func NewManager(ctx context.Context, logger *zap.Logger, api API, c *cache.Store, store storage.Store, nav Navigator) *Manager {
	m := &Manager{
		logger: logger.Named("session"),
		api:    api,
		cache:  c,
		store:  store,
		nav:    nav,
	}
	m.seed(ctx)
	return m
}

func (m *Manager) seed(ctx context.Context) {
	raw, err := m.store.Get(ctx, cnst.StorageKeySnapshot)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			m.logger.Warn("failed to read session snapshot", zap.Error(err))
		}
		return
	}

	var u client.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == 0 {
		return
	}
	m.cache.SetValue(cnst.KeyAuthMe, &u)
	m.logger.Debug("seeded session from snapshot", zap.Int64("user_id", u.ID))
}

// State returns the current session view.
func (m *Manager) State() State {
	v, settled := m.cache.Get(cnst.KeyAuthMe)
	var user *client.User
	if settled {
		user, _ = v.(*client.User)
	}

	m.mu.Lock()
	loading := (m.inflight > 0 && !settled) || m.logoutPending
	logoutPending := m.logoutPending
	err := m.lastErr
	m.mu.Unlock()

	return State{
		User:            user,
		IsAuthenticated: user != nil,
		Loading:         loading,
		LogoutPending:   logoutPending,
		Err:             err,
	}
}

// Refresh forces a re-fetch of the authoritative identity and returns the
// settled state. Transport failures keep the cached identity and land in
// State.Err; 401/403 is the definitive logged-out signal and clears the
// persisted token and snapshot.
func (m *Manager) Refresh(ctx context.Context) State {
	m.mu.Lock()
	m.inflight++
	m.mu.Unlock()

	gen := m.cache.Begin(cnst.KeyAuthMe)
	user, err := m.api.Me(ctx)

	m.mu.Lock()
	m.inflight--
	m.mu.Unlock()

	switch {
	case err == nil:
		if m.cache.Complete(cnst.KeyAuthMe, gen, user) {
			m.persistSnapshot(ctx, user)
		}
		m.setErr(nil)

	case errors.Is(err, client.ErrUnauthorized):
		// Only the identity path interprets 401/403 as "logged out", and
		// only while the result is still current: a stale 401, settled
		// after a newer refresh, must not wipe the credentials that
		// refresh just persisted.
		if m.cache.Complete(cnst.KeyAuthMe, gen, (*client.User)(nil)) {
			m.clearCredentials(ctx)
		}
		m.setErr(nil)

	default:
		// Transient network failure: a blip must not log the user out.
		m.logger.Warn("identity fetch failed", zap.Error(err))
		m.setErr(err)
	}

	return m.State()
}

// Logout terminates the session. The server call is best effort; local state
// is torn down and the hard redirect to the root happens regardless of its
// outcome. Calling Logout twice leaves the same terminal state as once.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.logoutPending = true
	m.mu.Unlock()

	if err := m.api.Logout(ctx); err != nil {
		m.logger.Error("logout call failed", zap.Error(err))
	}

	m.clearCredentials(ctx)

	// A force-write supersedes any refresh still in flight for the
	// pre-logout identity; its result will be discarded by generation.
	m.cache.SetValue(cnst.KeyAuthMe, (*client.User)(nil))
	for _, key := range cnst.SessionScopedKeys {
		m.cache.Invalidate(key)
	}

	m.mu.Lock()
	m.logoutPending = false
	m.lastErr = nil
	m.mu.Unlock()

	m.nav.Redirect(cnst.RootPath)
}

// persistSnapshot mirrors the settled user value to storage, including the
// null-equivalent: a settled nil removes the snapshot.
func (m *Manager) persistSnapshot(ctx context.Context, user *client.User) {
	if user == nil {
		if err := m.store.Delete(ctx, cnst.StorageKeySnapshot); err != nil {
			m.logger.Warn("failed to clear session snapshot", zap.Error(err))
		}
		return
	}

	data, err := json.Marshal(user)
	if err != nil {
		m.logger.Warn("failed to encode session snapshot", zap.Error(err))
		return
	}
	if err := m.store.Set(ctx, cnst.StorageKeySnapshot, string(data)); err != nil {
		m.logger.Warn("failed to persist session snapshot", zap.Error(err))
	}
}

func (m *Manager) clearCredentials(ctx context.Context) {
	if err := m.store.Delete(ctx, cnst.StorageKeyToken); err != nil {
		m.logger.Warn("failed to clear token", zap.Error(err))
	}
	if err := m.store.Delete(ctx, cnst.StorageKeySnapshot); err != nil {
		m.logger.Warn("failed to clear session snapshot", zap.Error(err))
	}
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
