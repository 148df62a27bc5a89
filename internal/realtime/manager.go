// Package realtime maintains the websocket channel to the notification
// backend. The channel follows the session identity: it exists exactly when a
// user is resolved, is torn down before a different identity reopens it, and
// reconnects with backoff while the identity is stable.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/fustanlabs/fustan-sync/internal/bus"
	"github.com/fustanlabs/fustan-sync/internal/cache"
	"github.com/fustanlabs/fustan-sync/internal/client"
	"github.com/fustanlabs/fustan-sync/internal/common/cnst"
	"github.com/fustanlabs/fustan-sync/internal/common/config"
	"github.com/fustanlabs/fustan-sync/internal/storage"
	"github.com/fustanlabs/fustan-sync/pkg/metrics"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// frame is the wire format for both directions: a named event with a JSON
// payload.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Manager owns the realtime channel lifecycle.
type Manager struct {
	logger  *zap.Logger
	cfg     config.RealtimeConfig
	cache   *cache.Store
	bus     *bus.Bus
	store   storage.Store
	metrics *metrics.Metrics

	mu        sync.Mutex
	currentID int64
	stop      context.CancelFunc
	done      chan struct{}
}

// NewManager creates a channel manager. It does nothing until Run is called.
func NewManager(logger *zap.Logger, cfg config.RealtimeConfig, c *cache.Store, b *bus.Bus, store storage.Store, m *metrics.Metrics) *Manager {
	return &Manager{
		logger:  logger.Named("realtime"),
		cfg:     cfg,
		cache:   c,
		bus:     b,
		store:   store,
		metrics: m,
	}
}

// Run watches the identity key and keeps the channel in step with it. It
// blocks until ctx is done, then tears down any open channel.
func (m *Manager) Run(ctx context.Context) {
	changes := m.cache.Subscribe(ctx, cnst.KeyAuthMe)

	m.apply(ctx)
	for {
		select {
		case <-ctx.Done():
			m.teardown()
			return
		case _, ok := <-changes:
			if !ok {
				m.teardown()
				return
			}
			m.apply(ctx)
		}
	}
}

// apply reconciles the channel with the current identity: tear down on
// logout, tear down and reopen on identity change, open on login.
func (m *Manager) apply(ctx context.Context) {
	user := m.currentUser()

	m.mu.Lock()
	defer m.mu.Unlock()

	var want int64
	if user != nil {
		want = user.ID
	}
	if want == m.currentID {
		return
	}

	m.teardownLocked()
	m.currentID = want
	if user == nil {
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.stop = cancel
	m.done = done

	m.logger.Info("opening realtime channel", zap.Int64("user_id", user.ID))
	go func() {
		defer close(done)
		m.connLoop(connCtx, user.ID)
	}()
}

// teardown closes the current channel, if any, and waits for its loop to
// exit so a reopened channel can never race a dying one.
func (m *Manager) teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	m.currentID = 0
}

func (m *Manager) teardownLocked() {
	if m.stop == nil {
		return
	}
	m.stop()
	<-m.done
	m.stop = nil
	m.done = nil
}

// connLoop dials, serves and redials until ctx is done. Each serve session
// gets a fresh backoff schedule.
func (m *Manager) connLoop(ctx context.Context, userID int64) {
	for {
		conn, err := m.connect(ctx, userID)
		if err != nil {
			return
		}
		m.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		m.metrics.WSReconnect()
		m.logger.Warn("realtime channel lost, reconnecting",
			zap.Int64("user_id", userID))
	}
}

// connect dials the endpoint and performs the join handshake, retrying with
// capped exponential backoff until it succeeds or ctx is done.
func (m *Manager) connect(ctx context.Context, userID int64) (*websocket.Conn, error) {
	var conn *websocket.Conn
	err := retry.Do(
		func() error {
			c, err := m.dial(ctx, userID)
			if err != nil {
				m.logger.Warn("realtime dial failed", zap.Error(err))
				return err
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(m.cfg.ReconnectMinDelay),
		retry.MaxDelay(m.cfg.ReconnectMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (m *Manager) dial(ctx context.Context, userID int64) (*websocket.Conn, error) {
	endpoint, err := m.endpoint()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if token, err := m.store.Get(ctx, cnst.StorageKeyToken); err == nil && token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", endpoint, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	id, _ := json.Marshal(userID)
	join, _ := json.Marshal(frame{Event: cnst.EventJoin, Data: id})
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join handshake: %w", err)
	}
	return conn, nil
}

// serve reads frames off the connection and publishes them on the bus until
// the connection breaks or ctx is done.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-closed:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Debug("realtime read ended", zap.Error(err))
			}
			return
		}

		event := gjson.GetBytes(msg, "event").String()
		if event == "" {
			m.logger.Warn("dropping unnamed realtime frame",
				zap.ByteString("frame", msg))
			continue
		}
		data := gjson.GetBytes(msg, "data")

		m.metrics.WSEvent(event)
		m.bus.Publish(&bus.Event{Name: event, Data: []byte(data.Raw)})
	}
}

// currentUser reads the identity key. A stale value still counts: the
// channel stays up while a refetch is in flight and only closes once the
// identity actually resolves to nothing.
func (m *Manager) currentUser() *client.User {
	v, _ := m.cache.Get(cnst.KeyAuthMe)
	user, _ := v.(*client.User)
	return user
}

// endpoint builds the ws:// URL from the configured origin and path.
func (m *Manager) endpoint() (string, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse realtime url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported realtime scheme %q", u.Scheme)
	}
	path := m.cfg.Path
	if path == "" {
		path = cnst.DefaultSocketPath
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}
