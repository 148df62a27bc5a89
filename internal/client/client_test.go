package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fustanlabs/fustan-sync/internal/common/config"
	"github.com/fustanlabs/fustan-sync/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// jsonDecode is shared with transport_test.go.
func jsonDecode(resp *http.Response, out any) error {
	return json.NewDecoder(resp.Body).Decode(out)
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(config.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second},
		storage.NewMemoryStore(zap.NewNop()), zap.NewNop(), nil)
	require.NoError(t, err)
	return c, srv
}

func TestClient_MeWrappedFormat(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/me", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":1,"name":"A","role":"customer"},"token":"t"}`))
	}))

	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "A", u.Name)
	assert.Equal(t, "customer", u.Role)
}

func TestClient_MeFlatFormat(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":2,"name":"B","email":"b@x","role":"vendor"}`))
	}))

	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), u.ID)
	assert.Equal(t, "vendor", u.Role)
}

func TestClient_MeUnauthorized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := c.Me(context.Background())
		assert.ErrorIs(t, err, ErrUnauthorized)
	}
}

func TestClient_MeTransportErrorIsNotUnauthorized(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestClient_NotificationsAndCounts(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/notifications":
			_, _ = w.Write([]byte(`[{"id":1,"type":"new_order","title":"T","message":"M","isRead":false,"createdAt":"2026-01-02T03:04:05Z"}]`))
		case "/api/notifications/unread-count":
			_, _ = w.Write([]byte(`{"count":3}`))
		case "/api/chat/unread-count":
			_, _ = w.Write([]byte(`{"count":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ctx := context.Background()

	list, err := c.Notifications(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new_order", list[0].Type)
	assert.False(t, list[0].IsRead)

	n, err := c.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = c.ChatUnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClient_MarkReadTargetsCorrectPath(t *testing.T) {
	var gotPath, gotMethod string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
	}))

	require.NoError(t, c.MarkRead(context.Background(), 9))
	assert.Equal(t, "/api/notifications/9/read", gotPath)
	assert.Equal(t, http.MethodPatch, gotMethod)

	require.NoError(t, c.MarkAllRead(context.Background()))
	assert.Equal(t, "/api/notifications/read-all", gotPath)
	assert.Equal(t, http.MethodPatch, gotMethod)
}

func TestClient_MutationFailureLeavesError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := c.MarkAllRead(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
