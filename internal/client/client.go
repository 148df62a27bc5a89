// Package client implements the typed REST client for the Fustan API plus
// the token relay that rides underneath every call.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/fustanlabs/fustan-sync/internal/common/cnst"
	"github.com/fustanlabs/fustan-sync/internal/common/config"
	"github.com/fustanlabs/fustan-sync/internal/storage"
	"github.com/fustanlabs/fustan-sync/pkg/metrics"

	"go.uber.org/zap"
)

// ErrUnauthorized marks 401/403 responses. Only the session store treats it
// specially, and only on the identity path.
var ErrUnauthorized = errors.New("unauthorized")

// Client is the typed REST client. All methods return errors as values and
// never panic; a non-2xx status is an error, network failures pass through
// wrapped.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *zap.Logger
}

// New creates a REST client whose transport attaches and captures bearer
// tokens through the given store. Cookies are kept in-process as the
// secondary credential channel.
func New(cfg config.APIConfig, store storage.Store, logger *zap.Logger, m *metrics.Metrics) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Jar:       jar,
			Transport: NewTokenRelay(nil, store, logger, m),
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + cnst.APIPathPrefix,
		logger:  logger.Named("client"),
	}, nil
}

// Me fetches the authoritative identity. Returns ErrUnauthorized (wrapped)
// on 401/403.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out meResponse
	if err := c.do(ctx, http.MethodGet, "/auth/me", &out); err != nil {
		return nil, err
	}
	return out.user(), nil
}

// Logout asks the server to terminate the session. Best effort; the session
// store clears local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil)
}

// Notifications returns the notification list.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var out []Notification
	if err := c.do(ctx, http.MethodGet, "/notifications", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UnreadCount returns the authoritative unread notification count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out unreadCountResponse
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// ChatUnreadCount returns the authoritative unread chat-message count.
func (c *Client) ChatUnreadCount(ctx context.Context) (int, error) {
	var out unreadCountResponse
	if err := c.do(ctx, http.MethodGet, "/chat/unread-count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// MarkRead marks a single notification as read.
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/notifications/%d/read", id), nil)
}

// MarkAllRead marks every notification as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPatch, "/notifications/read-all", nil)
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
