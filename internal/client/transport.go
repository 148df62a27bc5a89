package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/fustanlabs/fustan-sync/internal/common/cnst"
	"github.com/fustanlabs/fustan-sync/internal/storage"
	"github.com/fustanlabs/fustan-sync/pkg/metrics"
	"github.com/fustanlabs/fustan-sync/pkg/version"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// maxCaptureBody bounds how much of a response body the relay will buffer
// while looking for a rotated token.
const maxCaptureBody = 1 << 20 // 1MB

// TokenRelay is an http.RoundTripper that attaches the persisted bearer
// token to outgoing requests and captures a rotated token from response
// bodies. It never retries and never rewrites failures; callers see exactly
// what the network produced.
type TokenRelay struct {
	base    http.RoundTripper
	store   storage.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

var _ http.RoundTripper = (*TokenRelay)(nil)

// NewTokenRelay wraps base with token attach/capture behavior. A nil base
// falls back to http.DefaultTransport; metrics may be nil.
func NewTokenRelay(base http.RoundTripper, store storage.Store, logger *zap.Logger, m *metrics.Metrics) *TokenRelay {
	if base == nil {
		base = http.DefaultTransport
	}
	return &TokenRelay{
		base:    base,
		store:   store,
		logger:  logger.Named("client.relay"),
		metrics: m,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *TokenRelay) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", version.UserAgent())
	}
	if token, err := t.store.Get(req.Context(), cnst.StorageKeyToken); err == nil && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	t.metrics.HTTPRequest(req.Method, req.URL.Path, resp.StatusCode)
	t.captureToken(req.Context(), resp)
	return resp, nil
}

// capturedBody replays the sniffed prefix before the rest of the original
// body; Close still lands on the original.
type capturedBody struct {
	io.Reader
	io.Closer
}

// captureToken persists a rotated token if the response body carries one.
// The body is re-wrapped so downstream decoding sees it untouched: the
// buffered prefix is stitched back in front of whatever was not read, and a
// body larger than the cap passes through whole with the sniff skipped.
func (t *TokenRelay) captureToken(ctx context.Context, resp *http.Response) {
	if resp.Body == nil || !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptureBody))
	resp.Body = capturedBody{
		Reader: io.MultiReader(bytes.NewReader(body), resp.Body),
		Closer: resp.Body,
	}
	if err != nil || len(body) == maxCaptureBody {
		return
	}

	token := gjson.GetBytes(body, "token")
	if !token.Exists() || token.String() == "" {
		return
	}

	if err := t.store.Set(ctx, cnst.StorageKeyToken, token.String()); err != nil {
		t.logger.Warn("failed to persist rotated token", zap.Error(err))
		return
	}
	t.logger.Debug("captured rotated token from response")
}
