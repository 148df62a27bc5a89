package session

import (
	"sync"

	"go.uber.org/zap"
)

// Navigator abstracts hard navigation so the logout flow and the redirect
// guard are testable without a browser. Redirect is a full navigation, not a
// client-side route change.
type Navigator interface {
	Redirect(path string)
	CurrentPath() string
}

// MemoryNavigator tracks the current location in process memory; the agent's
// stand-in for a browser location bar.
type MemoryNavigator struct {
	logger *zap.Logger
	mu     sync.Mutex
	path   string
}

var _ Navigator = (*MemoryNavigator)(nil)

// NewMemoryNavigator creates a navigator positioned at start.
func NewMemoryNavigator(logger *zap.Logger, start string) *MemoryNavigator {
	return &MemoryNavigator{
		logger: logger.Named("navigator"),
		path:   start,
	}
}

// Redirect implements Navigator.Redirect
func (n *MemoryNavigator) Redirect(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.logger.Info("hard navigation", zap.String("from", n.path), zap.String("to", path))
	n.path = path
}

// CurrentPath implements Navigator.CurrentPath
func (n *MemoryNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}
