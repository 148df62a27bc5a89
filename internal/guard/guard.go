// Package guard turns a resolved unauthenticated session into a navigation
// away from a protected view. It is advisory only; authorization is the
// server's job.
package guard

import (
	"github.com/fustanlabs/fustan-sync/internal/common/cnst"
	"github.com/fustanlabs/fustan-sync/internal/session"

	"go.uber.org/zap"
)

// Options configures the guard. The zero value never redirects.
type Options struct {
	RedirectOnUnauthenticated bool
	RedirectPath              string
}

// Guard evaluates session states against its policy.
type Guard struct {
	logger *zap.Logger
	nav    session.Navigator
	opts   Options
}

// New creates a guard. An empty RedirectPath defaults to the login path.
func New(logger *zap.Logger, nav session.Navigator, opts Options) *Guard {
	if opts.RedirectPath == "" {
		opts.RedirectPath = cnst.DefaultLoginPath
	}
	return &Guard{
		logger: logger.Named("guard"),
		nav:    nav,
		opts:   opts,
	}
}

// Evaluate applies the policy to a session state and reports whether it
// navigated. No decision is made while the session is still resolving or a
// logout is pending; redirecting a user whose fetch simply has not settled
// yet would be wrong.
func (g *Guard) Evaluate(st session.State) bool {
	if !g.opts.RedirectOnUnauthenticated {
		return false
	}
	if st.Loading || st.LogoutPending {
		return false
	}
	if st.User != nil {
		return false
	}
	if g.nav.CurrentPath() == g.opts.RedirectPath {
		// already there; redirecting again would loop
		return false
	}

	g.logger.Info("redirecting unauthenticated visitor",
		zap.String("from", g.nav.CurrentPath()),
		zap.String("to", g.opts.RedirectPath))
	g.nav.Redirect(g.opts.RedirectPath)
	return true
}
