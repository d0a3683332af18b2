package auth

import (
	"strings"
	"sync/atomic"

	"github.com/P4X666/small-ledger/internal/log"
)

// LoginRoute is the page users are sent to after an authentication failure.
const LoginRoute = "/pages/login/index"

// Navigator abstracts the host navigation stack.
type Navigator interface {
	CurrentRoute() string
	RelaunchToLogin() error
}

// RedirectGuard collapses concurrent login redirects into one. Several
// requests can fail with 401 at the same time; only the first caller
// navigates, the rest return immediately.
type RedirectGuard struct {
	redirecting atomic.Bool
	nav         Navigator
	logger      *log.Logger
}

// NewRedirectGuard creates a guard over the given navigator.
func NewRedirectGuard(nav Navigator, logger *log.Logger) *RedirectGuard {
	return &RedirectGuard{nav: nav, logger: logger.WithComponent(log.ComponentAuth)}
}

// Redirect navigates to the login page unless a redirect is already in
// flight or the user is already there.
func (g *RedirectGuard) Redirect() {
	if !g.redirecting.CompareAndSwap(false, true) {
		return
	}
	defer g.redirecting.Store(false)

	if strings.Contains(g.nav.CurrentRoute(), "/login") {
		return
	}
	if err := g.nav.RelaunchToLogin(); err != nil {
		g.logger.Error("failed to redirect to login", log.FieldError, err)
	}
}
