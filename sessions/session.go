// Package sessions owns authenticated platform state: one session per
// (user, platform), each wrapping either a live browser context or an
// OAuth2 token source. The store holds the exclusive lifetime of every
// underlying context; callers must not retain one past invalidation.
package sessions

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/eduassist/portalsync/browser"
	"github.com/eduassist/portalsync/platform"
	"golang.org/x/oauth2"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusInvalid Status = "invalid"
)

// Session is one authenticated context on one platform for one user.
//
// Portal sessions (Clever, McGraw Hill, Edpuzzle) carry a Browser.
// Google sessions carry a Token and an HTTP Client built from its
// token source; no page automation is involved.
type Session struct {
	ID       string
	UserID   string
	Platform platform.Platform

	// Browser is the automation context, exclusively owned by the store
	// entry. Nil for API-backed platforms.
	Browser browser.Context

	// Token and Client are set for API-backed platforms. The client
	// refreshes the token transparently.
	Token  *oauth2.Token
	Client *http.Client

	CreatedAt time.Time
	ExpiresAt time.Time // zero when the platform gives no expiry signal

	lock   sync.Mutex
	status Status

	// Automation engines are not reentrant: all use of Browser is
	// serialized through this semaphore.
	sem chan struct{}
}

// NewSession initializes lifecycle fields. Drivers fill in the
// platform-specific parts before handing the session to the store.
func NewSession(userID string, p platform.Platform) *Session {
	return &Session{
		UserID:   userID,
		Platform: p,
		status:   StatusActive,
		sem:      make(chan struct{}, 1),
	}
}

// Acquire takes the session's exclusive-use lock, giving up if ctx is
// done first. A cancelled wait leaves the session untouched so later
// requests can still reuse it.
func (s *Session) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns the exclusive-use lock.
func (s *Session) Release() {
	select {
	case <-s.sem:
	default:
	}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.status
}

// Usable reports whether the session can serve a request at the given
// time: active and not past its expiry.
func (s *Session) Usable(now time.Time) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.status != StatusActive {
		return false
	}
	if !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt) {
		s.status = StatusExpired
		return false
	}
	return true
}

func (s *Session) markInvalid() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.status = StatusInvalid
}
