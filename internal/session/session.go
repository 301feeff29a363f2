// Package session owns the single browser page used by a run and tracks
// whether it has been authenticated.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/v0xg/coursescrape/internal/browser"
)

// State is the authentication state of a session
type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateFailed         State = "failed"
)

var (
	// ErrNotAuthenticated is returned when the page is requested before login completed
	ErrNotAuthenticated = errors.New("session is not authenticated")
	// ErrClosed is returned once the session has been closed
	ErrClosed = errors.New("session is closed")
)

// Credentials are login secrets for one site
type Credentials struct {
	Email    string
	Password string
}

// IsZero reports whether no credentials were supplied
func (c Credentials) IsZero() bool {
	return c.Email == "" && c.Password == ""
}

// String redacts the password
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Email: %q, Password: <redacted>}", c.Email)
}

// Session is one browser context owned by a run: create, authenticate,
// use, close. It is not safe to share across goroutines beyond Close.
type Session struct {
	page   browser.Page
	state  State
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// New wraps page in an anonymous session
func New(page browser.Page) *Session {
	return &Session{page: page, state: StateAnonymous}
}

// State returns the current authentication state
func (s *Session) State() State {
	return s.state
}

// Begin moves the session into authenticating
func (s *Session) Begin() error {
	if s.closed {
		return ErrClosed
	}
	switch s.state {
	case StateAnonymous, StateFailed:
		s.state = StateAuthenticating
		return nil
	default:
		return fmt.Errorf("cannot begin authentication from state %s", s.state)
	}
}

// LoginPage returns the page while authentication is in progress
func (s *Session) LoginPage() (browser.Page, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.state != StateAuthenticating {
		return nil, fmt.Errorf("login page unavailable in state %s", s.state)
	}
	return s.page, nil
}

// MarkAuthenticated completes authentication
func (s *Session) MarkAuthenticated() error {
	if s.state != StateAuthenticating {
		return fmt.Errorf("cannot authenticate from state %s", s.state)
	}
	s.state = StateAuthenticated
	return nil
}

// MarkFailed records a failed authentication attempt
func (s *Session) MarkFailed() {
	s.state = StateFailed
}

// Page returns the page for navigation and extraction. Only authenticated
// sessions hand it out.
func (s *Session) Page() (browser.Page, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.state != StateAuthenticated {
		return nil, fmt.Errorf("%w (state %s)", ErrNotAuthenticated, s.state)
	}
	return s.page, nil
}

// Close releases the page exactly once; later calls return the first result
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		if s.page != nil {
			s.closeErr = s.page.Close()
		}
	})
	return s.closeErr
}
