package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/coursescrape/internal/browser/browsertest"
)

func TestLifecycle(t *testing.T) {
	page := browsertest.New(nil)
	s := New(page)
	assert.Equal(t, StateAnonymous, s.State())

	_, err := s.Page()
	assert.True(t, errors.Is(err, ErrNotAuthenticated))

	require.NoError(t, s.Begin())
	lp, err := s.LoginPage()
	require.NoError(t, err)
	assert.Same(t, page, lp)

	_, err = s.Page()
	assert.Error(t, err, "no extraction before authentication is confirmed")

	require.NoError(t, s.MarkAuthenticated())
	p, err := s.Page()
	require.NoError(t, err)
	assert.Same(t, page, p)

	assert.Error(t, s.Begin())
}

func TestFailedCanRetry(t *testing.T) {
	s := New(browsertest.New(nil))
	require.NoError(t, s.Begin())
	s.MarkFailed()
	assert.Equal(t, StateFailed, s.State())
	assert.Error(t, s.MarkAuthenticated())
	require.NoError(t, s.Begin())
}

func TestCloseOnce(t *testing.T) {
	page := browsertest.New(nil)
	s := New(page)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, page.Closed())

	_, err := s.LoginPage()
	assert.True(t, errors.Is(err, ErrClosed))
	assert.True(t, errors.Is(s.Begin(), ErrClosed))
}

func TestCredentialsRedacted(t *testing.T) {
	c := Credentials{Email: "coach@example.org", Password: "hunter2"}
	assert.NotContains(t, c.String(), "hunter2")
	assert.False(t, c.IsZero())
	assert.True(t, Credentials{}.IsZero())
}
