package navigate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/browser/browsertest"
)

const target = "https://teacher.example.app/classes/abc"

type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func opts() Options {
	return Options{RequiredSelector: "tbody tr", Timeout: time.Second, MaxRetries: 3, BaseDelay: 2 * time.Second}
}

func TestGotoSucceedsFirstTry(t *testing.T) {
	page := browsertest.New(map[string]string{target: `<table><tbody><tr><td>a</td></tr></tbody></table>`})
	rec := &recordingSleep{}

	require.NoError(t, NewController(nil, rec.sleep).Goto(context.Background(), page, target, opts()))
	assert.Equal(t, 1, page.NavigationCount(target))
	assert.Empty(t, rec.delays)
}

func TestGotoRetryBoundWithLinearBackoff(t *testing.T) {
	page := browsertest.New(map[string]string{target: `<table></table>`})
	page.NavigateErr = func(string, int) error { return errors.New("net::ERR_TIMED_OUT") }
	rec := &recordingSleep{}

	err := NewController(nil, rec.sleep).Goto(context.Background(), page, target, opts())
	require.Error(t, err)

	assert.Equal(t, 3, page.NavigationCount(target))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)

	var navErr *Error
	require.True(t, errors.As(err, &navErr))
	assert.Equal(t, Timeout, navErr.Kind)
	assert.Equal(t, 3, navErr.Attempts)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, browser.ErrNavigation))
}

func TestGotoSelectorNeverAppears(t *testing.T) {
	page := browsertest.New(map[string]string{target: `<div class="spinner"></div>`})
	rec := &recordingSleep{}

	err := NewController(nil, rec.sleep).Goto(context.Background(), page, target, opts())
	require.True(t, errors.Is(err, ErrSelectorNotFound))
	assert.Equal(t, 3, page.NavigationCount(target), "each retry re-issues the navigation")
}

func TestGotoRecoversOnRetry(t *testing.T) {
	page := browsertest.New(map[string]string{target: `<table><tbody><tr></tr></tbody></table>`})
	page.NavigateErr = func(_ string, attempt int) error {
		if attempt == 1 {
			return errors.New("connection reset")
		}
		return nil
	}
	rec := &recordingSleep{}

	require.NoError(t, NewController(nil, rec.sleep).Goto(context.Background(), page, target, opts()))
	assert.Equal(t, 2, page.NavigationCount(target))
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.delays)
}

func TestGotoZeroRetriesStillTriesOnce(t *testing.T) {
	page := browsertest.New(nil)
	o := opts()
	o.MaxRetries = 0

	err := NewController(nil, (&recordingSleep{}).sleep).Goto(context.Background(), page, target, o)
	require.Error(t, err)
	assert.Equal(t, 1, page.NavigationCount(target))
}

func TestGotoCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := browsertest.New(map[string]string{target: `<tbody><tr></tr></tbody>`})

	err := NewController(nil, nil).Goto(ctx, page, target, opts())
	assert.ErrorIs(t, err, context.Canceled)
}
