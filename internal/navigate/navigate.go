// Package navigate loads pages with bounded, linearly backed-off retries.
// A page counts as loaded only once its required selector is present.
package navigate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/executor"
	"github.com/v0xg/coursescrape/internal/logger"
)

var (
	ErrTimeout          = errors.New("navigation timed out")
	ErrSelectorNotFound = errors.New("required selector not found")
)

// Kind classifies a navigation failure
type Kind int

const (
	Timeout Kind = iota + 1
	SelectorNotFound
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "Timeout"
	case SelectorNotFound:
		return "SelectorNotFound"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned after every attempt failed
type Error struct {
	Kind     Kind
	URL      string
	Attempts int
	Err      error // last underlying failure
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s after %d attempt(s): %s: %v", e.sentinel(), e.Attempts, e.URL, e.Err)
}

func (e *Error) sentinel() error {
	if e.Kind == SelectorNotFound {
		return ErrSelectorNotFound
	}
	return ErrTimeout
}

// Unwrap exposes both the kind sentinel and the last underlying error
func (e *Error) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

// Options is the per-call navigation policy
type Options struct {
	// RequiredSelector must appear before the page is considered usable
	RequiredSelector string
	// Timeout bounds one attempt (navigation plus selector wait)
	Timeout time.Duration
	// MaxRetries is the total number of attempts
	MaxRetries int
	// BaseDelay is multiplied by the attempt number between attempts
	BaseDelay time.Duration
}

// DefaultOptions mirrors the retry policy used across sites
func DefaultOptions() Options {
	return Options{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
	}
}

// Controller drives a page to URLs
type Controller struct {
	log   logger.Interface
	sleep executor.SleepFunc
}

// NewController creates a Controller. sleep may be nil.
func NewController(log logger.Interface, sleep executor.SleepFunc) *Controller {
	if log == nil {
		log = logger.NewNoOp()
	}
	if sleep == nil {
		sleep = executor.Sleep
	}
	return &Controller{log: log, sleep: sleep}
}

// Goto navigates page to url. Every attempt re-issues the full navigation.
func (c *Controller) Goto(ctx context.Context, page browser.Page, url string, opts Options) error {
	attempts := opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}

	var last *Error
	for attempt := 1; attempt <= attempts; attempt++ {
		kind, err := c.attempt(ctx, page, url, opts)
		if err == nil {
			if attempt > 1 {
				c.log.Info("Navigation succeeded after retry", "url", url, "attempt", attempt)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		last = &Error{Kind: kind, URL: url, Attempts: attempt, Err: err}
		c.log.Warn("Navigation attempt failed", "url", url, "attempt", attempt, "max", attempts, "kind", kind, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt) * opts.BaseDelay
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
		}
	}
	return last
}

func (c *Controller) attempt(ctx context.Context, page browser.Page, url string, opts Options) (Kind, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := page.Navigate(attemptCtx, url); err != nil {
		return Timeout, err
	}
	if opts.RequiredSelector == "" {
		return 0, nil
	}
	if err := page.WaitForSelector(attemptCtx, opts.RequiredSelector, opts.Timeout); err != nil {
		return SelectorNotFound, err
	}
	return 0, nil
}
