// Package browser drives a single remote browser tab.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrElementNotFound is returned when a selector matches nothing before the deadline
	ErrElementNotFound = errors.New("element not found")
	// ErrNavigation is returned when the page could not be loaded
	ErrNavigation = errors.New("navigation failed")
	// ErrURLWait is returned when the page never reached an expected URL
	ErrURLWait = errors.New("url condition not met")
)

// Cookie is a session cookie held by the browser
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Page is the subset of a browser tab the pipeline drives. Selectors are CSS
// selectors understood by the browser's querySelector.
type Page interface {
	// Navigate loads url and waits for the load event
	Navigate(ctx context.Context, url string) error
	// WaitForSelector blocks until selector matches an element or timeout elapses
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Has reports whether selector currently matches an element
	Has(ctx context.Context, selector string) (bool, error)
	// URL returns the current page URL
	URL() string
	// HTML returns a snapshot of the rendered document
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	// Fill clicks the field, clears it and inserts value in one step
	Fill(ctx context.Context, selector, value string) error
	// TypeKeys clears the field and sends value one keystroke at a time
	TypeKeys(ctx context.Context, selector, value string) error
	// Value reads back the current value of a form field
	Value(ctx context.Context, selector string) (string, error)
	Text(ctx context.Context, selector string) (string, error)
	// Screenshot captures the element matched by selector as PNG
	Screenshot(ctx context.Context, selector string) ([]byte, error)
	// WaitForURL blocks until match accepts the page URL or timeout elapses
	WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error
	Cookies(ctx context.Context) ([]Cookie, error)
	Close() error
}

// Options configures how the browser is launched
type Options struct {
	Headless   bool
	Width      int
	Height     int
	ProfileDir string // Chrome/Chromium profile directory for authenticated sessions
	ControlURL string // connect to an existing browser instead of launching
	UserAgent  string
	// ElementTimeout bounds single element lookups for clicks and fills
	ElementTimeout time.Duration
}
