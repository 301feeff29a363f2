// Package auth logs a session into a target site: fill the form, submit,
// classify the outcome, and wait out two-factor verification when asked.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/executor"
	"github.com/v0xg/coursescrape/internal/logger"
	"github.com/v0xg/coursescrape/internal/session"
)

// State is a step of the login state machine
type State string

const (
	StateStart         State = "start"
	StateLoginForm     State = "login-form-shown"
	StateSubmitted     State = "credentials-submitted"
	StateAuthenticated State = "authenticated"
	StateMFAPending    State = "mfa-pending"
	StateFailed        State = "failed"
)

// Flow describes a site's login form
type Flow struct {
	Name     string
	LoginURL string
	// LoginIndicators are selectors that only exist when a login is required
	LoginIndicators []string
	// Before reveals the form (e.g. a "Log in with Google" button)
	Before []executor.Action

	EmailSelector string
	// EmailNext is clicked between email and password on two-step forms
	EmailNext          string
	PasswordSelector   string
	PasswordAlternates []string
	SubmitSelector     string

	// AuthPathMarkers are URL fragments meaning the browser is still on a login page
	AuthPathMarkers []string
	// ErrorSelectors locate error banners; ErrorPatterns match error text anywhere
	ErrorSelectors []string
	ErrorPatterns  []string
	// MFASelectors are present while a second factor is being requested
	MFASelectors []string
	// SuccessURLContains marks a logged-in URL. Empty means "not on an auth path".
	SuccessURLContains string

	FieldTimeout time.Duration
	StepDelay    time.Duration
	SettleWindow time.Duration
	MFATimeout   time.Duration
}

func (f Flow) withDefaults() Flow {
	if f.FieldTimeout == 0 {
		f.FieldTimeout = 10 * time.Second
	}
	if f.StepDelay == 0 {
		f.StepDelay = time.Second
	}
	if f.SettleWindow == 0 {
		f.SettleWindow = 3 * time.Second
	}
	if f.MFATimeout == 0 {
		f.MFATimeout = 2 * time.Minute
	}
	return f
}

// Authenticator runs one Flow
type Authenticator struct {
	flow        Flow
	log         logger.Interface
	sleep       executor.SleepFunc
	onMFA       func(timeout time.Duration) (done func())
	transitions []State
}

// Option customises an Authenticator
type Option func(*Authenticator)

// WithSleep replaces the settle-window sleep
func WithSleep(sleep executor.SleepFunc) Option {
	return func(a *Authenticator) { a.sleep = sleep }
}

// WithMFANotifier is called when the flow starts waiting on a human; the
// returned func is called when the wait ends.
func WithMFANotifier(notify func(timeout time.Duration) (done func())) Option {
	return func(a *Authenticator) { a.onMFA = notify }
}

// New creates an Authenticator for flow
func New(flow Flow, log logger.Interface, opts ...Option) *Authenticator {
	if log == nil {
		log = logger.NewNoOp()
	}
	a := &Authenticator{
		flow:  flow.withDefaults(),
		log:   log.With("site", flow.Name),
		sleep: executor.Sleep,
		onMFA: func(time.Duration) func() { return func() {} },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Transitions returns the states visited by the last Authenticate call
func (a *Authenticator) Transitions() []State {
	return append([]State(nil), a.transitions...)
}

func (a *Authenticator) transition(s State) {
	a.transitions = append(a.transitions, s)
	a.log.Debug("Auth state", "state", s)
}

// NeedsAuthentication reports whether the current page shows a login indicator
func (a *Authenticator) NeedsAuthentication(ctx context.Context, page browser.Page) (bool, error) {
	for _, sel := range a.flow.LoginIndicators {
		has, err := page.Has(ctx, sel)
		if err != nil {
			return false, err
		}
		if has {
			return true, nil
		}
	}
	return a.onAuthPath(page.URL()), nil
}

// Authenticate logs s in with creds. The whole flow is attempted once; the
// caller decides whether to try again.
func (a *Authenticator) Authenticate(ctx context.Context, s *session.Session, creds session.Credentials) error {
	if err := s.Begin(); err != nil {
		return err
	}
	page, err := s.LoginPage()
	if err != nil {
		return err
	}

	if err := a.login(ctx, page, creds); err != nil {
		s.MarkFailed()
		a.transition(StateFailed)
		return err
	}

	a.log.Info("Authenticated", "url", page.URL())
	return s.MarkAuthenticated()
}

func (a *Authenticator) login(ctx context.Context, page browser.Page, creds session.Credentials) error {
	f := a.flow
	a.transitions = nil
	a.transition(StateStart)

	if f.LoginURL != "" {
		if err := page.Navigate(ctx, f.LoginURL); err != nil {
			return fmt.Errorf("failed to load login page: %w", err)
		}
		// A reused browser profile may still hold a live session
		if a.signedIn(ctx, page) {
			a.log.Info("Already signed in, skipping login form", "url", page.URL())
			a.transition(StateAuthenticated)
			return nil
		}
	}

	if creds.Email == "" || creds.Password == "" {
		return &Error{Kind: InvalidCredentials, Detail: "email and password are required"}
	}

	if len(f.Before) > 0 {
		err := executor.Run(ctx, page, f.Before, executor.Options{BaseDelay: f.StepDelay, Sleep: a.sleep, Log: a.log})
		if err != nil {
			return &Error{Kind: FieldNotFillable, Detail: "login form not reachable: " + err.Error()}
		}
	}

	if err := page.WaitForSelector(ctx, f.EmailSelector, f.FieldTimeout); err != nil {
		return &Error{Kind: FieldNotFillable, Detail: "email field not found"}
	}
	a.transition(StateLoginForm)

	emailOnly := []executor.FillStrategy{{Name: "fill", Selector: f.EmailSelector, Method: executor.FillDirect}}
	if _, err := executor.FillVerified(ctx, page, creds.Email, emailOnly, a.log); err != nil {
		return &Error{Kind: FieldNotFillable, Detail: "email: " + err.Error()}
	}

	if f.EmailNext != "" {
		if err := page.Click(ctx, f.EmailNext); err != nil {
			return &Error{Kind: FieldNotFillable, Detail: "could not continue past email: " + err.Error()}
		}
		if err := a.sleep(ctx, f.StepDelay); err != nil {
			return err
		}
		if err := page.WaitForSelector(ctx, f.PasswordSelector, f.FieldTimeout); err != nil {
			// A rejected email never shows the password step
			if detail := a.errorText(ctx, page); detail != "" {
				return &Error{Kind: InvalidCredentials, Detail: detail}
			}
			return &Error{Kind: FieldNotFillable, Detail: "password field not found"}
		}
	}

	strategies := executor.EscalatingStrategies(f.PasswordSelector, f.PasswordAlternates...)
	used, err := executor.FillVerified(ctx, page, creds.Password, strategies, a.log)
	if err != nil {
		return &Error{Kind: FieldNotFillable, Detail: "password: " + err.Error()}
	}
	a.log.Debug("Password filled", "strategy", used)

	if err := page.Click(ctx, f.SubmitSelector); err != nil {
		return fmt.Errorf("failed to submit login form: %w", err)
	}
	a.transition(StateSubmitted)

	// Outcome is indeterminate until the page settles
	if err := a.sleep(ctx, f.SettleWindow); err != nil {
		return err
	}
	return a.classify(ctx, page)
}

func (a *Authenticator) classify(ctx context.Context, page browser.Page) error {
	for _, sel := range a.flow.MFASelectors {
		has, err := page.Has(ctx, sel)
		if err == nil && has {
			return a.awaitMFA(ctx, page)
		}
	}

	url := page.URL()
	if a.onAuthPath(url) {
		detail := a.errorText(ctx, page)
		if detail == "" {
			detail = "still on login page: " + url
		}
		return &Error{Kind: InvalidCredentials, Detail: detail}
	}

	if !a.isSuccess(url) {
		// Interstitials (consent, redirects) get a short grace period
		if err := page.WaitForURL(ctx, a.isSuccess, a.flow.FieldTimeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &Error{Kind: InvalidCredentials, Detail: "unexpected page after login: " + page.URL()}
		}
	}

	a.transition(StateAuthenticated)
	return nil
}

// awaitMFA blocks on a human completing verification, signalled only by the URL
func (a *Authenticator) awaitMFA(ctx context.Context, page browser.Page) error {
	a.transition(StateMFAPending)
	a.log.Info("Waiting for two-factor verification", "timeout", a.flow.MFATimeout)

	done := a.onMFA(a.flow.MFATimeout)
	err := page.WaitForURL(ctx, a.isSuccess, a.flow.MFATimeout)
	done()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, browser.ErrURLWait) {
			return &Error{Kind: MfaTimeout, Detail: fmt.Sprintf("no redirect within %s", a.flow.MFATimeout)}
		}
		return &Error{Kind: MfaTimeout, Detail: err.Error()}
	}

	a.transition(StateAuthenticated)
	return nil
}

// signedIn reports whether page already shows a logged-in view. Errors
// while probing count as not signed in.
func (a *Authenticator) signedIn(ctx context.Context, page browser.Page) bool {
	needs, err := a.NeedsAuthentication(ctx, page)
	if err != nil || needs {
		return false
	}
	return a.isSuccess(page.URL())
}

func (a *Authenticator) onAuthPath(url string) bool {
	lower := strings.ToLower(url)
	for _, marker := range a.flow.AuthPathMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func (a *Authenticator) isSuccess(url string) bool {
	if a.flow.SuccessURLContains != "" {
		return strings.Contains(url, a.flow.SuccessURLContains)
	}
	return url != "" && !a.onAuthPath(url)
}

// errorText returns the first visible error message on the page, if any
func (a *Authenticator) errorText(ctx context.Context, page browser.Page) string {
	html, err := page.HTML(ctx)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var found string
	for _, sel := range a.flow.ErrorSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = strings.TrimSpace(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}

	for _, pattern := range a.flow.ErrorPatterns {
		p := strings.ToLower(pattern)
		doc.Find("body *").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if s.Children().Length() > 0 || goquery.NodeName(s) == "script" {
				return true
			}
			text := strings.TrimSpace(s.Text())
			if strings.Contains(strings.ToLower(text), p) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}
