// Package pipeline runs a work list through one browser session: navigate,
// extract, validate and persist each item in order, recording every outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/v0xg/coursescrape/internal/auth"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/executor"
	"github.com/v0xg/coursescrape/internal/logger"
	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/navigate"
	"github.com/v0xg/coursescrape/internal/session"
	"github.com/v0xg/coursescrape/internal/store"
	"github.com/v0xg/coursescrape/internal/validate"
)

// Site knows how to extract and shape records for one target platform
type Site interface {
	Name() string
	// NavOptions gives the acceptance selector and limits for loading item
	NavOptions(item model.WorkItem) navigate.Options
	// Extract never fails outright; degraded fields are left empty and a
	// failed item comes back with Success false.
	Extract(ctx context.Context, page browser.Page, item model.WorkItem) model.ExtractionResult
	// Record shapes a successful result into the value that is validated and saved
	Record(result model.ExtractionResult) (kind, key string, record any)
}

// Expander is implemented by sites whose pages discover further work
type Expander interface {
	Expand(result model.ExtractionResult) []model.WorkItem
}

// Enricher is implemented by sites that decorate a validated record before it is saved.
// Enrichment failures are logged and never fail the item.
type Enricher interface {
	Enrich(ctx context.Context, record any) error
}

// Authenticator logs a session in
type Authenticator interface {
	Authenticate(ctx context.Context, s *session.Session, creds session.Credentials) error
}

// Navigator loads a URL into the page
type Navigator interface {
	Goto(ctx context.Context, page browser.Page, url string, opts navigate.Options) error
}

// Validator checks a record, returning validate.Errors on violations
type Validator interface {
	Validate(record any) error
}

// Saver is the persistence collaborator
type Saver interface {
	Save(ctx context.Context, kind, key string, record any) store.SaveResult
}

// OpenFunc creates the run's browser page
type OpenFunc func(ctx context.Context) (browser.Page, error)

// Config wires a Runner
type Config struct {
	Site Site
	Open OpenFunc
	// Auth is nil for sites that need no login
	Auth        Authenticator
	Credentials session.Credentials
	Navigator   Navigator
	Validator   Validator
	Saver       Saver
	Log         logger.Interface

	// Delay separates consecutive items
	Delay time.Duration
	Sleep executor.SleepFunc
	Clock func() time.Time
	RunID func() string
}

// Runner processes work lists for one site
type Runner struct {
	cfg Config
	log logger.Interface
}

// NewRunner checks cfg and fills defaults
func NewRunner(cfg Config) (*Runner, error) {
	switch {
	case cfg.Site == nil:
		return nil, errors.New("pipeline: site is required")
	case cfg.Open == nil:
		return nil, errors.New("pipeline: open func is required")
	case cfg.Saver == nil:
		return nil, errors.New("pipeline: saver is required")
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewNoOp()
	}
	if cfg.Sleep == nil {
		cfg.Sleep = executor.Sleep
	}
	if cfg.Navigator == nil {
		cfg.Navigator = navigate.NewController(cfg.Log, cfg.Sleep)
	}
	if cfg.Validator == nil {
		cfg.Validator = validate.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.RunID == nil {
		cfg.RunID = func() string { return uuid.New().String() }
	}
	return &Runner{cfg: cfg, log: cfg.Log.With("site", cfg.Site.Name())}, nil
}

// Run processes items in order and returns the summary. The returned error is
// non-nil only when the run could not start (browser or authentication) or the
// context was cancelled; per-item failures are recorded in the summary. The
// summary is returned in every case and always reconciles.
func (r *Runner) Run(ctx context.Context, items []model.WorkItem) (*Summary, error) {
	agg := newAggregator(r.cfg.RunID(), r.cfg.Site.Name(), r.cfg.Clock())
	agg.request(len(items))
	r.log.Info("Starting run", "run_id", agg.s.RunID, "items", len(items))

	page, err := r.cfg.Open(ctx)
	if err != nil {
		err = fmt.Errorf("failed to open browser: %w", err)
		r.skipAll(agg, items, StagePending, err)
		return agg.finish(r.cfg.Clock()), err
	}

	sess := session.New(page)
	defer func() {
		if err := sess.Close(); err != nil {
			r.log.Warn("Failed to close browser session", "error", err)
		}
	}()

	if err := r.authenticate(ctx, sess); err != nil {
		r.log.Error("Authentication failed, no items will be processed", "error", err)
		cause := err
		var authErr *auth.Error
		if !errors.As(err, &authErr) {
			cause = fmt.Errorf("authentication failed: %w", err)
		}
		r.skipAll(agg, items, StageAuthenticating, cause)
		return agg.finish(r.cfg.Clock()), err
	}
	page, err = sess.Page()
	if err != nil {
		r.skipAll(agg, items, StageAuthenticating, err)
		return agg.finish(r.cfg.Clock()), err
	}

	queue := append([]model.WorkItem(nil), items...)
	for i := 0; i < len(queue); i++ {
		if err := ctx.Err(); err != nil {
			r.skipAll(agg, queue[i:], StagePending, fmt.Errorf("run cancelled: %w", err))
			return agg.finish(r.cfg.Clock()), err
		}

		r.log.Info("Processing item", "n", i+1, "of", len(queue), "url", queue[i].URL)
		children := r.process(ctx, page, queue[i], agg)
		if len(children) > 0 {
			r.log.Info("Discovered items", "url", queue[i].URL, "count", len(children))
			queue = append(queue, children...)
			agg.request(len(children))
		}

		if i < len(queue)-1 && r.cfg.Delay > 0 {
			// cancellation is picked up at the top of the loop
			_ = r.cfg.Sleep(ctx, r.cfg.Delay)
		}
	}

	s := agg.finish(r.cfg.Clock())
	r.log.Info("Run complete",
		"requested", s.TotalRequested, "succeeded", s.Succeeded, "failed", s.Failed,
		"rejected", s.Rejected, "duration", s.Duration)
	return s, nil
}

func (r *Runner) authenticate(ctx context.Context, sess *session.Session) error {
	if r.cfg.Auth == nil {
		if err := sess.Begin(); err != nil {
			return err
		}
		return sess.MarkAuthenticated()
	}
	return r.cfg.Auth.Authenticate(ctx, sess, r.cfg.Credentials)
}

// skipAll records items that were never attempted
func (r *Runner) skipAll(agg *aggregator, items []model.WorkItem, stage Stage, cause error) {
	msg := "not processed: " + cause.Error()
	for _, it := range items {
		agg.fail(model.Failed(it, nil), stage, msg)
	}
}

// process runs one item through every stage and records exactly one outcome.
// It returns any child items the site discovered.
func (r *Runner) process(ctx context.Context, page browser.Page, item model.WorkItem, agg *aggregator) (children []model.WorkItem) {
	log := r.log.With("url", item.URL, "level", item.Level)
	site := r.cfg.Site
	stage := StagePending
	result := model.Failed(item, nil)
	agg.s.Processed++

	defer func() {
		if p := recover(); p != nil {
			msg := fmt.Sprintf("panic while %s: %v", stage, p)
			log.Error("Item panicked", "stage", stage, "panic", p)
			agg.fail(result, stage, msg)
			children = nil
		}
	}()

	stage = StageNavigating
	if err := r.cfg.Navigator.Goto(ctx, page, item.URL, site.NavOptions(item)); err != nil {
		log.Warn("Navigation failed", "error", err)
		agg.fail(model.Failed(item, err), stage, err.Error())
		return nil
	}

	stage = StageExtracting
	result = site.Extract(ctx, page, item)
	result.Normalize()
	result.Item = item
	if result.ScrapedAt.IsZero() {
		result.ScrapedAt = r.cfg.Clock()
	}
	if !result.Success {
		log.Warn("Extraction failed", "error", result.Error)
		agg.fail(result, stage, "extraction failed: "+result.Error)
		return nil
	}
	if exp, ok := site.(Expander); ok {
		children = exp.Expand(result)
	}

	stage = StageValidating
	kind, key, record := site.Record(result)
	if err := r.cfg.Validator.Validate(record); err != nil {
		var verrs validate.Errors
		if errors.As(err, &verrs) {
			log.Warn("Record rejected", "key", key, "violations", len(verrs))
			agg.reject(result, key, verrs)
		} else {
			agg.fail(result, stage, err.Error())
		}
		return children
	}

	if enricher, ok := site.(Enricher); ok {
		if err := enricher.Enrich(ctx, record); err != nil {
			log.Warn("Enrichment failed", "key", key, "error", err)
		}
	}

	stage = StagePersisting
	saved := r.cfg.Saver.Save(ctx, kind, key, record)
	if !saved.Success {
		log.Error("Failed to persist record", "key", key, "error", saved.Error)
		agg.persistFailed(result, saved.Error)
		return children
	}

	result.RecordID = saved.ID
	agg.succeed(result)
	log.Info("Item done", "key", key, "id", saved.ID)
	return children
}
