package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/v0xg/coursescrape/internal/ai"
	"github.com/v0xg/coursescrape/internal/artifact"
	"github.com/v0xg/coursescrape/internal/auth"
	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/catalog"
	"github.com/v0xg/coursescrape/internal/config"
	"github.com/v0xg/coursescrape/internal/logger"
	"github.com/v0xg/coursescrape/internal/model"
	"github.com/v0xg/coursescrape/internal/navigate"
	"github.com/v0xg/coursescrape/internal/pipeline"
	"github.com/v0xg/coursescrape/internal/report"
	"github.com/v0xg/coursescrape/internal/session"
	"github.com/v0xg/coursescrape/internal/sites/roadmaps"
	"github.com/v0xg/coursescrape/internal/store"
)

// app holds everything a command shares: config, logging, artifact storage
// and the record store
type app struct {
	cfg       *config.Config
	log       logger.Interface
	artifacts *artifact.Store
	fetcher   *artifact.HTTPFetcher
	records   *store.SQLite
	tags      *ai.Tagger
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if headful {
		cfg.Browser.Headless = false
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	fmt.Printf("→ Preparing %s artifact storage... ", cfg.Storage.Backend)
	backend, err := newBackend(ctx, cfg.Storage)
	if err != nil {
		fmt.Println("failed")
		return nil, err
	}
	fmt.Println("done")

	fmt.Printf("→ Opening record store %s... ", cfg.Store.Path)
	records, err := store.Open(cfg.Store.Path)
	if err != nil {
		fmt.Println("failed")
		return nil, err
	}
	fmt.Println("done")

	a := &app{
		cfg:       cfg,
		log:       log,
		artifacts: artifact.NewStore(backend, log),
		fetcher:   artifact.NewHTTPFetcher(cfg.Storage.FetchTimeout),
		records:   records,
	}

	if cfg.AI.Provider != "" {
		provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Model)
		if err != nil {
			records.Close()
			return nil, fmt.Errorf("AI provider init failed: %w", err)
		}
		cache := catalog.NewCache[string, []string](cfg.AI.CacheTTL, time.Now)
		a.tags = ai.NewTagger(provider, cache, log)
	}
	return a, nil
}

func newBackend(ctx context.Context, cfg config.StorageConfig) (artifact.Backend, error) {
	switch cfg.Backend {
	case "minio":
		m, err := artifact.NewMinioBackend(artifact.MinioConfig{
			Endpoint:      cfg.Endpoint,
			AccessKey:     cfg.AccessKey,
			SecretKey:     cfg.SecretKey,
			Bucket:        cfg.Bucket,
			UseSSL:        cfg.UseSSL,
			Region:        cfg.Region,
			PublicBaseURL: cfg.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return artifact.NewLocalBackend(cfg.LocalRoot, cfg.BaseURL)
	}
}

// tagger returns a nil interface when tagging is disabled
func (a *app) tagger() roadmaps.Tagger {
	if a.tags == nil {
		return nil
	}
	return a.tags
}

func (a *app) roadmaps() *roadmaps.Site {
	return roadmaps.New(roadmaps.Options{
		Artifacts:          a.artifacts,
		Fetcher:            a.fetcher,
		Tagger:             a.tagger(),
		Log:                a.log,
		MaxScreenshotWidth: a.cfg.Storage.MaxScreenshotWidth,
		SkipSkills:         skipSkills,
		Nav:                a.navOptions(),
	})
}

func (a *app) close() {
	if err := a.records.Close(); err != nil {
		a.log.Warn("Failed to close record store", "error", err)
	}
	_ = a.log.Sync()
}

func (a *app) navOptions() navigate.Options {
	return navigate.Options{
		Timeout:    a.cfg.Navigation.Timeout,
		MaxRetries: a.cfg.Navigation.MaxRetries,
		BaseDelay:  a.cfg.Navigation.BaseDelay,
	}
}

func (a *app) openBrowser(ctx context.Context) (browser.Page, error) {
	fmt.Print("→ Launching browser... ")
	page, err := browser.Launch(ctx, browser.Options{
		Headless:   a.cfg.Browser.Headless,
		Width:      a.cfg.Browser.Width,
		Height:     a.cfg.Browser.Height,
		ProfileDir: a.cfg.Browser.ProfileDir,
		ControlURL: a.cfg.Browser.ControlURL,
		UserAgent:  a.cfg.Browser.UserAgent,
	})
	if err != nil {
		fmt.Println("failed")
		return nil, err
	}
	fmt.Println("done")
	return page, nil
}

// authenticator builds the login flow with a spinner shown while a human
// completes a second factor in the browser window
func (a *app) authenticator(flow *auth.Flow) *auth.Authenticator {
	return auth.New(*flow, a.log, auth.WithMFANotifier(func(timeout time.Duration) func() {
		s := spinner.New(spinner.CharSets[9], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Waiting up to %s for two-factor verification in the browser", timeout)
		s.Start()
		return s.Stop
	}))
}

func (a *app) credentials(site string) (session.Credentials, error) {
	c, ok := a.cfg.Credentials.For(site)
	if !ok {
		return session.Credentials{}, fmt.Errorf("no credentials for %s: set %s_CREDENTIALS_%s_EMAIL and _PASSWORD",
			site, config.EnvPrefix, strings.ToUpper(site))
	}
	return session.Credentials{Email: c.Email, Password: c.Password}, nil
}

// run processes items for site, writes the report and prints the summary.
// flow is nil for sites without a login.
func (a *app) run(ctx context.Context, site pipeline.Site, flow *auth.Flow, items []model.WorkItem) error {
	cfg := pipeline.Config{
		Site:  site,
		Open:  a.openBrowser,
		Saver: a.records,
		Log:   a.log,
		Delay: a.cfg.Run.Delay,
		Clock: time.Now,
	}
	if flow != nil {
		creds, err := a.credentials(site.Name())
		if err != nil {
			return err
		}
		cfg.Auth = a.authenticator(flow)
		cfg.Credentials = creds
	}

	runner, err := pipeline.NewRunner(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("→ Scraping %d %s items...\n", len(items), site.Name())
	summary, runErr := runner.Run(ctx, items)
	if summary == nil {
		return runErr
	}

	stats := a.artifacts.Stats()
	fmt.Print("→ Writing report... ")
	files, err := report.Write(a.cfg.Run.OutputDir, summary, &stats, time.Now())
	if err != nil {
		fmt.Println("failed")
		return errors.Join(runErr, err)
	}
	fmt.Println("done")

	report.RenderTable(os.Stdout, summary, &stats)
	if runErr != nil {
		return runErr
	}

	fmt.Printf("✓ Saved results to %s\n", files.Results)
	if files.URLs != "" {
		fmt.Printf("✓ Saved %d URLs to %s\n", len(summary.DerivedURLs()), files.URLs)
	}
	return nil
}

// checkCredentials logs in with flow and loads landing as a signed in user
func (a *app) checkCredentials(ctx context.Context, flow *auth.Flow, landing string) error {
	creds, err := a.credentials(flow.Name)
	if err != nil {
		return err
	}
	page, err := a.openBrowser(ctx)
	if err != nil {
		return err
	}
	sess := session.New(page)
	defer sess.Close()

	fmt.Printf("→ Logging in to %s as %s... ", flow.Name, creds.Email)
	authn := a.authenticator(flow)
	if err := authn.Authenticate(ctx, sess, creds); err != nil {
		fmt.Println("failed")
		return err
	}
	fmt.Println("done")

	fmt.Printf("→ Loading %s... ", landing)
	page, err = sess.Page()
	if err != nil {
		fmt.Println("failed")
		return err
	}
	opts := a.navOptions()
	opts.RequiredSelector = "body"
	if err := navigate.NewController(a.log, nil).Goto(ctx, page, landing, opts); err != nil {
		fmt.Println("failed")
		return err
	}
	again, err := authn.NeedsAuthentication(ctx, page)
	if err != nil || again {
		fmt.Println("failed")
		return fmt.Errorf("%s still asks for a login after signing in", landing)
	}
	fmt.Println("done")

	fmt.Printf("✓ Credentials for %s work\n", flow.Name)
	return nil
}
