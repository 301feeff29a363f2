package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodPage implements Page on top of a Rod browser tab
type RodPage struct {
	browser        *rod.Browser
	page           *rod.Page
	launcher       *launcher.Launcher
	elementTimeout time.Duration
}

// Launch starts (or attaches to) a browser and opens one blank tab
func Launch(ctx context.Context, opts Options) (*RodPage, error) {
	if opts.ElementTimeout == 0 {
		opts.ElementTimeout = 10 * time.Second
	}

	controlURL := opts.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		path, _ := launcher.LookPath()
		l = launcher.New().Bin(path).Headless(opts.Headless)
		if opts.ProfileDir != "" {
			l = l.UserDataDir(opts.ProfileDir)
		}

		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if opts.Width > 0 && opts.Height > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Width,
			Height:            opts.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	return &RodPage{browser: b, page: page, launcher: l, elementTimeout: opts.ElementTimeout}, nil
}

// Navigate loads url, then waits briefly for the network to go quiet
func (p *RodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}

	// Don't hang on persistent connections (WebSockets, polling, etc.)
	page.Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return nil
}

func (p *RodPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if _, err := p.page.Context(ctx).Timeout(timeout).Element(selector); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrElementNotFound, selector, err)
	}
	return nil
}

func (p *RodPage) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, err
}

func (p *RodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *RodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// element looks up selector, waiting up to the element timeout
func (p *RodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := p.page.Context(ctx).Timeout(p.elementTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, selector)
	}
	// Drop the lookup timeout so later actions only honour ctx
	return el.CancelTimeout().Context(ctx), nil
}

func (p *RodPage) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *RodPage) Fill(ctx context.Context, selector, value string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

func (p *RodPage) TypeKeys(ctx context.Context, selector, value string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	if err := el.Input(""); err != nil {
		return err
	}

	kb := p.page.Context(ctx).Keyboard
	for _, char := range value {
		if err := kb.Type(input.Key(char)); err != nil {
			return err
		}
	}
	return nil
}

func (p *RodPage) Value(ctx context.Context, selector string) (string, error) {
	el, err := p.element(ctx, selector)
	if err != nil {
		return "", err
	}
	v, err := el.Property("value")
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (p *RodPage) Text(ctx context.Context, selector string) (string, error) {
	el, err := p.element(ctx, selector)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (p *RodPage) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	el, err := p.element(ctx, selector)
	if err != nil {
		return nil, err
	}
	return el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
}

// WaitForURL listens for frame navigations rather than polling, since the
// wait may be on a human completing a step in the browser.
func (p *RodPage) WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error {
	if match(p.URL()) {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	matched := false
	wait := p.page.Context(waitCtx).EachEvent(
		func(e *proto.PageFrameNavigated) bool {
			matched = e.Frame.ParentID == "" && match(e.Frame.URL)
			return matched
		},
		func(e *proto.PageNavigatedWithinDocument) bool {
			matched = match(e.URL)
			return matched
		},
	)
	wait()

	if matched || match(p.URL()) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w after %s (last url: %s)", ErrURLWait, timeout, p.URL())
}

func (p *RodPage) Cookies(ctx context.Context) ([]Cookie, error) {
	raw, err := p.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, err
	}
	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	return cookies, nil
}

// Close cleans up page, browser and any launched process
func (p *RodPage) Close() error {
	var errs []error
	if p.page != nil {
		errs = append(errs, p.page.Close())
	}
	if p.browser != nil {
		errs = append(errs, p.browser.Close())
	}
	if p.launcher != nil {
		p.launcher.Cleanup()
	}
	return errors.Join(errs...)
}
