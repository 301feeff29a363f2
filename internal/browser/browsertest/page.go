// Package browsertest provides an in-memory browser.Page for tests. Documents
// are parsed with goquery, so selectors follow cascadia's CSS support.
package browsertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/browser"
)

// Page is a scriptable fake browser tab
type Page struct {
	mu sync.Mutex

	// Routes maps a URL to the HTML served for it
	Routes map[string]string
	// Redirects sends a navigation to another route, like a server redirect
	Redirects map[string]string
	// OnClick runs after a successful click on the exact selector
	OnClick map[string]func(p *Page)
	// NavigateErr, when set, can fail a navigation. attempt counts from 1 per URL.
	NavigateErr func(url string, attempt int) error
	// FillFilter rewrites the value that "sticks" in a field. method is "fill" or "keys".
	FillFilter func(selector, method, value string) string
	// OnWaitURL simulates something external (a human finishing 2FA) happening during WaitForURL
	OnWaitURL func(p *Page)
	// ScreenshotWidth sets the width of generated screenshots
	ScreenshotWidth int
	// CookieJar is returned by Cookies
	CookieJar []browser.Cookie

	url    string
	doc    *goquery.Document
	values map[string]string

	Navigations []string
	Clicks      []string
	Fills       []FillCall
	attempts    map[string]int
	closed      int
}

// FillCall records one fill attempt
type FillCall struct {
	Selector string
	Method   string
	Value    string
}

// New returns a page serving routes
func New(routes map[string]string) *Page {
	if routes == nil {
		routes = map[string]string{}
	}
	return &Page{
		Routes:    routes,
		Redirects: map[string]string{},
		OnClick:   map[string]func(p *Page){},
		values:    map[string]string{},
		attempts:  map[string]int{},
	}
}

// Load replaces the current document without recording a navigation
func (p *Page) Load(url, html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(fmt.Sprintf("browsertest: bad html for %s: %v", url, err))
	}
	p.url = url
	p.doc = doc
	p.values = map[string]string{}
}

// Doc exposes the current document so click handlers can mutate it
func (p *Page) Doc() *goquery.Document {
	return p.doc
}

// SetURL changes the current URL without touching the document
func (p *Page) SetURL(url string) {
	p.url = url
}

// Closed reports how many times Close was called
func (p *Page) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// NavigationCount returns how many times url was requested
func (p *Page) NavigationCount(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[url]
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.Navigations = append(p.Navigations, url)
	p.attempts[url]++
	attempt := p.attempts[url]
	p.mu.Unlock()

	if p.NavigateErr != nil {
		if err := p.NavigateErr(url, attempt); err != nil {
			return fmt.Errorf("%w: %s: %v", browser.ErrNavigation, url, err)
		}
	}
	if to, ok := p.Redirects[url]; ok {
		url = to
	}
	html, ok := p.Routes[url]
	if !ok {
		return fmt.Errorf("%w: no route for %s", browser.ErrNavigation, url)
	}
	p.Load(url, html)
	return nil
}

func (p *Page) find(selector string) *goquery.Selection {
	if p.doc == nil {
		return &goquery.Selection{}
	}
	return p.doc.Find(selector)
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return nil
}

func (p *Page) Has(ctx context.Context, selector string) (bool, error) {
	return p.find(selector).Length() > 0, nil
}

func (p *Page) URL() string {
	return p.url
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if p.doc == nil {
		return "", nil
	}
	return p.doc.Html()
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if p.find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	p.mu.Lock()
	p.Clicks = append(p.Clicks, selector)
	p.mu.Unlock()

	if handler := p.OnClick[selector]; handler != nil {
		handler(p)
	}
	return nil
}

func (p *Page) fill(selector, method, value string) error {
	if p.find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	p.mu.Lock()
	p.Fills = append(p.Fills, FillCall{Selector: selector, Method: method, Value: value})
	p.mu.Unlock()

	stuck := value
	if p.FillFilter != nil {
		stuck = p.FillFilter(selector, method, value)
	}
	p.values[selector] = stuck
	return nil
}

func (p *Page) Fill(ctx context.Context, selector, value string) error {
	return p.fill(selector, "fill", value)
}

func (p *Page) TypeKeys(ctx context.Context, selector, value string) error {
	return p.fill(selector, "keys", value)
}

func (p *Page) Value(ctx context.Context, selector string) (string, error) {
	sel := p.find(selector)
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	if v, ok := p.values[selector]; ok {
		return v, nil
	}
	return sel.First().AttrOr("value", ""), nil
}

func (p *Page) Text(ctx context.Context, selector string) (string, error) {
	sel := p.find(selector)
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return strings.TrimSpace(sel.First().Text()), nil
}

// Screenshot returns a small solid PNG so image handling code has real input
func (p *Page) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	if p.find(selector).Length() == 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	width := p.ScreenshotWidth
	if width == 0 {
		width = 8
	}
	img := image.NewRGBA(image.Rect(0, 0, width, width/2+1))
	for x := 0; x < img.Bounds().Dx(); x++ {
		for y := 0; y < img.Bounds().Dy(); y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 220, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Page) WaitForURL(ctx context.Context, match func(string) bool, timeout time.Duration) error {
	if match(p.url) {
		return nil
	}
	if p.OnWaitURL != nil {
		p.OnWaitURL(p)
		if match(p.url) {
			return nil
		}
	}
	return fmt.Errorf("%w after %s (last url: %s)", browser.ErrURLWait, timeout, p.url)
}

func (p *Page) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	return p.CookieJar, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

var _ browser.Page = (*Page)(nil)
