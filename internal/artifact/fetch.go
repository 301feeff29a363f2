package artifact

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/v0xg/coursescrape/internal/browser"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// HTTPFetcher downloads source assets, carrying the browser's session cookies
// so authenticated media can be fetched outside the page.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates a fetcher with the given request timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	client := resty.New()
	client.SetHeader("user-agent", defaultUserAgent)
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	return &HTTPFetcher{client: client}
}

// Fetch returns a FetchFunc for url. Cookies are attached as-is.
func (f *HTTPFetcher) Fetch(url string, cookies []browser.Cookie) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		req := f.client.R().SetContext(ctx)
		for _, c := range cookies {
			req.SetCookie(&http.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
		}
		res, err := req.Get(url)
		if err != nil {
			return nil, err
		}
		if res.IsError() {
			return nil, fmt.Errorf("GET %s: unexpected status %s", url, res.Status())
		}
		if len(res.Body()) == 0 {
			return nil, fmt.Errorf("GET %s: empty body", url)
		}
		return res.Body(), nil
	}
}
