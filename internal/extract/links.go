package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/model"
)

// Resolve turns href into an absolute URL against base. Fragments-only,
// javascript: and data: references are rejected.
func Resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "data:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base == nil {
		if !ref.IsAbs() {
			return "", false
		}
		return ref.String(), true
	}
	return base.ResolveReference(ref).String(), true
}

// Links collects anchors matching selector whose text passes keep (nil keeps all)
func Links(doc *goquery.Document, selector string, base *url.URL, keep func(text, href string) bool) []model.Link {
	var links []model.Link
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		abs, ok := Resolve(base, href)
		if !ok {
			return
		}
		text := Clean(s.Text())
		if keep != nil && !keep(text, abs) {
			return
		}
		links = append(links, model.Link{Title: text, URL: abs})
	})
	return links
}

// TextMatches keeps links whose text matches any pattern
func TextMatches(patterns ...*regexp.Regexp) func(text, href string) bool {
	return func(text, _ string) bool {
		for _, p := range patterns {
			if p.MatchString(text) {
				return true
			}
		}
		return false
	}
}

// Dedupe collapses links reachable through several DOM paths into one per URL,
// keeping the shortest non-empty title. First-seen order is preserved.
func Dedupe(links []model.Link) []model.Link {
	index := map[string]int{}
	out := make([]model.Link, 0, len(links))
	for _, l := range links {
		i, seen := index[l.URL]
		if !seen {
			index[l.URL] = len(out)
			out = append(out, l)
			continue
		}
		cur := out[i].Title
		if cur == "" || (l.Title != "" && len(l.Title) < len(cur)) {
			out[i].Title = l.Title
		}
	}
	return out
}
