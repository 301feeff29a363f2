package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/model"
)

// Matcher picks out landmark elements
type Matcher func(s *goquery.Selection) bool

// Heading matches an element with the given tag whose text starts with prefix
func Heading(tag, prefix string) Matcher {
	return func(s *goquery.Selection) bool {
		return goquery.NodeName(s) == tag && HasPrefixFold(s.Text(), prefix)
	}
}

// HeadingContaining matches an element with the given tag whose text contains sub
func HeadingContaining(tag, sub string) Matcher {
	return func(s *goquery.Selection) bool {
		return goquery.NodeName(s) == tag && ContainsFold(s.Text(), sub)
	}
}

// Tag matches any element with one of the given tag names
func Tag(names ...string) Matcher {
	return func(s *goquery.Selection) bool {
		name := goquery.NodeName(s)
		for _, n := range names {
			if name == n {
				return true
			}
		}
		return false
	}
}

// Span is the run of sibling elements between two landmarks
type Span struct {
	Start *goquery.Selection
	Body  []*goquery.Selection
}

// Text joins the cleaned text of every element in the span
func (s Span) Text() string {
	var parts []string
	for _, el := range s.Body {
		if t := BlockText(el); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Images collects images inside the span, numbered in document order
func (s Span) Images(base *url.URL, section string) []model.Image {
	var out []model.Image
	for _, el := range s.Body {
		for _, img := range Images(el, base, section) {
			img.Order = len(out)
			out = append(out, img)
		}
	}
	return out
}

// Empty reports whether the span is missing or has neither text nor images
func (s Span) Empty() bool {
	if !s.Found() {
		return true
	}
	for _, el := range s.Body {
		if BlockText(el) != "" || el.Is("img") || el.Find("img").Length() > 0 {
			return false
		}
	}
	return true
}

// Found reports whether the start landmark was located
func (s Span) Found() bool {
	return s.Start != nil && s.Start.Length() > 0
}

// BetweenLandmarks finds the first element under root matching start and collects
// the following siblings up to (not including) the first sibling matching end.
//
// This assumes the page lays content out as a flat run of heading and body
// siblings. Content nested inside a deeper wrapper than the heading is not seen.
func BetweenLandmarks(root *goquery.Selection, start, end Matcher) Span {
	var span Span
	root.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if start(s) {
			span.Start = s
			return false
		}
		return true
	})
	if !span.Found() {
		return span
	}

	for sib := span.Start.Next(); sib.Length() > 0; sib = sib.Next() {
		if end(sib) {
			break
		}
		span.Body = append(span.Body, sib)
	}
	return span
}

// TextBetween is BetweenLandmarks(...).Text()
func TextBetween(root *goquery.Selection, start, end Matcher) string {
	return BetweenLandmarks(root, start, end).Text()
}
