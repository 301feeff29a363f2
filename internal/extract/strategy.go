// Package extract holds the page-independent extraction toolkit: ordered
// fallback strategies, landmark-bounded text, link and media discovery.
// Everything operates on a goquery snapshot of the rendered page.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/v0xg/coursescrape/internal/logger"
)

// Strategy is one way of pulling a value out of a document
type Strategy[T any] struct {
	Name string
	Run  func(doc *goquery.Document) T
}

// Chain tries strategies in order and accepts the first non-empty result
type Chain[T any] struct {
	Field      string
	Strategies []Strategy[T]
	Empty      func(T) bool
}

// Result of running a chain
type Outcome[T any] struct {
	Value    T
	Strategy string // name of the winning strategy, empty when all came up empty
	Failures []string
}

// Run executes the chain. A panicking strategy counts as empty.
func (c Chain[T]) Run(doc *goquery.Document, log logger.Interface) Outcome[T] {
	if log == nil {
		log = logger.NewNoOp()
	}
	var out Outcome[T]
	for i, s := range c.Strategies {
		value, err := safeRun(s, doc)
		if err != nil {
			out.Failures = append(out.Failures, fmt.Sprintf("%s: %v", s.Name, err))
			log.Debug("Extraction strategy panicked", "field", c.Field, "strategy", s.Name, "error", err)
			continue
		}
		if c.Empty(value) {
			continue
		}
		if i > 0 {
			log.Debug("Extraction fell back", "field", c.Field, "strategy", s.Name, "position", i+1)
		}
		out.Value = value
		out.Strategy = s.Name
		return out
	}
	log.Warn("All extraction strategies empty", "field", c.Field, "tried", len(c.Strategies))
	return out
}

func safeRun[T any](s Strategy[T], doc *goquery.Document) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Run(doc), nil
}

// TextChain builds a chain over strings, empty meaning blank
func TextChain(field string, strategies ...Strategy[string]) Chain[string] {
	return Chain[string]{
		Field:      field,
		Strategies: strategies,
		Empty:      func(s string) bool { return strings.TrimSpace(s) == "" },
	}
}

// SliceChain builds a chain over slices, empty meaning zero length
func SliceChain[E any](field string, strategies ...Strategy[[]E]) Chain[[]E] {
	return Chain[[]E]{
		Field:      field,
		Strategies: strategies,
		Empty:      func(s []E) bool { return len(s) == 0 },
	}
}

// FirstText returns the trimmed text of the first element matching selector
func FirstText(selector string) Strategy[string] {
	return Strategy[string]{
		Name: selector,
		Run: func(doc *goquery.Document) string {
			return Clean(doc.Find(selector).First().Text())
		},
	}
}

// HTMLSource is anything that can hand over a rendered document
type HTMLSource interface {
	HTML(ctx context.Context) (string, error)
}

// Snapshot parses the current document of page
func Snapshot(ctx context.Context, page HTMLSource) (*goquery.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page html: %w", err)
	}
	return doc, nil
}
