package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/logger"
)

// FillMethod is how a value gets into a field
type FillMethod int

const (
	// FillDirect clicks, clears and inserts the whole value
	FillDirect FillMethod = iota
	// FillKeystrokes clears, then types one character at a time
	FillKeystrokes
)

// FillStrategy is one attempt at getting a value into a field
type FillStrategy struct {
	Name     string
	Selector string
	Method   FillMethod
}

// EscalatingStrategies returns the standard attempt order for a stubborn field:
// direct fill, then keystrokes on the same selector, then direct fill on each alternate.
func EscalatingStrategies(selector string, alternates ...string) []FillStrategy {
	strategies := []FillStrategy{
		{Name: "fill", Selector: selector, Method: FillDirect},
		{Name: "keystrokes", Selector: selector, Method: FillKeystrokes},
	}
	for i, alt := range alternates {
		strategies = append(strategies, FillStrategy{
			Name:     fmt.Sprintf("alternate-%d", i+1),
			Selector: alt,
			Method:   FillDirect,
		})
	}
	return strategies
}

// FillVerified tries strategies in order. Each attempt is verified by reading the
// field back; the first attempt whose value sticks wins and its name is returned.
func FillVerified(ctx context.Context, page browser.Page, value string, strategies []FillStrategy, log logger.Interface) (string, error) {
	if log == nil {
		log = logger.NewNoOp()
	}

	var attempts []string
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var err error
		switch s.Method {
		case FillKeystrokes:
			err = page.TypeKeys(ctx, s.Selector, value)
		default:
			err = page.Fill(ctx, s.Selector, value)
		}
		if err != nil {
			log.Debug("Fill strategy failed", "strategy", s.Name, "selector", s.Selector, "error", err)
			attempts = append(attempts, fmt.Sprintf("%s: %v", s.Name, err))
			continue
		}

		got, err := page.Value(ctx, s.Selector)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: read back: %v", s.Name, err))
			continue
		}
		if got == value {
			return s.Name, nil
		}

		// Lengths only, the value may be a secret
		log.Debug("Fill did not stick", "strategy", s.Name, "selector", s.Selector, "want_len", len(value), "got_len", len(got))
		attempts = append(attempts, fmt.Sprintf("%s: value mismatch", s.Name))
	}

	return "", fmt.Errorf("%w after %d strategies (%s)", ErrNotFillable, len(strategies), strings.Join(attempts, "; "))
}
