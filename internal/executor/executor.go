package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/v0xg/coursescrape/internal/browser"
	"github.com/v0xg/coursescrape/internal/logger"
)

// ErrNotFillable is returned when no fill strategy left the expected value in a field
var ErrNotFillable = errors.New("field could not be filled")

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Options configures execution behavior
type Options struct {
	BaseDelay time.Duration // settle time after each action without its own wait
	Sleep     SleepFunc
	Log       logger.Interface
}

func (o Options) withDefaults() Options {
	if o.Sleep == nil {
		o.Sleep = Sleep
	}
	if o.Log == nil {
		o.Log = logger.NewNoOp()
	}
	return o
}

// Run executes actions in order and stops at the first failure
func Run(ctx context.Context, page browser.Page, actions []Action, opts Options) error {
	opts = opts.withDefaults()

	for i, action := range actions {
		opts.Log.Debug("Executing action", "index", i+1, "total", len(actions), "action", action.Type, "selector", action.Selector)

		err := execute(ctx, page, action, opts.Sleep)
		if err != nil && action.Optional && errors.Is(err, browser.ErrElementNotFound) {
			opts.Log.Debug("Skipping optional action", "action", action.Type, "selector", action.Selector)
			continue
		}
		if err != nil {
			return fmt.Errorf("action %d (%s %s): %w", i+1, action.Type, action.Selector, err)
		}

		// Post-action settle
		if action.Type == ActionWait || action.Type == ActionWaitFor {
			continue
		}
		wait := opts.BaseDelay
		if action.Duration > 0 {
			wait = time.Duration(action.Duration) * time.Millisecond
		}
		if err := opts.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

func execute(ctx context.Context, page browser.Page, action Action, sleep SleepFunc) error {
	switch action.Type {
	case ActionClick:
		return page.Click(ctx, action.Selector)
	case ActionFill:
		return page.Fill(ctx, action.Selector, action.Text)
	case ActionType:
		return page.TypeKeys(ctx, action.Selector, action.Text)
	case ActionNavigate:
		return page.Navigate(ctx, action.URL)
	case ActionWaitFor:
		return page.WaitForSelector(ctx, action.Selector, time.Duration(action.Duration)*time.Millisecond)
	case ActionWait:
		return sleep(ctx, time.Duration(action.Duration)*time.Millisecond)
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}
