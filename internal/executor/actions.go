package executor

import "time"

// Action represents a single browser automation action
type Action struct {
	Type     string `json:"action"`             // click, fill, type, navigate, wait, waitFor
	Selector string `json:"selector,omitempty"` // CSS selector for the target element
	Text     string `json:"text,omitempty"`     // Text to enter (fill and type actions)
	URL      string `json:"url,omitempty"`      // URL for navigate action
	Duration int    `json:"wait,omitempty"`     // Wait duration in ms after action
	Optional bool   `json:"optional,omitempty"` // Missing elements are skipped instead of failing
}

// Action types
const (
	ActionClick    = "click"
	ActionFill     = "fill"
	ActionType     = "type"
	ActionNavigate = "navigate"
	ActionWait     = "wait"
	ActionWaitFor  = "waitFor"
)

// Click builds a click action
func Click(selector string) Action {
	return Action{Type: ActionClick, Selector: selector}
}

// WaitFor builds an action that blocks until selector appears
func WaitFor(selector string, timeout time.Duration) Action {
	return Action{Type: ActionWaitFor, Selector: selector, Duration: int(timeout / time.Millisecond)}
}

// Pause builds a fixed settle wait
func Pause(d time.Duration) Action {
	return Action{Type: ActionWait, Duration: int(d / time.Millisecond)}
}
