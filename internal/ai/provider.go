// Package ai tags extracted skills with short topic labels using an LLM.
package ai

import (
	"context"
	"fmt"
)

// Provider sends one system+user prompt pair and returns the text reply
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewProvider creates a new AI provider based on the provider name
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}
