package ai

import (
	"fmt"
	"strings"
)

const systemPrompt = `You label middle and high school math skills with short topic tags.

You will receive a skill title, its description and its vocabulary terms.

Output a JSON array of 1 to %d lowercase tags. Each tag is one to three words naming a math topic (for example "ratios", "unit rate", "linear equations"). Prefer tags from the known tag list when one fits; only invent a new tag when none does.

Respond ONLY with the JSON array, no explanation or markdown.`

// Input is what a skill is tagged from
type Input struct {
	Title       string
	Description string
	Vocabulary  []string
}

func buildSystemPrompt() string {
	return fmt.Sprintf(systemPrompt, maxTags)
}

func buildUserPrompt(in Input, known []string) string {
	var b strings.Builder
	b.WriteString("Title: " + in.Title + "\n")
	if in.Description != "" {
		b.WriteString("Description: " + in.Description + "\n")
	}
	if len(in.Vocabulary) > 0 {
		b.WriteString("Vocabulary: " + strings.Join(in.Vocabulary, ", ") + "\n")
	}
	if len(known) > 0 {
		b.WriteString("\nKnown tags: " + strings.Join(known, ", ") + "\n")
	}
	return b.String()
}
