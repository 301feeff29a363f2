package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/v0xg/coursescrape/internal/catalog"
	"github.com/v0xg/coursescrape/internal/logger"
)

const (
	maxTags     = 6
	knownTagKey = "known"
)

// Tagger produces topic tags for skills. Replies are memoized per input and
// every tag seen so far is offered back to the model as the known list, so
// tags converge across skills.
type Tagger struct {
	provider Provider
	cache    *catalog.Cache[string, []string]
	log      logger.Interface
}

// NewTagger creates a Tagger. cache is owned by the caller and may be shared.
func NewTagger(provider Provider, cache *catalog.Cache[string, []string], log logger.Interface) *Tagger {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Tagger{provider: provider, cache: cache, log: log}
}

// Tags returns tags for in
func (t *Tagger) Tags(ctx context.Context, in Input) ([]string, error) {
	key := inputKey(in)
	return t.cache.GetOrLoad(key, func() ([]string, error) {
		known, _ := t.cache.Get(knownTagKey)

		reply, err := t.provider.Complete(ctx, buildSystemPrompt(), buildUserPrompt(in, known))
		if err != nil {
			return nil, err
		}
		tags, err := parseTagsJSON(reply)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tags: %w\nResponse: %s", err, reply)
		}

		t.cache.Set(knownTagKey, mergeTags(known, tags))
		t.log.Debug("Tagged skill", "title", in.Title, "tags", tags)
		return tags, nil
	})
}

func inputKey(in Input) string {
	h := sha256.New()
	h.Write([]byte(in.Title + "\x00" + in.Description + "\x00" + strings.Join(in.Vocabulary, "\x00")))
	return "skill:" + hex.EncodeToString(h.Sum(nil))[:16]
}

func mergeTags(known, add []string) []string {
	out := slices.Clone(known)
	for _, t := range add {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// parseTagsJSON extracts and parses a JSON array of strings from a response
// that may contain surrounding text, then normalizes the tags.
func parseTagsJSON(response string) ([]string, error) {
	var raw []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &raw); err != nil {
		start := strings.Index(response, "[")
		if start == -1 {
			return nil, fmt.Errorf("no JSON array found in response")
		}

		// Find matching closing bracket
		depth := 0
		end := -1
		for i := start; i < len(response) && end == -1; i++ {
			switch response[i] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					end = i + 1
				}
			}
		}
		if end == -1 {
			return nil, fmt.Errorf("no matching closing bracket found")
		}
		if err := json.Unmarshal([]byte(response[start:end]), &raw); err != nil {
			return nil, fmt.Errorf("failed to parse extracted JSON: %w", err)
		}
	}

	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" || slices.Contains(tags, t) {
			continue
		}
		tags = append(tags, t)
		if len(tags) == maxTags {
			break
		}
	}
	return tags, nil
}
