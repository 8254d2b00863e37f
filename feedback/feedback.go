// Package feedback mines durable food preferences out of user utterances so
// future recipe and chat prompts can honor them without being told twice.
package feedback

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"mealmind/model"
	"mealmind/store"
)

const systemPrompt = `You extract durable food preferences from a single user message in a meal
planning conversation.

Respond with ONLY a JSON array, possibly empty. Each element:
{"type": "like" | "dislike" | "cuisine" | "dietary", "entity": "<food, cuisine or restriction>", "sentiment": "positive" | "negative"}

Only extract preferences the user states about themselves that will still be
true next week ("I hate cilantro", "I'm vegetarian now"). Ignore one-off
choices ("skip the rice today"), questions, and anything hypothetical. When
in doubt, extract nothing.`

var arrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// Extractor classifies utterances with one model call per turn.
type Extractor struct {
	gateway model.Gateway
}

func NewExtractor(gateway model.Gateway) *Extractor {
	return &Extractor{gateway: gateway}
}

// Extract returns the durable preferences found in the utterance. An
// unparseable completion reads as "no preferences", not as an error: only
// gateway failures propagate.
func (e *Extractor) Extract(ctx context.Context, utterance string) ([]store.FeedbackItem, error) {
	reply, err := e.gateway.Complete(ctx, []model.Message{
		model.System(systemPrompt),
		model.User(utterance),
	})
	if err != nil {
		return nil, err
	}

	items := parseItems(reply.Content)
	if len(items) > 0 {
		slog.Info("FEEDBACK: Extracted preferences", "count", len(items))
	}
	return items, nil
}

func parseItems(content string) []store.FeedbackItem {
	cleaned := strings.TrimSpace(content)
	var raw []store.FeedbackItem
	if json.Unmarshal([]byte(cleaned), &raw) != nil {
		span := arrayPattern.FindString(cleaned)
		if span == "" || json.Unmarshal([]byte(span), &raw) != nil {
			return nil
		}
	}

	var items []store.FeedbackItem
	for _, it := range raw {
		it.Type = strings.ToLower(strings.TrimSpace(it.Type))
		it.Entity = strings.TrimSpace(it.Entity)
		if it.Entity == "" {
			continue
		}
		switch it.Type {
		case "like", "dislike", "cuisine", "dietary":
			items = append(items, it)
		}
	}
	return items
}
