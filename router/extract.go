package router

import (
	"encoding/json"
	"regexp"
	"strings"

	"mealmind/retrieval"
)

// Tool-call objects are flat by contract, so a non-nested brace scan finds
// every candidate without a real JSON tokenizer. Nested or unbalanced objects
// simply never match, which is the desired failure mode.
var toolCallPattern = regexp.MustCompile(`\{[^{}]*\}`)

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// extractToolCalls scans a model completion for search_foods tool calls.
// Candidates that do not parse, name a different tool, or carry an empty
// query are dropped silently; surrounding prose is ignored.
func extractToolCalls(content string) []ToolCall {
	var calls []ToolCall
	for _, candidate := range toolCallPattern.FindAllString(content, -1) {
		var tc ToolCall
		if err := json.Unmarshal([]byte(candidate), &tc); err != nil {
			continue
		}
		if tc.Tool != retrieval.ToolName || strings.TrimSpace(tc.Query) == "" {
			continue
		}
		tc.Query = strings.TrimSpace(tc.Query)
		calls = append(calls, tc)
	}
	return calls
}

// stripToolCalls removes tool-call objects from a completion, leaving any
// prose the model wrote around them.
func stripToolCalls(content string) string {
	out := toolCallPattern.ReplaceAllStringFunc(content, func(candidate string) string {
		var tc ToolCall
		if err := json.Unmarshal([]byte(candidate), &tc); err != nil {
			return candidate
		}
		if tc.Tool != retrieval.ToolName {
			return candidate
		}
		return ""
	})
	return strings.TrimSpace(out)
}

// stripCodeFences unwraps a ```json ... ``` (or plain ```) block if the
// completion arrived inside one.
func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// extractJSONArray pulls the outermost JSON array out of a completion and
// unmarshals it into dst. Returns false when no parseable array exists.
func extractJSONArray(content string, dst any) bool {
	cleaned := stripCodeFences(content)
	if json.Unmarshal([]byte(cleaned), dst) == nil {
		return true
	}
	span := jsonArrayPattern.FindString(cleaned)
	if span == "" {
		return false
	}
	return json.Unmarshal([]byte(span), dst) == nil
}

// extractJSONObject is the object-valued twin of extractJSONArray. It prefers
// the full completion, then the widest {...} span.
func extractJSONObject(content string, dst any) bool {
	cleaned := stripCodeFences(content)
	if json.Unmarshal([]byte(cleaned), dst) == nil {
		return true
	}
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(cleaned[start:end+1]), dst) == nil
}
