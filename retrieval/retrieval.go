// Package retrieval wraps the food nutrition search index. From the router's
// perspective it is a pure function: query text in, human-readable nutrition
// summary out.
package retrieval

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// ToolName is the single tool the model may call from within a handler.
const ToolName = "search_foods"

// NoResult is the literal returned when the index has nothing for the query.
const NoResult = "No matching foods found."

// Retriever is the lookup contract the tool loop executes against.
type Retriever interface {
	Search(ctx context.Context, query string) (string, error)
}

// Schema describes the tool-call object handlers instruct the model to emit.
// The schema is intentionally flat: no nested objects, which is what lets the
// extraction step get away with non-nested brace scanning.
func Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"tool":  {Type: "string", Description: "Must be \"" + ToolName + "\"."},
			"query": {Type: "string", Description: "A single food or ingredient name."},
		},
		Required: []string{"tool", "query"},
	}
}
