package feedback

import (
	"context"
	"errors"
	"testing"

	"mealmind/model/mock"
	"mealmind/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []store.FeedbackItem
	}{
		{
			name:  "single dislike",
			reply: `[{"type": "dislike", "entity": "cilantro", "sentiment": "negative"}]`,
			want:  []store.FeedbackItem{{Type: "dislike", Entity: "cilantro", Sentiment: "negative"}},
		},
		{
			name:  "empty array",
			reply: `[]`,
			want:  nil,
		},
		{
			name:  "array buried in prose",
			reply: "Here you go: [{\"type\": \"cuisine\", \"entity\": \"thai\", \"sentiment\": \"positive\"}]",
			want:  []store.FeedbackItem{{Type: "cuisine", Entity: "thai", Sentiment: "positive"}},
		},
		{
			name:  "unknown type dropped",
			reply: `[{"type": "mood", "entity": "happy"}, {"type": "like", "entity": "paneer", "sentiment": "positive"}]`,
			want:  []store.FeedbackItem{{Type: "like", Entity: "paneer", Sentiment: "positive"}},
		},
		{
			name:  "empty entity dropped",
			reply: `[{"type": "like", "entity": " "}]`,
			want:  nil,
		},
		{
			name:  "prose only reads as nothing",
			reply: "No durable preferences here.",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(mock.NewClient(mock.Text(tt.reply)))
			got, err := e.Extract(context.Background(), "some utterance")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractGatewayError(t *testing.T) {
	e := NewExtractor(mock.NewClient(mock.Fail(errors.New("connection refused"))))
	_, err := e.Extract(context.Background(), "I hate cilantro")
	assert.Error(t, err)
}
