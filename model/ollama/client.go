package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"mealmind"
	"mealmind/model"
)

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
}

type Client struct {
	endpoint   string
	model      string
	httpClient mealmind.HTTPClient
	timeout    time.Duration
	options    options
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	HTTPClient   mealmind.HTTPClient
	Timeout      time.Duration
}

func NewClient(opts ClientOpts) (*Client, error) {
	if opts.ModelID == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   opts.BaseEndpoint + "/api/chat",
		timeout:    opts.Timeout,
		options: options{
			Temperature:   0.2,
			TopP:          0.9,
			RepeatPenalty: 1.05,
			NumCtx:        16384,
		},
	}, nil
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options,omitempty"`
}

type wireResponse struct {
	Message wireMessage `json:"message"`
	// other metadata omitted but available
}

// Complete sends the messages to the Ollama chat API and returns the single
// completion message. Transport and status failures come back as
// *model.UpstreamError so the caller can degrade instead of aborting the turn.
func (c *Client) Complete(ctx context.Context, messages []model.Message) (model.Message, error) {
	slog.Info("MODEL_GATEWAY: Invoked", "messages_len", len(messages))

	msgs := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem, model.RoleUser, model.RoleAssistant:
			msgs = append(msgs, wireMessage{Role: m.Role, Content: m.Content})
		default:
			slog.Warn("MODEL_GATEWAY: unknown role, coercing to user", "role", m.Role)
			msgs = append(msgs, wireMessage{Role: model.RoleUser, Content: m.Content})
		}
	}

	reqBody := wireRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   false,
		Options:  c.options,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return model.Message{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return model.Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Message{}, &model.UpstreamError{Op: "ollama complete", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return model.Message{}, &model.UpstreamError{
			Op:  "ollama complete",
			Err: fmt.Errorf("%s: %s", resp.Status, string(body)),
		}
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		slog.Warn("MODEL_GATEWAY: decode failed, returning raw", "err", err, "body", string(body))
		return model.Message{Role: model.RoleAssistant, Content: string(body)}, nil
	}

	return model.Message{Role: model.RoleAssistant, Content: wr.Message.Content}, nil
}
