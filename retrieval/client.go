package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"mealmind"
	"mealmind/model"
)

// Client calls a nutrition search tool server over JSON-RPC (tools/call with
// a query argument), the protocol the hosted search service speaks.
type Client struct {
	endpoint   string
	httpClient mealmind.HTTPClient
	limit      int
	requestID  atomic.Int64
}

type ClientOpts struct {
	Endpoint   string
	HTTPClient mealmind.HTTPClient
	Limit      int
}

func NewClient(opts ClientOpts) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Limit == 0 {
		opts.Limit = 10
	}
	return &Client{
		endpoint:   opts.Endpoint,
		httpClient: opts.HTTPClient,
		limit:      opts.Limit,
	}
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *rpcError `json:"error,omitempty"`
}

// Search runs one tools/call round trip and joins the text content blocks of
// the result. Transport and protocol failures surface as *model.UpstreamError.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	slog.Info("RETRIEVAL: Searching", "query", query)

	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "tools/call",
		Params: map[string]any{
			"name": "meal-mind-search",
			"arguments": map[string]any{
				"query": query,
				"limit": c.limit,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &model.UpstreamError{Op: "food search", Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", &model.UpstreamError{
			Op:  "food search",
			Err: fmt.Errorf("%s: %s", resp.Status, string(respBody)),
		}
	}

	var rr rpcResponse
	if err := json.Unmarshal(respBody, &rr); err != nil {
		return "", &model.UpstreamError{Op: "food search", Err: fmt.Errorf("decode: %w", err)}
	}
	if rr.Error != nil {
		return "", &model.UpstreamError{
			Op:  "food search",
			Err: fmt.Errorf("rpc error %d: %s", rr.Error.Code, rr.Error.Message),
		}
	}

	var parts []string
	for _, block := range rr.Result.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return NoResult, nil
	}
	return strings.Join(parts, "\n"), nil
}
