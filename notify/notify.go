// Package notify posts assistant notifications to Slack via an incoming
// webhook. Used for nutrition warning digests; failures are advisory and
// never block a turn.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	webhookURL string
	httpClient doer
}

func NewClient(webhookURL string, httpClient doer) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// PostWarnings formats a nutrition warning digest for one user and posts it.
// No-op when there is nothing to report.
func (c *Client) PostWarnings(ctx context.Context, channel, userID string, warnings []string) error {
	if len(warnings) == 0 {
		return nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Nutrition alerts for %s:\n", userID)
	for _, w := range warnings {
		fmt.Fprintf(&b, "• %s\n", w)
	}
	return c.PostMessage(ctx, channel, b.String())
}
