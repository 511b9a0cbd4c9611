package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookClient posts operator notifications to an external HTTP endpoint,
// for deployments where maintainers watch a pager or chat bridge rather
// than the support channel.
type WebhookClient struct {
	url    string
	client *http.Client
}

func NewWebhookClient(url string) *WebhookClient {
	return &WebhookClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type notifyRequest struct {
	Message string `json:"message"`
	Source  string `json:"source"`
}

func (c *WebhookClient) Notify(ctx context.Context, message string) error {
	reqBody, err := json.Marshal(notifyRequest{
		Message: message,
		Source:  "signal-relay",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}
	return nil
}
