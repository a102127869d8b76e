package events

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
)

const eventHeader = "X-Meeting-Bot-Event"

// Webhook POSTs each event as JSON, retrying transient failures.
type Webhook struct {
	url    string
	client *retryablehttp.Client
}

func NewWebhook(url string, retries int) *Webhook {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = retries

	return &Webhook{url: url, client: client}
}

func (w *Webhook) Notify(ctx context.Context, e Event) error {
	encoded, err := json.Marshal(e)
	if err != nil {
		return err
	}

	r, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set(eventHeader, string(e.Type))

	res, err := w.client.Do(r)
	if err != nil {
		return err
	}
	_ = res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: http response code: %d", w.url, res.StatusCode)
	}
	return nil
}

func (w *Webhook) Close() error {
	w.client.HTTPClient.CloseIdleConnections()
	return nil
}
