// Package webhook implements the Notification Dispatcher: it delivers
// ordered, paced webhook POSTs for newly observed listings a crawl
// decided to notify on.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rentwatch/rentwatch-api/internal/core/port"
)

const DefaultInterNotificationDelay = 1000 * time.Millisecond

// Dispatcher implements port.Dispatcher over a plain HTTP POST per item.
type Dispatcher struct {
	client   *http.Client
	url      string
	delay    time.Duration
}

func New(url string, delay time.Duration) *Dispatcher {
	if delay <= 0 {
		delay = DefaultInterNotificationDelay
	}
	return &Dispatcher{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		delay:  delay,
	}
}

type payload struct {
	QueryID string      `json:"queryId"`
	Listing interface{} `json:"listing"`
	Silent  bool        `json:"silent"`
}

// Dispatch sends one POST per item, in order, pacing between sends.
// Individual send failures are logged and do not abort the remaining
// items; they are reported once as an aggregate error.
func (d *Dispatcher) Dispatch(ctx context.Context, queryID string, items []port.NotificationItem) error {
	if d.url == "" {
		slog.Warn("notification dispatch skipped: no webhook url configured", "query_id", queryID, "items", len(items))
		return nil
	}

	var failures int
	for i, item := range items {
		if i > 0 {
			select {
			case <-time.After(d.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := d.send(ctx, queryID, item); err != nil {
			failures++
			slog.Error("notification send failed", "query_id", queryID, "listing_id", item.Listing.ID, "error", err)
		}
	}

	if failures > 0 {
		return fmt.Errorf("webhook: %d of %d notifications failed", failures, len(items))
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, queryID string, item port.NotificationItem) error {
	body, err := json.Marshal(payload{QueryID: queryID, Listing: item.Listing, Silent: item.Silent})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) DispatchError(ctx context.Context, queryID string, err error) {
	slog.Error("crawl notification dispatch failed", "query_id", queryID, "error", err)
}
