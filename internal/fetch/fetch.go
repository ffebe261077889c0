// Package fetch implements the HTTP Fetcher: a retrying, backoff-aware GET
// client used by the Crawl Coordinator to pull one listings page per
// station per crawl.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
)

const (
	DefaultRetries       = 3
	DefaultBackoff       = 2000 * time.Millisecond
	DefaultRequestTimeout = 30 * time.Second
)

// Config tunes retry/backoff/timeout behavior.
type Config struct {
	Retries        int
	Backoff        time.Duration
	RequestTimeout time.Duration
}

// Fetcher implements port.Fetcher over net/http, doubling the backoff
// whenever the prior attempt returned 429.
type Fetcher struct {
	client  *http.Client
	retries int
	backoff time.Duration
}

func New(cfg Config) *Fetcher {
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		retries: cfg.Retries,
		backoff: cfg.Backoff,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	backoff := f.backoff
	var lastErr error

	for attempt := 1; attempt <= f.retries; attempt++ {
		body, status, err := f.attempt(ctx, url, headers)
		if err == nil && status < 400 {
			return body, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("fetch: unexpected status %d", status)
		}

		slog.Warn("fetch attempt failed", "url", url, "attempt", attempt, "status", status, "error", lastErr)

		if attempt == f.retries {
			break
		}

		wait := backoff
		if status == http.StatusTooManyRequests {
			backoff *= 2
			wait = backoff
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, fmt.Errorf("fetch %s after %d attempts: %w: %w", url, f.retries, domain.ErrFetchFailed, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, url string, headers map[string]string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
