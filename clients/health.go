package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var ErrNotConfigured = errors.New("service url not configured")

// Probe issues one GET {url}/health and expects a 200.
func (h *HTTP) Probe(ctx context.Context, url string) error {
	if url == "" {
		return ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint(url, "/health"), nil)
	if err != nil {
		return err
	}
	resp, err := h.c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health %s", resp.Status)
	}
	return nil
}

// WaitHealthy retries Probe with exponential backoff until it succeeds or
// maxElapsed passes. Missing urls fail immediately.
func (h *HTTP) WaitHealthy(ctx context.Context, url string, maxElapsed time.Duration) error {
	if url == "" {
		return ErrNotConfigured
	}
	if maxElapsed <= 0 {
		return h.Probe(ctx, url)
	}

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 200 * time.Millisecond
	backOff.MaxInterval = 2 * time.Second
	backOff.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		return h.Probe(ctx, url)
	}, backoff.WithContext(backOff, ctx))
}
