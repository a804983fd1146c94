// Package collector implements the fetch-events-since-cursor capability for
// the three upstream feeds: CryptoCompare for prices and news, Blockchair for
// large-value transactions. Sources return items newest-first; fetch loops
// stop early once they cross the lookback boundary.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"bitrag/internal/faulttolerance"
)

const requestTimeout = 10 * time.Second

type httpClient struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func newHTTPClient(requestsPerSecond float64, logger *slog.Logger) *httpClient {
	return &httpClient{
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:  logger,
	}
}

// getJSON performs a rate-limited GET and decodes the JSON body into v.
// HTTP 429 responses are reported as faulttolerance.ErrRateLimited so callers
// back off on the longer schedule.
func (hc *httpClient) getJSON(ctx context.Context, url string, v any) error {
	if err := hc.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		hc.logger.Warn("Upstream rate limit hit", "url", req.URL.Host)
		return faulttolerance.ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
