package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"bitrag/internal/feed"
)

const cryptoCompareBaseURL = "https://min-api.cryptocompare.com/data"

// CryptoCompareClient fetches Bitcoin prices and news from the CryptoCompare
// API. One instance serves both the price and the news adapter.
type CryptoCompareClient struct {
	http    *httpClient
	baseURL string
	apiKey  string
}

// NewCryptoCompareClient creates a client for the CryptoCompare API.
func NewCryptoCompareClient(apiKey string, logger *slog.Logger) *CryptoCompareClient {
	return &CryptoCompareClient{
		http:    newHTTPClient(2, logger),
		baseURL: cryptoCompareBaseURL,
		apiKey:  apiKey,
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func (c *CryptoCompareClient) WithBaseURL(base string) *CryptoCompareClient {
	c.baseURL = base
	return c
}

// LatestTick fetches the current BTC/USD spot price. Market cap and volume
// are not available on the realtime endpoint and stay absent.
func (c *CryptoCompareClient) LatestTick(ctx context.Context) (*feed.PricePayload, error) {
	params := url.Values{}
	params.Set("fsym", "BTC")
	params.Set("tsyms", "USD")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	var resp struct {
		USD float64 `json:"USD"`
	}
	if err := c.http.getJSON(ctx, fmt.Sprintf("%s/price?%s", c.baseURL, params.Encode()), &resp); err != nil {
		return nil, fmt.Errorf("price fetch failed: %w", err)
	}
	if resp.USD <= 0 {
		return nil, fmt.Errorf("no USD price in response")
	}

	return &feed.PricePayload{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Price:     resp.USD,
	}, nil
}
