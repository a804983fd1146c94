package collector

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"bitrag/internal/feed"
)

const (
	blockchairBaseURL = "https://api.blockchair.com/bitcoin"
	satoshiPerBTC     = 100_000_000

	// maxTransactionPages bounds one poll's pagination.
	maxTransactionPages = 10
	transactionPageSize = 100
)

// BlockchairClient fetches large-value Bitcoin transactions from the
// Blockchair API.
type BlockchairClient struct {
	http    *httpClient
	baseURL string
	minBTC  float64
}

// NewBlockchairClient creates a client returning transactions whose total
// output is at least minBTC.
func NewBlockchairClient(minBTC float64, logger *slog.Logger) *BlockchairClient {
	return &BlockchairClient{
		// Free tier allows roughly 30 requests per minute.
		http:    newHTTPClient(0.5, logger),
		baseURL: blockchairBaseURL,
		minBTC:  minBTC,
	}
}

// WithBaseURL overrides the API base URL. Used in tests.
func (c *BlockchairClient) WithBaseURL(base string) *BlockchairClient {
	c.baseURL = base
	return c
}

type blockchairTx struct {
	Hash        string `json:"hash"`
	Time        string `json:"time"`
	OutputTotal int64  `json:"output_total"`
	Fee         int64  `json:"fee"`
	Size        int    `json:"size"`
	InputCount  int    `json:"input_count"`
	OutputCount int    `json:"output_count"`
	IsCoinbase  bool   `json:"is_coinbase"`
}

// WhaleTransactionsSince fetches whale transactions confirmed at or after
// since, newest first. The offset loop terminates early at the first
// transaction older than the boundary; the query sorts by time descending.
// A transaction whose time cannot be parsed keeps an absent timestamp.
func (c *BlockchairClient) WhaleTransactionsSince(ctx context.Context, since time.Time) ([]feed.TransactionPayload, error) {
	minSatoshi := int64(c.minBTC * satoshiPerBTC)
	var transactions []feed.TransactionPayload

	for page := 0; page < maxTransactionPages; page++ {
		params := url.Values{}
		params.Set("limit", fmt.Sprintf("%d", transactionPageSize))
		params.Set("offset", fmt.Sprintf("%d", page*transactionPageSize))
		params.Set("q", fmt.Sprintf("output_total(%d..)", minSatoshi))
		params.Set("s", "time(desc)")

		var resp struct {
			Data []blockchairTx `json:"data"`
		}
		if err := c.http.getJSON(ctx, fmt.Sprintf("%s/transactions?%s", c.baseURL, params.Encode()), &resp); err != nil {
			return nil, fmt.Errorf("transaction fetch failed: %w", err)
		}
		if len(resp.Data) == 0 {
			break
		}

		for _, tx := range resp.Data {
			if tx.Hash == "" {
				continue
			}

			var timestamp *string
			if parsed, err := feed.ParseTime(tx.Time); err == nil {
				if parsed.Before(since) {
					return transactions, nil
				}
				iso := parsed.UTC().Format(time.RFC3339)
				timestamp = &iso
			}

			fee := float64(tx.Fee) / satoshiPerBTC
			size := tx.Size
			transactions = append(transactions, feed.TransactionPayload{
				TxHash:      tx.Hash,
				Timestamp:   timestamp,
				ValueBTC:    float64(tx.OutputTotal) / satoshiPerBTC,
				Fee:         &fee,
				Size:        &size,
				InputCount:  tx.InputCount,
				OutputCount: tx.OutputCount,
				IsCoinbase:  tx.IsCoinbase,
			})
		}

		if len(resp.Data) < transactionPageSize {
			break
		}
	}

	return transactions, nil
}
