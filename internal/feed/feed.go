// Package feed defines the wire payloads carried on the Kafka topics and their
// validation at the deserialization boundary. Payloads match the database
// models minus generated ids.
package feed

import (
	"errors"
	"fmt"
	"math"
	"time"

	"bitrag/internal/models"
)

// ErrMalformedPayload marks a payload that cannot be deserialized or violates
// the schema. Malformed payloads are skipped and counted, never retried.
var ErrMalformedPayload = errors.New("malformed payload")

// Topic names, shared between producers and the processor.
const (
	TopicPrices = "bitcoin_price_updates"
	TopicWhales = "whale_transactions"
	TopicNews   = "crypto_news"
)

// PricePayload is one price observation as published on the price topic.
type PricePayload struct {
	Timestamp string   `json:"timestamp"`
	Price     float64  `json:"price"`
	MarketCap *float64 `json:"market_cap"`
	Volume    *float64 `json:"volume"`
}

// Key returns the natural key used for deduplication and upserts.
func (p *PricePayload) Key() string {
	return p.Timestamp
}

// ToModel validates the payload and converts it to a database model.
func (p *PricePayload) ToModel() (*models.PriceTick, error) {
	ts, err := ParseTime(p.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q: %v", ErrMalformedPayload, p.Timestamp, err)
	}
	if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price <= 0 {
		return nil, fmt.Errorf("%w: invalid price %v", ErrMalformedPayload, p.Price)
	}
	return &models.PriceTick{
		Timestamp: ts,
		Price:     p.Price,
		MarketCap: p.MarketCap,
		Volume:    p.Volume,
		Date:      ts.Truncate(24 * time.Hour),
	}, nil
}

// TransactionPayload is one whale transaction as published on the whale topic.
type TransactionPayload struct {
	TxHash      string   `json:"tx_hash"`
	BlockHash   *string  `json:"block_hash"`
	Timestamp   *string  `json:"timestamp"`
	ValueBTC    float64  `json:"value_btc"`
	Fee         *float64 `json:"fee"`
	Size        *int     `json:"size"`
	InputCount  int      `json:"input_count"`
	OutputCount int      `json:"output_count"`
	IsCoinbase  bool     `json:"is_coinbase"`
}

func (t *TransactionPayload) Key() string {
	return t.TxHash
}

// ToModel validates the payload and converts it to a database model.
// A missing timestamp stays absent, it is never coerced to "now".
func (t *TransactionPayload) ToModel() (*models.WhaleTransaction, error) {
	if t.TxHash == "" {
		return nil, fmt.Errorf("%w: missing tx_hash", ErrMalformedPayload)
	}
	if math.IsNaN(t.ValueBTC) || math.IsInf(t.ValueBTC, 0) || t.ValueBTC <= 0 {
		return nil, fmt.Errorf("%w: invalid value_btc %v", ErrMalformedPayload, t.ValueBTC)
	}

	var ts *time.Time
	if t.Timestamp != nil && *t.Timestamp != "" {
		parsed, err := ParseTime(*t.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp %q: %v", ErrMalformedPayload, *t.Timestamp, err)
		}
		ts = &parsed
	}

	return &models.WhaleTransaction{
		TxHash:      t.TxHash,
		BlockHash:   t.BlockHash,
		Timestamp:   ts,
		ValueBTC:    t.ValueBTC,
		Fee:         t.Fee,
		Size:        t.Size,
		InputCount:  t.InputCount,
		OutputCount: t.OutputCount,
		IsCoinbase:  t.IsCoinbase,
	}, nil
}

// NewsPayload is one article as published on the news topic. There is no id:
// ids are generated by the relational store on first insert.
type NewsPayload struct {
	Title         string  `json:"title"`
	Link          string  `json:"link"`
	Summary       string  `json:"summary"`
	PublishedDate *string `json:"published_date"`
	Source        string  `json:"source"`
}

func (n *NewsPayload) Key() string {
	return n.Link
}

// ToModel validates the payload and converts it to a database model.
func (n *NewsPayload) ToModel() (*models.NewsArticle, error) {
	if n.Link == "" {
		return nil, fmt.Errorf("%w: missing link", ErrMalformedPayload)
	}
	if n.Title == "" {
		return nil, fmt.Errorf("%w: missing title", ErrMalformedPayload)
	}

	var published *time.Time
	if n.PublishedDate != nil && *n.PublishedDate != "" {
		parsed, err := ParseTime(*n.PublishedDate)
		if err != nil {
			return nil, fmt.Errorf("%w: bad published_date %q: %v", ErrMalformedPayload, *n.PublishedDate, err)
		}
		published = &parsed
	}

	return &models.NewsArticle{
		Title:         n.Title,
		Link:          n.Link,
		Summary:       n.Summary,
		PublishedDate: published,
		Source:        n.Source,
	}, nil
}

var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a timestamp using the formats seen across the upstream
// sources (RFC3339 with and without zone, space-separated).
func ParseTime(value string) (time.Time, error) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time %q with any known format", value)
}
