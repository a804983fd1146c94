package collector

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"bitrag/internal/feed"
)

// maxNewsPages bounds one poll so a slow upstream cannot stall the scheduler.
const maxNewsPages = 10

type newsItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Body        string `json:"body"`
	PublishedOn int64  `json:"published_on"`
	Source      string `json:"source"`
}

// ArticlesSince fetches BTC news published at or after since, newest first.
// The page loop terminates early at the first article older than the boundary;
// the API returns articles in descending publication order.
func (c *CryptoCompareClient) ArticlesSince(ctx context.Context, since time.Time) ([]feed.NewsPayload, error) {
	var articles []feed.NewsPayload

	for page := 1; page <= maxNewsPages; page++ {
		params := url.Values{}
		params.Set("lang", "EN")
		params.Set("categories", "BTC")
		params.Set("limit", "100")
		params.Set("page", fmt.Sprintf("%d", page))
		if c.apiKey != "" {
			params.Set("api_key", c.apiKey)
		}

		var resp struct {
			Data []newsItem `json:"Data"`
		}
		if err := c.http.getJSON(ctx, fmt.Sprintf("%s/v2/news/?%s", c.baseURL, params.Encode()), &resp); err != nil {
			return nil, fmt.Errorf("news fetch failed: %w", err)
		}
		if len(resp.Data) == 0 {
			break
		}

		for _, item := range resp.Data {
			published := time.Unix(item.PublishedOn, 0).UTC()
			if published.Before(since) {
				return articles, nil
			}
			if item.URL == "" || item.Title == "" {
				continue
			}
			date := published.Format(time.RFC3339)
			source := item.Source
			if source == "" {
				source = "CryptoCompare"
			}
			articles = append(articles, feed.NewsPayload{
				Title:         item.Title,
				Link:          item.URL,
				Summary:       item.Body,
				PublishedDate: &date,
				Source:        source,
			})
		}
	}

	return articles, nil
}
