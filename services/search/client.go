// Package search queries the external video platform for candidate videos
// matching a free-text query.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"tunebridge/models"
)

const (
	// DefaultLimit is how many candidates the matcher looks at. The upstream
	// search rank-orders results, so a handful is enough.
	DefaultLimit = 5

	requestTimeout = 10 * time.Second

	// Transient search failures get a short bounded retry at this call site;
	// nothing upstream retries on our behalf.
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
)

// Client talks to an Invidious-compatible search API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a search client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: requestTimeout},
	}
}

// NewClientWithHTTP creates a search client with a custom http.Client, for
// tests.
func NewClientWithHTTP(baseURL string, httpc *http.Client) *Client {
	return &Client{baseURL: baseURL, httpc: httpc}
}

// searchResult is the wire shape of one candidate from the search API.
type searchResult struct {
	VideoID       string `json:"videoId"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	LengthSeconds int64  `json:"lengthSeconds"`
	Thumbnail     string `json:"thumbnail,omitempty"`
}

// Search returns up to limit ranked candidates for the query. 5xx responses
// and transport errors are retried a bounded number of times; 4xx responses
// are not.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.CandidateVideo, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	// The Invidious search API pages with a page parameter rather than
	// honoring a result cap, so the response is truncated client-side below.
	u := fmt.Sprintf("%s/api/v1/search?q=%s&type=video",
		c.baseURL, url.QueryEscape(query))

	var results []searchResult
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return fmt.Errorf("search request: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 500 {
				io.Copy(io.Discard, resp.Body)
				return fmt.Errorf("search returned status %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				io.Copy(io.Discard, resp.Body)
				return retry.Unrecoverable(fmt.Errorf("search returned status %d", resp.StatusCode))
			}

			results = results[:0]
			if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
				return fmt.Errorf("decode search response: %w", err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.Delay(retryBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[search] attempt %d failed for %q: %v", n+1, query, err)
		}),
	)
	if err != nil {
		return nil, err
	}

	candidates := make([]models.CandidateVideo, 0, len(results))
	for _, r := range results {
		if r.VideoID == "" {
			continue
		}
		candidates = append(candidates, models.CandidateVideo{
			VideoID:         r.VideoID,
			Title:           r.Title,
			ChannelName:     r.Author,
			DurationSeconds: r.LengthSeconds,
			ThumbnailURL:    r.Thumbnail,
		})
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
