package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/selivandex/crypto-pulse/pkg/logger"
	"github.com/selivandex/crypto-pulse/pkg/models"
)

const listingURL = "https://www.reddit.com/r/%s/new.json?limit=%d"

// Client fetches fresh posts from Reddit listings
type Client struct {
	subreddits []string
	limit      int
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a Reddit client for the given subreddits
func NewClient(subreddits []string, limit int, userAgent string) *Client {
	if len(subreddits) == 0 {
		subreddits = []string{"CryptoCurrency", "Bitcoin", "ethtrader", "CryptoMarkets"}
	}
	if limit <= 0 {
		limit = 50
	}
	if userAgent == "" {
		userAgent = "crypto-pulse/1.0"
	}

	return &Client{
		subreddits: subreddits,
		limit:      limit,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) GetName() string {
	return "reddit"
}

// FetchNewPosts fetches the newest posts across all configured subreddits.
// A failing subreddit is logged and skipped so one outage does not lose the
// whole cycle.
func (c *Client) FetchNewPosts(ctx context.Context) ([]models.RawPost, error) {
	allPosts := make([]models.RawPost, 0)

	for _, subreddit := range c.subreddits {
		posts, err := c.fetchSubreddit(ctx, subreddit)
		if err != nil {
			logger.Warn("failed to fetch reddit posts",
				zap.String("subreddit", subreddit),
				zap.Error(err),
			)
			continue
		}

		allPosts = append(allPosts, posts...)
	}

	logger.Debug("fetched Reddit posts",
		zap.Int("count", len(allPosts)),
		zap.Strings("subreddits", c.subreddits),
	)

	return allPosts, nil
}

// fetchSubreddit fetches posts from specific subreddit
func (c *Client) fetchSubreddit(ctx context.Context, subreddit string) ([]models.RawPost, error) {
	url := fmt.Sprintf(listingURL, subreddit, c.limit)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set User-Agent (Reddit requires it)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data struct {
			Children []struct {
				Data struct {
					ID         string      `json:"id"`
					Title      string      `json:"title"`
					Selftext   string      `json:"selftext"`
					Subreddit  string      `json:"subreddit"`
					Permalink  string      `json:"permalink"`
					CreatedUTC interface{} `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}

	// UseNumber keeps created_utc in its source representation instead of
	// forcing float64
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	posts := make([]models.RawPost, 0, len(result.Data.Children))
	for _, child := range result.Data.Children {
		item := child.Data

		posts = append(posts, models.RawPost{
			ID:         item.ID,
			Title:      item.Title,
			Selftext:   item.Selftext,
			Subreddit:  item.Subreddit,
			URL:        "https://reddit.com" + item.Permalink,
			CreatedRaw: item.CreatedUTC,
		})
	}

	return posts, nil
}
