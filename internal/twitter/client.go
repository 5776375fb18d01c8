// Package twitter is a minimal client for the Twitter API v2 recent search.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the public API host.
	DefaultBaseURL = "https://api.twitter.com"
	// DefaultMaxResults is the page size the watcher has always used.
	DefaultMaxResults = 10

	searchRecentPath = "/2/tweets/search/recent"
	userAgent        = "TweetWatcher"
	maxErrorBody     = 4 << 10
)

var (
	tweetFields = []string{"created_at", "text", "author_id", "referenced_tweets"}
	expansions  = []string{"referenced_tweets.id", "author_id"}
	userFields  = []string{"username"}
)

// Client calls the v2 API with an app-only bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a client that authenticates every request with token.
// An empty baseURL selects DefaultBaseURL.
func NewClient(ctx context.Context, baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: oauth2.NewClient(ctx, ts),
	}
}

// SearchRecent runs a recent search and decodes the result page.
func (c *Client) SearchRecent(ctx context.Context, p SearchParams) (*SearchResult, error) {
	if p.MaxResults <= 0 {
		p.MaxResults = DefaultMaxResults
	}
	q := url.Values{}
	q.Set("query", p.Query)
	q.Set("max_results", strconv.Itoa(p.MaxResults))
	q.Set("tweet.fields", strings.Join(tweetFields, ","))
	q.Set("expansions", strings.Join(expansions, ","))
	q.Set("user.fields", strings.Join(userFields, ","))
	if p.SinceID != "" {
		q.Set("since_id", p.SinceID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+searchRecentPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search recent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &out, nil
}
