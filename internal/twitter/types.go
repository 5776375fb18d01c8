package twitter

import (
	"fmt"
	"time"
)

// ReferenceQuoted marks the tweet a quote tweet quotes.
const ReferenceQuoted = "quoted"

// SearchParams narrows a recent search. SinceID is exclusive.
type SearchParams struct {
	Query      string
	MaxResults int
	SinceID    string
}

// Tweet is a tweet as returned by the v2 API with the requested fields.
type Tweet struct {
	ID               string            `json:"id"`
	Text             string            `json:"text"`
	AuthorID         string            `json:"author_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	ReferencedTweets []ReferencedTweet `json:"referenced_tweets,omitempty"`
}

// ReferencedTweet links a tweet to one it quotes, replies to or retweets.
type ReferencedTweet struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// User is an expanded author.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// Includes carries the expansions requested alongside the results.
type Includes struct {
	Tweets []Tweet `json:"tweets,omitempty"`
	Users  []User  `json:"users,omitempty"`
}

// Meta describes the result page.
type Meta struct {
	NewestID    string `json:"newest_id,omitempty"`
	OldestID    string `json:"oldest_id,omitempty"`
	ResultCount int    `json:"result_count"`
}

// SearchResult is the decoded body of a recent search. Data is newest first.
type SearchResult struct {
	Data     []Tweet  `json:"data"`
	Includes Includes `json:"includes"`
	Meta     Meta     `json:"meta"`
}

// NewestID returns the id of the newest tweet in the page, or "" if empty.
func (r *SearchResult) NewestID() string {
	if r.Meta.NewestID != "" {
		return r.Meta.NewestID
	}
	if len(r.Data) > 0 {
		return r.Data[0].ID
	}
	return ""
}

// Username resolves an author id through the user expansion.
func (r *SearchResult) Username(authorID string) string {
	for _, u := range r.Includes.Users {
		if u.ID == authorID {
			return u.Username
		}
	}
	return ""
}

// QuotedID returns the id of the tweet t quotes, if any.
func (t Tweet) QuotedID() (string, bool) {
	for _, ref := range t.ReferencedTweets {
		if ref.Type == ReferenceQuoted && ref.ID != "" {
			return ref.ID, true
		}
	}
	return "", false
}

// APIError is returned for any non-200 response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter api error %d: %s", e.StatusCode, e.Body)
}
