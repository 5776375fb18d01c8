package validation

import "time"

// CreateTweetRequest is the payload for POST /tweets
type CreateTweetRequest struct {
	ID             string     `json:"id,omitempty" validate:"omitempty,max=64"`              // defaults to the status id in URL
	URL            string     `json:"url" validate:"required,url"`                           // quote tweet URL
	AuthorUsername string     `json:"author_username,omitempty" validate:"omitempty,max=50"` // without the @
	QuotedTweetURL string     `json:"quoted_tweet_url,omitempty" validate:"omitempty,url"`   // source tweet, if any
	Text           string     `json:"text,omitempty" validate:"omitempty,max=4000"`          // tweet body
	CreatedAt      *time.Time `json:"created_at,omitempty"`                                  // optional client timestamp
}
