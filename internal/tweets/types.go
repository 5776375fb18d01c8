package tweets

import "time"

// Record is one tweet-intent item in the tweets table. Everything except
// ProcessingStatus belongs to whoever created the record.
type Record struct {
	ID               string            `dynamodbav:"id" json:"id"` // PK
	URL              string            `dynamodbav:"url" json:"url"`
	AuthorUsername   string            `dynamodbav:"author_username,omitempty" json:"author_username,omitempty"`
	QuotedTweetURL   string            `dynamodbav:"quoted_tweet_url,omitempty" json:"quoted_tweet_url,omitempty"` // empty = no quoted source
	Text             string            `dynamodbav:"text,omitempty" json:"text,omitempty"`
	CreatedAt        time.Time         `dynamodbav:"created_at" json:"created_at"`
	ProcessingStatus *ProcessingStatus `dynamodbav:"processing_status,omitempty" json:"processing_status,omitempty"`
}

// ProcessingStatus is the nested map the ingestion trigger owns. Fields are
// only ever added or overwritten with the same meaning, never removed.
type ProcessingStatus struct {
	Started      bool       `dynamodbav:"started,omitempty" json:"started,omitempty"`
	StartedAt    *time.Time `dynamodbav:"started_at,omitempty" json:"started_at,omitempty"`
	Error        bool       `dynamodbav:"error,omitempty" json:"error,omitempty"`
	ErrorMessage string     `dynamodbav:"error_message,omitempty" json:"error_message,omitempty"`
	ErrorAt      *time.Time `dynamodbav:"error_at,omitempty" json:"error_at,omitempty"`
}

// Attribute names inside processing_status.
const (
	StatusAttr       = "processing_status"
	FieldStarted     = "started"
	FieldStartedAt   = "started_at"
	FieldError       = "error"
	FieldErrorMsg    = "error_message"
	FieldErrorAt     = "error_at"
	partitionKeyAttr = "id"
)
