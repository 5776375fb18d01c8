// Package processing implements the ingestion trigger: it reacts to the
// creation of a tweet record and records on it that processing has started.
package processing

import "github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"

// Notification is one record-creation event. Snapshot is nil when the event
// carried no image of the new record.
type Notification struct {
	RecordID string
	Snapshot *tweets.Record
}
