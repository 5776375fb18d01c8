// Package cursor persists the newest tweet id the quote poller has ingested,
// so the next search only asks for tweets after it.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrStaleCursor is returned by Save when a newer id is already stored.
	ErrStaleCursor = errors.New("cursor already at a newer tweet id")
	// ErrInvalidID is returned for ids that are not positive decimal integers.
	ErrInvalidID = errors.New("tweet id must be a positive decimal integer")
)

// Store loads and saves the since-id cursor. Load returns "" when no cursor
// has been saved yet.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, id string) error
}

// Entry is the shape persisted in the cursors table.
type Entry struct {
	Name      string    `dynamodbav:"name"` // PK
	Value     uint64    `dynamodbav:"value"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

func parseID(id string) (uint64, error) {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return v, nil
}
