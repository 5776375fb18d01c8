// Package quotes ingests quote tweets of the ScrapCast account as new tweet
// records, which in turn fire the creation trigger.
package quotes

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/cursor"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/metrics"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/twitter"
)

// DefaultQuery finds quote tweets that mention the account.
const DefaultQuery = "@ScrapCastGoGo is:quote"

// IngestedMetric is the CloudWatch metric name for records created per poll.
const IngestedMetric = "QuoteTweetsIngested"

// Searcher runs a recent search. *twitter.Client implements it.
type Searcher interface {
	SearchRecent(ctx context.Context, p twitter.SearchParams) (*twitter.SearchResult, error)
}

// Creator writes new tweet records. *tweets.Store implements it.
type Creator interface {
	Create(ctx context.Context, rec tweets.Record) (*tweets.Record, error)
}

// CountPublisher sends a count metric. *aws.MetricsPublisher implements it.
type CountPublisher interface {
	PublishCount(ctx context.Context, name string, value float64, dimensions map[string]string) error
}

// Poller fetches quote tweets newer than the stored cursor.
type Poller struct {
	Search     Searcher
	Records    Creator
	Cursor     cursor.Store
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	Publisher  CountPublisher // optional
	Query      string
	MaxResults int
}

// Poll runs one search and returns how many new records were created. The
// cursor only advances after every tweet in the page is stored, so a failed
// poll is retried from the same point and already stored tweets are skipped.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	query := p.Query
	if query == "" {
		query = DefaultQuery
	}

	sinceID, err := p.Cursor.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	p.Logger.Info("検索クエリ", zap.String("query", query), zap.String("since_id", sinceID))

	res, err := p.Search.SearchRecent(ctx, twitter.SearchParams{
		Query:      query,
		MaxResults: p.MaxResults,
		SinceID:    sinceID,
	})
	if err != nil {
		return 0, fmt.Errorf("search quote tweets: %w", err)
	}
	if len(res.Data) == 0 {
		p.Logger.Info("新着ツイートはありません。")
		return 0, nil
	}

	newest := res.NewestID()
	p.Logger.Info("新着ツイートを見つけました",
		zap.Int("count", len(res.Data)),
		zap.String("newest_id", newest))

	created, existing := 0, 0
	// Oldest first so records are created in tweet order.
	for i := len(res.Data) - 1; i >= 0; i-- {
		rec := recordFor(res, res.Data[i])
		log := p.Logger.With(zap.String("tweet_id", rec.ID))

		if _, err := p.Records.Create(ctx, rec); err != nil {
			if errors.Is(err, tweets.ErrRecordExists) {
				log.Info("tweet already ingested")
				existing++
				continue
			}
			return created, fmt.Errorf("create record %s: %w", rec.ID, err)
		}
		log.Info("引用ツイート取得",
			zap.String("url", rec.URL),
			zap.String("quoted_tweet_url", rec.QuotedTweetURL))
		created++
	}
	p.Metrics.AddIngested(created, existing)

	if err := p.Cursor.Save(ctx, newest); err != nil {
		if !errors.Is(err, cursor.ErrStaleCursor) {
			return created, fmt.Errorf("save cursor: %w", err)
		}
		p.Logger.Warn("cursor already ahead", zap.String("newest_id", newest))
	}

	if p.Publisher != nil {
		if err := p.Publisher.PublishCount(ctx, IngestedMetric, float64(created), map[string]string{"Query": query}); err != nil {
			p.Logger.Warn("publish ingest metric", zap.Error(err))
		}
	}
	return created, nil
}

func recordFor(res *twitter.SearchResult, t twitter.Tweet) tweets.Record {
	rec := tweets.Record{
		ID:             t.ID,
		URL:            tweets.StatusURL(t.ID),
		AuthorUsername: res.Username(t.AuthorID),
		Text:           t.Text,
	}
	if quoted, ok := t.QuotedID(); ok {
		rec.QuotedTweetURL = tweets.StatusURL(quoted)
	}
	return rec
}
