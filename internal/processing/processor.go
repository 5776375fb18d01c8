package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/metrics"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
)

// noQuotedSource is the display value logged when a record has no quoted tweet.
const noQuotedSource = "なし"

// StatusRecorder persists processing_status fields on a tweet record.
// *tweets.Store implements it.
type StatusRecorder interface {
	MarkStarted(ctx context.Context, id string) (time.Time, error)
	MarkFailed(ctx context.Context, id, message string) (time.Time, error)
}

// Processor handles creation notifications for tweet records. It holds no
// per-invocation state and is safe for concurrent use.
type Processor struct {
	status  StatusRecorder
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewProcessor wires a Processor. m may be nil.
func NewProcessor(status StatusRecorder, logger *zap.Logger, m *metrics.Metrics) *Processor {
	return &Processor{
		status:  status,
		logger:  logger,
		metrics: m,
	}
}

// Process marks a newly created record as started. A notification without a
// snapshot is logged and dropped. Any failure while processing is recorded on
// the record as an error status; only a failure to write that error status is
// returned.
func (p *Processor) Process(ctx context.Context, n Notification) error {
	log := p.logger.With(zap.String("tweet_id", n.RecordID))

	if n.Snapshot == nil {
		log.Error("No data associated with the event")
		p.metrics.IncMissingSnapshot()
		return nil
	}

	log.Info("New tweet document created")

	err := p.begin(ctx, log, n.RecordID, n.Snapshot)
	if err == nil {
		p.metrics.IncStarted()
		return nil
	}

	log.Error("ツイート処理でエラーが発生しました", zap.Error(err))
	p.metrics.IncFailed()

	if _, werr := p.status.MarkFailed(ctx, n.RecordID, failureMessage(err)); werr != nil {
		log.Error("エラーステータスの記録に失敗しました", zap.Error(werr), zap.NamedError("cause", err))
		p.metrics.IncRecoveryFailed()
		return fmt.Errorf("record error status for tweet %s: %w", n.RecordID, werr)
	}
	return nil
}

// failureMessage is the message of the error that caused the failure, without
// the context layers added on the way up. The full chain is only logged.
func failureMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// begin is the guarded region: everything here that fails, including a panic,
// ends up as an error status on the record.
func (p *Processor) begin(ctx context.Context, log *zap.Logger, id string, rec *tweets.Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing tweet: %v", r)
		}
	}()

	quoted := rec.QuotedTweetURL
	if quoted == "" {
		quoted = noQuotedSource
	}
	createdAt := ""
	if !rec.CreatedAt.IsZero() {
		createdAt = rec.CreatedAt.Format(time.RFC3339)
	}

	log.Info("========== ツイート処理開始 ==========")
	log.Info("ツイートID: " + id)
	log.Info("引用ツイートURL: " + rec.URL)
	log.Info("投稿者: @" + rec.AuthorUsername)
	log.Info("引用元URL: " + quoted)
	log.Info("作成日時: " + createdAt)
	log.Info("=====================================")

	startedAt, err := p.status.MarkStarted(ctx, id)
	if err != nil {
		return err
	}

	log.Info("ツイート処理ステータスを更新しました", zap.Time("started_at", startedAt))
	log.Info("ツイート処理完了")
	return nil
}
