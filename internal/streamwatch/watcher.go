// Package streamwatch runs the creation trigger locally by polling the tweets
// table's DynamoDB stream, the way the Lambda event source mapping would.
package streamwatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	awsclient "github.com/imrishuroy/scrapcast-tweetflow/internal/aws"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/processing"
)

// DefaultPollInterval matches the one second sleep of the local runner.
const DefaultPollInterval = time.Second

// ErrNoStream is returned when the table has no stream enabled.
var ErrNoStream = errors.New("table has no stream enabled")

// Handler consumes creation notifications. *processing.Processor implements it.
type Handler interface {
	Process(ctx context.Context, n processing.Notification) error
}

// Watcher polls every open shard of a table's latest stream.
type Watcher struct {
	tables       awsclient.DynamoDBAPI
	streams      awsclient.StreamsAPI
	table        string
	handler      Handler
	logger       *zap.Logger
	pollInterval time.Duration
}

// New creates a Watcher. A non-positive interval falls back to DefaultPollInterval.
func New(tables awsclient.DynamoDBAPI, streams awsclient.StreamsAPI, table string, h Handler, logger *zap.Logger, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		tables:       tables,
		streams:      streams,
		table:        table,
		handler:      h,
		logger:       logger.With(zap.String("table", table)),
		pollInterval: interval,
	}
}

// Run starts at the tip of each shard so rows that already exist are not
// replayed, and blocks until ctx is cancelled or a stream call fails.
// Cancellation is a clean exit and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	streamArn, err := w.latestStreamArn(ctx)
	if err != nil {
		return err
	}
	shards, err := w.listShards(ctx, streamArn)
	if err != nil {
		return err
	}

	w.logger.Info("watching tweets stream",
		zap.String("stream_arn", streamArn),
		zap.Int("shards", len(shards)),
		zap.Duration("poll_interval", w.pollInterval))

	g, gctx := errgroup.WithContext(ctx)
	for _, shard := range shards {
		if shard.SequenceNumberRange != nil && shard.SequenceNumberRange.EndingSequenceNumber != nil {
			continue
		}
		shardID := aws.ToString(shard.ShardId)
		g.Go(func() error {
			return w.pollShard(gctx, streamArn, shardID)
		})
	}

	err = g.Wait()
	if ctx.Err() != nil {
		w.logger.Info("stream watcher stopped")
		return nil
	}
	return err
}

func (w *Watcher) latestStreamArn(ctx context.Context) (string, error) {
	out, err := w.tables.DescribeTable(ctx, &dyn.DescribeTableInput{TableName: aws.String(w.table)})
	if err != nil {
		return "", fmt.Errorf("describe table: %w", err)
	}
	if out.Table == nil || aws.ToString(out.Table.LatestStreamArn) == "" {
		return "", ErrNoStream
	}
	return aws.ToString(out.Table.LatestStreamArn), nil
}

func (w *Watcher) listShards(ctx context.Context, streamArn string) ([]types.Shard, error) {
	var (
		shards []types.Shard
		start  *string
	)
	for {
		out, err := w.streams.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(streamArn),
			ExclusiveStartShardId: start,
		})
		if err != nil {
			return nil, fmt.Errorf("describe stream: %w", err)
		}
		if out.StreamDescription == nil {
			return shards, nil
		}
		shards = append(shards, out.StreamDescription.Shards...)
		start = out.StreamDescription.LastEvaluatedShardId
		if start == nil {
			return shards, nil
		}
	}
}

func (w *Watcher) pollShard(ctx context.Context, streamArn, shardID string) error {
	log := w.logger.With(zap.String("shard_id", shardID))

	it, err := w.streams.GetShardIterator(ctx, &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         aws.String(streamArn),
		ShardId:           aws.String(shardID),
		ShardIteratorType: types.ShardIteratorTypeLatest,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("get shard iterator %s: %w", shardID, err)
	}
	iterator := it.ShardIterator

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for iterator != nil {
		out, err := w.streams.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{ShardIterator: iterator})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("get records %s: %w", shardID, err)
		}
		for _, rec := range out.Records {
			w.dispatch(ctx, log, rec)
		}
		iterator = out.NextShardIterator

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	log.Info("shard closed")
	return nil
}

// dispatch hands one INSERT record to the handler. Failures are logged and the
// watcher moves on, as the local runner did.
func (w *Watcher) dispatch(ctx context.Context, log *zap.Logger, rec types.Record) {
	if rec.EventName != types.OperationTypeInsert || rec.Dynamodb == nil {
		return
	}
	log = log.With(zap.String("sequence_number", aws.ToString(rec.Dynamodb.SequenceNumber)))

	keys, err := toTableMap(rec.Dynamodb.Keys)
	if err != nil {
		log.Error("convert stream keys", zap.Error(err))
		return
	}
	image, err := toTableMap(rec.Dynamodb.NewImage)
	if err != nil {
		log.Error("convert stream image", zap.Error(err))
		return
	}
	n, err := processing.NewNotification(keys, image)
	if err != nil {
		log.Error("build notification", zap.Error(err))
		return
	}
	if err := w.handler.Process(ctx, n); err != nil {
		log.Error("process tweet", zap.String("tweet_id", n.RecordID), zap.Error(err))
	}
}
