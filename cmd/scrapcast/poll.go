package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/aws"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/cursor"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/metrics"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/quotes"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/twitter"
)

var cursorBackend string

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Ingest new quote tweets as tweet records",
	Long: `Searches recent quote tweets of the ScrapCast account newer than the stored
cursor and writes each one as a new tweet record. In CI the cursor lives in the
cursors table, locally in last_tweet_id.txt.`,
	Args: cobra.NoArgs,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().StringVar(&cursorBackend, "cursor", "auto", "Cursor backend: auto, file or dynamodb")
}

func newCursorStore() (cursor.Store, error) {
	backend := cursorBackend
	if backend == "auto" {
		backend = "file"
		if os.Getenv("CI") != "" {
			backend = "dynamodb"
		}
	}
	switch backend {
	case "file":
		logger.Info("ローカル環境を検出しました。ファイルからlast_tweet_idを読み込みます。", zap.String("file", cfg.Twitter.CursorFile))
		return cursor.NewFileStore(cfg.Twitter.CursorFile), nil
	case "dynamodb":
		return cursor.NewDynamoStore(clients.DynamoDB, cfg.Tables.Cursors, cursor.DefaultName), nil
	default:
		return nil, fmt.Errorf("unknown cursor backend %q", cursorBackend)
	}
}

func runPoll(cmd *cobra.Command, args []string) error {
	if cfg.Twitter.BearerToken == "" {
		return errors.New("BEARER_TOKEN が環境変数に設定されていません")
	}
	cur, err := newCursorStore()
	if err != nil {
		return err
	}

	p := &quotes.Poller{
		Search:     twitter.NewClient(cmd.Context(), cfg.Twitter.BaseURL, cfg.Twitter.BearerToken),
		Records:    tweets.NewStore(clients.DynamoDB, cfg.Tables.Tweets),
		Cursor:     cur,
		Logger:     logger,
		Metrics:    metrics.New(prometheus.NewRegistry()),
		Query:      cfg.Twitter.Query,
		MaxResults: cfg.Twitter.MaxResults,
	}
	if cfg.Metrics.Publish {
		p.Publisher = aws.NewMetricsPublisher(clients.CloudWatch, cfg.Metrics.Namespace)
	}

	n, err := p.Poll(cmd.Context())
	if err != nil {
		return err
	}
	logger.Info("poll finished", zap.Int("created", n))
	return nil
}
