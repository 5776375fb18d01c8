package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/metrics"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/processing"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/streamwatch"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the creation trigger against the tweets table stream",
	Long: `Polls the tweets table's DynamoDB stream and runs the creation trigger for
every new record, the way the deployed Lambda does. Existing rows are skipped.
Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m := metrics.New(prometheus.NewRegistry())
	store := tweets.NewStore(clients.DynamoDB, cfg.Tables.Tweets)
	processor := processing.NewProcessor(store, logger, m)
	watcher := streamwatch.New(clients.DynamoDB, clients.DynamoDBStreams, cfg.Tables.Tweets, processor, logger, cfg.Watcher.PollInterval)

	srv := &http.Server{
		Addr:              cfg.Watcher.MetricsAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving metrics", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return watcher.Run(gctx)
	})
	return g.Wait()
}
