package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
)

var seedRecord tweets.Record

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a test tweet record",
	Long: `Writes one tweet record so a running watcher or the deployed trigger picks it
up. The id defaults to the status id in --url.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.StringVar(&seedRecord.ID, "id", "", "Record id (default: status id from --url)")
	f.StringVar(&seedRecord.URL, "url", "https://twitter.com/testuser/status/999888777", "Quote tweet URL")
	f.StringVar(&seedRecord.AuthorUsername, "author", "emulator_test_user", "Author username")
	f.StringVar(&seedRecord.QuotedTweetURL, "quoted", "https://twitter.com/original/status/111222333", "Quoted tweet URL, empty for none")
	f.StringVar(&seedRecord.Text, "text", "これはエミュレーターテスト用のツイートです", "Tweet text")
}

func runSeed(cmd *cobra.Command, args []string) error {
	rec := seedRecord
	if rec.ID == "" {
		if id, ok := tweets.IDFromURL(rec.URL); ok {
			rec.ID = id
		} else {
			rec.ID = uuid.NewString()
		}
	}

	store := tweets.NewStore(clients.DynamoDB, cfg.Tables.Tweets)
	created, err := store.Create(cmd.Context(), rec)
	if errors.Is(err, tweets.ErrRecordExists) {
		return fmt.Errorf("tweet %s already exists", rec.ID)
	}
	if err != nil {
		return err
	}
	logger.Info("テストツイートを追加しました",
		zap.String("tweet_id", created.ID),
		zap.String("table", store.TableName()))
	return nil
}
