package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/aws"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/config"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/logging"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/processing"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
)

// localEvent simulates the INSERT a freshly created record produces.
func localEvent() (events.DynamoDBEvent, error) {
	if body := os.Getenv("LOCAL_STREAM_EVENT"); body != "" {
		var ev events.DynamoDBEvent
		if err := json.Unmarshal([]byte(body), &ev); err != nil {
			return ev, err
		}
		return ev, nil
	}

	id := os.Getenv("LOCAL_TWEET_ID")
	if id == "" {
		id = "999888777"
	}
	return events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			{
				EventID:   uuid.NewString(),
				EventName: processing.EventInsert,
				Change: events.DynamoDBStreamRecord{
					SequenceNumber: "1",
					Keys: map[string]events.DynamoDBAttributeValue{
						"id": events.NewStringAttribute(id),
					},
					NewImage: map[string]events.DynamoDBAttributeValue{
						"id":               events.NewStringAttribute(id),
						"url":              events.NewStringAttribute("https://twitter.com/testuser/status/" + id),
						"author_username":  events.NewStringAttribute("emulator_test_user"),
						"quoted_tweet_url": events.NewStringAttribute("https://twitter.com/original/status/111222333"),
					},
				},
			},
		},
	}, nil
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.Must(cfg.Logging)
	defer func() { _ = logger.Sync() }()

	// built once per process and reused by every invocation
	clients, err := aws.NewAWSClients(context.Background(), cfg.AWS)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}
	store := tweets.NewStore(clients.DynamoDB, cfg.Tables.Tweets)
	processor := processing.NewProcessor(store, logger, nil)

	// If RUN_LOCAL=true, run a single simulated stream event and exit.
	if cfg.RunLocal {
		ev, err := localEvent()
		if err != nil {
			logger.Fatal("invalid LOCAL_STREAM_EVENT", zap.Error(err))
		}
		resp, err := processor.HandleStream(context.Background(), ev)
		if err != nil {
			logger.Fatal("local handler error", zap.Error(err))
		}
		if len(resp.BatchItemFailures) > 0 {
			logger.Fatal("local event failed", zap.Any("batch_item_failures", resp.BatchItemFailures))
		}
		return
	}

	lambda.Start(processor.HandleStream)
}
