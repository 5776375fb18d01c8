package processing

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
)

// EventInsert is the stream event name for a newly created item. MODIFY and
// REMOVE events, including the ones our own status writes produce, are ignored.
const EventInsert = "INSERT"

// ErrMissingRecordID is returned when a stream record's keys carry no string id.
var ErrMissingRecordID = errors.New("stream record has no id key")

// NewNotification builds a Notification from a stream record's keys and new
// image. An empty image yields a notification without a snapshot.
func NewNotification(keys, image map[string]types.AttributeValue) (Notification, error) {
	idAttr, ok := keys["id"].(*types.AttributeValueMemberS)
	if !ok || idAttr.Value == "" {
		return Notification{}, ErrMissingRecordID
	}
	n := Notification{RecordID: idAttr.Value}
	if len(image) == 0 {
		return n, nil
	}

	var rec tweets.Record
	if err := attributevalue.UnmarshalMap(image, &rec); err != nil {
		return n, fmt.Errorf("decode new image: %w", err)
	}
	if rec.ID == "" {
		rec.ID = n.RecordID
	}
	n.Snapshot = &rec
	return n, nil
}

// HandleStream is the Lambda entry point for the tweets table stream. It stops
// at the first record that cannot be processed and reports it as a batch item
// failure, so the stream checkpoints everything before it and redelivers the
// rest. The function should be configured with ReportBatchItemFailures.
func (p *Processor) HandleStream(ctx context.Context, ev events.DynamoDBEvent) (events.DynamoDBEventResponse, error) {
	var resp events.DynamoDBEventResponse
	for _, rec := range ev.Records {
		if rec.EventName != EventInsert {
			p.logger.Debug("skipping non-insert stream record",
				zap.String("event_name", rec.EventName),
				zap.String("event_id", rec.EventID))
			p.metrics.IncSkipped(rec.EventName)
			continue
		}

		if err := p.processEventRecord(ctx, rec); err != nil {
			p.logger.Error("stream record failed",
				zap.String("event_id", rec.EventID),
				zap.String("sequence_number", rec.Change.SequenceNumber),
				zap.Error(err))
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.DynamoDBBatchItemFailure{
				ItemIdentifier: rec.Change.SequenceNumber,
			})
			return resp, nil
		}
	}
	return resp, nil
}

func (p *Processor) processEventRecord(ctx context.Context, rec events.DynamoDBEventRecord) error {
	keys, err := FromEventMap(rec.Change.Keys)
	if err != nil {
		return fmt.Errorf("convert keys: %w", err)
	}
	image, err := FromEventMap(rec.Change.NewImage)
	if err != nil {
		return fmt.Errorf("convert new image: %w", err)
	}
	n, err := NewNotification(keys, image)
	if err != nil {
		return err
	}
	return p.Process(ctx, n)
}
