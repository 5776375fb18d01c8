package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/metrics"
)

func insertRecord(seq, id string, image map[string]events.DynamoDBAttributeValue) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   "ev-" + seq,
		EventName: EventInsert,
		Change: events.DynamoDBStreamRecord{
			SequenceNumber: seq,
			Keys:           map[string]events.DynamoDBAttributeValue{"id": events.NewStringAttribute(id)},
			NewImage:       image,
		},
	}
}

func tweetImage(id string) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"id":              events.NewStringAttribute(id),
		"url":             events.NewStringAttribute("https://x.com/a/status/" + id),
		"author_username": events.NewStringAttribute("alice"),
		"created_at":      events.NewStringAttribute("2026-10-01T00:00:00Z"),
	}
}

// failingIDs errors on both writes for the listed ids.
type failingIDs struct {
	fakeRecorder
	ids map[string]bool
}

func (f *failingIDs) MarkStarted(ctx context.Context, id string) (time.Time, error) {
	at, _ := f.fakeRecorder.MarkStarted(ctx, id)
	if f.ids[id] {
		return time.Time{}, errors.New("throttled")
	}
	return at, nil
}

func (f *failingIDs) MarkFailed(ctx context.Context, id, message string) (time.Time, error) {
	at, _ := f.fakeRecorder.MarkFailed(ctx, id, message)
	if f.ids[id] {
		return time.Time{}, errors.New("throttled")
	}
	return at, nil
}

func TestHandleStream_InsertMarksStarted(t *testing.T) {
	rec := &fakeRecorder{}
	p := NewProcessor(rec, zap.NewNop(), nil)

	resp, err := p.HandleStream(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{insertRecord("100", "t1", tweetImage("t1"))},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Equal(t, []call{{op: "started", id: "t1"}}, rec.calls)
}

func TestHandleStream_SkipsModifyAndRemove(t *testing.T) {
	rec := &fakeRecorder{}
	m := metrics.New(prometheus.NewRegistry())
	p := NewProcessor(rec, zap.NewNop(), m)

	modify := insertRecord("101", "t1", tweetImage("t1"))
	modify.EventName = "MODIFY"
	remove := insertRecord("102", "t1", nil)
	remove.EventName = "REMOVE"

	resp, err := p.HandleStream(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{modify, remove},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Empty(t, rec.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamRecordsSkipped.WithLabelValues("MODIFY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StreamRecordsSkipped.WithLabelValues("REMOVE")))
}

func TestHandleStream_KeysOnlyIsMissingSnapshot(t *testing.T) {
	rec := &fakeRecorder{}
	logger, logs := newObservedLogger()
	p := NewProcessor(rec, logger, nil)

	resp, err := p.HandleStream(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{insertRecord("103", "t7", nil)},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Empty(t, rec.calls)

	errs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, "t7", fieldString(errs[0], "tweet_id"))
}

func TestHandleStream_StopsAtFirstFailure(t *testing.T) {
	rec := &failingIDs{ids: map[string]bool{"t2": true}}
	p := NewProcessor(rec, zap.NewNop(), nil)

	resp, err := p.HandleStream(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			insertRecord("201", "t1", tweetImage("t1")),
			insertRecord("202", "t2", tweetImage("t2")),
			insertRecord("203", "t3", tweetImage("t3")),
		},
	})
	require.NoError(t, err)
	require.Equal(t, []events.DynamoDBBatchItemFailure{{ItemIdentifier: "202"}}, resp.BatchItemFailures)

	for _, c := range rec.calls {
		assert.NotEqual(t, "t3", c.id, "records after the failure must be left for redelivery")
	}
}

func TestHandleStream_MissingIDKeyFails(t *testing.T) {
	p := NewProcessor(&fakeRecorder{}, zap.NewNop(), nil)
	bad := insertRecord("301", "", tweetImage("x"))
	bad.Change.Keys = map[string]events.DynamoDBAttributeValue{"pk": events.NewStringAttribute("x")}

	resp, err := p.HandleStream(context.Background(), events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{bad},
	})
	require.NoError(t, err)
	require.Len(t, resp.BatchItemFailures, 1)
	assert.Equal(t, "301", resp.BatchItemFailures[0].ItemIdentifier)
}

func TestNewNotification_DecodesImage(t *testing.T) {
	keys := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "t1"}}
	image := map[string]types.AttributeValue{
		"url":              &types.AttributeValueMemberS{Value: "https://x.com/a/status/1"},
		"quoted_tweet_url": &types.AttributeValueMemberS{Value: "https://twitter.com/o/status/2"},
		"created_at":       &types.AttributeValueMemberS{Value: "2026-10-01T00:00:00Z"},
		"processing_status": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"started": &types.AttributeValueMemberBOOL{Value: true},
		}},
	}

	n, err := NewNotification(keys, image)
	require.NoError(t, err)
	require.NotNil(t, n.Snapshot)
	assert.Equal(t, "t1", n.RecordID)
	assert.Equal(t, "t1", n.Snapshot.ID)
	assert.Equal(t, "https://twitter.com/o/status/2", n.Snapshot.QuotedTweetURL)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), n.Snapshot.CreatedAt.UTC())
	require.NotNil(t, n.Snapshot.ProcessingStatus)
	assert.True(t, n.Snapshot.ProcessingStatus.Started)
}

func TestNewNotification_NoImage(t *testing.T) {
	keys := map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "t1"}}
	n, err := NewNotification(keys, nil)
	require.NoError(t, err)
	assert.Nil(t, n.Snapshot)

	_, err = NewNotification(map[string]types.AttributeValue{}, nil)
	assert.ErrorIs(t, err, ErrMissingRecordID)
}

func TestFromEventAttribute(t *testing.T) {
	in := events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
		"s":    events.NewStringAttribute("x"),
		"n":    events.NewNumberAttribute("42"),
		"b":    events.NewBooleanAttribute(true),
		"null": events.NewNullAttribute(),
		"l":    events.NewListAttribute([]events.DynamoDBAttributeValue{events.NewStringAttribute("y")}),
		"ss":   events.NewStringSetAttribute([]string{"a", "b"}),
	})

	av, err := FromEventAttribute(in)
	require.NoError(t, err)
	m, ok := av.(*types.AttributeValueMemberM)
	require.True(t, ok)

	assert.Equal(t, &types.AttributeValueMemberS{Value: "x"}, m.Value["s"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "42"}, m.Value["n"])
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: true}, m.Value["b"])
	assert.Equal(t, &types.AttributeValueMemberNULL{Value: true}, m.Value["null"])
	assert.Equal(t, &types.AttributeValueMemberL{Value: []types.AttributeValue{
		&types.AttributeValueMemberS{Value: "y"},
	}}, m.Value["l"])
	assert.Equal(t, &types.AttributeValueMemberSS{Value: []string{"a", "b"}}, m.Value["ss"])
}
