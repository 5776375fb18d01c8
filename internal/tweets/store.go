package tweets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/aws"
)

var (
	// ErrRecordNotFound is returned when a status write targets a record that does not exist.
	ErrRecordNotFound = errors.New("tweet record not found")
	// ErrRecordExists is returned by Create when the id is already taken.
	ErrRecordExists = errors.New("tweet record already exists")
)

const (
	condRecordAbsent = "attribute_not_exists(#id)"
	condStatusExists = "attribute_exists(#ps)"
	condStatusAbsent = "attribute_exists(#id) AND attribute_not_exists(#ps)"

	// A merge round is a nested-field update followed, if the status map is
	// missing, by a map creation. Two rounds cover one concurrent creator.
	maxMergeRounds = 2
)

// Store encapsulates operations on the tweets table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new tweets Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// TableName returns the table the store writes to.
func (s *Store) TableName() string { return s.tableName }

// Create writes a new record. It never writes processing_status and fails with
// ErrRecordExists if the id is taken.
func (s *Store) Create(ctx context.Context, rec Record) (*Record, error) {
	if rec.ID == "" {
		return nil, errors.New("create: empty record id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.nowFunc().UTC()
	}
	rec.ProcessingStatus = nil

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                &s.tableName,
		Item:                     item,
		ConditionExpression:      awsString(condRecordAbsent),
		ExpressionAttributeNames: map[string]string{"#id": partitionKeyAttr},
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrRecordExists
		}
		return nil, fmt.Errorf("put item: %w", err)
	}
	return &rec, nil
}

// Get fetches a record by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            recordKey(id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// MarkStarted merges started=true and started_at=now into processing_status.
// Redelivery re-applies the same fields and only refreshes started_at.
func (s *Store) MarkStarted(ctx context.Context, id string) (time.Time, error) {
	now := s.nowFunc().UTC()
	at, err := attributevalue.Marshal(now)
	if err != nil {
		return time.Time{}, fmt.Errorf("marshal started_at: %w", err)
	}
	err = s.mergeStatus(ctx, id, []statusField{
		{FieldStarted, &types.AttributeValueMemberBOOL{Value: true}},
		{FieldStartedAt, at},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("mark started: %w", err)
	}
	return now, nil
}

// MarkFailed merges error=true, error_message and error_at=now into processing_status.
func (s *Store) MarkFailed(ctx context.Context, id, message string) (time.Time, error) {
	now := s.nowFunc().UTC()
	at, err := attributevalue.Marshal(now)
	if err != nil {
		return time.Time{}, fmt.Errorf("marshal error_at: %w", err)
	}
	err = s.mergeStatus(ctx, id, []statusField{
		{FieldError, &types.AttributeValueMemberBOOL{Value: true}},
		{FieldErrorMsg, &types.AttributeValueMemberS{Value: message}},
		{FieldErrorAt, at},
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("mark failed: %w", err)
	}
	return now, nil
}

type statusField struct {
	name  string
	value types.AttributeValue
}

// mergeStatus sets the given fields inside processing_status and leaves every
// other attribute alone. DynamoDB rejects nested SETs under a missing map, so
// the first write to a record creates the map instead, guarded so it can never
// clobber a map another invocation created in the meantime.
func (s *Store) mergeStatus(ctx context.Context, id string, fields []statusField) error {
	for round := 0; round < maxMergeRounds; round++ {
		err := s.setStatusFields(ctx, id, fields)
		if err == nil {
			return nil
		}
		if !isConditionFailed(err) {
			return fmt.Errorf("update item: %w", err)
		}

		err = s.createStatusMap(ctx, id, fields)
		if err == nil {
			return nil
		}
		if !isConditionFailed(err) {
			return fmt.Errorf("update item: %w", err)
		}
		// Either the record is gone or another writer just created the map.
	}
	return ErrRecordNotFound
}

func (s *Store) setStatusFields(ctx context.Context, id string, fields []statusField) error {
	names := map[string]string{"#ps": StatusAttr}
	values := make(map[string]types.AttributeValue, len(fields))
	sets := make([]string, 0, len(fields))
	for i, f := range fields {
		n := fmt.Sprintf("#f%d", i)
		v := fmt.Sprintf(":v%d", i)
		names[n] = f.name
		values[v] = f.value
		sets = append(sets, fmt.Sprintf("#ps.%s = %s", n, v))
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       recordKey(id),
		UpdateExpression:          awsString("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       awsString(condStatusExists),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

func (s *Store) createStatusMap(ctx context.Context, id string, fields []statusField) error {
	status := make(map[string]types.AttributeValue, len(fields))
	for _, f := range fields {
		status[f.name] = f.value
	}

	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 recordKey(id),
		UpdateExpression:    awsString("SET #ps = :ps"),
		ConditionExpression: awsString(condStatusAbsent),
		ExpressionAttributeNames: map[string]string{
			"#id": partitionKeyAttr,
			"#ps": StatusAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ps": &types.AttributeValueMemberM{Value: status},
		},
	})
	return err
}

func recordKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		partitionKeyAttr: &types.AttributeValueMemberS{Value: id},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
