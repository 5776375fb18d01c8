package cursor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/aws"
)

// DefaultName is the cursor item used by the quote poller.
const DefaultName = "quote_tweets"

// DynamoStore keeps a named cursor in a DynamoDB table keyed by name.
type DynamoStore struct {
	client    aws.DynamoDBAPI
	tableName string
	name      string
	nowFunc   func() time.Time
}

// NewDynamoStore returns a Store for the cursor called name.
func NewDynamoStore(client aws.DynamoDBAPI, tableName, name string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		name:      name,
		nowFunc:   time.Now,
	}
}

// Load reads the stored id.
func (s *DynamoStore) Load(ctx context.Context) (string, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return "", nil
	}
	var e Entry
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return "", fmt.Errorf("unmarshal item: %w", err)
	}
	if e.Value == 0 {
		return "", nil
	}
	return strconv.FormatUint(e.Value, 10), nil
}

// Save moves the cursor forward to id. The write is conditional so two pollers
// racing can never move it backwards; the loser gets ErrStaleCursor.
func (s *DynamoStore) Save(ctx context.Context, id string) error {
	v, err := parseID(id)
	if err != nil {
		return err
	}
	now := s.nowFunc().UTC()

	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 s.key(),
		UpdateExpression:    awsString("SET #v = :v, updated_at = :ua"),
		ConditionExpression: awsString("attribute_not_exists(#v) OR #v < :v"),
		ExpressionAttributeNames: map[string]string{
			"#v": "value",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v":  &types.AttributeValueMemberN{Value: strconv.FormatUint(v, 10)},
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException" {
			return ErrStaleCursor
		}
		return fmt.Errorf("update item (save cursor): %w", err)
	}
	return nil
}

func (s *DynamoStore) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"name": &types.AttributeValueMemberS{Value: s.name},
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
