package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"

	appconfig "github.com/imrishuroy/scrapcast-tweetflow/internal/config"
)

// AWSClients bundles all service clients for convenience. Build it once per process
// and share it across invocations.
type AWSClients struct {
	DynamoDB        DynamoDBAPI
	DynamoDBStreams StreamsAPI
	CloudWatch      CloudWatchAPI
}

// NewAWSClients loads AWS config and returns concrete service clients that implement our interfaces.
func NewAWSClients(ctx context.Context, c appconfig.AWSConfig) (*AWSClients, error) {
	cfg, err := LoadAWSConfig(ctx, c)
	if err != nil {
		return nil, err
	}

	return &AWSClients{
		DynamoDB:        dynamodb.NewFromConfig(cfg),
		DynamoDBStreams: dynamodbstreams.NewFromConfig(cfg),
		CloudWatch:      cloudwatch.NewFromConfig(cfg),
	}, nil
}
