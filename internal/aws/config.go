package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	appconfig "github.com/imrishuroy/scrapcast-tweetflow/internal/config"
)

// DefaultRegion is used when neither the config file nor AWS_REGION names one.
const DefaultRegion = "us-east-1"

// LoadAWSConfig builds the SDK config. An endpoint override points every client at
// LocalStack (or DynamoDB Local) and switches to static dummy credentials.
func LoadAWSConfig(ctx context.Context, c appconfig.AWSConfig) (sdkaws.Config, error) {
	region := c.Region
	if region == "" {
		region = DefaultRegion
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if c.EndpointOverride != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test", "test", ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return cfg, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if c.EndpointOverride != "" {
		cfg.BaseEndpoint = sdkaws.String(c.EndpointOverride)
	}

	return cfg, nil
}
