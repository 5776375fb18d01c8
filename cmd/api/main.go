package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/aws"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/config"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/handlers"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/logging"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/metrics"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	handlers.RegisterRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.Must(cfg.Logging)
	defer func() { _ = logger.Sync() }()

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWS)
	if err != nil {
		logger.Fatal("failed to init aws clients", zap.Error(err))
	}

	r := setupRouter(handlers.HandlerConfig{
		DynamoDBClient: clients.DynamoDB,
		TweetsTable:    cfg.Tables.Tweets,
		Metrics:        metrics.New(prometheus.NewRegistry()),
		Logger:         logger,
	})

	// if RUN_LOCAL is "true", run local HTTP server for development.
	if cfg.RunLocal {
		logger.Info("running local server", zap.String("addr", cfg.Server.Addr))
		if err := r.Run(cfg.Server.Addr); err != nil {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
