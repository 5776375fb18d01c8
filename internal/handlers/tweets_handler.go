package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/aws"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/metrics"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/validation"
)

// Greeting is the body served on GET /hello.
const Greeting = "Hello from ScrapCast!"

// HandlerConfig groups dependencies for the tweets handler.
type HandlerConfig struct {
	DynamoDBClient aws.DynamoDBAPI
	TweetsTable    string
	Metrics        *metrics.Metrics // optional, enables GET /metrics
	Logger         *zap.Logger
}

// RegisterRoutes registers the health, greeting, tweet and metrics routes.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	store := tweets.NewStore(cfg.DynamoDBClient, cfg.TweetsTable)
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/hello", func(c *gin.Context) {
		c.String(http.StatusOK, Greeting)
	})

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	r.POST("/tweets", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CreateTweetRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		id := req.ID
		if id == "" {
			if fromURL, ok := tweets.IDFromURL(req.URL); ok {
				id = fromURL
			} else {
				id = uuid.NewString()
			}
		}

		rec := tweets.Record{
			ID:             id,
			URL:            req.URL,
			AuthorUsername: req.AuthorUsername,
			QuotedTweetURL: req.QuotedTweetURL,
			Text:           req.Text,
		}
		if req.CreatedAt != nil {
			rec.CreatedAt = req.CreatedAt.UTC()
		}

		created, err := store.Create(ctx, rec)
		if err != nil {
			status := httpStatusCode(err)
			if status == http.StatusInternalServerError {
				logger.Error("create tweet record", zap.String("tweet_id", id), zap.Error(err))
			}
			c.JSON(status, gin.H{"error": errorCode(err), "tweet_id": id})
			return
		}

		logger.Info("tweet record created", zap.String("tweet_id", id))
		c.Header("Location", fmt.Sprintf("/tweets/%s", id))
		c.JSON(http.StatusCreated, created)
	})

	r.GET("/tweets/:id", func(c *gin.Context) {
		id := c.Param("id")
		rec, err := store.Get(c.Request.Context(), id)
		if err != nil {
			logger.Error("get tweet record", zap.String("tweet_id", id), zap.Error(err))
			c.JSON(httpStatusCode(err), gin.H{"error": errorCode(err)})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "tweet_not_found", "tweet_id": id})
			return
		}
		c.JSON(http.StatusOK, rec)
	})
}
