package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/dynamotest"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/metrics"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
)

const tweetsTable = "scrapcast_tweets"

func newRouter(t *testing.T) (*gin.Engine, *dynamotest.Fake) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fake := dynamotest.New()
	fake.CreateTable(tweetsTable, "id", "")

	r := gin.New()
	RegisterRoutes(r, HandlerConfig{
		DynamoDBClient: fake,
		TweetsTable:    tweetsTable,
		Metrics:        metrics.New(prometheus.NewRegistry()),
	})
	return r, fake
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthAndHello(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(r, http.MethodGet, "/hello", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, Greeting, w.Body.String())
}

func TestCreateTweet_IDFromURL(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, http.MethodPost, "/tweets", `{"url":"https://x.com/alice/status/1850000000000000002","author_username":"alice"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/tweets/1850000000000000002", w.Header().Get("Location"))

	var rec tweets.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "1850000000000000002", rec.ID)
	assert.Equal(t, "alice", rec.AuthorUsername)
	assert.Nil(t, rec.ProcessingStatus)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestCreateTweet_FallbackUUID(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, http.MethodPost, "/tweets", `{"url":"https://example.com/post"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var rec tweets.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Len(t, rec.ID, 36)
}

func TestCreateTweet_Duplicate(t *testing.T) {
	r, _ := newRouter(t)
	body := `{"url":"https://x.com/alice/status/42"}`

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/tweets", body).Code)
	w := do(r, http.MethodPost, "/tweets", body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "tweet_exists")
}

func TestCreateTweet_ValidationFailed(t *testing.T) {
	r, fake := newRouter(t)

	w := do(r, http.MethodPost, "/tweets", `{"quoted_tweet_url":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")

	w = do(r, http.MethodPost, "/tweets", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, fake.Writes())
}

func TestGetTweet(t *testing.T) {
	r, fake := newRouter(t)

	w := do(r, http.MethodGet, "/tweets/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/tweets", `{"url":"https://x.com/a/status/7"}`).Code)
	_, err := tweets.NewStore(fake, tweetsTable).MarkStarted(context.Background(), "7")
	require.NoError(t, err)

	w = do(r, http.MethodGet, "/tweets/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec tweets.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	require.NotNil(t, rec.ProcessingStatus)
	assert.True(t, rec.ProcessingStatus.Started)
}

func TestMetricsRoute(t *testing.T) {
	r, _ := newRouter(t)

	w := do(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tweet_processing_started_total")
}
