package quotes

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/cursor"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/dynamotest"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/metrics"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/tweets"
	"github.com/imrishuroy/scrapcast-tweetflow/internal/twitter"
)

type fakeSearcher struct {
	res    *twitter.SearchResult
	err    error
	params []twitter.SearchParams
}

func (f *fakeSearcher) SearchRecent(ctx context.Context, p twitter.SearchParams) (*twitter.SearchResult, error) {
	f.params = append(f.params, p)
	return f.res, f.err
}

type memCursor struct {
	id      string
	saveErr error
	saves   int
}

func (c *memCursor) Load(ctx context.Context) (string, error) { return c.id, nil }

func (c *memCursor) Save(ctx context.Context, id string) error {
	c.saves++
	if c.saveErr != nil {
		return c.saveErr
	}
	c.id = id
	return nil
}

type failingCreator struct {
	failID string
	inner  Creator
}

func (f *failingCreator) Create(ctx context.Context, rec tweets.Record) (*tweets.Record, error) {
	if rec.ID == f.failID {
		return nil, errors.New("throttled")
	}
	return f.inner.Create(ctx, rec)
}

type countRecorder struct {
	name  string
	value float64
	dims  map[string]string
}

func (c *countRecorder) PublishCount(ctx context.Context, name string, value float64, dims map[string]string) error {
	c.name, c.value, c.dims = name, value, dims
	return nil
}

const tweetsTable = "scrapcast_tweets"

func page() *twitter.SearchResult {
	return &twitter.SearchResult{
		Data: []twitter.Tweet{
			{ID: "300", Text: "newest", AuthorID: "u1", ReferencedTweets: []twitter.ReferencedTweet{{Type: "quoted", ID: "100"}}},
			{ID: "200", Text: "older", AuthorID: "u2", ReferencedTweets: []twitter.ReferencedTweet{{Type: "replied_to", ID: "50"}}},
		},
		Includes: twitter.Includes{Users: []twitter.User{{ID: "u1", Username: "alice"}, {ID: "u2", Username: "bob"}}},
		Meta:     twitter.Meta{NewestID: "300", ResultCount: 2},
	}
}

func newPoller(t *testing.T, s Searcher, c cursor.Store) (*Poller, *tweets.Store, *metrics.Metrics) {
	t.Helper()
	fake := dynamotest.New()
	fake.CreateTable(tweetsTable, "id", "")
	store := tweets.NewStore(fake, tweetsTable)
	m := metrics.New(prometheus.NewRegistry())
	return &Poller{
		Search:  s,
		Records: store,
		Cursor:  c,
		Logger:  zap.NewNop(),
		Metrics: m,
	}, store, m
}

func TestPoll_CreatesRecordsAndAdvancesCursor(t *testing.T) {
	s := &fakeSearcher{res: page()}
	cur := &memCursor{id: "150"}
	p, store, m := newPoller(t, s, cur)
	pub := &countRecorder{}
	p.Publisher = pub

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, s.params, 1)
	assert.Equal(t, DefaultQuery, s.params[0].Query)
	assert.Equal(t, "150", s.params[0].SinceID)
	assert.Equal(t, "300", cur.id)

	rec, err := store.Get(context.Background(), "300")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "https://twitter.com/i/web/status/300", rec.URL)
	assert.Equal(t, "alice", rec.AuthorUsername)
	assert.Equal(t, "https://twitter.com/i/web/status/100", rec.QuotedTweetURL)
	assert.Nil(t, rec.ProcessingStatus)
	assert.False(t, rec.CreatedAt.IsZero())

	older, err := store.Get(context.Background(), "200")
	require.NoError(t, err)
	assert.Equal(t, "", older.QuotedTweetURL)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.QuoteTweetsIngested))
	assert.Equal(t, IngestedMetric, pub.name)
	assert.Equal(t, 2.0, pub.value)
}

func TestPoll_NoNewTweets(t *testing.T) {
	s := &fakeSearcher{res: &twitter.SearchResult{}}
	cur := &memCursor{id: "150"}
	p, _, _ := newPoller(t, s, cur)

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, cur.saves)
}

func TestPoll_RepeatedPageSkipsExisting(t *testing.T) {
	s := &fakeSearcher{res: page()}
	cur := &memCursor{}
	p, _, m := newPoller(t, s, cur)

	_, err := p.Poll(context.Background())
	require.NoError(t, err)
	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QuoteTweetsAlreadyStored))
}

func TestPoll_CreateFailureKeepsCursor(t *testing.T) {
	s := &fakeSearcher{res: page()}
	cur := &memCursor{id: "150"}
	p, store, _ := newPoller(t, s, cur)
	p.Records = &failingCreator{failID: "300", inner: store}

	n, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "150", cur.id)
	assert.Equal(t, 0, cur.saves)
}

func TestPoll_StaleCursorIsNotAnError(t *testing.T) {
	s := &fakeSearcher{res: page()}
	cur := &memCursor{saveErr: cursor.ErrStaleCursor}
	p, _, _ := newPoller(t, s, cur)

	n, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPoll_SearchError(t *testing.T) {
	apiErr := &twitter.APIError{StatusCode: 401, Body: "unauthorized"}
	p, _, _ := newPoller(t, &fakeSearcher{err: apiErr}, &memCursor{})

	_, err := p.Poll(context.Background())
	var got *twitter.APIError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 401, got.StatusCode)
}
