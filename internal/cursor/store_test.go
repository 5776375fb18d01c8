package cursor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/dynamotest"
)

const cursorsTable = "scrapcast_cursors"

func newDynamoStore(t *testing.T) (*DynamoStore, *dynamotest.Fake) {
	t.Helper()
	fake := dynamotest.New()
	fake.CreateTable(cursorsTable, "name", "")
	return NewDynamoStore(fake, cursorsTable, DefaultName), fake
}

func TestDynamoStore_LoadUnset(t *testing.T) {
	s, _ := newDynamoStore(t)
	id, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", id)
}

func TestDynamoStore_SaveMovesForwardOnly(t *testing.T) {
	s, fake := newDynamoStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "1850000000000000002"))
	id, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1850000000000000002", id)

	require.NoError(t, s.Save(ctx, "1850000000000000010"))
	err = s.Save(ctx, "1850000000000000005")
	assert.ErrorIs(t, err, ErrStaleCursor)
	err = s.Save(ctx, "1850000000000000010")
	assert.ErrorIs(t, err, ErrStaleCursor)

	id, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1850000000000000010", id)

	item := fake.Get(cursorsTable, DefaultName)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1850000000000000010"}, item["value"])
	assert.Contains(t, item, "updated_at")
}

func TestDynamoStore_RejectsNonNumericIDs(t *testing.T) {
	s, fake := newDynamoStore(t)
	for _, id := range []string{"", "abc", "-1", "0", "12a"} {
		err := s.Save(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidID, "id %q", id)
	}
	assert.Equal(t, 0, fake.Writes())
}

func TestDynamoStore_PropagatesErrors(t *testing.T) {
	s, fake := newDynamoStore(t)
	boom := errors.New("throttled")
	fake.UpdateErr = func(*dyn.UpdateItemInput) error { return boom }

	err := s.Save(context.Background(), "5")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrStaleCursor)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	s := NewFileStore(path)
	ctx := context.Background()

	id, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", id)

	require.NoError(t, s.Save(ctx, "1850000000000000002"))
	id, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1850000000000000002", id)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1850000000000000002", string(b))
}

func TestFileStore_TrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.txt")
	require.NoError(t, os.WriteFile(path, []byte("42\n"), 0o644))

	id, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestFileStore_RejectsInvalidID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.txt")
	err := NewFileStore(path).Save(context.Background(), "latest")
	assert.ErrorIs(t, err, ErrInvalidID)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
