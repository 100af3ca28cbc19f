package purge

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/PratikDhanave/attendance-sync-service/internal/models"
	"github.com/PratikDhanave/attendance-sync-service/internal/store"
)

func seededSink(t *testing.T) *store.MemorySink {
	t.Helper()
	sink := store.NewMemorySink()
	_, err := sink.Insert(context.Background(), []models.AttendanceRecord{
		{EmpID: 1, TimeStamp: "2025-03-01 08:00:00"},
		{EmpID: 2, TimeStamp: "2025-03-01 09:00:00"},
		{EmpID: 1, TimeStamp: "2025-03-02 08:00:00"},
	})
	require.NoError(t, err)
	return sink
}

func TestService_PreviewThenConfirm(t *testing.T) {
	ctx := context.Background()
	sink := seededSink(t)
	svc := NewService(sink, nil, time.Minute, nil, zaptest.NewLogger(t))

	preview, err := svc.Preview(ctx, store.Query{})
	require.NoError(t, err)
	assert.NotEmpty(t, preview.Token)
	assert.Equal(t, int64(3), preview.PreviewCount)

	// Nothing is deleted by the preview.
	n, err := sink.Count(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	deleted, err := svc.Confirm(ctx, preview.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, err = svc.Confirm(ctx, preview.Token)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestService_FilteredPurge(t *testing.T) {
	ctx := context.Background()
	sink := seededSink(t)
	svc := NewService(sink, nil, 0, nil, nil)

	preview, err := svc.Preview(ctx, store.Query{Prefix: "2025-03-01", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), preview.PreviewCount)

	deleted, err := svc.Confirm(ctx, preview.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	n, err := sink.Count(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestService_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	sink := seededSink(t)
	svc := NewService(sink, nil, time.Minute, nil, nil)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	preview, err := svc.Preview(ctx, store.Query{})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = svc.Confirm(ctx, preview.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	n, err := sink.Count(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestService_UnknownToken(t *testing.T) {
	svc := NewService(store.NewMemorySink(), nil, 0, nil, nil)
	_, err := svc.Confirm(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestRedisTokens(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	tokens := NewRedisTokens(client)
	emp := int64(4)
	want := Pending{
		Query:     store.Query{EmpID: &emp, Prefix: "2025-03"},
		Count:     9,
		ExpiresAt: time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC),
	}
	require.NoError(t, tokens.Put(ctx, "abc", want, time.Minute))
	assert.True(t, mr.Exists(redisTokenPrefix+"abc"))

	got, err := tokens.Take(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, want.Count, got.Count)
	assert.Equal(t, int64(4), *got.Query.EmpID)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	_, err = tokens.Take(ctx, "abc")
	assert.ErrorIs(t, err, ErrUnknownToken)

	require.NoError(t, tokens.Put(ctx, "short", want, time.Second))
	mr.FastForward(2 * time.Second)
	_, err = tokens.Take(ctx, "short")
	assert.ErrorIs(t, err, ErrUnknownToken)
}
