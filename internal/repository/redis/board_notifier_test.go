package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogiaan1904/farm-waitlist/internal/models"
	"github.com/vogiaan1904/farm-waitlist/pkg/logger"
)

func newNotifier(t *testing.T) (BoardNotifier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cli.Close() })
	return NewRedisBoardNotifier(cli, "waitlist:board", logger.NewNopLogger()), mr
}

func TestBoardNotifierDeliversToPartitionSubscribers(t *testing.T) {
	n, _ := newNotifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	key := models.PartitionKey{TenantID: "t1", RidingTypeID: "rt1"}
	sub, err := n.SubscribeBoard(ctx, key)
	require.NoError(t, err)
	defer sub.Close()

	other, err := n.SubscribeBoard(ctx, models.PartitionKey{TenantID: "t1", RidingTypeID: "rt2"})
	require.NoError(t, err)
	defer other.Close()

	ts := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, n.PublishBoardChange(ctx, models.BoardChangeEvent{
		TenantID:         "t1",
		RidingTypeID:     "rt1",
		ChangeType:       models.BoardChangeEntryMoved,
		AffectedEntryIDs: []string{"e1"},
		Version:          4,
		Timestamp:        ts,
	}))

	select {
	case ev := <-sub.Events():
		assert.Equal(t, models.BoardChangeEntryMoved, ev.ChangeType)
		assert.Equal(t, []string{"e1"}, ev.AffectedEntryIDs)
		assert.Equal(t, int64(4), ev.Version)
		assert.True(t, ts.Equal(ev.Timestamp))
	case <-time.After(2 * time.Second):
		t.Fatal("board event not delivered")
	}

	select {
	case ev := <-other.Events():
		t.Fatalf("unexpected event on other partition: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBoardSubscriptionClose(t *testing.T) {
	n, _ := newNotifier(t)
	ctx := context.Background()

	sub, err := n.SubscribeBoard(ctx, models.PartitionKey{TenantID: "t1", RidingTypeID: "rt1"})
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestPublishFailsWhenRedisDown(t *testing.T) {
	n, mr := newNotifier(t)
	mr.Close()

	err := n.PublishBoardChange(context.Background(), models.BoardChangeEvent{TenantID: "t1", RidingTypeID: "rt1"})
	assert.Error(t, err)
}
