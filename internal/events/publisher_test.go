package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdigest/internal/events"
)

func TestPublishIngested(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, events.ChannelArticlesIngested)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	err = events.NewPublisher(rdb).PublishIngested(ctx, events.ArticlesIngested{
		Count:        2,
		TotalFetched: 3,
		Failed:       []string{"B"},
		Sources:      []string{"A", "C"},
		Timestamp:    ts,
	})
	require.NoError(t, err)

	select {
	case msg := <-sub.Channel():
		var got events.ArticlesIngested
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, events.ChannelArticlesIngested, got.Type)
		assert.Equal(t, 2, got.Count)
		assert.Equal(t, 3, got.TotalFetched)
		assert.Equal(t, []string{"B"}, got.Failed)
		assert.True(t, ts.Equal(got.Timestamp))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestPublishIngested_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	err := events.NewPublisher(rdb).PublishIngested(context.Background(), events.ArticlesIngested{})
	assert.ErrorContains(t, err, "publish "+events.ChannelArticlesIngested)
}
