package infra

import (
	"context"
	"testing"
	"time"

	"filelimit-gateway/middleware/ratelimit/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatsStore_CountsOutcomes(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	events := []domain.StatsEvent{
		{Key: "a", Outcome: domain.OutcomeAllowed, Count: 1, Method: "GET", Path: "/"},
		{Key: "a", Outcome: domain.OutcomeDenied, Count: 4, Method: "GET", Path: "/"},
		{Key: "b", Outcome: domain.OutcomeUnknown, Method: "POST", Path: "/login"},
	}
	for _, ev := range events {
		require.NoError(t, s.Record(ctx, ev))
	}

	assert.Equal(t, Counters{Allowed: 1, Denied: 1, Unknown: 1}, s.Total())
	assert.Equal(t, int64(1), s.ByRoute()["GET /"].Denied)
	assert.Equal(t, int64(1), s.ByRoute()["POST /login"].Unknown)

	a := s.ByKey()["a"]
	assert.Equal(t, int64(1), a.Allowed)
	assert.Equal(t, 4, a.LastCount)
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Key: "a", Outcome: domain.OutcomeAllowed}))
	assert.Empty(t, s.ByKey())
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisStatsStore_Record(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 15, 4, 5, 0, time.UTC)

	s := NewRedisStatsStore(rdb,
		WithStatsPrefix("rl:stats:"),
		WithStatsTTL(time.Hour),
		WithStatsTrackKeys(true),
	)

	require.NoError(t, s.Record(ctx, domain.StatsEvent{
		Key: "10.0.0.1", Outcome: domain.OutcomeAllowed, Count: 2, Method: "GET", Path: "/x", At: at,
	}))
	require.NoError(t, s.Record(ctx, domain.StatsEvent{
		Key: "10.0.0.1", Outcome: domain.OutcomeDenied, Count: 7, Method: "GET", Path: "/x", At: at,
	}))

	assert.Equal(t, "1", mr.HGet("rl:stats:total", "allowed"))
	assert.Equal(t, "1", mr.HGet("rl:stats:total", "denied"))
	assert.Equal(t, "1", mr.HGet("rl:stats:minute:202610181504", "denied"))
	assert.Equal(t, "1", mr.HGet("rl:stats:route", "GET /x:allowed"))
	assert.Equal(t, "7", mr.HGet("rl:stats:key:10.0.0.1", "last_count"))

	assert.Equal(t, time.Hour, mr.TTL("rl:stats:minute:202610181504"))
	assert.Equal(t, time.Hour, mr.TTL("rl:stats:key:10.0.0.1"))
	assert.Zero(t, mr.TTL("rl:stats:total"))
}

func TestRedisStatsStore_NoBucketNoKeys(t *testing.T) {
	mr, rdb := newTestRedis(t)

	s := NewRedisStatsStore(rdb, WithStatsBucket("none"))
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{Key: "k"}))

	assert.Equal(t, "1", mr.HGet("ratelimit:stats:total", "unknown"))
	assert.ElementsMatch(t, []string{"ratelimit:stats:total"}, mr.Keys())
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	require.NoError(t, s.Record(context.Background(), domain.StatsEvent{}))
}
