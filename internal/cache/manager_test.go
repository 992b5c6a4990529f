package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.DefaultTTL = time.Minute

	m, err := NewManager(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	return m, mr
}

func TestSetGetRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", "v1", 0))

	got, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
}

func TestGetMissReturnsRedisNil(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestSetUsesDefaultTTL(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", "v1", 0))
	assert.Equal(t, time.Minute, mr.TTL("k1"))

	require.NoError(t, m.Set(ctx, "k2", "v2", 5*time.Second))
	assert.Equal(t, 5*time.Second, mr.TTL("k2"))
}

func TestJSONRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	in := []string{"severance pay", "termination compensation"}
	require.NoError(t, m.SetJSON(ctx, "queries", in, 0))

	var out []string
	require.NoError(t, m.GetJSON(ctx, "queries", &out))
	assert.Equal(t, in, out)
}

func TestDelete(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k1", "v1", 0))
	require.NoError(t, m.Delete(ctx, "k1"))

	_, err := m.Get(ctx, "k1")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestOperationsAfterClose(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "double close is a no-op")

	_, err := m.Get(context.Background(), "k1")
	assert.Error(t, err)
	assert.Error(t, m.Set(context.Background(), "k1", "v1", 0))
}

func TestQueryKeyStable(t *testing.T) {
	k1 := QueryKey("rewrite", "What is the severance?")
	k2 := QueryKey("rewrite", "What is the severance?")
	k3 := QueryKey("rewrite", "What is the notice period?")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Contains(t, k1, "rewrite:")
}

func TestRewriteCacheRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	c := NewRewriteCache(m, 0, nil)
	ctx := context.Background()

	_, ok := c.GetQueries(ctx, "How much severance?")
	assert.False(t, ok, "cold cache must miss")

	queries := []string{"severance amount", "termination pay"}
	c.PutQueries(ctx, "How much severance?", queries)

	got, ok := c.GetQueries(ctx, "How much severance?")
	require.True(t, ok)
	assert.Equal(t, queries, got)
}

func TestRewriteCacheDegradesWhenRedisDown(t *testing.T) {
	m, mr := newTestManager(t)
	c := NewRewriteCache(m, 0, nil)
	ctx := context.Background()

	mr.Close()

	_, ok := c.GetQueries(ctx, "q")
	assert.False(t, ok)
	// 写入失败被吞掉，不会 panic 或返回错误
	c.PutQueries(ctx, "q", []string{"x"})
}
