package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RewriteCache 查询改写结果的 Redis 缓存。
// 读写失败均记日志后吞掉，缓存不可用时改写流程照常走模型。
type RewriteCache struct {
	manager *Manager
	ttl     time.Duration
	logger  *zap.Logger
}

// NewRewriteCache 创建改写缓存，ttl <= 0 时使用 Manager 的默认 TTL
func NewRewriteCache(manager *Manager, ttl time.Duration, logger *zap.Logger) *RewriteCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RewriteCache{
		manager: manager,
		ttl:     ttl,
		logger:  logger.With(zap.String("component", "rewrite_cache")),
	}
}

// GetQueries 读取缓存的改写查询
func (c *RewriteCache) GetQueries(ctx context.Context, question string) ([]string, bool) {
	var queries []string
	err := c.manager.GetJSON(ctx, QueryKey("rewrite", question), &queries)
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("rewrite cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return queries, true
}

// PutQueries 写入改写查询
func (c *RewriteCache) PutQueries(ctx context.Context, question string, queries []string) {
	if err := c.manager.SetJSON(ctx, QueryKey("rewrite", question), queries, c.ttl); err != nil {
		c.logger.Warn("rewrite cache write failed", zap.Error(err))
	}
}
