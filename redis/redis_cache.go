// Package redis provides a Redis backed dbmo.CacheProvider for sharing query results across
// processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mirrortom/dbmo"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key written by the cache.
const KeyPrefix = "dbmo"

// redisCache implements dbmo.CacheProvider using Redis. Values are stored as JSON.
type redisCache struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisCache 创建一个新的 Redis 缓存提供者
//   - addr: Redis 服务器地址，格式 "host:port"
//   - username / password: 为空则不使用
//   - db: 数据库编号
//   - maxConnections: 可选，最大连接数，不传或传 0 使用默认值
func NewRedisCache(addr, username, password string, db int, maxConnections ...int) (*redisCache, error) {
	opts := &redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	}
	if len(maxConnections) > 0 && maxConnections[0] > 0 {
		opts.PoolSize = maxConnections[0]
		opts.MinIdleConns = max(opts.PoolSize/10, 5)
		opts.PoolTimeout = 5 * time.Second
	}
	return NewRedisCacheWithOptions(opts)
}

// NewRedisCacheWithOptions creates the cache from client options and checks the server with a
// PING.
func NewRedisCacheWithOptions(opts *redis.Options) (*redisCache, error) {
	rc := &redisCache{client: redis.NewClient(opts), ctx: context.Background()}
	if err := rc.client.Ping(rc.ctx).Err(); err != nil {
		_ = rc.client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return rc, nil
}

func fullKey(repo, key string) string {
	return KeyPrefix + ":" + repo + ":" + key
}

// CacheGet returns the stored JSON bytes; the engine decodes them back into records.
func (r *redisCache) CacheGet(cacheRepositoryName, key string) (any, bool) {
	val, err := r.client.Get(r.ctx, fullKey(cacheRepositoryName, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			dbmo.LogWarn("redis cache get failed", map[string]any{"key": fullKey(cacheRepositoryName, key), "error": err.Error()})
		}
		return nil, false
	}
	return val, true
}

func (r *redisCache) CacheSet(cacheRepositoryName, key string, value any, ttl time.Duration) {
	k := fullKey(cacheRepositoryName, key)
	var data any
	switch v := value.(type) {
	case string, []byte:
		data = v
	default:
		b, err := json.Marshal(value)
		if err != nil {
			dbmo.LogWarn("redis cache marshal failed", map[string]any{"key": k, "error": err.Error()})
			return
		}
		data = b
	}
	if err := r.client.Set(r.ctx, k, data, ttl).Err(); err != nil {
		dbmo.LogWarn("redis cache set failed", map[string]any{"key": k, "error": err.Error()})
	}
}

func (r *redisCache) CacheDelete(cacheRepositoryName, key string) {
	if cacheRepositoryName == "" || key == "" {
		return
	}
	r.client.Del(r.ctx, fullKey(cacheRepositoryName, key))
}

// CacheClearRepository 清空指定存储库的所有缓存
func (r *redisCache) CacheClearRepository(cacheRepositoryName string) {
	if cacheRepositoryName == "" {
		return // 忽略空字符串，避免误删除所有缓存
	}
	r.deleteMatching(fullKey(cacheRepositoryName, "*"))
}

// ClearAll removes every key written by this package.
func (r *redisCache) ClearAll() {
	r.deleteMatching(KeyPrefix + ":*")
}

func (r *redisCache) deleteMatching(pattern string) {
	iter := r.client.Scan(r.ctx, 0, pattern, 0).Iterator()
	for iter.Next(r.ctx) {
		r.client.Del(r.ctx, iter.Val())
	}
}

func (r *redisCache) Status() map[string]any {
	opts := r.client.Options()
	ps := r.client.PoolStats()
	stats := map[string]any{
		"type":             "RedisCache",
		"address":          opts.Addr,
		"pool_size":        opts.PoolSize,
		"pool_hits":        ps.Hits,
		"pool_misses":      ps.Misses,
		"pool_timeouts":    ps.Timeouts,
		"pool_total_conns": ps.TotalConns,
		"pool_idle_conns":  ps.IdleConns,
	}
	if n, err := r.client.DBSize(r.ctx).Result(); err == nil {
		stats["db_size"] = n
	}
	return stats
}

// Close closes the client.
func (r *redisCache) Close() error {
	return r.client.Close()
}
