package dbmo

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// CacheProvider stores query results by repository and key. Values handed to CacheSet are
// []*Record; CacheGet may return them as-is or as their JSON encoding ([]byte).
type CacheProvider interface {
	CacheGet(cacheRepositoryName, key string) (any, bool)
	CacheSet(cacheRepositoryName, key string, value any, ttl time.Duration)
	CacheDelete(cacheRepositoryName, key string)
	CacheClearRepository(cacheRepositoryName string)
	Status() map[string]any
}

// cacheEntry represents a single item in the local cache
type cacheEntry struct {
	value      any
	expiration time.Time
}

func (e cacheEntry) isExpired() bool {
	return !e.expiration.IsZero() && time.Now().After(e.expiration)
}

// localCache implements CacheProvider in memory.
type localCache struct {
	stores          sync.Map // repository -> *sync.Map(key -> cacheEntry)
	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewLocalCache returns an in-memory CacheProvider that drops expired entries every
// cleanupInterval. Close stops the cleanup goroutine.
func NewLocalCache(cleanupInterval time.Duration) *localCache {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCacheCleanupInterval
	}
	lc := &localCache{cleanupInterval: cleanupInterval, stop: make(chan struct{})}
	go lc.cleanupLoop()
	return lc
}

func (lc *localCache) cleanupLoop() {
	ticker := time.NewTicker(lc.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lc.cleanupExpired()
		case <-lc.stop:
			return
		}
	}
}

func (lc *localCache) cleanupExpired() {
	lc.stores.Range(func(_, store any) bool {
		s := store.(*sync.Map)
		s.Range(func(key, value any) bool {
			if value.(cacheEntry).isExpired() {
				s.Delete(key)
			}
			return true
		})
		return true
	})
}

// Close stops the cleanup goroutine.
func (lc *localCache) Close() {
	lc.stopOnce.Do(func() { close(lc.stop) })
}

func (lc *localCache) CacheGet(cacheRepositoryName, key string) (any, bool) {
	store, ok := lc.stores.Load(cacheRepositoryName)
	if !ok {
		return nil, false
	}
	v, ok := store.(*sync.Map).Load(key)
	if !ok {
		return nil, false
	}
	e := v.(cacheEntry)
	if e.isExpired() {
		// 过期了，顺手删掉
		store.(*sync.Map).Delete(key)
		return nil, false
	}
	return e.value, true
}

func (lc *localCache) CacheSet(cacheRepositoryName, key string, value any, ttl time.Duration) {
	store, _ := lc.stores.LoadOrStore(cacheRepositoryName, &sync.Map{})
	var expiration time.Time
	if ttl > 0 {
		expiration = time.Now().Add(ttl)
	}
	store.(*sync.Map).Store(key, cacheEntry{value: value, expiration: expiration})
}

func (lc *localCache) CacheDelete(cacheRepositoryName, key string) {
	if cacheRepositoryName == "" || key == "" {
		return
	}
	if store, ok := lc.stores.Load(cacheRepositoryName); ok {
		store.(*sync.Map).Delete(key)
	}
}

func (lc *localCache) CacheClearRepository(cacheRepositoryName string) {
	if cacheRepositoryName == "" {
		return // 忽略空字符串，避免误操作
	}
	lc.stores.Delete(cacheRepositoryName)
}

func (lc *localCache) Status() map[string]any {
	var items, stores int64
	lc.stores.Range(func(_, store any) bool {
		stores++
		store.(*sync.Map).Range(func(_, _ any) bool {
			items++
			return true
		})
		return true
	})
	return map[string]any{
		"type":             "LocalCache",
		"cleanup_interval": lc.cleanupInterval.String(),
		"total_items":      items,
		"store_count":      stores,
	}
}

var (
	defaultCache CacheProvider
	cacheMu      sync.RWMutex
)

// GetCache returns the process-wide cache used by engines without their own, creating an
// in-memory one on first use.
func GetCache() CacheProvider {
	cacheMu.RLock()
	c := defaultCache
	cacheMu.RUnlock()
	if c != nil {
		return c
	}
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if defaultCache == nil {
		defaultCache = NewLocalCache(DefaultCacheCleanupInterval)
	}
	return defaultCache
}

// SetDefaultCache replaces the process-wide cache, e.g. with redis.NewRedisCache.
func SetDefaultCache(c CacheProvider) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	defaultCache = c
}

// cacheKey identifies a query result by backend, statement and bound values.
func cacheKey(provider string, cmd *Command) string {
	var b strings.Builder
	b.WriteString(provider)
	b.WriteByte('\x00')
	b.WriteString(cmd.Text)
	for _, p := range cmd.Parameters {
		b.WriteByte('\x00')
		b.WriteString(p.Name)
		b.WriteByte('=')
		fmt.Fprintf(&b, "%T:%v", p.Value, p.Value)
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// cachedRecords converts a cache hit back into records. Remote caches return JSON bytes.
func cachedRecords(v any) ([]*Record, bool) {
	switch val := v.(type) {
	case []*Record:
		out := make([]*Record, len(val))
		for i, r := range val {
			out[i] = r.Clone()
		}
		return out, true
	case []byte:
		var out []*Record
		if err := json.Unmarshal(val, &out); err != nil {
			return nil, false
		}
		return out, true
	case string:
		return cachedRecords([]byte(val))
	}
	return nil, false
}
