package webapi

import (
	"fmt"

	freecache "github.com/coocood/freecache"
	gocache "github.com/eko/gocache/lib/v4/cache"
	libstore "github.com/eko/gocache/lib/v4/store"
	gocachefreecache "github.com/eko/gocache/store/freecache/v4"
	"github.com/golang/snappy"
)

type cacheInterface = gocache.CacheInterface[[]byte]

func cacheSizeBytes(size int) int {
	if size == 0 {
		return 64 * 1024 * 1024
	}
	if size > 0 && size < 1024*1024 {
		return size * 64 * 1024
	}
	return size
}

func newBrowseCache(size int) cacheInterface {
	size = cacheSizeBytes(size)
	if size <= 0 {
		return nil
	}
	store := gocachefreecache.NewFreecache(freecache.NewCache(size))
	return gocache.New[[]byte](store)
}

// browseCacheKey includes the registry revision so every catalog change
// invalidates all cached listings at once.
func browseCacheKey(serverID, objectID string, rev uint64) string {
	return fmt.Sprintf("browse:%s:%s:%d", serverID, objectID, rev)
}

func (m *Module) cacheGet(key string) ([]byte, bool) {
	if m.cache == nil {
		return nil, false
	}
	value, err := m.cache.Get(m.cacheCtx, key)
	if err != nil {
		return nil, false
	}
	if m.config.CacheCompress {
		decoded, err := snappy.Decode(nil, value)
		if err != nil {
			return nil, false
		}
		return decoded, true
	}
	return value, true
}

func (m *Module) cachePut(key string, payload []byte) {
	if m.cache == nil {
		return
	}
	if m.config.CacheCompress {
		payload = snappy.Encode(nil, payload)
	}
	_ = m.cache.Set(m.cacheCtx, key, payload, libstore.WithExpiration(m.config.CacheTTL))
}
