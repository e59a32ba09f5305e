// internal/common/cache/cache.go
package cache

import (
	"context"
	"fmt"

	"ymfb-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// VersionKey is a monotonically increasing counter baked into every search
// cache key. Bumping it makes all previously cached result sets unreachable,
// which is how writers invalidate the search cache without enumerating keys.
const VersionKey = "loan-search:version"

// Invalidate bumps the search cache version. Invalidation is best effort: a
// failure is logged, never returned, because the write that triggered it has
// already committed.
func Invalidate(ctx context.Context, rdb *redis.Client, log logger.Logger) {
	if rdb == nil {
		return
	}
	if err := rdb.Incr(ctx, VersionKey).Err(); err != nil {
		log.Warn("search cache invalidation failed", map[string]interface{}{
			"key":   VersionKey,
			"error": err.Error(),
		})
	}
}

// Version returns the current cache version, zero if the counter was never
// bumped.
func Version(ctx context.Context, rdb *redis.Client) (int64, error) {
	val, err := rdb.Get(ctx, VersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache version: %w", err)
	}
	return val, nil
}
