package cache

import (
	"fmt"
	"strings"
)

// Open returns the cache named by kind. redisCfg is only used for "redis".
func Open(kind string, redisCfg RedisConfig) (Cache, error) {
	switch strings.ToLower(kind) {
	case "redis":
		c, err := NewRedisCache(redisCfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "memory", "":
		return NewMemoryCache(), nil
	}
	return nil, fmt.Errorf("unknown cache type %q", kind)
}
