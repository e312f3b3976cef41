package config

import (
	"os"
	"time"
)

// CacheConfig defines settings for the Redis catalog cache.  When Enabled is
// false or no Redis client is configured, catalogs are read straight from
// the database.  TTL bounds how stale a catalog may be; Prefix namespaces
// the keys.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads environment variables to build a CacheConfig.  Defaults
// are used when variables are not set.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("CATALOG_CACHE_ENABLED", true),
		TTL:     parseDur(getenv("CATALOG_CACHE_TTL", "5m"), 5*time.Minute),
		Prefix:  getenv("CATALOG_CACHE_PREFIX", "catalog"),
	}
}

// Helper functions shared by the per-concern loaders
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDur(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
