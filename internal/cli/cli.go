package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/probelens/probelens/pkg/cache"
)

// appName is the application name used for directories and display.
const appName = "probelens"

// newCache builds the artifact cache for CLI use: a redis cache when the
// config names one, the file cache under the XDG cache directory otherwise,
// or the null cache when caching is disabled.
func newCache(ctx context.Context, cfg *Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if cfg != nil && cfg.Cache.RedisURL != "" {
		return cache.NewRedisCacheFromURL(ctx, cfg.Cache.RedisURL)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/probelens/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
