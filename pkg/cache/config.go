package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig holds configuration for the read-path caching layer.
type CacheConfig struct {
	// Enabled controls whether caching is active. When false, no middleware
	// is applied and all requests pass through uncached.
	Enabled bool

	// ApprovalsTTL is the TTL for approval listing responses.
	ApprovalsTTL time.Duration

	// FrameworksTTL is the TTL for framework and hierarchy listing responses.
	FrameworksTTL time.Duration

	// MaxSize is the maximum number of entries per cache instance.
	MaxSize int
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:       true,
		ApprovalsTTL:  15 * time.Second,
		FrameworksTTL: 30 * time.Second,
		MaxSize:       1000,
	}
}

// CacheConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - GRC_CACHE_ENABLED: "true" or "false" (default: "true")
//   - GRC_CACHE_APPROVALS_TTL: duration in seconds (default: 15)
//   - GRC_CACHE_FRAMEWORKS_TTL: duration in seconds (default: 30)
//   - GRC_CACHE_MAX_SIZE: max entries per cache (default: 1000)
func CacheConfigFromEnv() *CacheConfig {
	cfg := DefaultCacheConfig()

	if v := os.Getenv("GRC_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("GRC_CACHE_APPROVALS_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.ApprovalsTTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("GRC_CACHE_FRAMEWORKS_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.FrameworksTTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("GRC_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}

	return cfg
}
