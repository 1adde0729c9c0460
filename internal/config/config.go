// Package config loads environment-based configuration with defaults
// mirroring the production deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config represents the application configuration.
type Config struct {
	Port  int
	Redis RedisConfig

	// Per-provider outbound rate limits (requests per second).
	RateLimits RateLimitConfig

	// Provider base URLs, overridable for staging and tests.
	APIs APIConfig

	// How many trending tokens each provider is asked for per refresh.
	Trending TrendingConfig
}

// RedisConfig represents Redis connection settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RateLimitConfig holds per-provider request pacing.
type RateLimitConfig struct {
	DexScreener   int
	GeckoTerminal int
	Jupiter       int
}

// APIConfig holds provider endpoints.
type APIConfig struct {
	DexScreener   string
	GeckoTerminal string
	Jupiter       string
}

// TrendingConfig holds per-provider trending fetch sizes.
type TrendingConfig struct {
	DexScreener   int
	GeckoTerminal int
}

// Load reads configuration from environment variables, falling back to
// defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Port: envInt("PORT", 3000),
		Redis: RedisConfig{
			Host:     envString("REDIS_HOST", "localhost"),
			Port:     envInt("REDIS_PORT", 6379),
			Password: envString("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		RateLimits: RateLimitConfig{
			DexScreener:   envInt("DEXSCREENER_RATE_LIMIT", 5),
			GeckoTerminal: envInt("GECKOTERMINAL_RATE_LIMIT", 10),
			Jupiter:       envInt("JUPITER_RATE_LIMIT", 10),
		},
		APIs: APIConfig{
			DexScreener:   envString("DEXSCREENER_BASE_URL", "https://api.dexscreener.com/latest/dex"),
			GeckoTerminal: envString("GECKOTERMINAL_BASE_URL", "https://api.geckoterminal.com/api/v2"),
			Jupiter:       envString("JUPITER_BASE_URL", "https://price.jup.ag/v4"),
		},
		Trending: TrendingConfig{
			DexScreener:   envInt("DEXSCREENER_TRENDING_LIMIT", 100),
			GeckoTerminal: envInt("GECKOTERMINAL_TRENDING_LIMIT", 50),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	for name, rps := range map[string]int{
		"DEXSCREENER_RATE_LIMIT":   c.RateLimits.DexScreener,
		"GECKOTERMINAL_RATE_LIMIT": c.RateLimits.GeckoTerminal,
		"JUPITER_RATE_LIMIT":       c.RateLimits.Jupiter,
	} {
		if rps < 1 {
			return fmt.Errorf("%s must be at least 1", name)
		}
	}
	for name, n := range map[string]int{
		"DEXSCREENER_TRENDING_LIMIT":   c.Trending.DexScreener,
		"GECKOTERMINAL_TRENDING_LIMIT": c.Trending.GeckoTerminal,
	} {
		if n < 1 {
			return fmt.Errorf("%s must be at least 1", name)
		}
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
