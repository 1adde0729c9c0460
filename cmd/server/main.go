// Package main runs the token aggregation server: periodic multi-source
// refresh, REST endpoints, and websocket broadcasts of price and volume
// movements.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meme-aggregator/internal/aggregator"
	"meme-aggregator/internal/cache"
	"meme-aggregator/internal/config"
	"meme-aggregator/internal/httpapi"
	"meme-aggregator/internal/hub"
	"meme-aggregator/internal/scheduler"
	"meme-aggregator/internal/source"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Parse flags (config/env values as defaults)
	port := flag.Int("port", cfg.Port, "HTTP listen port")
	redisHost := flag.String("redis-host", cfg.Redis.Host, "Redis host")
	redisPort := flag.Int("redis-port", cfg.Redis.Port, "Redis port")
	redisPassword := flag.String("redis-password", cfg.Redis.Password, "Redis password")
	redisDB := flag.Int("redis-db", cfg.Redis.DB, "Redis database number")
	useMemory := flag.Bool("use-memory", false, "Use in-memory cache instead of Redis")
	refreshInterval := flag.Duration("refresh-interval", 30*time.Second, "Full token refresh interval")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create cache store
	store, err := createStore(ctx, *redisHost, *redisPort, *redisPassword, *redisDB, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create cache store: %v", err)
	}
	defer store.Close()

	// Create source adapters
	dex := source.NewDexScreener(cfg.APIs.DexScreener, cfg.RateLimits.DexScreener, logger)
	gecko := source.NewGeckoTerminal(cfg.APIs.GeckoTerminal, cfg.RateLimits.GeckoTerminal, logger)
	jupiter := source.NewJupiter(cfg.APIs.Jupiter, cfg.RateLimits.Jupiter, logger)

	// Create aggregation service
	agg := aggregator.New(aggregator.Options{
		Sources: []aggregator.TrendingSource{
			{Provider: dex, Limit: cfg.Trending.DexScreener},
			{Provider: gecko, Limit: cfg.Trending.GeckoTerminal},
		},
		Lookup: dex,
		Prices: jupiter,
		Store:  store,
		Logger: logger,
	})

	// Create websocket hub and scheduler
	wsHub := hub.New(logger)

	schedCfg := scheduler.DefaultConfig()
	schedCfg.RefreshInterval = *refreshInterval

	sched := scheduler.New(schedCfg, agg, wsHub, logger)
	sched.Start(ctx)

	// Create HTTP server
	api := httpapi.New(httpapi.Options{
		Aggregator: agg,
		Hub:        wsHub,
		Cache:      store,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      api.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, shutting down...", sig)
	case err := <-serverErr:
		logger.Printf("HTTP server error: %v", err)
	}

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStore builds the cache backend. Redis is the default; the memory
// store is for local development and tests.
func createStore(ctx context.Context, host string, port int, password string, db int, useMemory bool, logger *log.Logger) (cache.Store, error) {
	if useMemory {
		logger.Println("Using in-memory cache store")
		return cache.NewMemory(), nil
	}

	logger.Printf("Connecting to Redis at %s:%d", host, port)
	return cache.NewRedis(ctx, cache.RedisConfig{
		Host:     host,
		Port:     port,
		Password: password,
		DB:       db,
	})
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
