// Package cache provides the read-through cache fronting the aggregation
// pipeline: a TTL key-value Store interface with Redis and in-memory
// implementations, plus the token key schema.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meme-aggregator/internal/domain"
)

// ErrNotFound is returned when a requested key has no live entry.
var ErrNotFound = errors.New("cache: key not found")

// Default entry lifetimes. Search results live longer because provider
// search endpoints are the slowest and least volatile path.
const (
	DefaultTTL = 30 * time.Second
	SearchTTL  = 60 * time.Second
)

// Store is a TTL key-value cache holding JSON-serialized token records.
type Store interface {
	// Get returns the raw entry for key, or ErrNotFound once it expired
	// or was never written.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key with the given lifetime.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// MGet returns one entry per key; missing or expired keys yield nil
	// at their position.
	MGet(ctx context.Context, keys []string) ([][]byte, error)

	// Ping reports cache reachability, used by the health endpoint.
	Ping(ctx context.Context) error

	// Close releases the underlying connection, if any.
	Close() error
}

// Key schema for token entries.
const keyPrefix = "tokens:"

// ListKey identifies a cached, sorted and truncated token list.
func ListKey(sort domain.SortField, tf domain.TimeFrame, limit int) string {
	return fmt.Sprintf("%slist:%s:%s:%d", keyPrefix, sort, tf, limit)
}

// SearchKey identifies cached search results; queries are case-folded so
// equivalent searches share one entry.
func SearchKey(query string) string {
	return keyPrefix + "search:" + strings.ToLower(query)
}

// TokenKey identifies one token record by mint address.
func TokenKey(address string) string {
	return keyPrefix + address
}
