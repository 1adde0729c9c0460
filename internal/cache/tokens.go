package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"meme-aggregator/internal/domain"
)

// Typed helpers layering the token JSON codec over a Store.

// GetToken reads one token record. Returns ErrNotFound when absent.
func GetToken(ctx context.Context, s Store, key string) (domain.Token, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return domain.Token{}, err
	}
	var token domain.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return domain.Token{}, fmt.Errorf("decode cached token %s: %w", key, err)
	}
	return token, nil
}

// SetToken writes one token record.
func SetToken(ctx context.Context, s Store, key string, token domain.Token, ttl time.Duration) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode token %s: %w", token.Address, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// GetTokenList reads a cached token list. Returns ErrNotFound when absent.
func GetTokenList(ctx context.Context, s Store, key string) ([]domain.Token, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var tokens []domain.Token
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("decode cached list %s: %w", key, err)
	}
	return tokens, nil
}

// SetTokenList writes a token list.
func SetTokenList(ctx context.Context, s Store, key string, tokens []domain.Token, ttl time.Duration) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("encode list %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}

// MGetTokens bulk-reads token records by address, skipping entries that are
// absent or undecodable. The result maps address → record.
func MGetTokens(ctx context.Context, s Store, addresses []string) (map[string]domain.Token, error) {
	keys := make([]string, len(addresses))
	for i, addr := range addresses {
		keys[i] = TokenKey(addr)
	}
	values, err := s.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Token, len(addresses))
	for i, data := range values {
		if data == nil {
			continue
		}
		var token domain.Token
		if err := json.Unmarshal(data, &token); err != nil {
			continue
		}
		out[addresses[i]] = token
	}
	return out, nil
}
