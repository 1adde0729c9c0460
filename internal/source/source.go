// Package source implements the per-provider fetch adapters. Each adapter
// owns its own rate limiter and retry policy, speaks one provider's wire
// format and normalizes responses into domain.Token records.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"meme-aggregator/internal/domain"
	"meme-aggregator/internal/ratelimit"
	"meme-aggregator/internal/retry"
)

// DefaultTimeout is the per-request timeout for provider calls.
const DefaultTimeout = 15 * time.Second

// Source is a market-data provider adapter.
type Source interface {
	// Name identifies the provider in logs and failure accounting.
	Name() string

	// GetTrendingTokens discovers currently active tokens using the
	// provider's own heuristics, normalized and capped at limit.
	GetTrendingTokens(ctx context.Context, limit int) ([]domain.Token, error)

	// SearchTokens looks up tokens matching query.
	SearchTokens(ctx context.Context, query string) ([]domain.Token, error)
}

// client is the shared HTTP plumbing under every adapter: one rate limiter,
// one retry policy, one HTTP client per provider.
type client struct {
	name    string
	baseURL string
	http    *http.Client
	limiter *ratelimit.Limiter
	policy  retry.Policy
	logger  *log.Logger
}

func newClient(name, baseURL string, requestsPerSecond int, logger *log.Logger) *client {
	if logger == nil {
		logger = log.New(os.Stdout, "["+name+"] ", log.LstdFlags)
	}
	return &client{
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: ratelimit.New(requestsPerSecond),
		policy:  retry.DefaultPolicy(),
		logger:  logger,
	}
}

// getJSON issues a GET against path with query params and decodes the JSON
// response into result. Non-2xx responses become retry.StatusError so the
// retry policy can classify them.
func (c *client) getJSON(ctx context.Context, path string, params url.Values, result interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &retry.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// run paces op through the adapter's limiter and retries transient
// failures per the adapter's policy.
func run[T any](ctx context.Context, c *client, op func() (T, error)) (T, error) {
	return ratelimit.Execute(ctx, c.limiter, func() (T, error) {
		return retry.WithBackoff(ctx, c.policy, op)
	})
}

// sanitizeAll clamps invalid negative fields on every record before they
// leave the adapter.
func sanitizeAll(tokens []domain.Token) []domain.Token {
	for i := range tokens {
		tokens[i].Sanitize()
	}
	return tokens
}
