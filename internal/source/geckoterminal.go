package source

import (
	"context"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meme-aggregator/internal/domain"
)

// GeckoTerminal discovers tokens through Solana pool listings. Trending
// combines the trending_pools and new_pools endpoints; new pools are where
// meme coins surface first.
type GeckoTerminal struct {
	*client
	solPriceUSD float64
}

const (
	// geckoPoolsPerEndpoint caps how many pools each endpoint contributes.
	geckoPoolsPerEndpoint = 30

	// geckoSearchLimit caps search results.
	geckoSearchLimit = 20

	// geckoEndpointPause spaces the two trending sub-fetches.
	geckoEndpointPause = 300 * time.Millisecond

	// geckoSolPriceUSD approximates the SOL/USD rate for unit conversion.
	geckoSolPriceUSD = 100
)

// NewGeckoTerminal creates the GeckoTerminal adapter.
func NewGeckoTerminal(baseURL string, requestsPerSecond int, logger *log.Logger) *GeckoTerminal {
	return &GeckoTerminal{
		client:      newClient("geckoterminal", baseURL, requestsPerSecond, logger),
		solPriceUSD: geckoSolPriceUSD,
	}
}

// Name implements Source.
func (g *GeckoTerminal) Name() string { return "geckoterminal" }

// geckoPool is the raw pool payload (JSON:API attributes).
type geckoPool struct {
	ID         string `json:"id"`
	Attributes struct {
		Name                         string `json:"name"`
		Address                      string `json:"address"`
		BaseTokenPriceNativeCurrency string `json:"base_token_price_native_currency"`
		ReserveInUSD                 string `json:"reserve_in_usd"`
		PriceChangePercentage        struct {
			H1  string `json:"h1"`
			H24 string `json:"h24"`
		} `json:"price_change_percentage"`
		Transactions struct {
			H24 struct {
				Buys  int `json:"buys"`
				Sells int `json:"sells"`
			} `json:"h24"`
		} `json:"transactions"`
		VolumeUSD struct {
			H24 string `json:"h24"`
		} `json:"volume_usd"`
	} `json:"attributes"`
}

type geckoPoolsResponse struct {
	Data []geckoPool `json:"data"`
}

// GetTrendingTokens combines trending and new pools. Either endpoint
// failing is logged and skipped; duplicates resolve last-write-wins.
func (g *GeckoTerminal) GetTrendingTokens(ctx context.Context, limit int) ([]domain.Token, error) {
	return run(ctx, g.client, func() ([]domain.Token, error) {
		var all []domain.Token

		var trending geckoPoolsResponse
		if err := g.getJSON(ctx, "/networks/solana/trending_pools", nil, &trending); err != nil {
			g.logger.Printf("trending pools failed: %v", err)
		} else {
			g.logger.Printf("trending pools: %d", len(trending.Data))
			all = append(all, g.transformPools(trending.Data, geckoPoolsPerEndpoint)...)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(geckoEndpointPause):
		}

		var newest geckoPoolsResponse
		if err := g.getJSON(ctx, "/networks/solana/new_pools", nil, &newest); err != nil {
			g.logger.Printf("new pools failed: %v", err)
		} else {
			g.logger.Printf("new pools: %d", len(newest.Data))
			all = append(all, g.transformPools(newest.Data, geckoPoolsPerEndpoint)...)
		}

		// Last write wins on duplicate addresses, then first-seen order.
		byAddress := make(map[string]domain.Token, len(all))
		var order []string
		for _, token := range all {
			if _, seen := byAddress[token.Address]; !seen {
				order = append(order, token.Address)
			}
			byAddress[token.Address] = token
		}

		unique := make([]domain.Token, 0, len(order))
		for _, addr := range order {
			unique = append(unique, byAddress[addr])
		}
		if len(unique) > limit {
			unique = unique[:limit]
		}
		g.logger.Printf("total unique tokens: %d", len(unique))
		return sanitizeAll(unique), nil
	})
}

// SearchTokens queries the pool search endpoint on the Solana network.
func (g *GeckoTerminal) SearchTokens(ctx context.Context, query string) ([]domain.Token, error) {
	return run(ctx, g.client, func() ([]domain.Token, error) {
		params := url.Values{"query": {query}, "network": {"solana"}}
		var resp geckoPoolsResponse
		if err := g.getJSON(ctx, "/search/pools", params, &resp); err != nil {
			return nil, err
		}
		return sanitizeAll(g.transformPools(resp.Data, geckoSearchLimit)), nil
	})
}

func (g *GeckoTerminal) transformPools(pools []geckoPool, max int) []domain.Token {
	if len(pools) > max {
		pools = pools[:max]
	}
	tokens := make([]domain.Token, 0, len(pools))
	for _, pool := range pools {
		tokens = append(tokens, g.transformPool(pool))
	}
	return tokens
}

func (g *GeckoTerminal) transformPool(pool geckoPool) domain.Token {
	attrs := pool.Attributes

	price, _ := strconv.ParseFloat(attrs.BaseTokenPriceNativeCurrency, 64)
	volumeUSD, _ := strconv.ParseFloat(attrs.VolumeUSD.H24, 64)
	liquidityUSD, _ := strconv.ParseFloat(attrs.ReserveInUSD, 64)
	change1h, _ := strconv.ParseFloat(attrs.PriceChangePercentage.H1, 64)
	change24h, _ := strconv.ParseFloat(attrs.PriceChangePercentage.H24, 64)

	// The pool name is "BASE / QUOTE"; the base symbol is the ticker.
	ticker := attrs.Name
	if base, _, found := strings.Cut(attrs.Name, "/"); found {
		ticker = strings.TrimSpace(base)
	}

	return domain.Token{
		// No token-level endpoint here; the pool address identifies the entry.
		Address:          attrs.Address,
		Name:             attrs.Name,
		Ticker:           ticker,
		PriceSOL:         price,
		MarketCapSOL:     0, // not available from pool data
		VolumeSOL:        volumeUSD / g.solPriceUSD,
		LiquiditySOL:     liquidityUSD / g.solPriceUSD,
		TransactionCount: attrs.Transactions.H24.Buys + attrs.Transactions.H24.Sells,
		PriceChange1h:    change1h,
		PriceChange24h:   change24h,
		Protocol:         "geckoterminal",
		LastUpdated:      domain.NowMillis(),
	}
}
