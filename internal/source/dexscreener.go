package source

import (
	"context"
	"log"
	"net/url"
	"sort"
	"strconv"
	"time"

	"meme-aggregator/internal/domain"
)

// DexScreener is the system of record for per-token lookups and the widest
// trending net. USD fields are converted to SOL with a fixed approximate
// rate rather than a live feed.
type DexScreener struct {
	*client
	solPriceUSD float64
}

// Trending discovery thresholds (USD, before conversion).
const (
	dexMinLiquidityUSD = 100
	dexMinVolumeUSD    = 10

	// dexKeywordPause spaces the keyword sub-fetches inside one trending
	// call, on top of the adapter-level limiter.
	dexKeywordPause = 250 * time.Millisecond

	// dexSolPriceUSD approximates the SOL/USD rate for unit conversion.
	dexSolPriceUSD = 150
)

// keywordSearch is one fixed query of the trending discovery strategy.
type keywordSearch struct {
	query     string
	maxTokens int
}

// trendingSearches covers major, popular and meme-coin territory.
var trendingSearches = []keywordSearch{
	{"SOL", 30},
	{"pump.fun", 30},
	{"bonk", 20},
	{"WIF", 20},
	{"PEPE", 20},
	{"DOGE", 20},
	{"raydium", 20},
}

// NewDexScreener creates the DexScreener adapter.
func NewDexScreener(baseURL string, requestsPerSecond int, logger *log.Logger) *DexScreener {
	return &DexScreener{
		client:      newClient("dexscreener", baseURL, requestsPerSecond, logger),
		solPriceUSD: dexSolPriceUSD,
	}
}

// Name implements Source.
func (d *DexScreener) Name() string { return "dexscreener" }

// dexPair is the raw DexScreener pair payload.
type dexPair struct {
	ChainID   string `json:"chainId"`
	DexID     string `json:"dexId"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceNative string `json:"priceNative"`
	Txns        struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV float64 `json:"fdv"`
}

type dexSearchResponse struct {
	Pairs []dexPair `json:"pairs"`
}

// SearchTokens queries the provider's pair search, keeping Solana pairs.
func (d *DexScreener) SearchTokens(ctx context.Context, query string) ([]domain.Token, error) {
	return run(ctx, d.client, func() ([]domain.Token, error) {
		var resp dexSearchResponse
		if err := d.getJSON(ctx, "/search", url.Values{"q": {query}}, &resp); err != nil {
			return nil, err
		}
		d.logger.Printf("search %q returned %d pairs", query, len(resp.Pairs))

		var tokens []domain.Token
		for _, pair := range resp.Pairs {
			if pair.ChainID != "solana" {
				continue
			}
			tokens = append(tokens, d.transformPair(pair))
		}
		return sanitizeAll(tokens), nil
	})
}

// GetTokenByAddress looks up one token. Returns nil, nil when no Solana
// pair exists for the address.
func (d *DexScreener) GetTokenByAddress(ctx context.Context, address string) (*domain.Token, error) {
	return run(ctx, d.client, func() (*domain.Token, error) {
		var resp dexSearchResponse
		if err := d.getJSON(ctx, "/tokens/"+address, nil, &resp); err != nil {
			return nil, err
		}
		for _, pair := range resp.Pairs {
			if pair.ChainID != "solana" {
				continue
			}
			token := d.transformPair(pair)
			token.Sanitize()
			return &token, nil
		}
		return nil, nil
	})
}

// GetTrendingTokens issues the fixed keyword searches, deduplicates by
// address, filters thin pairs, and returns the top tokens by volume.
// A failed keyword fetch is logged and skipped; it never fails the call.
func (d *DexScreener) GetTrendingTokens(ctx context.Context, limit int) ([]domain.Token, error) {
	return run(ctx, d.client, func() ([]domain.Token, error) {
		var all []domain.Token
		seen := make(map[string]struct{})

		for _, search := range trendingSearches {
			var resp dexSearchResponse
			if err := d.getJSON(ctx, "/search", url.Values{"q": {search.query}}, &resp); err != nil {
				d.logger.Printf("trending search %q failed: %v", search.query, err)
				continue
			}

			kept := 0
			for _, pair := range resp.Pairs {
				if kept >= search.maxTokens {
					break
				}
				if pair.ChainID != "solana" ||
					pair.Liquidity.USD <= dexMinLiquidityUSD ||
					pair.Volume.H24 <= dexMinVolumeUSD {
					continue
				}
				kept++
				if _, dup := seen[pair.BaseToken.Address]; dup {
					continue
				}
				seen[pair.BaseToken.Address] = struct{}{}
				all = append(all, d.transformPair(pair))
			}
			d.logger.Printf("trending %q: %d pairs, %d kept", search.query, len(resp.Pairs), kept)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(dexKeywordPause):
			}
		}

		sort.SliceStable(all, func(i, j int) bool {
			return all[i].VolumeSOL > all[j].VolumeSOL
		})
		if len(all) > limit {
			all = all[:limit]
		}
		d.logger.Printf("collected %d unique trending tokens", len(all))
		return sanitizeAll(all), nil
	})
}

func (d *DexScreener) transformPair(pair dexPair) domain.Token {
	price, _ := strconv.ParseFloat(pair.PriceNative, 64)
	return domain.Token{
		Address:          pair.BaseToken.Address,
		Name:             pair.BaseToken.Name,
		Ticker:           pair.BaseToken.Symbol,
		PriceSOL:         price,
		MarketCapSOL:     pair.FDV / d.solPriceUSD,
		VolumeSOL:        pair.Volume.H24 / d.solPriceUSD,
		LiquiditySOL:     pair.Liquidity.USD / d.solPriceUSD,
		TransactionCount: pair.Txns.H24.Buys + pair.Txns.H24.Sells,
		PriceChange1h:    pair.PriceChange.H1,
		PriceChange24h:   pair.PriceChange.H24,
		Protocol:         pair.DexID,
		LastUpdated:      domain.NowMillis(),
	}
}
