// Package aggregator composes the source adapters, merge engine and cache
// into the three public read operations: list, search and get-by-address.
package aggregator

import (
	"context"
	"errors"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"meme-aggregator/internal/cache"
	"meme-aggregator/internal/domain"
	"meme-aggregator/internal/merge"
	"meme-aggregator/internal/observability"
)

var (
	// ErrQueryTooShort rejects search queries under two characters.
	ErrQueryTooShort = errors.New("search query must be at least 2 characters")

	// ErrAllSourcesFailed is returned when every provider failed and no
	// data could be produced at all.
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// Limits on list queries.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Provider is a trending/search-capable source adapter.
type Provider interface {
	Name() string
	GetTrendingTokens(ctx context.Context, limit int) ([]domain.Token, error)
	SearchTokens(ctx context.Context, query string) ([]domain.Token, error)
}

// AddressLookup resolves a single token by mint address. DexScreener is
// the system of record for this path.
type AddressLookup interface {
	GetTokenByAddress(ctx context.Context, address string) (*domain.Token, error)
}

// PriceLookup cross-checks prices in bulk (Jupiter).
type PriceLookup interface {
	GetPrices(ctx context.Context, addresses []string) (map[string]float64, error)
}

// TrendingSource pairs a provider with how many trending tokens to request
// from it per refresh.
type TrendingSource struct {
	Provider Provider
	Limit    int
}

// Options for creating a Service.
type Options struct {
	Sources []TrendingSource
	Lookup  AddressLookup // optional; get-by-address degrades to not-found without it
	Prices  PriceLookup   // optional price enrichment
	Store   cache.Store
	Logger  *log.Logger
}

// Service is the aggregation orchestrator.
type Service struct {
	sources []TrendingSource
	lookup  AddressLookup
	prices  PriceLookup
	store   cache.Store
	logger  *log.Logger
}

// New creates a Service.
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[aggregator] ", log.LstdFlags)
	}
	return &Service{
		sources: opts.Sources,
		lookup:  opts.Lookup,
		prices:  opts.Prices,
		store:   opts.Store,
		logger:  logger,
	}
}

// GetTokens returns the aggregated token list, sorted descending by the
// requested field and truncated to limit (≤ MaxLimit). The assembled list
// and every member record are cached.
func (s *Service) GetTokens(ctx context.Context, limit int, sortBy domain.SortField, tf domain.TimeFrame) ([]domain.Token, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if !sortBy.IsValid() {
		sortBy = domain.SortVolume
	}
	if !tf.IsValid() {
		tf = domain.TimeFrame24h
	}

	key := cache.ListKey(sortBy, tf, limit)
	if cached, err := cache.GetTokenList(ctx, s.store, key); err == nil {
		observability.RecordCacheHit("list")
		return cached, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		s.logger.Printf("cache read failed for %s: %v", key, err)
	}
	observability.RecordCacheMiss("list")

	tokens, err := s.FetchAndAggregate(ctx)
	if err != nil {
		return nil, err
	}

	sortTokens(tokens, sortBy)
	if len(tokens) > limit {
		tokens = tokens[:limit]
	}

	s.cacheWrite(func() error {
		return cache.SetTokenList(ctx, s.store, key, tokens, cache.DefaultTTL)
	})
	return tokens, nil
}

// SearchTokens looks up tokens matching query across all providers.
// Queries under two characters are invalid input.
func (s *Service) SearchTokens(ctx context.Context, query string) ([]domain.Token, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, ErrQueryTooShort
	}

	key := cache.SearchKey(query)
	if cached, err := cache.GetTokenList(ctx, s.store, key); err == nil {
		observability.RecordCacheHit("search")
		return cached, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		s.logger.Printf("cache read failed for %s: %v", key, err)
	}
	observability.RecordCacheMiss("search")

	lists, failures := s.fetchParallel(ctx, func(p Provider) ([]domain.Token, error) {
		start := time.Now()
		tokens, err := p.SearchTokens(ctx, query)
		observability.RecordSourceFetch(p.Name(), "search", time.Since(start).Seconds(), err)
		return tokens, err
	})
	merged := merge.Tokens(lists...)
	if len(merged) == 0 && failures == len(s.sources) && failures > 0 {
		return nil, ErrAllSourcesFailed
	}

	s.cacheWrite(func() error {
		return cache.SetTokenList(ctx, s.store, key, merged, cache.SearchTTL)
	})
	s.logger.Printf("search %q matched %d tokens", query, len(merged))
	return merged, nil
}

// GetTokenByAddress returns the record for one mint address, or nil when
// the address is unknown everywhere. Not-found is not an error. Strings
// that cannot be a mint address short-circuit to not-found without
// touching the cache or the upstream lookup.
func (s *Service) GetTokenByAddress(ctx context.Context, address string) (*domain.Token, error) {
	if !domain.ValidAddress(address) {
		return nil, nil
	}

	key := cache.TokenKey(address)
	if cached, err := cache.GetToken(ctx, s.store, key); err == nil {
		observability.RecordCacheHit("token")
		return &cached, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		s.logger.Printf("cache read failed for %s: %v", key, err)
	}
	observability.RecordCacheMiss("token")

	if s.lookup == nil {
		return nil, nil
	}
	token, err := s.lookup.GetTokenByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, nil
	}

	s.cacheWrite(func() error {
		return cache.SetToken(ctx, s.store, key, *token, cache.DefaultTTL)
	})
	return token, nil
}

// FetchAndAggregate pulls trending tokens from every provider in parallel,
// merges the partial results and caches each merged record individually.
// Failed providers contribute nothing; the call fails only when every
// provider failed and nothing was produced.
func (s *Service) FetchAndAggregate(ctx context.Context) ([]domain.Token, error) {
	lists, failures := s.fetchParallel(ctx, nil)

	merged := merge.Tokens(lists...)
	if len(merged) == 0 && failures > 0 {
		return nil, ErrAllSourcesFailed
	}

	total := 0
	for _, list := range lists {
		total += len(list)
	}
	observability.RecordMerge(len(merged), total-len(merged))

	s.enrichPrices(ctx, merged)

	for _, token := range merged {
		token := token
		s.cacheWrite(func() error {
			return cache.SetToken(ctx, s.store, cache.TokenKey(token.Address), token, cache.DefaultTTL)
		})
	}

	s.logger.Printf("aggregated %d unique tokens from %d sources (%d failed)",
		len(merged), len(s.sources), failures)
	return merged, nil
}

// fetchParallel runs one operation per provider concurrently. When op is
// nil, each provider's trending fetch with its configured limit is used.
// It returns the successful lists and the failure count.
func (s *Service) fetchParallel(ctx context.Context, op func(Provider) ([]domain.Token, error)) ([][]domain.Token, int) {
	results := make([][]domain.Token, len(s.sources))
	errs := make([]error, len(s.sources))

	var wg sync.WaitGroup
	for i, src := range s.sources {
		i, src := i, src
		wg.Add(1)
		go func() {
			defer wg.Done()
			if op != nil {
				results[i], errs[i] = op(src.Provider)
				return
			}
			start := time.Now()
			tokens, err := src.Provider.GetTrendingTokens(ctx, src.Limit)
			observability.RecordSourceFetch(src.Provider.Name(), "trending", time.Since(start).Seconds(), err)
			if err == nil {
				observability.RecordTokensFetched(src.Provider.Name(), len(tokens))
			}
			results[i], errs[i] = tokens, err
		}()
	}
	wg.Wait()

	var lists [][]domain.Token
	failures := 0
	for i, err := range errs {
		if err != nil {
			failures++
			s.logger.Printf("source %s failed: %v", s.sources[i].Provider.Name(), err)
			continue
		}
		lists = append(lists, results[i])
	}
	return lists, failures
}

// enrichPrices fills in prices the merge produced as zero using the bulk
// price source. Best effort; failures are logged and skipped.
func (s *Service) enrichPrices(ctx context.Context, tokens []domain.Token) {
	if s.prices == nil {
		return
	}
	var missing []string
	for _, t := range tokens {
		if t.PriceSOL == 0 {
			missing = append(missing, t.Address)
		}
	}
	if len(missing) == 0 {
		return
	}

	prices, err := s.prices.GetPrices(ctx, missing)
	if err != nil {
		s.logger.Printf("price enrichment failed: %v", err)
		return
	}
	for i := range tokens {
		if tokens[i].PriceSOL == 0 {
			if price, ok := prices[tokens[i].Address]; ok {
				tokens[i].PriceSOL = price
			}
		}
	}
}

// cacheWrite performs a best-effort cache write; failures are logged and
// swallowed so the read path always returns its data.
func (s *Service) cacheWrite(write func() error) {
	if err := write(); err != nil {
		observability.RecordCacheWriteError()
		s.logger.Printf("cache write failed: %v", err)
	}
}

func sortTokens(tokens []domain.Token, by domain.SortField) {
	sort.SliceStable(tokens, func(i, j int) bool {
		switch by {
		case domain.SortPriceChange:
			return tokens[i].PriceChange1h > tokens[j].PriceChange1h
		case domain.SortMarketCap:
			return tokens[i].MarketCapSOL > tokens[j].MarketCapSOL
		case domain.SortLiquidity:
			return tokens[i].LiquiditySOL > tokens[j].LiquiditySOL
		default:
			return tokens[i].VolumeSOL > tokens[j].VolumeSOL
		}
	})
}
