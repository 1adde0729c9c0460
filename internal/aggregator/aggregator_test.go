package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meme-aggregator/internal/cache"
	"meme-aggregator/internal/domain"
)

// fakeProvider is a scripted source adapter.
type fakeProvider struct {
	name       string
	trending   []domain.Token
	searchHits []domain.Token
	err        error
	calls      int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetTrendingTokens(context.Context, int) ([]domain.Token, error) {
	f.calls++
	return f.trending, f.err
}

func (f *fakeProvider) SearchTokens(context.Context, string) ([]domain.Token, error) {
	f.calls++
	return f.searchHits, f.err
}

type fakeLookup struct {
	token *domain.Token
	err   error
	calls int
}

func (f *fakeLookup) GetTokenByAddress(context.Context, string) (*domain.Token, error) {
	f.calls++
	return f.token, f.err
}

// wellFormedAddr decodes to 32 bytes, passing mint-address validation.
const wellFormedAddr = "So11111111111111111111111111111111111111112"

func newTestService(store cache.Store, sources ...TrendingSource) *Service {
	return New(Options{
		Sources: sources,
		Store:   store,
		Logger:  log.New(discard{}, "", 0),
	})
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func manyTokens(n int) []domain.Token {
	tokens := make([]domain.Token, n)
	for i := range tokens {
		tokens[i] = domain.Token{
			Address:   fmt.Sprintf("Mint%03d", i),
			VolumeSOL: float64(n - i),
		}
	}
	return tokens
}

func TestGetTokens_RespectsRequestedLimit(t *testing.T) {
	src := &fakeProvider{name: "a", trending: manyTokens(50)}
	s := newTestService(cache.NewMemory(), TrendingSource{Provider: src, Limit: 100})

	tokens, err := s.GetTokens(context.Background(), 5, domain.SortVolume, domain.TimeFrame24h)
	require.NoError(t, err)
	require.Len(t, tokens, 5)
}

func TestGetTokens_HardCapAt100(t *testing.T) {
	src := &fakeProvider{name: "a", trending: manyTokens(150)}
	s := newTestService(cache.NewMemory(), TrendingSource{Provider: src, Limit: 200})

	tokens, err := s.GetTokens(context.Background(), 500, domain.SortVolume, domain.TimeFrame24h)
	require.NoError(t, err)
	require.Len(t, tokens, MaxLimit)
}

func TestGetTokens_DefaultLimit(t *testing.T) {
	src := &fakeProvider{name: "a", trending: manyTokens(50)}
	s := newTestService(cache.NewMemory(), TrendingSource{Provider: src, Limit: 100})

	tokens, err := s.GetTokens(context.Background(), 0, domain.SortVolume, domain.TimeFrame24h)
	require.NoError(t, err)
	require.Len(t, tokens, DefaultLimit)
}

func TestGetTokens_SortsDescending(t *testing.T) {
	src := &fakeProvider{name: "a", trending: []domain.Token{
		{Address: "A", PriceChange1h: 1},
		{Address: "B", PriceChange1h: 9},
		{Address: "C", PriceChange1h: 5},
	}}
	s := newTestService(cache.NewMemory(), TrendingSource{Provider: src, Limit: 100})

	tokens, err := s.GetTokens(context.Background(), 10, domain.SortPriceChange, domain.TimeFrame24h)
	require.NoError(t, err)
	require.Equal(t, []string{"B", "C", "A"}, []string{tokens[0].Address, tokens[1].Address, tokens[2].Address})
}

func TestGetTokens_ServesFromCacheOnSecondCall(t *testing.T) {
	src := &fakeProvider{name: "a", trending: manyTokens(10)}
	s := newTestService(cache.NewMemory(), TrendingSource{Provider: src, Limit: 100})

	_, err := s.GetTokens(context.Background(), 10, domain.SortVolume, domain.TimeFrame24h)
	require.NoError(t, err)
	_, err = s.GetTokens(context.Background(), 10, domain.SortVolume, domain.TimeFrame24h)
	require.NoError(t, err)

	require.Equal(t, 1, src.calls, "second read must be a cache hit")
}

func TestGetTokens_CachesIndividualRecords(t *testing.T) {
	store := cache.NewMemory()
	src := &fakeProvider{name: "a", trending: []domain.Token{{Address: "Mint1", VolumeSOL: 7}}}
	s := newTestService(store, TrendingSource{Provider: src, Limit: 100})

	_, err := s.GetTokens(context.Background(), 10, domain.SortVolume, domain.TimeFrame24h)
	require.NoError(t, err)

	token, err := cache.GetToken(context.Background(), store, cache.TokenKey("Mint1"))
	require.NoError(t, err)
	require.Equal(t, 7.0, token.VolumeSOL)
}

func TestFetchAndAggregate_ToleratesPartialFailure(t *testing.T) {
	good := &fakeProvider{name: "good", trending: []domain.Token{{Address: "A"}}}
	bad := &fakeProvider{name: "bad", err: errors.New("provider down")}
	s := newTestService(cache.NewMemory(),
		TrendingSource{Provider: good, Limit: 100},
		TrendingSource{Provider: bad, Limit: 50},
	)

	tokens, err := s.FetchAndAggregate(context.Background())
	require.NoError(t, err, "one failed source must not fail the aggregate call")
	require.Len(t, tokens, 1)
}

func TestFetchAndAggregate_AllSourcesFailed(t *testing.T) {
	bad1 := &fakeProvider{name: "b1", err: errors.New("down")}
	bad2 := &fakeProvider{name: "b2", err: errors.New("down")}
	s := newTestService(cache.NewMemory(),
		TrendingSource{Provider: bad1, Limit: 100},
		TrendingSource{Provider: bad2, Limit: 50},
	)

	_, err := s.FetchAndAggregate(context.Background())
	require.ErrorIs(t, err, ErrAllSourcesFailed)
}

func TestFetchAndAggregate_MergesAcrossSources(t *testing.T) {
	a := &fakeProvider{name: "a", trending: []domain.Token{{Address: "X", VolumeSOL: 100, LiquiditySOL: 10}}}
	b := &fakeProvider{name: "b", trending: []domain.Token{{Address: "X", VolumeSOL: 150, LiquiditySOL: 20}}}
	s := newTestService(cache.NewMemory(),
		TrendingSource{Provider: a, Limit: 100},
		TrendingSource{Provider: b, Limit: 50},
	)

	tokens, err := s.FetchAndAggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.Equal(t, 250.0, tokens[0].VolumeSOL)
}

func TestSearchTokens_RejectsShortQueries(t *testing.T) {
	s := newTestService(cache.NewMemory())

	for _, q := range []string{"", "x", " x "} {
		_, err := s.SearchTokens(context.Background(), q)
		require.ErrorIs(t, err, ErrQueryTooShort, "query %q", q)
	}
}

func TestSearchTokens_TwoCharactersProceed(t *testing.T) {
	src := &fakeProvider{name: "a", searchHits: []domain.Token{{Address: "A"}}}
	s := newTestService(cache.NewMemory(), TrendingSource{Provider: src, Limit: 100})

	tokens, err := s.SearchTokens(context.Background(), "ab")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
}

func TestSearchTokens_CaseInsensitiveCacheKey(t *testing.T) {
	src := &fakeProvider{name: "a", searchHits: []domain.Token{{Address: "A"}}}
	s := newTestService(cache.NewMemory(), TrendingSource{Provider: src, Limit: 100})

	_, err := s.SearchTokens(context.Background(), "BONK")
	require.NoError(t, err)
	_, err = s.SearchTokens(context.Background(), "bonk")
	require.NoError(t, err)

	require.Equal(t, 1, src.calls, "differently-cased queries must share a cache entry")
}

func TestGetTokenByAddress_NotFoundIsNilNotError(t *testing.T) {
	s := New(Options{
		Store:  cache.NewMemory(),
		Lookup: &fakeLookup{},
		Logger: log.New(discard{}, "", 0),
	})

	token, err := s.GetTokenByAddress(context.Background(), wellFormedAddr)
	require.NoError(t, err)
	require.Nil(t, token)
}

func TestGetTokenByAddress_MalformedAddressSkipsLookup(t *testing.T) {
	lookup := &fakeLookup{token: &domain.Token{Address: "x"}}
	s := New(Options{
		Store:  cache.NewMemory(),
		Lookup: lookup,
		Logger: log.New(discard{}, "", 0),
	})

	token, err := s.GetTokenByAddress(context.Background(), "not-a-mint")
	require.NoError(t, err)
	require.Nil(t, token)
	require.Zero(t, lookup.calls, "malformed addresses must not reach the upstream lookup")
}

func TestGetTokenByAddress_CachesHits(t *testing.T) {
	store := cache.NewMemory()
	s := New(Options{
		Store:  store,
		Lookup: &fakeLookup{token: &domain.Token{Address: wellFormedAddr, Ticker: "WIF"}},
		Logger: log.New(discard{}, "", 0),
	})

	token, err := s.GetTokenByAddress(context.Background(), wellFormedAddr)
	require.NoError(t, err)
	require.NotNil(t, token)

	cached, err := cache.GetToken(context.Background(), store, cache.TokenKey(wellFormedAddr))
	require.NoError(t, err)
	require.Equal(t, "WIF", cached.Ticker)
}

// failingStore always errors; reads must fall through to the live path and
// writes must be swallowed.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("cache unreachable")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache unreachable")
}
func (failingStore) MGet(_ context.Context, keys []string) ([][]byte, error) {
	return nil, errors.New("cache unreachable")
}
func (failingStore) Ping(context.Context) error { return errors.New("cache unreachable") }
func (failingStore) Close() error               { return nil }

func TestGetTokens_SurvivesCacheFailure(t *testing.T) {
	src := &fakeProvider{name: "a", trending: manyTokens(5)}
	s := newTestService(failingStore{}, TrendingSource{Provider: src, Limit: 100})

	tokens, err := s.GetTokens(context.Background(), 10, domain.SortVolume, domain.TimeFrame24h)
	require.NoError(t, err, "cache failure must not fail the read")
	require.Len(t, tokens, 5)
}
