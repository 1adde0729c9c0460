package domain

import (
	"time"

	"github.com/mr-tron/base58"
)

// Token is the canonical per-address market data record produced by the
// source adapters and reconciled by the merge engine. All monetary fields
// are denominated in SOL. JSON field names match the public API wire format.
type Token struct {
	Address          string  `json:"token_address"` // mint address, primary key
	Name             string  `json:"token_name"`
	Ticker           string  `json:"token_ticker"`
	PriceSOL         float64 `json:"price_sol"`
	MarketCapSOL     float64 `json:"market_cap_sol"`
	VolumeSOL        float64 `json:"volume_sol"`      // rolling 24h
	LiquiditySOL     float64 `json:"liquidity_sol"`
	TransactionCount int     `json:"transaction_count"` // rolling 24h buys+sells
	PriceChange1h    float64 `json:"price_1hr_change"`  // percent
	PriceChange24h   float64 `json:"price_24hr_change"` // percent
	Protocol         string  `json:"protocol"`          // originating provider(s)
	LastUpdated      int64   `json:"last_updated"`      // Unix timestamp in milliseconds
}

// Sanitize clamps fields that must never be negative. Adapters call this
// before records enter the merge stage.
func (t *Token) Sanitize() {
	if t.VolumeSOL < 0 {
		t.VolumeSOL = 0
	}
	if t.LiquiditySOL < 0 {
		t.LiquiditySOL = 0
	}
	if t.TransactionCount < 0 {
		t.TransactionCount = 0
	}
}

// NowMillis returns the current time as Unix milliseconds, the timestamp
// convention used throughout the record lifecycle.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// solanaPubkeyLen is the decoded length of a Solana public key.
const solanaPubkeyLen = 32

// ValidAddress reports whether addr is a plausible Solana mint address:
// base58 text decoding to exactly 32 bytes. It does not check curve
// membership; mint addresses may be off-curve PDAs.
func ValidAddress(addr string) bool {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return false
	}
	return len(decoded) == solanaPubkeyLen
}

// SortField selects the descending sort applied to aggregated token lists.
type SortField string

const (
	SortVolume      SortField = "volume"
	SortPriceChange SortField = "price_change"
	SortMarketCap   SortField = "market_cap"
	SortLiquidity   SortField = "liquidity"
)

// String returns the string representation of SortField.
func (s SortField) String() string {
	return string(s)
}

// IsValid checks if the sort field is a supported value.
func (s SortField) IsValid() bool {
	switch s {
	case SortVolume, SortPriceChange, SortMarketCap, SortLiquidity:
		return true
	}
	return false
}

// TimeFrame is the lookback window for list queries. It participates in
// cache keys but does not yet vary provider queries, which report 24h data.
type TimeFrame string

const (
	TimeFrame1h  TimeFrame = "1h"
	TimeFrame24h TimeFrame = "24h"
	TimeFrame7d  TimeFrame = "7d"
)

// String returns the string representation of TimeFrame.
func (t TimeFrame) String() string {
	return string(t)
}

// IsValid checks if the timeframe is a supported value.
func (t TimeFrame) IsValid() bool {
	return t == TimeFrame1h || t == TimeFrame24h || t == TimeFrame7d
}
