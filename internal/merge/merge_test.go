package merge

import (
	"math"
	"testing"

	"meme-aggregator/internal/domain"
)

func TestTokens_SingleSourcePassesThrough(t *testing.T) {
	in := []domain.Token{{Address: "A", PriceSOL: 1.5, Protocol: "raydium"}}

	out := Tokens(in)

	if len(out) != 1 {
		t.Fatalf("expected 1 token, got %d", len(out))
	}
	if out[0] != in[0] {
		t.Errorf("single-source record must pass through unchanged: %+v", out[0])
	}
}

func TestTokens_SumsVolumeAndLiquidity(t *testing.T) {
	a := []domain.Token{{Address: "A", PriceSOL: 1, LiquiditySOL: 50, VolumeSOL: 100, TransactionCount: 10}}
	b := []domain.Token{{Address: "A", PriceSOL: 1, LiquiditySOL: 75, VolumeSOL: 150, TransactionCount: 5}}

	out := Tokens(a, b)

	if len(out) != 1 {
		t.Fatalf("expected 1 merged token, got %d", len(out))
	}
	if out[0].VolumeSOL != 250 {
		t.Errorf("expected volume 250, got %f", out[0].VolumeSOL)
	}
	if out[0].LiquiditySOL != 125 {
		t.Errorf("expected liquidity 125, got %f", out[0].LiquiditySOL)
	}
	if out[0].TransactionCount != 15 {
		t.Errorf("expected 15 transactions, got %d", out[0].TransactionCount)
	}
}

func TestTokens_LiquidityWeightedPrice(t *testing.T) {
	a := []domain.Token{{Address: "A", PriceSOL: 2, LiquiditySOL: 100}}
	b := []domain.Token{{Address: "A", PriceSOL: 4, LiquiditySOL: 300}}

	out := Tokens(a, b)

	// (2*100 + 4*300) / 400 = 3.5
	if math.Abs(out[0].PriceSOL-3.5) > 1e-9 {
		t.Errorf("expected liquidity-weighted price 3.5, got %f", out[0].PriceSOL)
	}
}

func TestTokens_ZeroLiquidityFallsBackToUniformWeights(t *testing.T) {
	a := []domain.Token{{Address: "A", PriceSOL: 2, LiquiditySOL: 0}}
	b := []domain.Token{{Address: "A", PriceSOL: 4, LiquiditySOL: 0}}

	out := Tokens(a, b)

	if math.Abs(out[0].PriceSOL-3) > 1e-9 {
		t.Errorf("expected uniform average 3, got %f", out[0].PriceSOL)
	}
	if math.IsNaN(out[0].PriceSOL) {
		t.Error("zero total liquidity must not divide by zero")
	}
}

func TestTokens_MostRecentPriceChangeWins(t *testing.T) {
	a := []domain.Token{{Address: "A", PriceChange1h: 1.0, LastUpdated: 100}}
	b := []domain.Token{{Address: "A", PriceChange1h: 9.0, LastUpdated: 200}}

	out := Tokens(a, b)

	if out[0].PriceChange1h != 9.0 {
		t.Errorf("expected most recent 1h change 9.0, got %f", out[0].PriceChange1h)
	}
}

func TestTokens_TimestampTieKeepsInputOrder(t *testing.T) {
	a := []domain.Token{{Address: "A", PriceChange1h: 1.0, LastUpdated: 100}}
	b := []domain.Token{{Address: "A", PriceChange1h: 9.0, LastUpdated: 100}}

	out := Tokens(a, b)

	if out[0].PriceChange1h != 1.0 {
		t.Errorf("tie on timestamp must keep input order, got %f", out[0].PriceChange1h)
	}
}

func TestTokens_ProtocolLabelNamesDominantSource(t *testing.T) {
	a := []domain.Token{{Address: "A", Protocol: "raydium", LiquiditySOL: 10}}
	b := []domain.Token{{Address: "A", Protocol: "orca", LiquiditySOL: 90}}

	out := Tokens(a, b)

	if out[0].Protocol != "2 sources (orca)" {
		t.Errorf("expected %q, got %q", "2 sources (orca)", out[0].Protocol)
	}
}

func TestTokens_OneRecordPerAddress(t *testing.T) {
	a := []domain.Token{{Address: "A"}, {Address: "B"}}
	b := []domain.Token{{Address: "B"}, {Address: "C"}, {Address: "A"}}

	out := Tokens(a, b)

	seen := make(map[string]int)
	for _, tok := range out {
		seen[tok.Address]++
	}
	for addr, n := range seen {
		if n != 1 {
			t.Errorf("address %s appears %d times after merge", addr, n)
		}
	}
	if len(out) != 3 {
		t.Errorf("expected 3 distinct addresses, got %d", len(out))
	}
}

func TestDeduplicateByAddress_KeepsFirstOccurrence(t *testing.T) {
	in := []domain.Token{
		{Address: "A", Protocol: "first"},
		{Address: "A", Protocol: "second"},
		{Address: "B"},
	}

	out := DeduplicateByAddress(in)

	if len(out) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(out))
	}
	if out[0].Address != "A" || out[0].Protocol != "first" {
		t.Errorf("expected first occurrence of A kept, got %+v", out[0])
	}
	if out[1].Address != "B" {
		t.Errorf("expected B second, got %+v", out[1])
	}
}
