// Package merge reconciles token records reported by multiple providers
// into one canonical record per mint address.
package merge

import (
	"fmt"
	"sort"

	"meme-aggregator/internal/domain"
)

// Tokens groups the input records by address and produces exactly one
// record per distinct address. Group order follows first appearance of an
// address in the input; record order within a group follows input order.
//
// Single-source groups pass through unchanged. Multi-source groups merge
// deterministically:
//   - volume, liquidity and transaction count are summed
//   - price is a liquidity-weighted average (uniform weights when the
//     group's total liquidity is zero)
//   - the 1h price change comes from the most recently updated record,
//     ties broken by input order
//   - protocol becomes "<n> sources (<dominant>)" where dominant is the
//     contributor with the largest liquidity
//   - remaining scalars inherit from the group's first record
func Tokens(lists ...[]domain.Token) []domain.Token {
	groups := make(map[string][]domain.Token)
	var order []string

	for _, list := range lists {
		for _, token := range list {
			if _, seen := groups[token.Address]; !seen {
				order = append(order, token.Address)
			}
			groups[token.Address] = append(groups[token.Address], token)
		}
	}

	merged := make([]domain.Token, 0, len(order))
	for _, address := range order {
		group := groups[address]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		merged = append(merged, mergeGroup(group))
	}
	return merged
}

func mergeGroup(group []domain.Token) domain.Token {
	out := group[0]

	var totalVolume, totalLiquidity float64
	totalTxns := 0
	for _, t := range group {
		totalVolume += t.VolumeSOL
		totalLiquidity += t.LiquiditySOL
		totalTxns += t.TransactionCount
	}

	var weightedPrice float64
	for _, t := range group {
		weight := 1 / float64(len(group))
		if totalLiquidity > 0 {
			weight = t.LiquiditySOL / totalLiquidity
		}
		weightedPrice += t.PriceSOL * weight
	}

	// Most recent observation wins for the 1h change; SliceStable keeps
	// input order among equal timestamps.
	byTime := make([]domain.Token, len(group))
	copy(byTime, group)
	sort.SliceStable(byTime, func(i, j int) bool {
		return byTime[i].LastUpdated > byTime[j].LastUpdated
	})

	dominant := group[0]
	for _, t := range group[1:] {
		if t.LiquiditySOL > dominant.LiquiditySOL {
			dominant = t
		}
	}

	out.PriceSOL = weightedPrice
	out.VolumeSOL = totalVolume
	out.LiquiditySOL = totalLiquidity
	out.TransactionCount = totalTxns
	out.PriceChange1h = byTime[0].PriceChange1h
	out.Protocol = fmt.Sprintf("%d sources (%s)", len(group), dominant.Protocol)
	out.LastUpdated = domain.NowMillis()
	return out
}

// DeduplicateByAddress keeps only the first-seen record per address,
// preserving input order. It performs no reconciliation; use Tokens where
// conflicting readings must be merged.
func DeduplicateByAddress(tokens []domain.Token) []domain.Token {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, ok := seen[t.Address]; ok {
			continue
		}
		seen[t.Address] = struct{}{}
		out = append(out, t)
	}
	return out
}
