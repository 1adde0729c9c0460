package source

import (
	"context"
	"log"
	"net/url"
	"strings"
)

// Jupiter provides batch SOL-denominated price lookups. It contributes no
// discovery of its own; the aggregator uses it to cross-check prices on
// tokens found elsewhere.
type Jupiter struct {
	*client
}

// NewJupiter creates the Jupiter price adapter.
func NewJupiter(baseURL string, requestsPerSecond int, logger *log.Logger) *Jupiter {
	return &Jupiter{client: newClient("jupiter", baseURL, requestsPerSecond, logger)}
}

// Name identifies the provider.
func (j *Jupiter) Name() string { return "jupiter" }

type jupiterPriceResponse struct {
	Data map[string]struct {
		ID    string  `json:"id"`
		Price float64 `json:"price"`
	} `json:"data"`
}

// GetPrices returns a price per requested address. Addresses the provider
// does not know are simply absent from the result.
func (j *Jupiter) GetPrices(ctx context.Context, addresses []string) (map[string]float64, error) {
	if len(addresses) == 0 {
		return map[string]float64{}, nil
	}

	return run(ctx, j.client, func() (map[string]float64, error) {
		params := url.Values{"ids": {strings.Join(addresses, ",")}}
		var resp jupiterPriceResponse
		if err := j.getJSON(ctx, "/price", params, &resp); err != nil {
			return nil, err
		}

		prices := make(map[string]float64, len(resp.Data))
		for address, entry := range resp.Data {
			if entry.Price != 0 {
				prices[address] = entry.Price
			}
		}
		return prices, nil
	})
}

// GetPrice returns the price for one address, or 0 and false when unknown.
func (j *Jupiter) GetPrice(ctx context.Context, address string) (float64, bool, error) {
	prices, err := j.GetPrices(ctx, []string{address})
	if err != nil {
		return 0, false, err
	}
	price, ok := prices[address]
	return price, ok, nil
}
