package entity

import "time"

// Snapshot is one read of a pair's market statistics for a token on the configured chain.
// Counters (Buys, Sells, Volume) cover the trailing five-minute window reported upstream.
// Snapshots are never mutated after creation; a refresh supersedes the previous value.
type Snapshot struct {
	TokenAddress string `json:"tokenAddress"` // lowercased base token address
	ChainID      string `json:"chainId"`
	DexID        string `json:"dexId"`
	PairAddress  string `json:"pairAddress"`
	URL          string `json:"url"`

	BaseSymbol  string `json:"baseSymbol"`
	BaseName    string `json:"baseName"`
	QuoteSymbol string `json:"quoteSymbol"`
	ImageURL    string `json:"imageUrl,omitempty"`

	Buys   int     `json:"buys"`
	Sells  int     `json:"sells"`
	Volume float64 `json:"volume"`

	PriceUSD       string  `json:"priceUsd"`
	PriceUSDValue  float64 `json:"priceUsdValue"`
	LiquidityUSD   float64 `json:"liquidityUsd"`
	MarketCap      float64 `json:"marketCap"`
	Volume24h      float64 `json:"volume24h"`
	PriceChange24h float64 `json:"priceChange24h"`

	FetchedAt time.Time `json:"fetchedAt"`
}
