package entity

// DEXTokenPair is the wrapped response shape of the /latest/dex endpoints.
// /latest/dex/pairs answers with both "pair" and "pairs"; /latest/dex/tokens and /search only with "pairs".
type DEXTokenPair struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pair          *PairData  `json:"pair"`
	Pairs         []PairData `json:"pairs"`
}

// PairData contains detailed information about a trading pair.
// Trailing-window sections are pointers: a pair without them cannot be diffed and is treated as malformed.
type PairData struct {
	ChainID       string           `json:"chainId"`
	DexID         string           `json:"dexId"`
	URL           string           `json:"url"`
	PairAddress   string           `json:"pairAddress"`
	BaseToken     DEXToken         `json:"baseToken"`
	QuoteToken    DEXToken         `json:"quoteToken"`
	PriceNative   string           `json:"priceNative"`
	PriceUsd      string           `json:"priceUsd"`
	Txns          *PairTxns        `json:"txns"`
	Volume        *PairVolume      `json:"volume"`
	PriceChange   *PairPriceChange `json:"priceChange"`
	Liquidity     *DEXLiquidity    `json:"liquidity"`
	Fdv           float64          `json:"fdv"`
	MarketCap     float64          `json:"marketCap"`
	PairCreatedAt int64            `json:"pairCreatedAt"`
	Info          *PairInfo        `json:"info"`
}

// DEXToken represents a token in a trading pair.
type DEXToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// DEXLiquidity represents the liquidity information for a pair.
type DEXLiquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// PairTxns holds transaction counts per window. M5 is the only window the detector reads.
type PairTxns struct {
	M5  *TxnSummary `json:"m5"`
	H1  *TxnSummary `json:"h1"`
	H6  *TxnSummary `json:"h6"`
	H24 *TxnSummary `json:"h24"`
}

// TxnSummary contains buy and sell counts.
type TxnSummary struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// PairVolume represents trading volume over different periods.
type PairVolume struct {
	M5  *float64 `json:"m5"`
	H1  float64  `json:"h1"`
	H6  float64  `json:"h6"`
	H24 float64  `json:"h24"`
}

// PairPriceChange represents price change percentage over different periods.
type PairPriceChange struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// PairInfo is optional presentation metadata.
type PairInfo struct {
	ImageURL string        `json:"imageUrl"`
	Websites []PairWebsite `json:"websites"`
	Socials  []PairSocial  `json:"socials"`
}

type PairWebsite struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type PairSocial struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}
