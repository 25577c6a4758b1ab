package entity

import "time"

// NotRanked is returned by rank lookups for buyers with no recorded buys.
const NotRanked = -1

// BuyerStats accumulates recorded buys of one buyer for one token.
// AvgBuySize always equals TotalBought / BuyCount.
type BuyerStats struct {
	Address      string    `json:"address"`
	TotalBought  float64   `json:"totalBought"`
	BuyCount     int       `json:"buyCount"`
	AvgBuySize   float64   `json:"avgBuySize"`
	FirstBuyTime time.Time `json:"firstBuyTime"`
	LastBuyTime  time.Time `json:"lastBuyTime"`
}
