package entity

import "time"

// UnknownTokenLabel marks symbol/name fields not yet resolved from market data.
const UnknownTokenLabel = "Unknown"

// Subscription is one chat's registration for alerts on one token.
type Subscription struct {
	TokenAddress    string    `json:"tokenAddress"`
	ChatID          int64     `json:"chatId"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	MinBuyAmountUSD float64   `json:"minBuyAmountUsd"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Threshold is the subscriber's minimum, or fallback when none is set (zero).
func (s Subscription) Threshold(fallback float64) float64 {
	if s.MinBuyAmountUSD > 0 {
		return s.MinBuyAmountUSD
	}
	return fallback
}

// Qualifies reports whether an estimated buy size clears this subscriber's threshold.
func (s Subscription) Qualifies(estimatedUSD, fallback float64) bool {
	return estimatedUSD >= s.Threshold(fallback)
}
