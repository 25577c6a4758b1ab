package entity

import "time"

// TokenMonitorState is the detector baseline for one token, keyed by the lowercased address.
// It is replaced wholesale after every successful check, never patched field by field.
type TokenMonitorState struct {
	TokenAddress  string    `json:"tokenAddress"`
	PairAddress   string    `json:"pairAddress"` // pool the counters were read from
	LastBuyCount  int       `json:"lastBuyCount"`
	LastSellCount int       `json:"lastSellCount"`
	LastVolume    float64   `json:"lastVolume"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
}

// StateFromSnapshot builds the baseline a snapshot implies.
func StateFromSnapshot(s Snapshot, checkedAt time.Time) TokenMonitorState {
	return TokenMonitorState{
		TokenAddress:  s.TokenAddress,
		PairAddress:   s.PairAddress,
		LastBuyCount:  s.Buys,
		LastSellCount: s.Sells,
		LastVolume:    s.Volume,
		LastCheckedAt: checkedAt,
	}
}
