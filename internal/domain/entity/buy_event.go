package entity

import "time"

// BuyEvent is an inferred burst of buys between two consecutive snapshots of a token.
// EstimatedUSD is deltaVolume / deltaBuys: an average over the burst, not a single trade.
type BuyEvent struct {
	ID           string    `json:"id"`
	TokenAddress string    `json:"tokenAddress"`
	Buyer        string    `json:"buyer"`
	BuyCount     int       `json:"buyCount"`
	VolumeUSD    float64   `json:"volumeUsd"`
	EstimatedUSD float64   `json:"estimatedUsd"`
	DetectedAt   time.Time `json:"detectedAt"`
	Snapshot     Snapshot  `json:"snapshot"`
}

// BuyAlert pairs a buy event with one subscriber whose threshold it cleared.
type BuyAlert struct {
	Subscription Subscription `json:"subscription"`
	Event        BuyEvent     `json:"event"`
}
