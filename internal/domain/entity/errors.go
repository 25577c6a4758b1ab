package entity

import "errors"

// Market data and delivery errors. None of them is fatal to the process.
var (
	// ErrUpstreamUnavailable is returned when the market-data API cannot be reached or answers with a failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNoData is returned when a token has no pair on the configured chain.
	ErrNoData = errors.New("no market data")

	// ErrMalformedSnapshot is returned when a pair lacks the trailing-window counters or volume.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrDeliveryFailure wraps failures of outbound notification sinks.
	ErrDeliveryFailure = errors.New("delivery failure")
)

// Subscription registry errors.
var (
	ErrInvalidAddress = errors.New("invalid token address")
	ErrAlreadyTracked = errors.New("token already tracked")
	ErrNotTracked     = errors.New("token not tracked")
	ErrInvalidAmount  = errors.New("invalid amount")
)
