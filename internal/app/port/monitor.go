package port

import (
	"context"

	"buybot/internal/domain/entity"
)

// SubscriptionRegistry holds the (token, chat) pairs the monitor iterates each cycle.
type SubscriptionRegistry interface {
	Track(tokenAddress string, chatID int64, minBuyAmountUSD float64) (entity.Subscription, error)
	Untrack(tokenAddress string, chatID int64) error
	// SetMinBuyAmount updates every subscription of the chat and returns how many changed.
	SetMinBuyAmount(chatID int64, amountUSD float64) (int, error)
	ListTracked(chatID int64) []entity.Subscription
	// Snapshot returns a copy of all subscriptions grouped by token address.
	Snapshot() map[string][]entity.Subscription
	UpdateTokenInfo(tokenAddress, symbol, name string)
}

// Leaderboard accumulates buyer statistics per token.
type Leaderboard interface {
	RecordBuy(tokenAddress, buyer string, amountUSD float64) (entity.BuyerStats, error)
	GetTopBuyers(tokenAddress string, limit int) []entity.BuyerStats
	GetBuyerRank(tokenAddress, buyer string) int
	GetBuyerStats(tokenAddress, buyer string) (entity.BuyerStats, bool)
	GetTotalBuyers(tokenAddress string) int
	GetTotalVolume(tokenAddress string) float64
	ClearTokenData(tokenAddress string)
	ClearAllData()
	Tokens() []string
}

// MonitorStateReader exposes detector baselines read-only.
type MonitorStateReader interface {
	State(tokenAddress string) (entity.TokenMonitorState, bool)
	States() []entity.TokenMonitorState
}

// AlertSink delivers one alert to one subscriber.
type AlertSink interface {
	SendAlert(ctx context.Context, alert entity.BuyAlert) error
}

// EventSink receives every detected buy event regardless of subscriber thresholds.
type EventSink interface {
	Name() string
	PublishEvent(ctx context.Context, event entity.BuyEvent) error
}

// Dispatcher is the fire-and-forget outbound boundary. Both methods return false when the item was dropped.
type Dispatcher interface {
	Notify(alert entity.BuyAlert) bool
	Publish(event entity.BuyEvent) bool
}
