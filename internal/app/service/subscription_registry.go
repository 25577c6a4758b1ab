package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"
	"buybot/internal/pkg/metrics"
	"buybot/internal/pkg/utils"
)

// subscriptionRegistryImpl implements port.SubscriptionRegistry in memory.
type subscriptionRegistryImpl struct {
	mu            sync.RWMutex
	byToken       map[string]map[int64]*entity.Subscription
	defaultMinUSD float64
	logger        port.Logger
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewSubscriptionRegistry creates an empty registry. New subscriptions without a threshold get defaultMinUSD.
func NewSubscriptionRegistry(defaultMinUSD float64, l port.Logger, m *metrics.Metrics) port.SubscriptionRegistry {
	return &subscriptionRegistryImpl{
		byToken:       make(map[string]map[int64]*entity.Subscription),
		defaultMinUSD: defaultMinUSD,
		logger:        l,
		metrics:       metrics.OrNop(m),
		now:           time.Now,
	}
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Track registers chatID for alerts on tokenAddress.
func (r *subscriptionRegistryImpl) Track(tokenAddress string, chatID int64, minBuyAmountUSD float64) (entity.Subscription, error) {
	token, ok := utils.NormalizeAddress(tokenAddress)
	if !ok {
		return entity.Subscription{}, fmt.Errorf("%w: %q", entity.ErrInvalidAddress, tokenAddress)
	}
	if !validAmount(minBuyAmountUSD) {
		return entity.Subscription{}, fmt.Errorf("%w: %v", entity.ErrInvalidAmount, minBuyAmountUSD)
	}
	if minBuyAmountUSD == 0 {
		minBuyAmountUSD = r.defaultMinUSD
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	chats, ok := r.byToken[token]
	if !ok {
		chats = make(map[int64]*entity.Subscription)
		r.byToken[token] = chats
	}
	if _, dup := chats[chatID]; dup {
		return entity.Subscription{}, fmt.Errorf("%w: %s", entity.ErrAlreadyTracked, token)
	}

	sub := &entity.Subscription{
		TokenAddress:    token,
		ChatID:          chatID,
		Symbol:          entity.UnknownTokenLabel,
		Name:            entity.UnknownTokenLabel,
		MinBuyAmountUSD: minBuyAmountUSD,
		CreatedAt:       r.now(),
	}
	for _, other := range chats {
		if other.Symbol != entity.UnknownTokenLabel {
			sub.Symbol, sub.Name = other.Symbol, other.Name
			break
		}
	}
	chats[chatID] = sub
	r.updateGaugesLocked()

	r.logger.Info("Token tracked", "token", token, "chatId", chatID, "minBuyUsd", minBuyAmountUSD)
	return *sub, nil
}

// Untrack removes chatID's subscription to tokenAddress.
func (r *subscriptionRegistryImpl) Untrack(tokenAddress string, chatID int64) error {
	token, ok := utils.NormalizeAddress(tokenAddress)
	if !ok {
		return fmt.Errorf("%w: %q", entity.ErrInvalidAddress, tokenAddress)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	chats := r.byToken[token]
	if _, ok := chats[chatID]; !ok {
		return fmt.Errorf("%w: %s", entity.ErrNotTracked, token)
	}
	delete(chats, chatID)
	if len(chats) == 0 {
		delete(r.byToken, token)
	}
	r.updateGaugesLocked()

	r.logger.Info("Token untracked", "token", token, "chatId", chatID)
	return nil
}

// SetMinBuyAmount sets the threshold on every subscription of chatID. Zero means the configured default.
func (r *subscriptionRegistryImpl) SetMinBuyAmount(chatID int64, amountUSD float64) (int, error) {
	if !validAmount(amountUSD) {
		return 0, fmt.Errorf("%w: %v", entity.ErrInvalidAmount, amountUSD)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	for _, chats := range r.byToken {
		if sub, ok := chats[chatID]; ok {
			sub.MinBuyAmountUSD = amountUSD
			changed++
		}
	}
	r.logger.Info("Minimum buy amount updated", "chatId", chatID, "minBuyUsd", amountUSD, "subscriptions", changed)
	return changed, nil
}

// ListTracked returns chatID's subscriptions, oldest first.
func (r *subscriptionRegistryImpl) ListTracked(chatID int64) []entity.Subscription {
	r.mu.RLock()
	out := make([]entity.Subscription, 0)
	for _, chats := range r.byToken {
		if sub, ok := chats[chatID]; ok {
			out = append(out, *sub)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TokenAddress < out[j].TokenAddress
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Snapshot copies every subscription grouped by token; each group is ordered by chat id.
func (r *subscriptionRegistryImpl) Snapshot() map[string][]entity.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]entity.Subscription, len(r.byToken))
	for token, chats := range r.byToken {
		subs := make([]entity.Subscription, 0, len(chats))
		for _, sub := range chats {
			subs = append(subs, *sub)
		}
		sort.Slice(subs, func(i, j int) bool { return subs[i].ChatID < subs[j].ChatID })
		out[token] = subs
	}
	return out
}

// UpdateTokenInfo fills symbol and name on subscriptions that still carry the unknown label.
func (r *subscriptionRegistryImpl) UpdateTokenInfo(tokenAddress, symbol, name string) {
	if strings.TrimSpace(symbol) == "" {
		return
	}
	token := strings.ToLower(tokenAddress)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.byToken[token] {
		if sub.Symbol == entity.UnknownTokenLabel || sub.Symbol == "" {
			sub.Symbol = symbol
			sub.Name = name
		}
	}
}

func (r *subscriptionRegistryImpl) updateGaugesLocked() {
	total := 0
	for _, chats := range r.byToken {
		total += len(chats)
	}
	r.metrics.TrackedTokens.Set(float64(len(r.byToken)))
	r.metrics.Subscriptions.Set(float64(total))
}
