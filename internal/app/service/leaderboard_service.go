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
)

// DefaultTopBuyersLimit is used when GetTopBuyers is called with a non-positive limit.
const DefaultTopBuyersLimit = 10

// tokenBoard holds the buyers of one token. order keeps first-buy order for stable tie-breaking.
type tokenBoard struct {
	mu     sync.Mutex
	order  []string
	buyers map[string]*entity.BuyerStats
}

func newTokenBoard() *tokenBoard {
	return &tokenBoard{buyers: make(map[string]*entity.BuyerStats)}
}

// sorted returns copies of all buyers by TotalBought descending, ties in first-buy order.
func (b *tokenBoard) sorted() []entity.BuyerStats {
	b.mu.Lock()
	out := make([]entity.BuyerStats, 0, len(b.order))
	for _, addr := range b.order {
		out = append(out, *b.buyers[addr])
	}
	b.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalBought > out[j].TotalBought })
	return out
}

// leaderboardImpl implements port.Leaderboard in memory.
// mu guards the board map; writers hold it for reading while updating a board.
type leaderboardImpl struct {
	mu      sync.RWMutex
	boards  map[string]*tokenBoard
	logger  port.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewLeaderboardService creates an empty leaderboard.
func NewLeaderboardService(l port.Logger, m *metrics.Metrics) port.Leaderboard {
	return newLeaderboard(l, m, time.Now)
}

func newLeaderboard(l port.Logger, m *metrics.Metrics, now func() time.Time) *leaderboardImpl {
	return &leaderboardImpl{
		boards:  make(map[string]*tokenBoard),
		logger:  l,
		metrics: metrics.OrNop(m),
		now:     now,
	}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (s *leaderboardImpl) board(token string) (*tokenBoard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[token]
	return b, ok
}

// withBoard runs fn on the token's board, creating it if needed. fn runs while the board is
// still registered, so a concurrent clear cannot orphan the update.
func (s *leaderboardImpl) withBoard(token string, fn func(*tokenBoard)) {
	s.mu.RLock()
	if b, ok := s.boards[token]; ok {
		fn(b)
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[token]
	if !ok {
		b = newTokenBoard()
		s.boards[token] = b
	}
	fn(b)
}

// RecordBuy adds amountUSD to the buyer's stats for the token and recomputes the average.
func (s *leaderboardImpl) RecordBuy(tokenAddress, buyer string, amountUSD float64) (entity.BuyerStats, error) {
	token, who := normalizeKey(tokenAddress), normalizeKey(buyer)
	if token == "" || who == "" {
		return entity.BuyerStats{}, fmt.Errorf("%w: token and buyer are required", entity.ErrInvalidAddress)
	}
	if amountUSD <= 0 || math.IsNaN(amountUSD) || math.IsInf(amountUSD, 0) {
		return entity.BuyerStats{}, fmt.Errorf("%w: %v", entity.ErrInvalidAmount, amountUSD)
	}

	var out entity.BuyerStats
	s.withBoard(token, func(b *tokenBoard) {
		now := s.now()
		b.mu.Lock()
		defer b.mu.Unlock()
		st, exists := b.buyers[who]
		if !exists {
			st = &entity.BuyerStats{Address: who, FirstBuyTime: now}
			b.buyers[who] = st
			b.order = append(b.order, who)
		}
		st.TotalBought += amountUSD
		st.BuyCount++
		st.AvgBuySize = st.TotalBought / float64(st.BuyCount)
		st.LastBuyTime = now
		out = *st
	})

	s.metrics.LeaderboardBuys.Inc()
	s.logger.Debug("Buy recorded", "token", token, "buyer", who, "amountUsd", amountUSD, "total", out.TotalBought)
	return out, nil
}

// GetTopBuyers returns at most limit buyers by total bought, descending.
func (s *leaderboardImpl) GetTopBuyers(tokenAddress string, limit int) []entity.BuyerStats {
	if limit <= 0 {
		limit = DefaultTopBuyersLimit
	}
	b, ok := s.board(normalizeKey(tokenAddress))
	if !ok {
		return []entity.BuyerStats{}
	}
	all := b.sorted()
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// GetBuyerRank returns the 1-based rank of buyer, or entity.NotRanked.
func (s *leaderboardImpl) GetBuyerRank(tokenAddress, buyer string) int {
	b, ok := s.board(normalizeKey(tokenAddress))
	if !ok {
		return entity.NotRanked
	}
	who := normalizeKey(buyer)
	for i, st := range b.sorted() {
		if st.Address == who {
			return i + 1
		}
	}
	return entity.NotRanked
}

func (s *leaderboardImpl) GetBuyerStats(tokenAddress, buyer string) (entity.BuyerStats, bool) {
	b, ok := s.board(normalizeKey(tokenAddress))
	if !ok {
		return entity.BuyerStats{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.buyers[normalizeKey(buyer)]
	if !ok {
		return entity.BuyerStats{}, false
	}
	return *st, true
}

func (s *leaderboardImpl) GetTotalBuyers(tokenAddress string) int {
	b, ok := s.board(normalizeKey(tokenAddress))
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buyers)
}

// GetTotalVolume sums TotalBought over every buyer of the token.
func (s *leaderboardImpl) GetTotalVolume(tokenAddress string) float64 {
	b, ok := s.board(normalizeKey(tokenAddress))
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0.0
	for _, st := range b.buyers {
		total += st.TotalBought
	}
	return total
}

func (s *leaderboardImpl) ClearTokenData(tokenAddress string) {
	token := normalizeKey(tokenAddress)
	s.mu.Lock()
	delete(s.boards, token)
	s.mu.Unlock()
	s.logger.Info("Leaderboard cleared", "token", token)
}

func (s *leaderboardImpl) ClearAllData() {
	s.mu.Lock()
	s.boards = make(map[string]*tokenBoard)
	s.mu.Unlock()
	s.logger.Info("All leaderboards cleared")
}

// Tokens lists tokens with at least one recorded buy, sorted.
func (s *leaderboardImpl) Tokens() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.boards))
	for t := range s.boards {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
