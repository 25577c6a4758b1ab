package client

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	domain "buybot/internal/domain/entity"
	"buybot/internal/entity"
	"buybot/internal/pkg/utils"
)

// ToSnapshot converts a wire pair into a domain snapshot for tokenAddress.
// A pair without trailing five-minute txns or volume is ErrMalformedSnapshot.
func ToSnapshot(tokenAddress string, pair entity.PairData, fetchedAt time.Time) (domain.Snapshot, error) {
	if pair.Txns == nil || pair.Txns.M5 == nil || pair.Volume == nil || pair.Volume.M5 == nil {
		return domain.Snapshot{}, fmt.Errorf("%w: pair %s has no m5 counters", domain.ErrMalformedSnapshot, pair.PairAddress)
	}

	token := strings.ToLower(tokenAddress)
	if token == "" {
		token = strings.ToLower(pair.BaseToken.Address)
	}

	s := domain.Snapshot{
		TokenAddress: token,
		ChainID:      pair.ChainID,
		DexID:        pair.DexID,
		PairAddress:  strings.ToLower(pair.PairAddress),
		URL:          pair.URL,
		BaseSymbol:   pair.BaseToken.Symbol,
		BaseName:     pair.BaseToken.Name,
		QuoteSymbol:  pair.QuoteToken.Symbol,
		Buys:         pair.Txns.M5.Buys,
		Sells:        pair.Txns.M5.Sells,
		Volume:       *pair.Volume.M5,
		PriceUSD:     pair.PriceUsd,
		LiquidityUSD: utils.SafeDerefFloat64(pair.Liquidity, func(l entity.DEXLiquidity) float64 { return l.Usd }),
		MarketCap:    pair.MarketCap,
		Volume24h:    pair.Volume.H24,
		FetchedAt:    fetchedAt,
	}
	if s.MarketCap == 0 {
		s.MarketCap = pair.Fdv
	}
	if pair.PriceChange != nil {
		s.PriceChange24h = pair.PriceChange.H24
	}
	if pair.Info != nil {
		s.ImageURL = pair.Info.ImageURL
	}
	if v, err := strconv.ParseFloat(pair.PriceUsd, 64); err == nil {
		s.PriceUSDValue = v
	}
	return s, nil
}

// FilterChain keeps only pairs on chainID, comparing case-insensitively.
func FilterChain(pairs []entity.PairData, chainID string) []entity.PairData {
	out := make([]entity.PairData, 0, len(pairs))
	for _, p := range pairs {
		if strings.EqualFold(p.ChainID, chainID) {
			out = append(out, p)
		}
	}
	return out
}

func liquidityUSD(p entity.PairData) float64 {
	return utils.SafeDerefFloat64(p.Liquidity, func(l entity.DEXLiquidity) float64 { return l.Usd })
}

// BaseTokenPairs keeps only pairs whose base token is tokenAddress.
// In a pool where the token is the quote side, upstream buys are sells of the token.
func BaseTokenPairs(pairs []entity.PairData, tokenAddress string) []entity.PairData {
	out := make([]entity.PairData, 0, len(pairs))
	for _, p := range pairs {
		if strings.EqualFold(p.BaseToken.Address, tokenAddress) {
			out = append(out, p)
		}
	}
	return out
}

// BestSnapshot picks the most liquid same-chain pair with tokenAddress as base that converts cleanly.
// Every caller selects from the same candidate set, whichever endpoint supplied the pairs.
// Returns ErrNoData when no such pair exists and ErrMalformedSnapshot when none converts.
func BestSnapshot(tokenAddress string, pairs []entity.PairData, chainID string, fetchedAt time.Time) (domain.Snapshot, error) {
	sameChain := BaseTokenPairs(FilterChain(pairs, chainID), tokenAddress)
	if len(sameChain) == 0 {
		return domain.Snapshot{}, fmt.Errorf("%w: token %s on chain %s", domain.ErrNoData, tokenAddress, chainID)
	}

	sort.SliceStable(sameChain, func(i, j int) bool {
		return liquidityUSD(sameChain[i]) > liquidityUSD(sameChain[j])
	})

	var firstErr error
	for _, p := range sameChain {
		s, err := ToSnapshot(tokenAddress, p, fetchedAt)
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return domain.Snapshot{}, firstErr
}

// GroupByBaseToken buckets pairs by lowercased base token address, as returned by the batch endpoint.
func GroupByBaseToken(pairs []entity.PairData) map[string][]entity.PairData {
	out := make(map[string][]entity.PairData)
	for _, p := range pairs {
		k := strings.ToLower(p.BaseToken.Address)
		out[k] = append(out[k], p)
	}
	return out
}
