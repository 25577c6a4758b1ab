package telegram

import (
	"testing"
	"time"

	"buybot/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAlert() entity.BuyAlert {
	return entity.BuyAlert{
		Subscription: entity.Subscription{ChatID: 7, TokenAddress: "0x00000000000000000000000000000000000000aa", Symbol: entity.UnknownTokenLabel},
		Event: entity.BuyEvent{
			ID:           "ev-1",
			TokenAddress: "0x00000000000000000000000000000000000000aa",
			Buyer:        "0x1111111111111111111111111111111111111111",
			BuyCount:     3,
			VolumeUSD:    600,
			EstimatedUSD: 200,
			DetectedAt:   time.Unix(1700000000, 0),
			Snapshot: entity.Snapshot{
				ChainID:        "monad",
				PairAddress:    "0x1111111111111111111111111111111111111111",
				URL:            "https://dexscreener.com/monad/0x1111111111111111111111111111111111111111",
				BaseSymbol:     "PFROG",
				QuoteSymbol:    "WMON",
				PriceUSD:       "0.00001234",
				PriceChange24h: -3.5,
				Volume24h:      1_250_000,
				LiquidityUSD:   45_000,
				MarketCap:      2_000_000,
			},
		},
	}
}

func TestRenderAlert(t *testing.T) {
	text, kb := RenderAlert(sampleAlert(), "https://monadscan.com/token/0xaa")

	assert.Contains(t, text, "*New Buy Alert\\!*")
	assert.Contains(t, text, "💎 *PFROG* / WMON")
	assert.Contains(t, text, "*Buy Amount:* $200\\.00")
	assert.Contains(t, text, "*Buys:* 3 totalling $600\\.00")
	assert.Contains(t, text, "*Price:* $0\\.00001234")
	assert.Contains(t, text, "🔴 *24h Change:* \\-3\\.50%")
	assert.Contains(t, text, "Volume \\(24h\\): $1\\.25M")
	assert.Contains(t, text, "Liquidity: $45\\.00K")
	assert.Contains(t, text, "`0x1111...1111`")
	assert.Contains(t, text, "[View on DexScreener](https://dexscreener.com/monad/0x1111111111111111111111111111111111111111)")

	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Len(t, kb.InlineKeyboard[0], 2)
}

func TestRenderAlert_Minimal(t *testing.T) {
	alert := entity.BuyAlert{Event: entity.BuyEvent{TokenAddress: "0xaa", BuyCount: 1, EstimatedUSD: 150}}
	text, kb := RenderAlert(alert, "")
	assert.Nil(t, kb)
	assert.Contains(t, text, "*Unknown* / ?")
	assert.Contains(t, text, "*Price:* N/A")
	assert.Contains(t, text, "🟢")
	assert.NotContains(t, text, "*Buys:*")
}

func TestRenderLeaderboard(t *testing.T) {
	top := []entity.BuyerStats{
		{Address: "0x1111111111111111111111111111111111111111", TotalBought: 500, BuyCount: 2, AvgBuySize: 250},
		{Address: "0x2222222222222222222222222222222222222222", TotalBought: 300, BuyCount: 1, AvgBuySize: 300},
		{Address: "0x3333333333333333333333333333333333333333", TotalBought: 200, BuyCount: 4, AvgBuySize: 50},
		{Address: "0x4444444444444444444444444444444444444444", TotalBought: 100, BuyCount: 1, AvgBuySize: 100},
	}
	text := RenderLeaderboard("0xaa", "PFROG", top, 4, 1100)
	assert.Contains(t, text, "🏆 *Top Buyers: PFROG*")
	assert.Contains(t, text, "🥇 `0x1111...1111` $500\\.00 \\(2 buys, avg $250\\.00\\)")
	assert.Contains(t, text, "🥉 `0x3333...3333`")
	assert.Contains(t, text, "4\\. `0x4444...4444`")
	assert.Contains(t, text, "💰 Total volume: $1\\.10K")

	assert.Contains(t, RenderLeaderboard("0x00000000000000000000000000000000000000aa", "", nil, 0, 0), "No buys recorded yet")
}

func TestRenderTrackedList(t *testing.T) {
	assert.Contains(t, RenderTrackedList(nil, 100), "No tokens are currently being tracked")

	text := RenderTrackedList([]entity.Subscription{
		{TokenAddress: "0xaa", Symbol: "PFROG", MinBuyAmountUSD: 250},
		{TokenAddress: "0xbb"},
	}, 100)
	assert.Contains(t, text, "*Tracked Tokens \\(2\\)*")
	assert.Contains(t, text, "1\\. PFROG \\- `0xaa` \\(min $250\\.00\\)")
	assert.Contains(t, text, "2\\. Unknown \\- `0xbb` \\(min $100\\.00\\)")
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		in       string
		cmd, arg string
		ok       bool
	}{
		{"/track 0xabc", "track", "0xabc", true},
		{"  /Track@BuyBot   0xabc  ", "track", "0xabc", true},
		{"/list", "list", "", true},
		{"hello", "", "", false},
		{"/", "", "", false},
	}
	for _, tc := range cases {
		cmd, arg, ok := ParseCommand(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.cmd, cmd, tc.in)
		assert.Equal(t, tc.arg, arg, tc.in)
	}
}
