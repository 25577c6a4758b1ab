package telegram

import (
	"fmt"
	"strings"

	"buybot/internal/domain/entity"
	"buybot/internal/pkg/utils"
)

var linkTargetReplacer = strings.NewReplacer(`\`, `\\`, `)`, `\)`)

var medals = []string{"🥇", "🥈", "🥉"} //nolint:gochecknoglobals

func esc(s string) string { return utils.EscapeMarkdown(s) }

func link(label, url string) string {
	return fmt.Sprintf("[%s](%s)", esc(label), linkTargetReplacer.Replace(url))
}

func code(s string) string {
	return "`" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "`", "\\`") + "`"
}

func symbolOf(sub entity.Subscription, snap entity.Snapshot) string {
	if snap.BaseSymbol != "" {
		return snap.BaseSymbol
	}
	if sub.Symbol != "" {
		return sub.Symbol
	}
	return entity.UnknownTokenLabel
}

// RenderAlert builds the MarkdownV2 alert body and its button row.
// explorerURL may be empty when the chain has no known explorer.
func RenderAlert(alert entity.BuyAlert, explorerURL string) (string, *InlineKeyboardMarkup) {
	ev := alert.Event
	snap := ev.Snapshot

	changeEmoji := "🟢"
	if snap.PriceChange24h < 0 {
		changeEmoji = "🔴"
	}
	quote := snap.QuoteSymbol
	if quote == "" {
		quote = "?"
	}
	price := "N/A"
	if snap.PriceUSD != "" {
		price = utils.FormatPriceUSD(snap.PriceUSD)
	}

	var b strings.Builder
	b.WriteString("🔔 *New Buy Alert\\!*\n\n")
	fmt.Fprintf(&b, "💎 *%s* / %s\n", esc(symbolOf(alert.Subscription, snap)), esc(quote))
	fmt.Fprintf(&b, "💰 *Buy Amount:* %s\n", esc(utils.FormatUSD(ev.EstimatedUSD)))
	if ev.BuyCount > 1 {
		fmt.Fprintf(&b, "🧮 *Buys:* %d totalling %s\n", ev.BuyCount, esc(utils.FormatUSD(ev.VolumeUSD)))
	}
	fmt.Fprintf(&b, "💵 *Price:* %s\n", esc(price))
	fmt.Fprintf(&b, "%s *24h Change:* %s\n\n", changeEmoji, esc(utils.FormatPercentage(snap.PriceChange24h, 2)))

	b.WriteString("📊 *Market Info:*\n")
	fmt.Fprintf(&b, "• Volume \\(24h\\): %s\n", esc(utils.FormatUSD(snap.Volume24h)))
	fmt.Fprintf(&b, "• Liquidity: %s\n", esc(utils.FormatUSD(snap.LiquidityUSD)))
	fmt.Fprintf(&b, "• Market Cap: %s\n\n", esc(utils.FormatUSD(snap.MarketCap)))

	if snap.PairAddress != "" {
		fmt.Fprintf(&b, "🏊 *Pool:* %s\n", code(utils.FormatAddress(snap.PairAddress)))
	}
	fmt.Fprintf(&b, "🪙 *Token:* %s\n", code(ev.TokenAddress))
	if snap.URL != "" {
		fmt.Fprintf(&b, "\n🔗 %s", link("View on DexScreener", snap.URL))
	}

	var row []InlineKeyboardButton
	if snap.URL != "" {
		row = append(row, InlineKeyboardButton{Text: "📊 DexScreener", URL: snap.URL})
	}
	if explorerURL != "" {
		row = append(row, InlineKeyboardButton{Text: "🔍 Explorer", URL: explorerURL})
	}
	if len(row) == 0 {
		return b.String(), nil
	}
	return b.String(), &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{row}}
}

// RenderLeaderboard lists top buyers with medals for the first three places.
func RenderLeaderboard(tokenAddress, symbol string, top []entity.BuyerStats, totalBuyers int, totalVolume float64) string {
	if symbol == "" {
		symbol = utils.FormatAddress(tokenAddress)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 *Top Buyers: %s*\n\n", esc(symbol))
	if len(top) == 0 {
		b.WriteString("No buys recorded yet\\.")
		return b.String()
	}
	for i, s := range top {
		place := fmt.Sprintf("%d\\.", i+1)
		if i < len(medals) {
			place = medals[i]
		}
		fmt.Fprintf(&b, "%s %s %s \\(%d buys, avg %s\\)\n",
			place, code(utils.FormatAddress(s.Address)), esc(utils.FormatUSD(s.TotalBought)),
			s.BuyCount, esc(utils.FormatUSD(s.AvgBuySize)))
	}
	fmt.Fprintf(&b, "\n👥 Buyers: %d\n💰 Total volume: %s", totalBuyers, esc(utils.FormatUSD(totalVolume)))
	return b.String()
}

// RenderTokenStats summarises a token's latest snapshot and leaderboard totals.
// snap may be nil when nothing is cached for the token.
func RenderTokenStats(tokenAddress string, snap *entity.Snapshot, totalBuyers int, totalVolume float64) string {
	var b strings.Builder
	if snap == nil {
		fmt.Fprintf(&b, "📈 *Stats* %s\n\nNo market data yet\\.\n", code(tokenAddress))
	} else {
		fmt.Fprintf(&b, "📈 *%s* / %s\n\n", esc(snap.BaseSymbol), esc(snap.QuoteSymbol))
		fmt.Fprintf(&b, "💵 *Price:* %s\n", esc(utils.FormatPriceUSD(snap.PriceUSD)))
		fmt.Fprintf(&b, "📉 *24h Change:* %s\n", esc(utils.FormatPercentage(snap.PriceChange24h, 2)))
		fmt.Fprintf(&b, "🕔 *5m:* %d buys / %d sells, %s volume\n", snap.Buys, snap.Sells, esc(utils.FormatUSD(snap.Volume)))
		fmt.Fprintf(&b, "💧 *Liquidity:* %s\n", esc(utils.FormatUSD(snap.LiquidityUSD)))
		fmt.Fprintf(&b, "🏦 *Market Cap:* %s\n", esc(utils.FormatUSD(snap.MarketCap)))
	}
	fmt.Fprintf(&b, "\n👥 *Buyers tracked:* %d\n💰 *Recorded volume:* %s", totalBuyers, esc(utils.FormatUSD(totalVolume)))
	return b.String()
}

// RenderTrackedList renders a chat's subscriptions with their effective thresholds.
func RenderTrackedList(subs []entity.Subscription, defaultMinUSD float64) string {
	if len(subs) == 0 {
		return "📭 No tokens are currently being tracked\\.\n\nUse /track \\<token\\_address\\> to start tracking\\."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Tracked Tokens \\(%d\\)*\n\n", len(subs))
	for i, s := range subs {
		symbol := s.Symbol
		if symbol == "" {
			symbol = entity.UnknownTokenLabel
		}
		fmt.Fprintf(&b, "%d\\. %s \\- %s \\(min %s\\)\n", i+1, esc(symbol), code(s.TokenAddress),
			esc(utils.FormatUSD(s.Threshold(defaultMinUSD))))
	}
	return b.String()
}
