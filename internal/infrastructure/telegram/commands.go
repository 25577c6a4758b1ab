package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"
	"buybot/internal/pkg/metrics"
	"buybot/internal/pkg/utils"
)

const resolveTimeout = 5 * time.Second

const startText = "🤖 *Welcome to BuyBot\\!*\n\n" +
	"Track buy notifications for tokens on %s\\.\n\n" +
	"*Commands:*\n" +
	"/track \\<token\\_address\\> \\- Start tracking a token\n" +
	"/untrack \\<token\\_address\\> \\- Stop tracking a token\n" +
	"/list \\- Show tracked tokens\n" +
	"/setmin \\<amount\\> \\- Set minimum buy amount in USD\n" +
	"/leaderboard \\<token\\_address\\> \\- Top buyers\n" +
	"/stats \\<token\\_address\\> \\- Market and buyer stats\n" +
	"/help \\- Show this help message"

const helpText = "*BuyBot Commands*\n\n" +
	"📊 *Tracking*\n" +
	"/track \\<token\\_address\\> \\- Start tracking token buys\n" +
	"/untrack \\<token\\_address\\> \\- Stop tracking a token\n" +
	"/list \\- Show all tracked tokens\n\n" +
	"⚙️ *Settings*\n" +
	"/setmin \\<amount\\> \\- Set minimum buy notification \\(USD\\)\n\n" +
	"🏆 *Competition*\n" +
	"/leaderboard \\<token\\_address\\> \\- Top buyers of a token\n" +
	"/stats \\<token\\_address\\> \\- Price, 5m activity and buyer totals\n\n" +
	"💡 Buy sizes are estimated from 5 minute aggregates, so bursts of buys are averaged\\."

// CommandDeps are the services the bot commands operate on.
type CommandDeps struct {
	Registry      port.SubscriptionRegistry
	Leaderboard   port.Leaderboard
	Snapshots     port.SnapshotProvider
	Resolver      port.TokenMetadataResolver // optional
	DefaultMinUSD float64
	ChainName     string
}

// CommandHandler turns chat commands into registry and leaderboard calls.
type CommandHandler struct {
	deps    CommandDeps
	client  sender
	logger  port.Logger
	metrics *metrics.Metrics
}

// NewCommandHandler creates a handler replying through client.
func NewCommandHandler(client *Client, deps CommandDeps, l port.Logger, m *metrics.Metrics) *CommandHandler {
	return newCommandHandler(client, deps, l, m)
}

func newCommandHandler(client sender, deps CommandDeps, l port.Logger, m *metrics.Metrics) *CommandHandler {
	if deps.ChainName == "" {
		deps.ChainName = "Monad"
	}
	return &CommandHandler{deps: deps, client: client, logger: l, metrics: metrics.OrNop(m)}
}

// ParseCommand splits "/cmd@bot arg" into "cmd" and "arg". ok is false for non-command text.
func ParseCommand(text string) (cmd, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(strings.TrimPrefix(head, "/"), "@")
	return strings.ToLower(cmd), strings.TrimSpace(rest), cmd != ""
}

// HandleUpdate processes one update. Non-command messages are ignored.
func (h *CommandHandler) HandleUpdate(ctx context.Context, u Update) error {
	if u.Message == nil {
		return nil
	}
	cmd, arg, ok := ParseCommand(u.Message.Text)
	if !ok {
		return nil
	}
	chatID := u.Message.Chat.ID

	var reply string
	switch cmd {
	case "start":
		reply = fmt.Sprintf(startText, esc(h.deps.ChainName))
	case "help":
		reply = helpText
	case "track":
		reply = h.track(ctx, chatID, arg)
	case "untrack":
		reply = h.untrack(chatID, arg)
	case "list":
		reply = RenderTrackedList(h.deps.Registry.ListTracked(chatID), h.deps.DefaultMinUSD)
	case "setmin":
		reply = h.setMin(chatID, arg)
	case "leaderboard":
		reply = h.leaderboard(chatID, arg)
	case "stats":
		reply = h.stats(ctx, arg)
	default:
		return nil
	}
	h.metrics.BotCommands.WithLabelValues(cmd).Inc()
	h.logger.Debug("Handled bot command", "command", cmd, "chat_id", chatID)

	return h.client.SendMessage(ctx, SendMessageRequest{
		ChatID:                chatID,
		Text:                  reply,
		ParseMode:             parseModeV2,
		DisableWebPagePreview: true,
	})
}

func (h *CommandHandler) track(ctx context.Context, chatID int64, arg string) string {
	if arg == "" {
		return "❌ Please provide a token address\\.\nUsage: /track \\<token\\_address\\>"
	}
	sub, err := h.deps.Registry.Track(arg, chatID, 0)
	switch {
	case errors.Is(err, entity.ErrInvalidAddress):
		return "❌ That does not look like a token address\\."
	case errors.Is(err, entity.ErrAlreadyTracked):
		return "⚠️ This token is already being tracked\\."
	case err != nil:
		h.logger.Error("Track failed", "chat_id", chatID, "token", arg, "error", err)
		return "❌ Could not track this token, please try again\\."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Now tracking: %s\n", code(sub.TokenAddress))
	if info, ok := h.resolve(ctx, sub.TokenAddress); ok {
		if info.Symbol != "" {
			h.deps.Registry.UpdateTokenInfo(sub.TokenAddress, info.Symbol, info.Name)
		}
		fmt.Fprintf(&b, "🪙 %s \\(%s\\)", esc(info.Name), esc(info.Symbol))
		if info.TotalSupply != "" {
			fmt.Fprintf(&b, ", supply %s", esc(info.TotalSupply))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nYou'll receive notifications for buys over %s", esc(utils.FormatUSD(sub.Threshold(h.deps.DefaultMinUSD))))
	return b.String()
}

func (h *CommandHandler) resolve(ctx context.Context, token string) (entity.TokenInfo, bool) {
	if h.deps.Resolver == nil {
		return entity.TokenInfo{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()
	info, err := h.deps.Resolver.ResolveToken(ctx, token)
	if err != nil {
		h.logger.Warn("Token metadata unavailable", "token", token, "error", err)
		return entity.TokenInfo{}, false
	}
	return info, true
}

func (h *CommandHandler) untrack(chatID int64, arg string) string {
	if arg == "" {
		return "❌ Please provide a token address\\.\nUsage: /untrack \\<token\\_address\\>"
	}
	err := h.deps.Registry.Untrack(arg, chatID)
	switch {
	case errors.Is(err, entity.ErrInvalidAddress):
		return "❌ That does not look like a token address\\."
	case errors.Is(err, entity.ErrNotTracked):
		return "⚠️ This token is not being tracked\\."
	case err != nil:
		h.logger.Error("Untrack failed", "chat_id", chatID, "token", arg, "error", err)
		return "❌ Could not untrack this token, please try again\\."
	}
	return fmt.Sprintf("✅ Stopped tracking: %s", code(strings.ToLower(strings.TrimSpace(arg))))
}

func (h *CommandHandler) setMin(chatID int64, arg string) string {
	if arg == "" {
		return "❌ Please provide an amount\\.\nUsage: /setmin \\<amount\\>"
	}
	amount, err := strconv.ParseFloat(strings.TrimPrefix(arg, "$"), 64)
	if err != nil || amount < 0 {
		return "❌ Please provide a valid positive number\\."
	}
	n, err := h.deps.Registry.SetMinBuyAmount(chatID, amount)
	if err != nil {
		return "❌ Please provide a valid positive number\\."
	}
	return fmt.Sprintf("✅ Minimum buy notification set to %s for %d token\\(s\\)", esc(fmt.Sprintf("$%.2f", amount)), n)
}

func (h *CommandHandler) tokenArg(arg, usage string) (string, string) {
	if arg == "" {
		return "", "❌ Please provide a token address\\.\nUsage: " + usage
	}
	token, ok := utils.NormalizeAddress(arg)
	if !ok {
		return "", "❌ That does not look like a token address\\."
	}
	return token, ""
}

func (h *CommandHandler) leaderboard(chatID int64, arg string) string {
	token, problem := h.tokenArg(arg, "/leaderboard \\<token\\_address\\>")
	if problem != "" {
		return problem
	}
	symbol := ""
	if snap, ok := h.deps.Snapshots.Peek(token); ok {
		symbol = snap.BaseSymbol
	} else {
		for _, s := range h.deps.Registry.ListTracked(chatID) {
			if s.TokenAddress == token && s.Symbol != entity.UnknownTokenLabel {
				symbol = s.Symbol
			}
		}
	}
	lb := h.deps.Leaderboard
	return RenderLeaderboard(token, symbol, lb.GetTopBuyers(token, 0), lb.GetTotalBuyers(token), lb.GetTotalVolume(token))
}

func (h *CommandHandler) stats(ctx context.Context, arg string) string {
	token, problem := h.tokenArg(arg, "/stats \\<token\\_address\\>")
	if problem != "" {
		return problem
	}
	var snap *entity.Snapshot
	if s, ok := h.deps.Snapshots.Fetch(ctx, token); ok {
		snap = &s
	}
	lb := h.deps.Leaderboard
	return RenderTokenStats(token, snap, lb.GetTotalBuyers(token), lb.GetTotalVolume(token))
}
