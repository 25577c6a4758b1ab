package telegram

import (
	"context"
	"errors"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"
)

// ExplorerLinker builds block explorer links for a chain.
type ExplorerLinker interface {
	TokenExplorerURL(chainID, tokenAddress string) string
}

// sender is the part of Client the notifier and command handler use.
type sender interface {
	SendMessage(ctx context.Context, req SendMessageRequest) error
	SendPhoto(ctx context.Context, req SendPhotoRequest) error
}

// Notifier delivers buy alerts to Telegram chats.
type Notifier struct {
	client   sender
	explorer ExplorerLinker
	logger   port.Logger
}

// NewNotifier creates an alert sink. explorer may be nil.
func NewNotifier(client *Client, explorer ExplorerLinker, l port.Logger) *Notifier {
	return newNotifier(client, explorer, l)
}

func newNotifier(client sender, explorer ExplorerLinker, l port.Logger) *Notifier {
	return &Notifier{client: client, explorer: explorer, logger: l}
}

// SendAlert renders alert and sends it as a photo when the pair has an image.
// A rejected photo falls back to a plain message.
func (n *Notifier) SendAlert(ctx context.Context, alert entity.BuyAlert) error {
	explorerURL := ""
	if n.explorer != nil {
		explorerURL = n.explorer.TokenExplorerURL(alert.Event.Snapshot.ChainID, alert.Event.TokenAddress)
	}
	text, keyboard := RenderAlert(alert, explorerURL)
	chatID := alert.Subscription.ChatID

	if img := alert.Event.Snapshot.ImageURL; img != "" {
		err := n.client.SendPhoto(ctx, SendPhotoRequest{
			ChatID:      chatID,
			Photo:       img,
			Caption:     text,
			ParseMode:   parseModeV2,
			ReplyMarkup: keyboard,
		})
		var apiErr *APIError
		if err == nil || !errors.As(err, &apiErr) || apiErr.Code != 400 {
			return err
		}
		n.logger.Debug("Photo rejected, sending text alert", "chat_id", chatID, "error", err)
	}

	return n.client.SendMessage(ctx, SendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   parseModeV2,
		ReplyMarkup: keyboard,
	})
}

var _ port.AlertSink = (*Notifier)(nil)
