package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"buybot/internal/app/port"
)

const (
	defaultLongPollTimeout = 30
	maxPollBackoff         = 30 * time.Second
)

type updateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error)
}

type updateHandler interface {
	HandleUpdate(ctx context.Context, u Update) error
}

// Poller long-polls getUpdates and feeds every update to the command handler in order.
type Poller struct {
	source         updateSource
	handler        updateHandler
	timeoutSeconds int
	logger         port.Logger

	mu     sync.Mutex
	offset int64
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller. timeoutSeconds <= 0 uses the 30s default.
func NewPoller(client *Client, handler *CommandHandler, timeoutSeconds int, l port.Logger) *Poller {
	return newPoller(client, handler, timeoutSeconds, l)
}

func newPoller(source updateSource, handler updateHandler, timeoutSeconds int, l port.Logger) *Poller {
	if timeoutSeconds <= 0 {
		timeoutSeconds = defaultLongPollTimeout
	}
	return &Poller{source: source, handler: handler, timeoutSeconds: timeoutSeconds, logger: l}
}

// Start begins polling in the background.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return fmt.Errorf("polling already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.pollLoop(ctx, p.done)
	p.logger.Info("Starting Telegram bot polling", "timeout_seconds", p.timeoutSeconds)
	return nil
}

// Stop cancels polling and waits for the loop to exit, or for ctx.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		p.logger.Info("Telegram bot polling stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("poller stop: %w", ctx.Err())
	}
}

func (p *Poller) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	backoff := time.Second
	for ctx.Err() == nil {
		if err := p.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("Error fetching updates", "error", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxPollBackoff)
			continue
		}
		backoff = time.Second
	}
}

// pollOnce fetches one batch and advances the offset past every update in it.
// Handler failures are logged; the update is not redelivered.
func (p *Poller) pollOnce(ctx context.Context) error {
	updates, err := p.source.GetUpdates(ctx, p.offset, p.timeoutSeconds)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if err := p.handler.HandleUpdate(ctx, u); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("Failed to handle update", "update_id", u.UpdateID, "error", err)
		}
		p.offset = u.UpdateID + 1
	}
	return nil
}
