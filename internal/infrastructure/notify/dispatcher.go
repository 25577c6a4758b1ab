package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"
	"buybot/internal/pkg/metrics"
)

const (
	defaultQueueSize   = 256
	defaultWorkers     = 4
	defaultSendTimeout = 10 * time.Second
)

// Config sizes the outbound queue and its worker pool.
type Config struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

type job struct {
	alert *entity.BuyAlert
	event *entity.BuyEvent
}

// Dispatcher is a bounded fire-and-forget queue in front of the alert sink and the event sinks.
// Enqueueing never blocks: a full queue drops the job. Delivery is attempted once.
type Dispatcher struct {
	alerts      port.AlertSink
	sinks       []port.EventSink
	queue       chan job
	workers     int
	sendTimeout time.Duration
	logger      port.Logger
	metrics     *metrics.Metrics

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher. alerts may be nil when no chat transport is configured.
func NewDispatcher(cfg Config, alerts port.AlertSink, sinks []port.EventSink, l port.Logger, m *metrics.Metrics) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	return &Dispatcher{
		alerts:      alerts,
		sinks:       sinks,
		queue:       make(chan job, cfg.QueueSize),
		workers:     cfg.Workers,
		sendTimeout: cfg.SendTimeout,
		logger:      l,
		metrics:     metrics.OrNop(m),
	}
}

// Notify queues alert for delivery to its subscriber.
func (d *Dispatcher) Notify(alert entity.BuyAlert) bool {
	if d.enqueue(job{alert: &alert}) {
		return true
	}
	d.metrics.AlertsTotal.WithLabelValues("dropped").Inc()
	d.logger.Warn("Alert dropped, outbound queue full or closed",
		"token", alert.Event.TokenAddress, "chat_id", alert.Subscription.ChatID)
	return false
}

// Publish queues event for every event sink.
func (d *Dispatcher) Publish(event entity.BuyEvent) bool {
	if len(d.sinks) == 0 {
		return true
	}
	if d.enqueue(job{event: &event}) {
		return true
	}
	for _, s := range d.sinks {
		d.metrics.EventsTotal.WithLabelValues(s.Name(), "dropped").Inc()
	}
	d.logger.Warn("Buy event dropped, outbound queue full or closed", "token", event.TokenAddress, "event_id", event.ID)
	return false
}

func (d *Dispatcher) enqueue(j job) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- j:
		d.metrics.QueueDepth.Set(float64(len(d.queue)))
		return true
	default:
		return false
	}
}

// Start launches the workers. Jobs queued before Start are delivered once it runs.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("Notification dispatcher started", "workers", d.workers, "queue_size", cap(d.queue))
}

// Stop closes the queue and waits for workers to drain it, or for ctx.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.logger.Info("Notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher stop: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.metrics.QueueDepth.Set(float64(len(d.queue)))
		switch {
		case j.alert != nil:
			d.deliverAlert(*j.alert)
		case j.event != nil:
			d.deliverEvent(*j.event)
		}
	}
}

func (d *Dispatcher) deliverAlert(alert entity.BuyAlert) {
	if d.alerts == nil {
		d.metrics.AlertsTotal.WithLabelValues("discarded").Inc()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()
	if err := d.alerts.SendAlert(ctx, alert); err != nil {
		d.metrics.AlertsTotal.WithLabelValues("failed").Inc()
		d.logger.Warn("Alert delivery failed",
			"token", alert.Event.TokenAddress,
			"chat_id", alert.Subscription.ChatID,
			"error", fmt.Errorf("%w: %w", entity.ErrDeliveryFailure, err))
		return
	}
	d.metrics.AlertsTotal.WithLabelValues("sent").Inc()
}

func (d *Dispatcher) deliverEvent(event entity.BuyEvent) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := sink.PublishEvent(ctx, event)
		cancel()
		if err != nil {
			d.metrics.EventsTotal.WithLabelValues(sink.Name(), "failed").Inc()
			d.logger.Warn("Buy event publish failed",
				"sink", sink.Name(),
				"event_id", event.ID,
				"error", fmt.Errorf("%w: %w", entity.ErrDeliveryFailure, err))
			continue
		}
		d.metrics.EventsTotal.WithLabelValues(sink.Name(), "sent").Inc()
	}
}

var _ port.Dispatcher = (*Dispatcher)(nil)
