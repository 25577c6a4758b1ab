package service

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"
	"buybot/internal/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// MonitorConfig bounds one check-all-tokens batch.
type MonitorConfig struct {
	MaxConcurrentChecks int
	CheckTimeout        time.Duration
	PrefetchBatch       bool // warm the snapshot cache through the batch endpoint first
}

// BatchReport summarizes one batch.
type BatchReport struct {
	Tokens     int           `json:"tokens"`
	Seeded     int           `json:"seeded"`
	Events     int           `json:"events"`
	Alerts     int           `json:"alerts"`
	Dropped    int           `json:"dropped"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"durationNs"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// MonitorService drives one batch: every tracked token is checked once, concurrently across tokens.
// A failure in one token is logged and counted; it never affects the others.
type MonitorService struct {
	registry    port.SubscriptionRegistry
	snapshots   port.SnapshotProvider
	detector    *BuyDetector
	leaderboard port.Leaderboard
	dispatcher  port.Dispatcher
	cfg         MonitorConfig
	logger      port.Logger
	metrics     *metrics.Metrics

	last atomic.Pointer[BatchReport]
}

// NewMonitorService wires the batch driver.
func NewMonitorService(
	registry port.SubscriptionRegistry,
	snapshots port.SnapshotProvider,
	detector *BuyDetector,
	leaderboard port.Leaderboard,
	dispatcher port.Dispatcher,
	cfg MonitorConfig,
	l port.Logger,
	m *metrics.Metrics,
) *MonitorService {
	if cfg.MaxConcurrentChecks <= 0 {
		cfg.MaxConcurrentChecks = 1
	}
	return &MonitorService{
		registry:    registry,
		snapshots:   snapshots,
		detector:    detector,
		leaderboard: leaderboard,
		dispatcher:  dispatcher,
		cfg:         cfg,
		logger:      l,
		metrics:     metrics.OrNop(m),
	}
}

// RunBatch checks every tracked token once. The subscription set is read once at the start.
func (s *MonitorService) RunBatch(ctx context.Context) BatchReport {
	start := time.Now()
	grouped := s.registry.Snapshot()
	if len(grouped) == 0 {
		report := BatchReport{FinishedAt: time.Now()}
		s.last.Store(&report)
		return report
	}

	tokens := make([]string, 0, len(grouped))
	for token := range grouped {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	if s.cfg.PrefetchBatch && len(tokens) > 1 {
		s.snapshots.Warm(ctx, tokens)
	}

	var seeded, events, alerts, dropped, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrentChecks)
	for _, token := range tokens {
		token := token
		subs := grouped[token]
		g.Go(func() error {
			res, err := s.checkToken(ctx, token, subs)
			if err != nil {
				failed.Add(1)
				s.metrics.TokenCheckErrors.Inc()
				s.logger.Warn("Token check skipped", "token", token, "error", err)
				return nil
			}
			if res.Seeded {
				seeded.Add(1)
			}
			if res.Event != nil {
				events.Add(1)
			}
			alerts.Add(int64(len(res.Alerts)))
			dropped.Add(int64(res.dropped))
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{
		Tokens:   len(tokens),
		Seeded:   int(seeded.Load()),
		Events:   int(events.Load()),
		Alerts:   int(alerts.Load()),
		Dropped:  int(dropped.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
	report.FinishedAt = start.Add(report.Duration)
	s.last.Store(&report)
	s.metrics.BatchDuration.Observe(report.Duration.Seconds())
	s.logger.Debug("Batch complete",
		"tokens", report.Tokens, "events", report.Events, "alerts", report.Alerts,
		"failed", report.Failed, "duration", report.Duration.String())
	return report
}

// LastReport returns the most recent batch report, if any batch has run.
func (s *MonitorService) LastReport() (BatchReport, bool) {
	r := s.last.Load()
	if r == nil {
		return BatchReport{}, false
	}
	return *r, true
}

type tokenOutcome struct {
	CheckResult
	dropped int
}

// checkToken runs one token under its own timeout and turns a panic into an error.
func (s *MonitorService) checkToken(ctx context.Context, token string, subs []entity.Subscription) (out tokenOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while checking %s: %v", token, r)
		}
	}()

	if s.cfg.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CheckTimeout)
		defer cancel()
	}

	res, err := s.detector.Check(ctx, token, subs)
	if err != nil {
		return tokenOutcome{}, err
	}
	out.CheckResult = res

	s.backfillTokenInfo(token, subs, res.Snapshot)

	if res.Event == nil {
		return out, nil
	}

	ev := *res.Event
	if _, err := s.leaderboard.RecordBuy(token, ev.Buyer, ev.EstimatedUSD); err != nil {
		s.logger.Warn("Failed to record buy", "token", token, "buyer", ev.Buyer, "error", err)
	}
	if !s.dispatcher.Publish(ev) {
		out.dropped++
	}
	for _, a := range res.Alerts {
		if !s.dispatcher.Notify(a) {
			out.dropped++
		}
	}
	return out, nil
}

func (s *MonitorService) backfillTokenInfo(token string, subs []entity.Subscription, snap entity.Snapshot) {
	if snap.BaseSymbol == "" {
		return
	}
	for _, sub := range subs {
		if sub.Symbol == entity.UnknownTokenLabel || sub.Symbol == "" {
			s.registry.UpdateTokenInfo(token, snap.BaseSymbol, snap.BaseName)
			return
		}
	}
}
