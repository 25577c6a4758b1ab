package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"buybot/internal/app/port"
	"buybot/internal/domain/entity"
	"buybot/internal/pkg/metrics"

	"github.com/google/uuid"
)

// CheckResult is the outcome of one detector check of one token.
type CheckResult struct {
	Snapshot entity.Snapshot
	Seeded   bool             // first observation: baseline stored, nothing emitted
	Event    *entity.BuyEvent // nil when the delta did not indicate new buys
	Alerts   []entity.BuyAlert
}

// Delta is the change in trailing-window counters between a baseline and a snapshot.
type Delta struct {
	Buys   int
	Volume float64
}

// HasBuys reports whether the delta indicates new buys. Decreases are window rollovers and never fire.
func (d Delta) HasBuys() bool {
	return d.Buys > 0 && d.Volume > 0
}

// EstimatedSize is the average USD size per new buy. Only meaningful when HasBuys is true.
func (d Delta) EstimatedSize() float64 {
	return d.Volume / float64(d.Buys)
}

// Diff computes the delta of cur against prev.
func Diff(prev entity.TokenMonitorState, cur entity.Snapshot) Delta {
	return Delta{
		Buys:   cur.Buys - prev.LastBuyCount,
		Volume: cur.Volume - prev.LastVolume,
	}
}

// BuyDetector turns successive snapshots of a token into buy events.
// Checks of the same token are serialized; different tokens proceed independently.
type BuyDetector struct {
	snapshots     port.SnapshotProvider
	states        *TokenStateStore
	defaultMinUSD float64
	logger        port.Logger
	metrics       *metrics.Metrics
	now           func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewBuyDetector creates a detector. defaultMinUSD applies to subscriptions without their own threshold.
func NewBuyDetector(snapshots port.SnapshotProvider, states *TokenStateStore, defaultMinUSD float64, l port.Logger, m *metrics.Metrics) *BuyDetector {
	return &BuyDetector{
		snapshots:     snapshots,
		states:        states,
		defaultMinUSD: defaultMinUSD,
		logger:        l,
		metrics:       metrics.OrNop(m),
		now:           time.Now,
		locks:         make(map[string]*sync.Mutex),
	}
}

func (d *BuyDetector) tokenLock(token string) *sync.Mutex {
	d.locksMu.Lock()
	defer d.locksMu.Unlock()
	mu, ok := d.locks[token]
	if !ok {
		mu = &sync.Mutex{}
		d.locks[token] = mu
	}
	return mu
}

// Check fetches the current snapshot of tokenAddress and diffs it against the stored baseline.
// A missing snapshot returns ErrNoData and leaves the baseline untouched.
func (d *BuyDetector) Check(ctx context.Context, tokenAddress string, subs []entity.Subscription) (CheckResult, error) {
	token := strings.ToLower(tokenAddress)
	mu := d.tokenLock(token)
	mu.Lock()
	defer mu.Unlock()

	snap, ok := d.snapshots.Fetch(ctx, token)
	if !ok {
		return CheckResult{}, fmt.Errorf("%w: token %s", entity.ErrNoData, token)
	}
	return d.observe(token, snap, subs), nil
}

// observe applies one snapshot to the token's state machine. Callers hold the token lock.
func (d *BuyDetector) observe(token string, snap entity.Snapshot, subs []entity.Subscription) CheckResult {
	now := d.now()
	res := CheckResult{Snapshot: snap}

	prev, tracking := d.states.State(token)
	next := entity.StateFromSnapshot(snap, now)
	next.TokenAddress = token
	d.states.Put(next)

	if !tracking {
		res.Seeded = true
		d.logger.Debug("Seeded token baseline", "token", token, "buys", snap.Buys, "volume", snap.Volume)
		return res
	}
	// counters of different pools are not comparable
	if prev.PairAddress != "" && !strings.EqualFold(prev.PairAddress, snap.PairAddress) {
		res.Seeded = true
		d.logger.Info("Observed pool changed, baseline reseeded",
			"token", token, "previousPool", prev.PairAddress, "pool", snap.PairAddress)
		return res
	}

	delta := Diff(prev, snap)
	if !delta.HasBuys() {
		if delta.Buys < 0 || delta.Volume < 0 {
			d.logger.Debug("Trailing window decreased, baseline reset",
				"token", token, "deltaBuys", delta.Buys, "deltaVolume", delta.Volume)
		}
		return res
	}

	est := delta.EstimatedSize()
	event := entity.BuyEvent{
		ID:           uuid.NewString(),
		TokenAddress: token,
		Buyer:        snap.PairAddress,
		BuyCount:     delta.Buys,
		VolumeUSD:    delta.Volume,
		EstimatedUSD: est,
		DetectedAt:   now,
		Snapshot:     snap,
	}
	res.Event = &event
	d.metrics.BuyEventsDetected.Inc()

	for _, sub := range subs {
		if !sub.Qualifies(est, d.defaultMinUSD) {
			continue
		}
		res.Alerts = append(res.Alerts, entity.BuyAlert{Subscription: sub, Event: event})
	}

	d.logger.Info("Buy detected",
		"token", token, "buys", delta.Buys, "volume", delta.Volume,
		"estimatedUsd", est, "alerts", len(res.Alerts), "subscribers", len(subs))
	return res
}

// State implements port.MonitorStateReader.
func (d *BuyDetector) State(tokenAddress string) (entity.TokenMonitorState, bool) {
	return d.states.State(tokenAddress)
}

// States implements port.MonitorStateReader.
func (d *BuyDetector) States() []entity.TokenMonitorState {
	return d.states.States()
}

// Forget drops the baseline of a token so its next observation seeds again.
// The per-token lock is kept so an in-flight check cannot race a new one.
func (d *BuyDetector) Forget(tokenAddress string) bool {
	token := strings.ToLower(tokenAddress)
	mu := d.tokenLock(token)
	mu.Lock()
	defer mu.Unlock()

	if _, ok := d.states.State(token); !ok {
		return false
	}
	d.states.Delete(token)
	return true
}
