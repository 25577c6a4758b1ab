package service

import (
	"context"
	"testing"
	"time"

	"buybot/internal/domain/entity"
	"buybot/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secondToken = "0x00000000000000000000000000000000000000bb"

type monitorFixture struct {
	registry    *subscriptionRegistryImpl
	snaps       *scriptedSnapshots
	leaderboard *leaderboardImpl
	dispatcher  *recordingDispatcher
	monitor     *MonitorService
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		registry:    NewSubscriptionRegistry(100, logger.Nop(), nil).(*subscriptionRegistryImpl),
		snaps:       newScriptedSnapshots(),
		leaderboard: newTestLeaderboard(newManualClock()),
		dispatcher:  &recordingDispatcher{},
	}
	detector := NewBuyDetector(f.snaps, NewTokenStateStore(), 100, logger.Nop(), nil)
	f.monitor = NewMonitorService(f.registry, f.snaps, detector, f.leaderboard, f.dispatcher,
		MonitorConfig{MaxConcurrentChecks: 4, CheckTimeout: time.Second, PrefetchBatch: true}, logger.Nop(), nil)
	return f
}

func TestMonitor_EmptyRegistry(t *testing.T) {
	f := newMonitorFixture(t)
	_, ok := f.monitor.LastReport()
	assert.False(t, ok)

	report := f.monitor.RunBatch(context.Background())
	assert.Zero(t, report.Tokens)
	assert.False(t, report.FinishedAt.IsZero())

	last, ok := f.monitor.LastReport()
	assert.True(t, ok)
	assert.Equal(t, report, last)
}

func TestMonitor_DetectsRecordsAndNotifies(t *testing.T) {
	f := newMonitorFixture(t)
	_, err := f.registry.Track(testToken, 1, 150)
	require.NoError(t, err)
	_, err = f.registry.Track(testToken, 2, 250)
	require.NoError(t, err)

	f.snaps.push(testToken, 10, 1000)
	f.snaps.push(testToken, 13, 1600)

	first := f.monitor.RunBatch(context.Background())
	assert.Equal(t, 1, first.Seeded)
	assert.Zero(t, first.Events)

	second := f.monitor.RunBatch(context.Background())
	assert.Equal(t, 1, second.Events)
	assert.Equal(t, 1, second.Alerts)

	require.Len(t, f.dispatcher.alerts, 1)
	assert.Equal(t, int64(1), f.dispatcher.alerts[0].Subscription.ChatID)
	require.Len(t, f.dispatcher.events, 1)

	// recorded once per detection, not once per subscriber
	st, ok := f.leaderboard.GetBuyerStats(testToken, "0xpool")
	require.True(t, ok)
	assert.Equal(t, 1, st.BuyCount)
	assert.Equal(t, 200.0, st.TotalBought)
}

func TestMonitor_BackfillsUnknownSymbol(t *testing.T) {
	f := newMonitorFixture(t)
	_, _ = f.registry.Track(testToken, 1, 0)
	f.snaps.push(testToken, 1, 1)

	f.monitor.RunBatch(context.Background())
	sub := f.registry.ListTracked(1)[0]
	assert.Equal(t, "TT", sub.Symbol)
	assert.Equal(t, "Test Token", sub.Name)
}

func TestMonitor_OneTokenFailureDoesNotAffectOthers(t *testing.T) {
	f := newMonitorFixture(t)
	_, _ = f.registry.Track(testToken, 1, 1)
	_, _ = f.registry.Track(secondToken, 1, 1)

	// only the second token has data; the first is skipped each cycle
	f.snaps.push(secondToken, 1, 100)
	f.snaps.push(secondToken, 2, 300)

	r1 := f.monitor.RunBatch(context.Background())
	assert.Equal(t, 2, r1.Tokens)
	assert.Equal(t, 1, r1.Failed)
	assert.Equal(t, 1, r1.Seeded)

	r2 := f.monitor.RunBatch(context.Background())
	assert.Equal(t, 1, r2.Failed)
	assert.Equal(t, 1, r2.Events)
	assert.Equal(t, 1, r2.Alerts)
}

func TestMonitor_DroppedDeliveriesAreCounted(t *testing.T) {
	f := newMonitorFixture(t)
	f.dispatcher.reject = true
	_, _ = f.registry.Track(testToken, 1, 1)
	f.snaps.push(testToken, 1, 100)
	f.snaps.push(testToken, 2, 300)

	f.monitor.RunBatch(context.Background())
	r := f.monitor.RunBatch(context.Background())
	assert.Equal(t, 2, r.Dropped)
	assert.Equal(t, 1, f.leaderboard.GetTotalBuyers(testToken))
}

type panickingSnapshots struct{ scriptedSnapshots }

func (p *panickingSnapshots) Fetch(ctx context.Context, token string) (entity.Snapshot, bool) {
	panic("upstream parser exploded")
}

func TestMonitor_PanicInOneTokenIsContained(t *testing.T) {
	registry := NewSubscriptionRegistry(100, logger.Nop(), nil)
	_, _ = registry.Track(testToken, 1, 0)
	snaps := &panickingSnapshots{}
	detector := NewBuyDetector(snaps, NewTokenStateStore(), 100, logger.Nop(), nil)
	m := NewMonitorService(registry, snaps, detector, newTestLeaderboard(newManualClock()), &recordingDispatcher{},
		MonitorConfig{MaxConcurrentChecks: 1}, logger.Nop(), nil)

	var r BatchReport
	assert.NotPanics(t, func() { r = m.RunBatch(context.Background()) })
	assert.Equal(t, 1, r.Failed)
}
