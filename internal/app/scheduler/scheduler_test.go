package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"buybot/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsImmediately(t *testing.T) {
	started := make(chan struct{}, 1)
	s := New(time.Hour, func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
	}, logger.Nop(), nil)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestScheduler_NeverOverlaps(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	release := make(chan struct{})

	s := New(5*time.Millisecond, func(ctx context.Context) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		inFlight.Add(-1)
	}, logger.Nop(), nil)

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return s.Skipped() >= 3 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, int64(1), s.Runs())
	assert.True(t, s.Busy())
	close(release)

	require.Eventually(t, func() bool { return s.Runs() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestScheduler_StopWaitsForInFlightRun(t *testing.T) {
	var finished atomic.Bool
	entered := make(chan struct{})
	s := New(time.Hour, func(ctx context.Context) {
		close(entered)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	}, logger.Nop(), nil)

	require.NoError(t, s.Start(context.Background()))
	<-entered
	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, finished.Load())
}

func TestScheduler_StopHonoursDeadline(t *testing.T) {
	entered := make(chan struct{})
	block := make(chan struct{})
	defer close(block)

	s := New(time.Hour, func(ctx context.Context) {
		close(entered)
		<-block
	}, logger.Nop(), nil)

	require.NoError(t, s.Start(context.Background()))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}

func TestScheduler_StartValidation(t *testing.T) {
	assert.Error(t, New(0, func(context.Context) {}, logger.Nop(), nil).Start(context.Background()))

	s := New(time.Hour, func(context.Context) {}, logger.Nop(), nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())
	assert.Error(t, s.Start(context.Background()))
}
