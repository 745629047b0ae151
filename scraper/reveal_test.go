package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/sessionscrape/models"
)

func TestRevealer_FixedModeScrollsExactlyFiveTimes(t *testing.T) {
	page := &fakePage{}
	sl := &recordingSleep{}
	r := NewRevealer(8*time.Second, 5, 1500, 3*time.Second, SettleFixed)
	r.sleep = sl.sleep

	require.NoError(t, r.Reveal(context.Background(), page, "li"))

	assert.Equal(t, []float64{1500, 1500, 1500, 1500, 1500}, page.wheels)
	assert.Equal(t, []time.Duration{
		8 * time.Second,
		3 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second,
	}, sl.calls)
}

func TestRevealer_NoEarlyExitWhenContentIsComplete(t *testing.T) {
	// The item count never changes: all content is already present.
	page := &fakePage{counts: []int{12}}
	clock := newFakeClock()
	r := NewRevealer(8*time.Second, 5, 1500, 3*time.Second, SettleAdaptive)
	r.sleep = clock.sleep
	r.now = clock.now

	require.NoError(t, r.Reveal(context.Background(), page, "li"))

	assert.Len(t, page.wheels, 5)
}

func TestRevealer_AdaptiveSettlesEarlyOnStableCount(t *testing.T) {
	page := &fakePage{counts: []int{3, 7, 10}}
	clock := newFakeClock()
	r := NewRevealer(8*time.Second, 5, 1500, 3*time.Second, SettleAdaptive)
	r.PollInterval = 250 * time.Millisecond
	r.QuietWindow = time.Second
	r.sleep = clock.sleep
	r.now = clock.now

	start := clock.now()
	require.NoError(t, r.Reveal(context.Background(), page, "li"))
	elapsed := clock.now().Sub(start)

	assert.Len(t, page.wheels, 5)
	// Fixed timing would take 8s + 5*3s.
	assert.Less(t, elapsed, 23*time.Second)
}

func TestRevealer_AdaptiveWaitsFullBoundWhileEmpty(t *testing.T) {
	page := &fakePage{counts: []int{0}}
	clock := newFakeClock()
	r := NewRevealer(8*time.Second, 0, 1500, 3*time.Second, SettleAdaptive)
	r.sleep = clock.sleep
	r.now = clock.now

	start := clock.now()
	require.NoError(t, r.Reveal(context.Background(), page, "li"))

	assert.Equal(t, 8*time.Second, clock.now().Sub(start))
}

func TestRevealer_AdaptiveFallsBackWhenCountFails(t *testing.T) {
	page := &fakePage{countErr: errors.New("execution context was destroyed")}
	sl := &recordingSleep{}
	r := NewRevealer(8*time.Second, 1, 1500, 3*time.Second, SettleAdaptive)
	r.sleep = sl.sleep

	require.NoError(t, r.Reveal(context.Background(), page, "li"))

	require.Len(t, sl.calls, 2)
	assert.InDelta(t, float64(8*time.Second), float64(sl.calls[0]), float64(100*time.Millisecond))
	assert.InDelta(t, float64(3*time.Second), float64(sl.calls[1]), float64(100*time.Millisecond))
}

func TestRevealer_WheelFailureIsFatal(t *testing.T) {
	page := &fakePage{wheelErr: errors.New("target closed")}
	r := NewRevealer(0, 5, 1500, 0, SettleFixed)
	r.sleep = noSleep

	err := r.Reveal(context.Background(), page, "li")

	require.Error(t, err)
	assert.Equal(t, models.ErrCodeBrowserCrash, models.CodeOf(err))
}

func TestRevealer_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := &fakePage{}
	r := NewRevealer(8*time.Second, 5, 1500, 3*time.Second, SettleFixed)

	err := r.Reveal(ctx, page, "li")

	require.Error(t, err)
	assert.Equal(t, models.ErrCodeCanceled, models.CodeOf(err))
	assert.Empty(t, page.wheels)
}

func TestNewRevealer_UnknownModeIsFixed(t *testing.T) {
	r := NewRevealer(time.Second, 5, 1500, time.Second, SettleMode("eager"))
	assert.Equal(t, SettleFixed, r.Mode)
}
