package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTimes_AlignsToIntervalBoundary(t *testing.T) {
	s := &AlignedScheduler{Interval: time.Hour, Offset: 30 * time.Second}
	now := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)

	nextClose, wakeAt, untilClose, wait := s.nextTimes(now)

	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), nextClose)
	assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 30, 0, time.UTC), wakeAt)
	assert.Equal(t, 45*time.Minute, untilClose)
	assert.Equal(t, 45*time.Minute+30*time.Second, wait)
}

func TestStart_RunImmediatelyExecutesOnceBeforeLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewAlignedScheduler(ctx, time.Hour, 0)
	s.RunImmediately = true

	runs := 0
	done := make(chan struct{})
	go func() {
		s.Start(func() { runs++ })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not exit on cancelled context")
	}
	require.Equal(t, 1, runs)
}

func TestStart_InvalidIntervalExitsWithoutRunning(t *testing.T) {
	s := NewAlignedScheduler(context.Background(), 0, 0)
	runs := 0
	s.Start(func() { runs++ })
	assert.Zero(t, runs)
}
