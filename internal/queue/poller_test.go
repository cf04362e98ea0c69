package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerResetsToFastestOnWork(t *testing.T) {
	p := NewPoller(10*time.Millisecond, time.Second, 2)
	p.ReportOutcome(0)
	p.ReportOutcome(0)
	require.Greater(t, p.Current(), 10*time.Millisecond)

	p.ReportOutcome(3)
	assert.Equal(t, 10*time.Millisecond, p.Current())
}

func TestPollerBacksOffMultiplicativelyAndCaps(t *testing.T) {
	p := NewPoller(100*time.Millisecond, 1*time.Second, 2)

	p.ReportOutcome(0)
	assert.Equal(t, 200*time.Millisecond, p.Current())

	p.ReportOutcome(0)
	assert.Equal(t, 400*time.Millisecond, p.Current())

	p.ReportOutcome(0)
	assert.Equal(t, 800*time.Millisecond, p.Current())

	p.ReportOutcome(0)
	assert.Equal(t, time.Second, p.Current(), "delay must not exceed the slowest rate")
}

func TestPollerPollsToConverge(t *testing.T) {
	p := NewPoller(100*time.Millisecond, 10*time.Second, 1.1)
	n := p.PollsToConverge()
	require.Greater(t, n, 0)

	for i := 0; i < n; i++ {
		p.ReportOutcome(0)
	}
	assert.Equal(t, 10*time.Second, p.Current(), "delay should reach the ceiling within PollsToConverge polls")
}

func TestPollerScheduleNextHonorsContextCancellation(t *testing.T) {
	p := NewPoller(time.Minute, time.Minute, 1.1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.ScheduleNext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
