package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecoverStore struct {
	calls     int32
	recovered int
	err       error
}

func (f *fakeRecoverStore) RecoverStuck(context.Context, string, time.Duration) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.recovered, f.err
}

func TestRecovererSweepsOnInterval(t *testing.T) {
	store := &fakeRecoverStore{recovered: 2}
	r := newRecoverer(store, ProcessorConfig{
		JobType:           "t",
		RecoveryThreshold: time.Minute,
		RecoveryInterval:  5 * time.Millisecond,
	}.withDefaults(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	r.run(ctx)

	require.GreaterOrEqual(t, atomic.LoadInt32(&store.calls), int32(2))
}

func TestRecovererStopEndsTheLoop(t *testing.T) {
	store := &fakeRecoverStore{}
	r := newRecoverer(store, ProcessorConfig{
		JobType:          "t",
		RecoveryInterval: 5 * time.Millisecond,
	}.withDefaults(), testLogger())

	done := make(chan struct{})
	go func() {
		r.run(context.Background())
		close(done)
	}()

	time.Sleep(15 * time.Millisecond)
	r.stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recoverer did not stop after stop() was called")
	}
	assert.True(t, true)
}
