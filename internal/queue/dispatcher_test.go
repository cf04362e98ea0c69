package queue

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDispatchStore hands out a fixed number of jobs per Claim call
// (simulating a Store backed by a never-ending backlog) and records
// how every claimed job was finalized.
type fakeDispatchStore struct {
	mu        sync.Mutex
	nextID    int64
	perClaim  int
	claims    int32
	finalized []fakeFinalizeCall
	requeued  []fakeRequeueCall
}

func (f *fakeDispatchStore) Claim(_ context.Context, jobType string, n int) ([]Job, error) {
	atomic.AddInt32(&f.claims, 1)
	f.mu.Lock()
	defer f.mu.Unlock()

	want := f.perClaim
	if want > n {
		want = n
	}
	jobs := make([]Job, 0, want)
	for i := 0; i < want; i++ {
		f.nextID++
		jobs = append(jobs, Job{ID: f.nextID, JobType: jobType, Body: json.RawMessage(`{}`)})
	}
	return jobs, nil
}

func (f *fakeDispatchStore) Finalize(_ context.Context, id int64, status Status, result string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = append(f.finalized, fakeFinalizeCall{id, status, result})
	return nil
}

func (f *fakeDispatchStore) Requeue(_ context.Context, id int64, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, fakeRequeueCall{id, delay})
	return nil
}

func (f *fakeDispatchStore) snapshot() (finalized int, requeued int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finalized), len(f.requeued)
}

func TestDispatcherClaimsAndSupervisesJobs(t *testing.T) {
	store := &fakeDispatchStore{perClaim: 10}
	poller := NewPoller(time.Millisecond, 50*time.Millisecond, 2.0)
	cfg := ProcessorConfig{
		JobType:     "t",
		Concurrency: 3,
		Timeout:     time.Second,
		WorkFn: func(context.Context, *Job) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		},
	}.withDefaults()

	d := newDispatcher(store, poller, cfg, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	d.run(ctx)

	finalized, requeued := store.snapshot()
	assert.Zero(t, requeued)
	assert.Greater(t, finalized, 0, "expected at least one job to have been claimed and finalized")
}

func TestDispatcherNeverExceedsFreeSlots(t *testing.T) {
	store := &fakeDispatchStore{perClaim: 100}
	poller := NewPoller(time.Millisecond, 10*time.Millisecond, 2.0)

	release := make(chan struct{})
	cfg := ProcessorConfig{
		JobType:     "t",
		Concurrency: 2,
		Timeout:     time.Second,
		WorkFn: func(ctx context.Context, _ *Job) (json.RawMessage, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return json.RawMessage(`{}`), nil
		},
	}.withDefaults()

	d := newDispatcher(store, poller, cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.run(ctx)

	require.Eventually(t, func() bool {
		return d.freeSlots() == 0
	}, time.Second, time.Millisecond)

	assert.LessOrEqual(t, d.snapshot().Inflight, 2)

	close(release)
	cancel()
	d.wg.Wait()
}

func TestDispatcherStopDrainsInFlightWorkBeforeReturning(t *testing.T) {
	store := &fakeDispatchStore{perClaim: 1}
	poller := NewPoller(time.Millisecond, 5*time.Millisecond, 2.0)

	started := make(chan struct{}, 1)
	cfg := ProcessorConfig{
		JobType:     "t",
		Concurrency: 1,
		Timeout:     time.Second,
		WorkFn: func(context.Context, *Job) (json.RawMessage, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			time.Sleep(20 * time.Millisecond)
			return json.RawMessage(`{}`), nil
		},
	}.withDefaults()

	d := newDispatcher(store, poller, cfg, testLogger())

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		d.run(ctx)
		close(done)
	}()

	<-started
	d.stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not drain in-flight work before returning")
	}

	finalized, _ := store.snapshot()
	assert.Greater(t, finalized, 0)
}
