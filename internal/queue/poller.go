package queue

import (
	"context"
	"math"
	"sync"
	"time"
)

// Poller is the adaptive backoff state machine described in §4.2. It
// does not talk to the Store itself; the Dispatcher asks it to wait,
// then reports whether that poll found work.
type Poller struct {
	fastest time.Duration
	slowest time.Duration
	backoff float64

	mu      sync.Mutex
	current time.Duration
}

// NewPoller builds a Poller starting at its fastest rate (§4.2).
func NewPoller(fastest, slowest time.Duration, backoff float64) *Poller {
	if fastest <= 0 {
		fastest = 100 * time.Millisecond
	}
	if slowest <= 0 {
		slowest = 10 * time.Second
	}
	if backoff <= 1 {
		backoff = 1.1
	}
	return &Poller{fastest: fastest, slowest: slowest, backoff: backoff, current: fastest}
}

// ScheduleNext sleeps for the current delay, cancellable by ctx.
func (p *Poller) ScheduleNext(ctx context.Context) error {
	p.mu.Lock()
	d := p.current
	p.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ReportOutcome adjusts the delay per §4.2: any job found resets to the
// fastest rate; an empty poll multiplies the delay by backoff, capped
// at slowest.
func (p *Poller) ReportOutcome(found int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if found > 0 {
		p.current = p.fastest
		return
	}
	next := time.Duration(float64(p.current) * p.backoff)
	if next > p.slowest {
		next = p.slowest
	}
	p.current = next
}

// Current returns the present inter-poll delay, for observability and
// tests (P5: convergence to slowest within a bounded poll count).
func (p *Poller) Current() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// PollsToConverge returns the ceiling of log(slowest/fastest)/log(backoff)
// named in P5 — the number of consecutive empty polls before the delay
// reaches its slowest rate.
func (p *Poller) PollsToConverge() int {
	if p.fastest <= 0 || p.backoff <= 1 {
		return 0
	}
	ratio := float64(p.slowest) / float64(p.fastest)
	if ratio <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log(ratio) / math.Log(p.backoff)))
}
