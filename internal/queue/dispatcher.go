package queue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// dispatchStore is the subset of Store a Dispatcher needs: claiming a
// batch, then handing each claimed Job off to superviseJob for
// finalization. Expressing it as an interface keeps the poll loop
// testable without a live Postgres connection.
type dispatchStore interface {
	Claim(ctx context.Context, jobType string, n int) ([]Job, error)
	jobStore
}

// Dispatcher is the bounded-concurrency poll loop described in §4.3: it
// never has two claim requests outstanding at once (fetching), never
// asks for more jobs than it has free slots for (inflight), and on
// Stop it drains outstanding work without cancelling it.
type Dispatcher struct {
	store  dispatchStore
	poller *Poller
	cfg    ProcessorConfig
	logger zerolog.Logger

	mu       sync.Mutex
	inflight int
	fetching bool

	wg       sync.WaitGroup
	stopChan chan struct{}
}

func newDispatcher(store dispatchStore, poller *Poller, cfg ProcessorConfig, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		poller:   poller,
		cfg:      cfg,
		logger:   logger.With().Str("component", "dispatcher").Str("job_type", cfg.JobType).Logger(),
		stopChan: make(chan struct{}),
	}
}

// run is the Dispatcher's main loop. It blocks until ctx is cancelled
// or Stop is called, then waits for every in-flight job's Supervisor
// to finish before returning (§4.3: "graceful drain").
func (d *Dispatcher) run(ctx context.Context) {
	d.logger.Info().Int("concurrency", d.cfg.Concurrency).Msg("dispatcher starting")
	defer func() {
		d.wg.Wait()
		d.logger.Info().Msg("dispatcher drained")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		default:
		}

		if err := d.poller.ScheduleNext(ctx); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		default:
		}

		free := d.freeSlots()
		if free <= 0 {
			continue
		}

		d.mu.Lock()
		if d.fetching {
			d.mu.Unlock()
			continue
		}
		d.fetching = true
		d.mu.Unlock()

		jobs, err := d.store.Claim(ctx, d.cfg.JobType, free)

		d.mu.Lock()
		d.fetching = false
		d.mu.Unlock()

		if err != nil {
			d.logger.Error().Err(err).Msg("claim failed")
			d.poller.ReportOutcome(0)
			pollDelay.WithLabelValues(d.cfg.JobType).Set(d.poller.Current().Seconds())
			continue
		}

		d.poller.ReportOutcome(len(jobs))
		pollDelay.WithLabelValues(d.cfg.JobType).Set(d.poller.Current().Seconds())
		if len(jobs) == 0 {
			continue
		}
		jobsClaimed.WithLabelValues(d.cfg.JobType).Add(float64(len(jobs)))
		inflightGauge.WithLabelValues(d.cfg.JobType).Add(float64(len(jobs)))

		for _, job := range jobs {
			job := job
			d.mu.Lock()
			d.inflight++
			d.mu.Unlock()

			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				defer func() {
					d.mu.Lock()
					d.inflight--
					d.mu.Unlock()
					inflightGauge.WithLabelValues(d.cfg.JobType).Dec()
				}()
				superviseJob(ctx, d.store, d.cfg, d.logger, &job)
			}()
		}
	}
}

// stop tells the run loop to stop issuing new fetches. Callers await
// completion separately via the Controller's drain wait.
func (d *Dispatcher) stop() {
	close(d.stopChan)
}

func (d *Dispatcher) freeSlots() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	free := d.cfg.Concurrency - d.inflight
	if free < 0 {
		return 0
	}
	return free
}

// snapshot reports the Dispatcher's present state for Controller.Debug.
func (d *Dispatcher) snapshot() DispatcherSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DispatcherSnapshot{
		JobType:     d.cfg.JobType,
		Inflight:    d.inflight,
		Fetching:    d.fetching,
		Concurrency: d.cfg.Concurrency,
		PollDelayMS: d.poller.Current().Milliseconds(),
	}
}

// DispatcherSnapshot is the debug-surface view of one processor (§4.6,
// "Debug").
type DispatcherSnapshot struct {
	JobType     string `json:"jobType"`
	Inflight    int    `json:"inflight"`
	Fetching    bool   `json:"fetching"`
	Concurrency int    `json:"concurrency"`
	PollDelayMS int64  `json:"pollDelayMs"`
}
