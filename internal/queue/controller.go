package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// processor bundles the three components a Controller runs per job_type:
// the Dispatcher that claims and supervises work, the Poller it shares,
// and an optional Recoverer (§4.6).
type processor struct {
	cfg        ProcessorConfig
	dispatcher *Dispatcher
	recoverer  *Recoverer
	cancel     context.CancelFunc
	group      *errgroup.Group
}

// Controller is the composition root (C6): it owns the Store and every
// running processor, and is the only type application code constructs
// directly.
type Controller struct {
	store   *Store
	pollCfg Config
	logger  zerolog.Logger

	mu         sync.Mutex
	processors map[string]*processor
}

// NewController builds a Controller backed by pool, validating cfg per
// Store rules (§6, §9).
func NewController(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger zerolog.Logger) (*Controller, error) {
	cfg = cfg.withDefaults()
	store, err := NewStore(ctx, pool, cfg)
	if err != nil {
		return nil, err
	}
	return &Controller{
		store:      store,
		pollCfg:    cfg,
		logger:     logger.With().Str("component", "controller").Logger(),
		processors: make(map[string]*processor),
	}, nil
}

// Enqueue persists a single job (§4.1).
func (c *Controller) Enqueue(ctx context.Context, in EnqueueInput) (EnqueueResult, error) {
	return c.store.Enqueue(ctx, in)
}

// EnqueueMany persists many jobs in one round trip (§4.1).
func (c *Controller) EnqueueMany(ctx context.Context, inputs []EnqueueInput) (ids []int64, duplicates int, err error) {
	return c.store.EnqueueBatch(ctx, inputs)
}

// StartProcessing launches a Dispatcher (and, if configured, a
// Recoverer) for cfg.JobType (§4.6). It is an error to start the same
// job_type twice without first calling StopProcessing.
func (c *Controller) StartProcessing(ctx context.Context, cfg ProcessorConfig) error {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.processors[cfg.JobType]; exists {
		return &ErrConfig{Reason: fmt.Sprintf("processing already started for job_type %q", cfg.JobType)}
	}

	procCtx, cancel := context.WithCancel(ctx)
	poller := NewPoller(c.pollCfg.FastestPollingRate, c.pollCfg.SlowestPollingRate, c.pollCfg.PollingBackoffRate)
	dispatcher := newDispatcher(c.store, poller, cfg, c.logger)

	p := &processor{cfg: cfg, dispatcher: dispatcher, cancel: cancel}
	if !cfg.DisableRecovery {
		p.recoverer = newRecoverer(c.store, cfg, c.logger)
	}
	c.processors[cfg.JobType] = p

	group, groupCtx := errgroup.WithContext(procCtx)
	p.group = group
	group.Go(func() error {
		dispatcher.run(groupCtx)
		return nil
	})
	if p.recoverer != nil {
		group.Go(func() error {
			p.recoverer.run(groupCtx)
			return nil
		})
	}

	c.logger.Info().Str("job_type", cfg.JobType).Msg("processing started")
	return nil
}

// StopProcessing drains the named processor: it stops issuing new
// claims but waits for in-flight Supervisors to finish before
// returning (§4.3, "graceful drain").
func (c *Controller) StopProcessing(jobType string) error {
	c.mu.Lock()
	p, exists := c.processors[jobType]
	if exists {
		delete(c.processors, jobType)
	}
	c.mu.Unlock()

	if !exists {
		return &ErrConfig{Reason: fmt.Sprintf("no processing started for job_type %q", jobType)}
	}

	p.dispatcher.stop()
	if p.recoverer != nil {
		p.recoverer.stop()
	}
	p.dispatcher.wg.Wait()
	p.cancel()
	if err := p.group.Wait(); err != nil {
		return err
	}
	c.logger.Info().Str("job_type", jobType).Msg("processing stopped")
	return nil
}

// Shutdown stops every running processor and waits for all of them to
// drain before returning.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	jobTypes := make([]string, 0, len(c.processors))
	for jt := range c.processors {
		jobTypes = append(jobTypes, jt)
	}
	c.mu.Unlock()

	var firstErr error
	for _, jt := range jobTypes {
		if err := c.StopProcessing(jt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DebugSnapshot is the shape returned by Controller.Debug (§4.6).
type DebugSnapshot struct {
	Processors []DispatcherSnapshot `json:"processors"`
}

// Debug reports the present state of every running processor, for the
// admin API's debug endpoint.
func (c *Controller) Debug() DebugSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := DebugSnapshot{Processors: make([]DispatcherSnapshot, 0, len(c.processors))}
	for _, p := range c.processors {
		snap.Processors = append(snap.Processors, p.dispatcher.snapshot())
	}
	return snap
}

// Store exposes the underlying Store for operator tooling (cmd/cli,
// the admin API's list/get/delete endpoints) that needs direct access
// beyond enqueue/debug.
func (c *Controller) Store() *Store {
	return c.store
}
