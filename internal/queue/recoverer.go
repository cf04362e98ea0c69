package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// recoverStore is the subset of Store a Recoverer needs, kept as an
// interface so sweep logic is testable without a live Postgres
// connection.
type recoverStore interface {
	RecoverStuck(ctx context.Context, jobType string, threshold time.Duration) (int, error)
}

// Recoverer periodically sweeps for stuck jobs and returns them to
// waiting (§4.5, C5). It is adapted from the teacher's task-queue
// sweeper: a ticker loop with its own stop channel, independent of the
// Dispatcher it shares a job_type with.
type Recoverer struct {
	store     recoverStore
	jobType   string
	threshold time.Duration
	interval  time.Duration
	logger    zerolog.Logger
	stopChan  chan struct{}
}

func newRecoverer(store recoverStore, cfg ProcessorConfig, logger zerolog.Logger) *Recoverer {
	return &Recoverer{
		store:     store,
		jobType:   cfg.JobType,
		threshold: cfg.RecoveryThreshold,
		interval:  cfg.RecoveryInterval,
		logger:    logger.With().Str("component", "recoverer").Str("job_type", cfg.JobType).Logger(),
		stopChan:  make(chan struct{}),
	}
}

// run blocks until ctx is cancelled or stop is called, sweeping for
// stuck rows every interval (§4.5).
func (r *Recoverer) run(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Dur("threshold", r.threshold).Msg("recoverer starting")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Recoverer) sweep(ctx context.Context) {
	n, err := r.store.RecoverStuck(ctx, r.jobType, r.threshold)
	if err != nil {
		recovererErrors.WithLabelValues(r.jobType).Inc()
		r.logger.Error().Err(err).Msg("recovery sweep failed")
		return
	}
	if n > 0 {
		recoveredJobs.WithLabelValues(r.jobType).Add(float64(n))
		r.logger.Warn().Int("count", n).Msg("recovered stuck jobs")
	}
}

func (r *Recoverer) stop() {
	close(r.stopChan)
}
