package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// workResult is the race's single-shot payload: either a work function
// finished cleanly (encoded result, nil error) or it failed.
type workResult struct {
	encoded json.RawMessage
	err     error
}

// jobStore is the subset of Store a Supervisor needs to finalize a job.
// Expressing it as an interface keeps superviseJob testable without a
// live Postgres connection.
type jobStore interface {
	Finalize(ctx context.Context, id int64, status Status, result string) error
	Requeue(ctx context.Context, id int64, delay time.Duration) error
}

// superviseJob runs one claimed job to completion (§4.4). It races the
// work function against cfg.Timeout; whichever finishes first wins and
// the loser's outcome is discarded — a work function that returns after
// its own timeout has already been finalized as an error is simply
// ignored, not cancelled twice.
func superviseJob(ctx context.Context, store jobStore, cfg ProcessorConfig, logger zerolog.Logger, job *Job) {
	log := logger.With().Str("component", "supervisor").Str("job_type", cfg.JobType).
		Int64("job_id", job.ID).Logger()

	workCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	done := make(chan workResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- workResult{err: fmt.Errorf("work function panicked: %v", r)}
			}
		}()
		encoded, err := cfg.WorkFn(workCtx, job)
		done <- workResult{encoded: encoded, err: err}
	}()

	started := time.Now()
	var result workResult
	select {
	case result = <-done:
	case <-workCtx.Done():
		result = workResult{err: fmt.Errorf("job exceeded timeout of %s", cfg.Timeout)}
	}
	elapsed := time.Since(started)

	switch {
	case result.err != nil:
		finalizeError(ctx, store, cfg, log, job, result.err, elapsed)
	default:
		if delay, isRetry := decodeRetrySentinel(result.encoded); isRetry {
			finalizeRetry(ctx, store, cfg, log, job, delay, elapsed)
			return
		}
		finalizeSuccess(ctx, store, cfg, log, job, result.encoded, elapsed)
	}
}

func finalizeSuccess(ctx context.Context, store jobStore, cfg ProcessorConfig, log zerolog.Logger, job *Job, encoded json.RawMessage, elapsed time.Duration) {
	if err := retryStoreOp(ctx, log, "finalize success", func() error {
		return store.Finalize(ctx, job.ID, StatusSuccess, string(encoded))
	}); err != nil {
		log.Error().Err(err).Msg("finalize success failed, abandoning to the recoverer")
	}
	jobsFinalized.WithLabelValues(cfg.JobType, "success").Inc()
	jobDuration.WithLabelValues(cfg.JobType, "success").Observe(elapsed.Seconds())
	invokeOnSuccess(log, cfg, job, encoded)
}

func finalizeError(ctx context.Context, store jobStore, cfg ProcessorConfig, log zerolog.Logger, job *Job, workErr error, elapsed time.Duration) {
	if err := retryStoreOp(ctx, log, "finalize error", func() error {
		return store.Finalize(ctx, job.ID, StatusError, workErr.Error())
	}); err != nil {
		log.Error().Err(err).Msg("finalize error failed, abandoning to the recoverer")
	}
	jobsFinalized.WithLabelValues(cfg.JobType, "error").Inc()
	jobDuration.WithLabelValues(cfg.JobType, "error").Observe(elapsed.Seconds())
	log.Warn().Err(workErr).Msg("job failed")
	invokeOnError(log, cfg, job, workErr)
}

func finalizeRetry(ctx context.Context, store jobStore, cfg ProcessorConfig, log zerolog.Logger, job *Job, delay time.Duration, elapsed time.Duration) {
	if err := retryStoreOp(ctx, log, "requeue", func() error {
		return store.Requeue(ctx, job.ID, delay)
	}); err != nil {
		log.Error().Err(err).Msg("requeue failed, abandoning to the recoverer")
	}
	jobsRetried.WithLabelValues(cfg.JobType).Inc()
	jobDuration.WithLabelValues(cfg.JobType, "retry").Observe(elapsed.Seconds())
	log.Info().Dur("delay", delay).Msg("job requeued")
}

// maxFinalizeAttempts bounds the retry loop in retryStoreOp (§7: "Finalize
// failures are retried a bounded number of times, then logged").
const maxFinalizeAttempts = 3

// retryStoreOp retries a Finalize/Requeue call with a short exponential
// backoff between attempts. If every attempt fails the row is left
// processing; the stuck-job Recoverer is the documented fallback that
// eventually returns it to waiting.
func retryStoreOp(ctx context.Context, log zerolog.Logger, opName string, fn func() error) error {
	var lastErr error
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt < maxFinalizeAttempts; attempt++ {
		if attempt > 0 {
			log.Warn().Err(lastErr).Str("op", opName).Int("attempt", attempt+1).Msg("retrying store operation")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return lastErr
			}
			backoff *= 2
		}
		if lastErr = fn(); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// invokeOnSuccess and invokeOnError shield the Dispatcher from a
// misbehaving callback: a panic there is logged and swallowed rather
// than taking down the worker goroutine (§7).
func invokeOnSuccess(log zerolog.Logger, cfg ProcessorConfig, job *Job, result json.RawMessage) {
	if cfg.OnJobSuccess == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("on_job_success callback panicked")
		}
	}()
	cfg.OnJobSuccess(job, result)
}

func invokeOnError(log zerolog.Logger, cfg ProcessorConfig, job *Job, err error) {
	if cfg.OnJobError == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("on_job_error callback panicked")
		}
	}()
	cfg.OnJobError(job, err)
}
