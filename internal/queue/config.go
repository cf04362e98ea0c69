package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Config is the top-level configuration surface for a Store (§6).
type Config struct {
	// Table is the backing table name. Defaults to "oxen_queue".
	Table string
	// ExtraFields are top-level body keys that are additionally
	// projected into identically named columns (§6, "Extra fields").
	ExtraFields []string

	FastestPollingRate time.Duration
	SlowestPollingRate time.Duration
	PollingBackoffRate float64
}

// DefaultConfig returns the configuration defaults named in §6.
func DefaultConfig() Config {
	return Config{
		Table:              "oxen_queue",
		FastestPollingRate: 100 * time.Millisecond,
		SlowestPollingRate: 10 * time.Second,
		PollingBackoffRate: 1.1,
	}
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = "oxen_queue"
	}
	if c.FastestPollingRate <= 0 {
		c.FastestPollingRate = 100 * time.Millisecond
	}
	if c.SlowestPollingRate <= 0 {
		c.SlowestPollingRate = 10 * time.Second
	}
	if c.PollingBackoffRate <= 1 {
		c.PollingBackoffRate = 1.1
	}
	return c
}

// ProcessorConfig configures one Controller.StartProcessing call, i.e.
// one Dispatcher+Supervisor+Recoverer trio bound to a single job_type
// (§4.6, §6 "Per processor").
type ProcessorConfig struct {
	JobType string
	// WorkFn is the user-supplied work function (§1, external
	// collaborator). It receives the decoded body and a read-only view
	// of the row, and returns an encoded result or an error.
	WorkFn func(ctx context.Context, job *Job) (json.RawMessage, error)

	Concurrency int
	Timeout     time.Duration

	// DisableRecovery opts out of the stuck-job recoverer (§4.5, §9).
	// The zero value keeps recovery on, matching the §6 default of
	// recoverStuckJobs (true) — a crashed worker's claimed row must not
	// stay processing forever by default (P7, S6).
	DisableRecovery   bool
	RecoveryThreshold time.Duration
	RecoveryInterval  time.Duration

	OnJobSuccess func(job *Job, result json.RawMessage)
	OnJobError   func(job *Job, err error)
}

func (p ProcessorConfig) withDefaults() ProcessorConfig {
	if p.Concurrency <= 0 {
		p.Concurrency = 3
	}
	if p.Timeout <= 0 {
		p.Timeout = 60 * time.Second
	}
	if p.RecoveryInterval <= 0 {
		p.RecoveryInterval = 60 * time.Second
	}
	// RecoveryThreshold must exceed Timeout (validate enforces this), so
	// its default is derived from the final Timeout rather than a fixed
	// constant — a fixed default would collide with a larger Timeout
	// default or caller-supplied Timeout and make a bare-defaults config
	// startup-fatal.
	if p.RecoveryThreshold <= 0 {
		p.RecoveryThreshold = 2 * p.Timeout
	}
	return p
}

// validate enforces the one fatal-at-startup configuration rule the
// spec names explicitly (§4.5, §9): the recovery threshold must exceed
// the per-job timeout, or the recoverer races live work.
func (p ProcessorConfig) validate() error {
	if p.JobType == "" {
		return &ErrConfig{Reason: "job_type is required"}
	}
	if p.WorkFn == nil {
		return &ErrConfig{Reason: "work_fn is required"}
	}
	if !p.DisableRecovery && p.RecoveryThreshold <= p.Timeout {
		return &ErrConfig{Reason: "recovery_threshold must exceed timeout"}
	}
	return nil
}
