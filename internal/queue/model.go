// Package queue implements the job-dispatch engine: a durable,
// high-throughput queue whose state of record is a single Postgres
// table. See Store, Poller, Dispatcher, Supervisor, Recoverer and
// Controller for the pieces; Controller is the composition root.
package queue

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a Job row.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
	StatusStuck      Status = "stuck"
)

// Job mirrors one row of the queue table (§3 of the spec).
type Job struct {
	ID          int64           `db:"id" json:"id"`
	JobType     string          `db:"job_type" json:"jobType"`
	Status      Status          `db:"status" json:"status"`
	Body        json.RawMessage `db:"body" json:"body"`
	Priority    int64           `db:"priority" json:"priority"`
	CreatedTS   time.Time       `db:"created_ts" json:"createdTs"`
	StartedTS   *time.Time      `db:"started_ts" json:"startedTs,omitempty"`
	BatchID     *int64          `db:"batch_id" json:"batchId,omitempty"`
	UniqueKey   *uint32         `db:"unique_key" json:"uniqueKey,omitempty"`
	Result      *string         `db:"result" json:"result,omitempty"`
	Recovered   bool            `db:"recovered" json:"recovered"`
	RunningTime *int            `db:"running_time" json:"runningTime,omitempty"`
}

// EnqueueInput is the caller-facing shape for Store.Enqueue /
// Controller.Enqueue. Priority defaults to the enqueue wall-clock in
// milliseconds when left zero, producing FIFO ordering for jobs of
// otherwise-equal priority (§3).
type EnqueueInput struct {
	JobType   string
	Body      json.RawMessage
	Priority  int64
	StartTime *time.Time
	UniqueKey *uint32
}

// EnqueueResult reports whether a row was persisted or deduplicated.
type EnqueueResult struct {
	ID           int64
	Deduplicated bool
}

// retrySentinel is the wire shape the Supervisor looks for in a work
// function's encoded return value (§6, "Retry sentinel"). Any return
// value lacking this exact key is a success.
type retrySentinel struct {
	RetrySeconds *float64 `json:"_oxen_queue_retry_seconds"`
}

// decodeRetrySentinel inspects an encoded return value for the retry
// shape without assuming anything else about its structure.
func decodeRetrySentinel(encoded []byte) (delay time.Duration, isRetry bool) {
	var sentinel retrySentinel
	if err := json.Unmarshal(encoded, &sentinel); err != nil {
		return 0, false
	}
	if sentinel.RetrySeconds == nil || *sentinel.RetrySeconds < 0 {
		return 0, false
	}
	return time.Duration(*sentinel.RetrySeconds * float64(time.Second)), true
}
