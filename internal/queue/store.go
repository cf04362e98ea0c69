package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the typed wrapper over the backing table described in §4.1:
// enqueue, batched claim, finalize, requeue, delete, and the stuck-job
// scan. It encapsulates all SQL; nothing above this layer writes a
// query.
type Store struct {
	pool      *pgxpool.Pool
	table     string
	extra     []string
	allocator batchIDAllocator
}

// NewStore builds a Store bound to cfg.Table and validates that every
// configured extra field has a matching column (§9, Design Notes: "fail
// fast if not").
func NewStore(ctx context.Context, pool *pgxpool.Pool, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()
	s := &Store{
		pool:      pool,
		table:     cfg.Table,
		extra:     cfg.ExtraFields,
		allocator: newSequenceBatchIDAllocator(pool, cfg.Table),
	}
	if len(cfg.ExtraFields) > 0 {
		if err := s.validateExtraFields(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// WithUUIDBatchIDs swaps the default sequence-backed batch id
// allocator for the UUID-derived one (§4.1 step 1).
func (s *Store) WithUUIDBatchIDs() *Store {
	s.allocator = uuidBatchIDAllocator{}
	return s
}

func (s *Store) validateExtraFields(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns WHERE table_name = $1
	`, s.table)
	if err != nil {
		return fmt.Errorf("validate extra fields: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("validate extra fields: %w", err)
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("validate extra fields: %w", err)
	}

	for _, field := range s.extra {
		if !existing[field] {
			return &ErrConfig{Reason: fmt.Sprintf("extra field %q has no matching column on %s", field, s.table)}
		}
	}
	return nil
}

const jobColumns = `id, job_type, status, body, priority, created_ts, started_ts, batch_id, unique_key, result, recovered, running_time`

func scanJob(row pgx.Row) (Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.JobType, &j.Status, &j.Body, &j.Priority, &j.CreatedTS,
		&j.StartedTS, &j.BatchID, &j.UniqueKey, &j.Result, &j.Recovered, &j.RunningTime)
	return j, err
}

// extraFieldColumns extracts the configured extra-field values out of
// body, returning parallel column-name/value slices for projection
// (§6, "Extra fields"). Keys stay in body; this is pure duplication.
func (s *Store) extraFieldColumns(body json.RawMessage) ([]string, []any) {
	if len(s.extra) == 0 {
		return nil, nil
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, nil
	}
	cols := make([]string, 0, len(s.extra))
	vals := make([]any, 0, len(s.extra))
	for _, field := range s.extra {
		raw, ok := decoded[field]
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		cols = append(cols, field)
		vals = append(vals, v)
	}
	return cols, vals
}

func (s *Store) insertSQL(extraCols []string) string {
	cols := []string{"job_type", "body", "priority", "created_ts", "unique_key"}
	placeholders := []string{"$1", "$2", "$3", "$4", "$5"}
	for i, c := range extraCols {
		cols = append(cols, c)
		placeholders = append(placeholders, fmt.Sprintf("$%d", 6+i))
	}
	return fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		ON CONFLICT (unique_key) WHERE unique_key IS NOT NULL DO NOTHING
		RETURNING id
	`, s.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

// Enqueue inserts a single job (§4.1, "Enqueue (single)"). A
// unique_key conflict against a live row is reported as deduplicated,
// never as an error (I3).
func (s *Store) Enqueue(ctx context.Context, in EnqueueInput) (EnqueueResult, error) {
	priority := in.Priority
	if priority == 0 {
		priority = time.Now().UnixMilli()
	}
	createdTS := time.Now()
	if in.StartTime != nil {
		createdTS = *in.StartTime
	}

	extraCols, extraVals := s.extraFieldColumns(in.Body)
	args := append([]any{in.JobType, in.Body, priority, createdTS, in.UniqueKey}, extraVals...)

	var id int64
	err := s.pool.QueryRow(ctx, s.insertSQL(extraCols), args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return EnqueueResult{Deduplicated: true}, nil
	}
	if err != nil {
		return EnqueueResult{}, &ErrTransientStore{Op: "enqueue", Err: err}
	}
	return EnqueueResult{ID: id}, nil
}

// EnqueueBatch inserts many jobs in a single round trip via a pipelined
// batch of insert-ignore statements (§4.1, "Enqueue (batch)"). Every
// non-conflicting row is persisted; conflicts are silently dropped and
// counted in duplicates.
func (s *Store) EnqueueBatch(ctx context.Context, inputs []EnqueueInput) (ids []int64, duplicates int, err error) {
	if len(inputs) == 0 {
		return nil, 0, nil
	}

	batch := &pgx.Batch{}
	for _, in := range inputs {
		priority := in.Priority
		if priority == 0 {
			priority = time.Now().UnixMilli()
		}
		createdTS := time.Now()
		if in.StartTime != nil {
			createdTS = *in.StartTime
		}
		extraCols, extraVals := s.extraFieldColumns(in.Body)
		args := append([]any{in.JobType, in.Body, priority, createdTS, in.UniqueKey}, extraVals...)
		batch.Queue(s.insertSQL(extraCols), args...)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	ids = make([]int64, 0, len(inputs))
	for range inputs {
		var id int64
		scanErr := results.QueryRow().Scan(&id)
		switch {
		case errors.Is(scanErr, pgx.ErrNoRows):
			duplicates++
		case scanErr != nil:
			return ids, duplicates, &ErrTransientStore{Op: "enqueue_batch", Err: scanErr}
		default:
			ids = append(ids, id)
		}
	}
	return ids, duplicates, nil
}

// Claim atomically moves up to n waiting rows of jobType into
// processing and returns them (§4.1, "Claim(N, job_type)"). It is the
// two-phase tag-then-read protocol: a single conditional UPDATE tags a
// fresh, globally unique batch_id onto the winning rows (the UPDATE's
// own WHERE batch_id IS NULL makes the first writer win — no
// application lock is needed), then a read-back fetches the tagged
// rows by that batch_id.
func (s *Store) Claim(ctx context.Context, jobType string, n int) ([]Job, error) {
	if n <= 0 {
		return nil, nil
	}

	batchID, err := s.allocator.Next(ctx)
	if err != nil {
		return nil, &ErrTransientStore{Op: "claim_allocate_batch_id", Err: err}
	}

	tagSQL := fmt.Sprintf(`
		WITH candidates AS (
			SELECT id FROM %s
			WHERE job_type = $2
			  AND status = 'waiting'
			  AND batch_id IS NULL
			  AND created_ts <= now()
			ORDER BY priority ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		UPDATE %s
		SET batch_id = $1, started_ts = now(), status = 'processing'
		WHERE id IN (SELECT id FROM candidates) AND batch_id IS NULL
	`, s.table, s.table)

	tag, err := s.pool.Exec(ctx, tagSQL, batchID, jobType, n)
	if err != nil {
		return nil, &ErrTransientStore{Op: "claim_tag", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	readSQL := fmt.Sprintf(`
		SELECT %s FROM %s WHERE batch_id = $1 ORDER BY priority ASC
	`, jobColumns, s.table)
	rows, err := s.pool.Query(ctx, readSQL, batchID)
	if err != nil {
		return nil, &ErrTransientStore{Op: "claim_read", Err: err}
	}
	defer rows.Close()

	jobs := make([]Job, 0, tag.RowsAffected())
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, &ErrTransientStore{Op: "claim_scan", Err: err}
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, &ErrTransientStore{Op: "claim_read", Err: err}
	}
	// rows.Next() returning fewer than tag.RowsAffected() would mean a
	// prior crashed tag event already held some of these ids — that
	// cannot happen here because the UPDATE predicate requires
	// batch_id IS NULL, but a recovered row re-tagged under this same
	// batch_id is exactly what the read-back is defending against per
	// §4.1 step 4; Recoverer (not Claim) is what repairs that case.
	return jobs, nil
}

// Finalize records a terminal outcome (§4.1, "Finalize"). batch_id is
// left untouched so the row stays distinguishable from a never-claimed
// one for forensics (I2).
func (s *Store) Finalize(ctx context.Context, id int64, status Status, result string) error {
	if status != StatusSuccess && status != StatusError {
		return &ErrConfig{Reason: "finalize status must be success or error"}
	}
	sql := fmt.Sprintf(`
		UPDATE %s
		SET status = $2,
		    result = $3,
		    running_time = GREATEST(0, EXTRACT(EPOCH FROM (now() - started_ts)))::int
		WHERE id = $1
	`, s.table)
	_, err := s.pool.Exec(ctx, sql, id, status, result)
	if err != nil {
		return &ErrTransientStore{Op: "finalize", Err: err}
	}
	return nil
}

// Requeue implements the retry path (§4.1, "Requeue"): the row goes
// back to waiting, its claim is released, and it becomes eligible again
// after delay.
func (s *Store) Requeue(ctx context.Context, id int64, delay time.Duration) error {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET status = 'waiting', batch_id = NULL, created_ts = now() + ($2 * interval '1 second')
		WHERE id = $1
	`, s.table)
	_, err := s.pool.Exec(ctx, sql, id, delay.Seconds())
	if err != nil {
		return &ErrTransientStore{Op: "requeue", Err: err}
	}
	return nil
}

// ScanStuck returns the ids of rows that have been processing longer
// than threshold (§4.1, "ScanStuck").
func (s *Store) ScanStuck(ctx context.Context, jobType string, threshold time.Duration) ([]int64, error) {
	sql := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE job_type = $1 AND status = 'processing' AND started_ts < now() - ($2 * interval '1 second')
	`, s.table)
	rows, err := s.pool.Query(ctx, sql, jobType, threshold.Seconds())
	if err != nil {
		return nil, &ErrTransientStore{Op: "scan_stuck", Err: err}
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, &ErrTransientStore{Op: "scan_stuck", Err: err}
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RecoverStuck flips every row processing longer than threshold back
// to waiting, clears its claim, and marks it recovered (§4.1, I5).
// It returns how many rows were moved.
func (s *Store) RecoverStuck(ctx context.Context, jobType string, threshold time.Duration) (int, error) {
	sql := fmt.Sprintf(`
		UPDATE %s
		SET status = 'waiting', batch_id = NULL, recovered = true
		WHERE job_type = $1 AND status = 'processing' AND started_ts < now() - ($2 * interval '1 second')
	`, s.table)
	tag, err := s.pool.Exec(ctx, sql, jobType, threshold.Seconds())
	if err != nil {
		return 0, &ErrTransientStore{Op: "recover_stuck", Err: err}
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes the row with the given id, whatever its status. The
// engine never calls this itself
// (§3, "deletion is the operator's responsibility"); it is exposed for
// operator tooling (cmd/cli, the admin API).
func (s *Store) Delete(ctx context.Context, id int64) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	_, err := s.pool.Exec(ctx, sql, id)
	if err != nil {
		return &ErrTransientStore{Op: "delete", Err: err}
	}
	return nil
}

// ListJobsInput filters Store.ListJobs (supplemented feature: an
// operator-facing read path, SPEC_FULL.md supplemented feature 3).
type ListJobsInput struct {
	JobType string
	Status  Status
	Limit   int
	Offset  int
}

// ListJobs returns a page of jobs matching the given filters, newest
// first, for the admin API's job-listing endpoint.
func (s *Store) ListJobs(ctx context.Context, in ListJobsInput) ([]Job, error) {
	limit := in.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var conditions []string
	var args []any
	if in.JobType != "" {
		args = append(args, in.JobType)
		conditions = append(conditions, fmt.Sprintf("job_type = $%d", len(args)))
	}
	if in.Status != "" {
		args = append(args, in.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, limit, in.Offset)
	sql := fmt.Sprintf(`
		SELECT %s FROM %s
		%s
		ORDER BY id DESC
		LIMIT $%d OFFSET $%d
	`, jobColumns, s.table, where, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &ErrTransientStore{Op: "list_jobs", Err: err}
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, &ErrTransientStore{Op: "list_jobs", Err: err}
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJob fetches a single row by id, for the admin API and tests.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, jobColumns, s.table)
	job, err := scanJob(s.pool.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &ErrTransientStore{Op: "get_job", Err: err}
	}
	return &job, nil
}
