package queue

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// batchIDAllocator produces batch_id values that are unique across all
// workers and all time (§4.1 step 1, I4). The claim protocol only
// relies on uniqueness, not on any particular ordering, so either
// implementation below is a valid default.
type batchIDAllocator interface {
	Next(ctx context.Context) (int64, error)
}

// sequenceBatchIDAllocator draws from a dedicated Postgres sequence —
// the "dedicated sequence row" option named in §4.1. This is the
// default: a single round trip, strictly monotonic, and trivially
// unique under concurrent callers because sequence increments are
// atomic in Postgres.
type sequenceBatchIDAllocator struct {
	pool         *pgxpool.Pool
	sequenceName string
}

func newSequenceBatchIDAllocator(pool *pgxpool.Pool, table string) *sequenceBatchIDAllocator {
	return &sequenceBatchIDAllocator{pool: pool, sequenceName: table + "_batch_id_seq"}
}

func (a *sequenceBatchIDAllocator) Next(ctx context.Context) (int64, error) {
	var id int64
	err := a.pool.QueryRow(ctx, fmt.Sprintf(`SELECT nextval('%s')`, a.sequenceName)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("allocate batch id: %w", err)
	}
	return id, nil
}

// uuidBatchIDAllocator renders a random UUID's first 8 bytes as a
// signed int64 — the "UUID rendered to an integer" option named in
// §4.1. It never touches the database, which makes it useful for a
// Store backed by a read replica or a connection pool under pressure,
// at the cost of losing the monotonic ordering the sequence gives for
// forensics.
type uuidBatchIDAllocator struct{}

func (uuidBatchIDAllocator) Next(context.Context) (int64, error) {
	id := uuid.New()
	n := int64(binary.BigEndian.Uint64(id[:8]))
	if n < 0 {
		n = -n
	}
	return n, nil
}
