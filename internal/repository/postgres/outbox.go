package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/outbox"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var _ outbox.Repository = (*OutboxRepo)(nil)

type OutboxRepo struct{ db *DB }

func NewOutboxRepo(db *DB) *OutboxRepo { return &OutboxRepo{db: db} }

const maxErrorLen = 512

const outboxColumns = `idempotency_key, kind, data, status, attempts, last_error, created_at, updated_at,
       traceparent, tracestate, baggage`

const (
	qEnqueue = `
INSERT INTO outbox (idempotency_key, data, status, kind, traceparent, tracestate, baggage)
VALUES ($1, $2, 'CREATED', $3, $4, $5, $6)
ON CONFLICT (idempotency_key) DO NOTHING;`

	qPick = `
WITH cand AS (
   SELECT idempotency_key
   FROM outbox
   WHERE status = 'CREATED'
      OR (status = 'IN_PROGRESS' AND updated_at < now() - make_interval(secs => $2::float8))
   ORDER BY created_at
   LIMIT $1
   FOR UPDATE SKIP LOCKED
)
UPDATE outbox o
SET status = 'IN_PROGRESS', updated_at = now()
FROM cand
WHERE o.idempotency_key = cand.idempotency_key
RETURNING ` + outboxColumns + `;`

	qMarkSuccess = `
UPDATE outbox
SET status = 'SUCCESS', last_error = '', updated_at = now()
WHERE idempotency_key = ANY($1);`

	qMarkFailed = `
UPDATE outbox
SET attempts   = attempts + 1,
    last_error = $2,
    status     = CASE WHEN $3::boolean THEN 'FAILED' ELSE status END,
    updated_at = now()
WHERE idempotency_key = $1 AND status <> 'SUCCESS';`

	qListFailed = `
SELECT ` + outboxColumns + `
FROM outbox
WHERE status = 'FAILED'
ORDER BY updated_at DESC
LIMIT $1;`
)

// Enqueue stores the caller's trace context next to the row so the runner
// can continue the same trace. Inside WithTx the row commits with the caller's
// writes.
func (r *OutboxRepo) Enqueue(ctx context.Context, key string, kind outbox.Kind, data []byte) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	eq := r.db.execQueryer(ctx)
	if _, err := eq.Exec(ctx, qEnqueue, key, data, kind,
		carrier.Get("traceparent"), carrier.Get("tracestate"), carrier.Get("baggage")); err != nil {
		return fmt.Errorf("outbox enqueue %s: %w", kind, err)
	}
	return nil
}

// PickBatch claims up to batch rows. Rows stuck IN_PROGRESS longer than
// inProgressTTL are treated as abandoned by a crashed worker and reclaimed.
func (r *OutboxRepo) PickBatch(ctx context.Context, batch int, inProgressTTL time.Duration) ([]outbox.Message, error) {
	if batch <= 0 {
		return nil, errors.New("batch must be > 0")
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qPick, batch, inProgressTTL.Seconds())
	if err != nil {
		return nil, fmt.Errorf("outbox pick: %w", err)
	}
	return collectMessages(rows)
}

func (r *OutboxRepo) MarkSuccess(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	if _, err := r.db.Pool.Exec(ctx, qMarkSuccess, keys); err != nil {
		return fmt.Errorf("outbox mark success: %w", err)
	}
	return nil
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, key, reason string, dead bool) error {
	if len(reason) > maxErrorLen {
		reason = reason[:maxErrorLen]
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	if _, err := r.db.Pool.Exec(ctx, qMarkFailed, key, reason, dead); err != nil {
		return fmt.Errorf("outbox mark failed: %w", err)
	}
	return nil
}

// ListFailed returns parked rows, newest first, for inspection and replay.
func (r *OutboxRepo) ListFailed(ctx context.Context, limit int) ([]outbox.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Pool.Query(ctx, qListFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox list failed: %w", err)
	}
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]outbox.Message, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.Message, error) {
		var m outbox.Message
		var status string
		err := row.Scan(&m.IdempotencyKey, &m.Kind, &m.Data, &status, &m.Attempts, &m.LastError,
			&m.CreatedAt, &m.UpdatedAt, &m.Traceparent, &m.Tracestate, &m.Baggage)
		m.Status = outbox.Status(status)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("outbox scan: %w", err)
	}
	return out, nil
}
