package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Transactor runs fn inside one database transaction. Repos called with the
// ctx passed to fn join it.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ Transactor = (*TxManager)(nil)

type TxManager struct {
	db   *DB
	opts pgx.TxOptions
	log  *zap.Logger
}

func NewTransactor(db *DB, logger *zap.Logger) *TxManager {
	return &TxManager{
		db:   db,
		opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted},
		log:  obs.Component(logger, "postgres.transactor"),
	}
}

// WithTx joins a transaction already carried by ctx; only the outermost call
// commits or rolls back. A panic in fn rolls back and is re-raised.
func (t *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) (txErr error) {
	if _, ok := txFrom(ctx); ok {
		return fn(ctx)
	}

	ctx, span := otel.Tracer("postgres").Start(ctx, "postgres.tx")
	defer func() {
		obs.FailSpan(span, txErr)
		span.End()
	}()

	tx, err := t.db.Pool.BeginTx(ctx, t.opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			t.rollback(ctx, tx)
			panic(p)
		}
		if txErr != nil {
			t.rollback(ctx, tx)
			return
		}
		if err := tx.Commit(ctx); err != nil {
			obs.WithTrace(ctx, t.log).Error("commit", zap.Error(err))
			txErr = fmt.Errorf("commit tx: %w", err)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, tx))
}

func (t *TxManager) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		obs.WithTrace(ctx, t.log).Error("rollback", zap.Error(err))
	}
}

type txKey struct{}

func txFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok && tx != nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// execQueryer returns the transaction carried by ctx, or the pool.
func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return db.Pool
}
