package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore is the PostgreSQL-backed Store used by the market variant.
type PgStore struct {
	pool       *pgxpool.Pool
	maxRetries int
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, maxRetries: 3}
}

func (s *PgStore) Catalog() Catalog { return pgCatalog{q: s.pool} }
func (s *PgStore) Ledger() Ledger   { return pgLedger{q: s.pool} }
func (s *PgStore) Users() Users     { return pgUsers{q: s.pool} }

type pgTx struct{ q querier }

func (t pgTx) Catalog() Catalog { return pgCatalog{q: t.q} }
func (t pgTx) Ledger() Ledger   { return pgLedger{q: t.q} }
func (t pgTx) Users() Users     { return pgUsers{q: t.q} }

// InTx runs fn in a read-committed transaction. Serialization failures and
// deadlocks are retried with jittered backoff; every other error rolls back and
// is returned as is.
func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	backoff := 50 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = s.runTx(ctx, fn)
		if lastErr == nil || !isRetryable(lastErr) {
			return lastErr
		}
		log.WithFields(log.Fields{"attempt": attempt + 1, "error": lastErr}).Warn("retrying transaction")
		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", s.maxRetries, lastErr)
}

func (s *PgStore) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return persistErr("begin transaction", err)
	}
	if err := fn(pgTx{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return persistErr("commit transaction", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
