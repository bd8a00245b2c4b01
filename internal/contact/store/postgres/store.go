// Package postgres implements the contact store on PostgreSQL. Every
// reconciliation runs inside one SERIALIZABLE transaction; conflicting
// interleavings surface as serialization failures which the reconciler
// retries from a fresh snapshot.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lib/pq"

	"linkage/internal/contact"
	"linkage/pkg/platform/sentinel"
	txcontext "linkage/pkg/platform/tx"
)

const (
	defaultMaxWait   = 5 * time.Second
	defaultTxTimeout = 10 * time.Second
)

// Store opens serializable transactions on a shared *sql.DB handle. The
// handle is constructed once at process start and passed in; there are no
// package-level globals.
type Store struct {
	db      *sql.DB
	maxWait time.Duration
	timeout time.Duration
}

// Option tunes transaction time bounds.
type Option func(*Store)

// WithMaxWait bounds how long a transaction may wait on locks.
func WithMaxWait(d time.Duration) Option {
	return func(s *Store) { s.maxWait = d }
}

// WithTimeout bounds a transaction's total runtime.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, maxWait: defaultMaxWait, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx runs fn inside one serializable transaction. The transaction is
// also stored in the context so sibling stores (the audit outbox) can write
// atomically with the graph mutation.
func (s *Store) RunInTx(ctx context.Context, fn func(tx contact.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return classify(err)
	}

	// A shorter caller deadline still wins; a longer one is capped here.
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return classify(err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// lock_timeout caps how long any statement in this transaction blocks
	// on a row lock; the context deadline caps total runtime.
	lockTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.maxWait.Milliseconds())
	if _, err := tx.ExecContext(ctx, lockTimeout); err != nil {
		return classify(err)
	}

	ctx = txcontext.WithTx(ctx, tx)
	if err := fn(&txQueries{tx: tx}); err != nil {
		return err
	}

	// Serialization failures are commonly reported at commit.
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// Ping is the liveness probe: a trivial round-trip query.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return classify(err)
	}
	return nil
}

// Postgres error classes relevant to the reconciler's retry policy.
const (
	pgUniqueViolation      = pq.ErrorCode("23505")
	pgSerializationFailure = pq.ErrorCode("40001")
	pgDeadlockDetected     = pq.ErrorCode("40P01")
	pgLockNotAvailable     = pq.ErrorCode("55P03")
	pgQueryCanceled        = pq.ErrorCode("57014")
)

// classify maps driver and context errors onto the sentinel vocabulary.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", sentinel.ErrUniqueConflict, pqErr.Constraint)
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", sentinel.ErrSerialization, pqErr.Message)
		case pgLockNotAvailable, pgQueryCanceled:
			return fmt.Errorf("%w: %s", sentinel.ErrTimeout, pqErr.Message)
		}
		return fmt.Errorf("postgres: %w", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", sentinel.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	return err
}
