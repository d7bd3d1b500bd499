package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "beacon/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

// Runner executes a function inside one unit of work. SQL-backed stores join
// the transaction through the context (WithTx/From); in-memory stores run
// the function as-is via Passthrough.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs the function inside a *sql.Tx carried in the context.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLRunner constructs a transaction runner over db.
func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db, timeout: defaultTxTimeout}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Passthrough runs the function without transactional boundaries. Used with
// in-memory stores, whose operations are individually atomic.
type Passthrough struct{}

func (Passthrough) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
