package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
)

// txKey is the context key holding the transaction shared by nested calls
type txKey struct{}

// TxOption modifies the options of a transaction started by WithTransaction.
type TxOption func(opts *sql.TxOptions)

// ReadOnly marks the transaction as read-only.
func ReadOnly() TxOption {
	return func(opts *sql.TxOptions) {
		opts.ReadOnly = true
	}
}

// WithIsolationLevel sets the isolation level of the transaction.
func WithIsolationLevel(level sql.IsolationLevel) TxOption {
	return func(opts *sql.TxOptions) {
		opts.Isolation = level
	}
}

// conn is implemented by both *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTransaction runs f inside a transaction carried by the context passed to f.
// Every Source call made with that context joins the transaction. When ctx already
// carries one, f runs in it and opts are ignored.
func (s *Source) WithTransaction(ctx context.Context, f func(ctx context.Context) error, opts ...TxOption) (err error) {
	if _, alreadyInTx := ctx.Value(txKey{}).(*sql.Tx); alreadyInTx {
		return f(ctx)
	}

	var txOpts *sql.TxOptions
	if len(opts) > 0 {
		txOpts = &sql.TxOptions{}
	}
	for _, opt := range opts {
		opt(txOpts)
	}

	select {
	default:
	case <-ctx.Done():
		return ctx.Err()
	}

	tx, err := s.db.BeginTx(ctx, txOpts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if perr := recover(); perr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Warn("sqlsource: transaction rollback error", "error", rbErr)
			}

			err = fmt.Errorf("panic recovered:\n%v\n%s", perr, stackTrace())
		}
	}()

	if err = f(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && ctx.Err() == nil {
			s.logger.Warn("sqlsource: transaction rollback error", "error", rbErr)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// conn returns the transaction carried by ctx, or the database otherwise.
func (s *Source) conn(ctx context.Context) conn {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

func stackTrace() string {
	const size = 4096
	buf := make([]byte, size)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
