package conn

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconn/pkg/logging"
)

// TxFn is the body of a transaction scope. It receives the same Conn the
// scope was opened on; statements it issues join the transaction.
type TxFn func(ctx context.Context, c *Conn) error

// RunInTransaction executes fn inside a transaction scope.
//
// The outermost call begins a real vendor transaction. Re-entrant calls
// on the same Conn open a savepoint instead, so nesting is structural:
// depth is the call stack, not a counter. A nested scope that fails (or
// is marked rollback-only) rolls back to its savepoint and poisons every
// ancestor — the outermost scope then rolls back even if its own body
// succeeded. This makes the whole nesting atomic: a failure anywhere
// aborts the entire outer unit of work.
//
// Callers never roll back manually; any error returned by fn (or any
// panic) has already triggered the appropriate rollback by the time it
// propagates.
func RunInTransaction(ctx context.Context, c *Conn, fn TxFn) error {
	if c.closed {
		return ErrClosed
	}
	if c.inTx {
		return c.runSavepointScope(ctx, fn)
	}
	return c.runOuterScope(ctx, fn)
}

// MarkRollbackOnly forces the current transaction to roll back at the
// outermost scope without raising an error. Fails with
// ErrNoActiveTransaction outside a transaction scope.
func MarkRollbackOnly(c *Conn) error {
	if c.closed {
		return ErrClosed
	}
	if !c.inTx {
		return ErrNoActiveTransaction
	}
	c.rollbackOnly = true
	return nil
}

func (c *Conn) runOuterScope(ctx context.Context, fn TxFn) (err error) {
	tx, err := c.session.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %s", ErrStatement, logging.SanitizeError(err))
	}
	c.tx = tx
	c.inTx = true
	c.rollbackOnly = false
	c.savepointSeq = 0

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				c.logger.Error("failed to roll back transaction after panic",
					zap.String("conn_id", c.id.String()),
					zap.String("error", logging.SanitizeError(rbErr)),
					zap.Any("panic", p),
				)
			}
			c.resetTxState()
			panic(p)
		}
	}()

	if err = fn(ctx, c); err != nil {
		rbErr := tx.Rollback()
		c.resetTxState()
		if rbErr != nil {
			c.logger.Error("failed to roll back transaction",
				zap.String("conn_id", c.id.String()),
				zap.String("rollback_error", logging.SanitizeError(rbErr)),
				zap.String("original_error", logging.SanitizeError(err)),
			)
			err = multierr.Append(err, fmt.Errorf("%w: rollback: %v", ErrStatement, rbErr))
		}
		return err
	}

	if c.rollbackOnly {
		rbErr := tx.Rollback()
		c.resetTxState()
		if rbErr != nil {
			return fmt.Errorf("%w: rollback: %s", ErrStatement, logging.SanitizeError(rbErr))
		}
		c.logger.Debug("transaction rolled back (marked rollback-only)",
			zap.String("conn_id", c.id.String()))
		return nil
	}

	cmErr := tx.Commit()
	c.resetTxState()
	if cmErr != nil {
		return fmt.Errorf("%w: commit: %s", ErrStatement, logging.SanitizeError(cmErr))
	}
	c.logger.Debug("transaction committed", zap.String("conn_id", c.id.String()))
	return nil
}

// runSavepointScope handles re-entrant calls: a nested scope is a
// savepoint inside the already-open transaction. Savepoint names are
// generated fresh per call from a sequence that only resets when the
// outer transaction ends, so re-entering at the same depth never reuses
// a name.
func (c *Conn) runSavepointScope(ctx context.Context, fn TxFn) (err error) {
	c.savepointSeq++
	name := fmt.Sprintf("dbconn_sp_%d", c.savepointSeq)

	if _, spErr := c.tx.ExecContext(ctx, "SAVEPOINT "+name); spErr != nil {
		c.rollbackOnly = true
		return fmt.Errorf("%w: savepoint %s: %s", ErrStatement, name, logging.SanitizeError(spErr))
	}

	defer func() {
		if p := recover(); p != nil {
			c.rollbackOnly = true
			if _, rbErr := c.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
				c.logger.Error("failed to roll back to savepoint after panic",
					zap.String("conn_id", c.id.String()),
					zap.String("savepoint", name),
					zap.String("error", logging.SanitizeError(rbErr)),
				)
			}
			panic(p)
		}
	}()

	if err = fn(ctx, c); err != nil {
		c.rollbackOnly = true
		if _, rbErr := c.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: rollback to savepoint %s: %v", ErrStatement, name, rbErr))
		}
		return err
	}

	// Virtual commit: release the savepoint and defer the real decision
	// to the outermost scope.
	if _, relErr := c.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
		c.rollbackOnly = true
		return fmt.Errorf("%w: release savepoint %s: %s", ErrStatement, name, logging.SanitizeError(relErr))
	}
	return nil
}
