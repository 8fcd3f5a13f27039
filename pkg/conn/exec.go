package conn

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconn/pkg/logging"
)

// Execute runs a single DML/DDL statement and returns the affected row
// count. Inside a transaction scope the statement joins the transaction.
func (c *Conn) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	if c.closed {
		return 0, ErrClosed
	}

	res, err := c.handle().ExecContext(ctx, query, args...)
	if err != nil {
		c.logger.Debug("statement failed",
			zap.String("conn_id", c.id.String()),
			zap.String("query", logging.SanitizeQuery(query)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return 0, fmt.Errorf("%w: %s", ErrStatement, logging.SanitizeError(err))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		// Some drivers cannot report a count; treat that as zero rather
		// than failing a statement that already succeeded.
		return 0, nil
	}
	return affected, nil
}

// ExecutePrepared prepares a statement once and executes it for each
// parameter group, returning the affected count per group. The prepared
// statement is released before returning on every path.
func (c *Conn) ExecutePrepared(ctx context.Context, query string, paramGroups [][]any) (counts []int64, err error) {
	if c.closed {
		return nil, ErrClosed
	}

	stmt, err := c.handle().PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare: %s", ErrStatement, logging.SanitizeError(err))
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close statement: %v", ErrRelease, cerr)
		}
	}()

	counts = make([]int64, 0, len(paramGroups))
	for i, params := range paramGroups {
		res, execErr := stmt.ExecContext(ctx, params...)
		if execErr != nil {
			return nil, fmt.Errorf("%w: group %d: %s", ErrStatement, i, logging.SanitizeError(execErr))
		}
		affected, raErr := res.RowsAffected()
		if raErr != nil {
			affected = 0
		}
		counts = append(counts, affected)
	}
	return counts, nil
}

// Query runs a SELECT and returns its result. By default the rows are
// materialized eagerly and the underlying handles are closed before
// returning; pass Lazy() to keep the handles open and stream rows
// through QueryResult.Next.
func (c *Conn) Query(ctx context.Context, query string, args []any, opts ...QueryOption) (*QueryResult, error) {
	if c.closed {
		return nil, ErrClosed
	}

	var qo queryOptions
	for _, opt := range opts {
		opt(&qo)
	}

	stmt, err := c.handle().PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: prepare: %s", ErrStatement, logging.SanitizeError(err))
	}

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		stmt.Close()
		return nil, fmt.Errorf("%w: %s", ErrStatement, logging.SanitizeError(err))
	}

	result := &QueryResult{stmt: stmt, rows: rows, lazy: qo.lazy}
	if err := result.init(); err != nil {
		result.Close()
		return nil, err
	}

	if !qo.lazy {
		if err := result.materialize(); err != nil {
			result.Close()
			return nil, err
		}
		if err := result.Close(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type queryOptions struct {
	lazy bool
}

// QueryOption customizes Query.
type QueryOption func(*queryOptions)

// Lazy defers row materialization: the statement and result-set handles
// stay open until the result is closed or exhausted.
func Lazy() QueryOption {
	return func(o *queryOptions) { o.lazy = true }
}
