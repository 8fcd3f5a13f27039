// Package conn opens connections from canonical descriptors and manages
// their lifecycle: deterministic double-close-safe release, statement
// execution, and nesting-aware transaction scopes with rollback-only
// propagation.
//
// A Conn wraps one dedicated driver session and is single-owner: it must
// not be shared across goroutines without external synchronization.
package conn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ekaya-inc/dbconn/pkg/descriptor"
	"github.com/ekaya-inc/dbconn/pkg/dialect"
	"github.com/ekaya-inc/dbconn/pkg/logging"
	"github.com/ekaya-inc/dbconn/pkg/pool"
	"github.com/ekaya-inc/dbconn/pkg/retry"
)

// dbtx is the subset of database/sql handles statements run against.
// Both *sql.Conn and *sql.Tx satisfy it, so execution transparently
// routes through the active transaction when one is open.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var (
	_ dbtx = (*sql.Conn)(nil)
	_ dbtx = (*sql.Tx)(nil)
)

// Conn is a live database connection bound to one driver session. The
// raw handles are exclusively owned: no other component may touch them
// directly.
type Conn struct {
	id      uuid.UUID
	desc    descriptor.Descriptor
	dialect dialect.Dialect
	logger  *zap.Logger

	db      *sql.DB
	session *sql.Conn

	// Transaction state, mutated only by RunInTransaction and
	// MarkRollbackOnly.
	tx           *sql.Tx
	inTx         bool
	rollbackOnly bool
	savepointSeq int

	closed bool
}

// Open establishes a connection from any accepted descriptor shape.
//
// The pipeline is: normalize the descriptor, resolve a dialect (explicit
// DriverClass wins over subprotocol), apply the pool adapter if one is
// selected, render the DSN, open the driver handle, pin a dedicated
// session, and configure the session isolation level when the descriptor
// asks for one.
func Open(ctx context.Context, input any, opts ...Option) (*Conn, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	desc, err := descriptor.Normalize(input)
	if err != nil {
		return nil, err
	}
	if desc.Isolation == descriptor.IsolationNone {
		desc.Isolation = o.cfg.Isolation()
	}

	d, err := dialect.ResolveFor(desc)
	if err != nil {
		return nil, err
	}

	adapter := o.poolAdapter
	if adapter == nil {
		if name := desc.Extra["pool"]; name != "" {
			adapter, err = pool.Resolve(name)
			if err != nil {
				return nil, err
			}
			// Strip the selector without mutating the caller's map.
			extra := make(map[string]string, len(desc.Extra)-1)
			for k, v := range desc.Extra {
				if k != "pool" {
					extra[k] = v
				}
			}
			desc.Extra = extra
		}
	}
	if adapter != nil {
		desc, err = adapter.Transform(desc)
		if err != nil {
			return nil, err
		}
	}

	dsn, err := d.DSN(desc)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnection, logging.SanitizeError(err))
	}
	db.SetMaxOpenConns(o.cfg.MaxOpenConns)
	db.SetMaxIdleConns(o.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(o.cfg.ConnMaxLifetime())
	db.SetConnMaxIdleTime(o.cfg.ConnMaxIdleTime())

	session, err := retry.DoWithResult(ctx, o.retryCfg, func() (*sql.Conn, error) {
		return db.Conn(ctx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s", ErrConnection, logging.SanitizeError(err))
	}

	c := &Conn{
		id:      uuid.New(),
		desc:    desc,
		dialect: d,
		logger:  o.logger,
		db:      db,
		session: session,
	}

	if desc.Isolation != descriptor.IsolationNone {
		if err := c.applyIsolation(ctx, desc.Isolation); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.logger.Debug("connection opened",
		zap.String("conn_id", c.id.String()),
		zap.String("dialect", d.Name),
		zap.String("dsn", logging.SanitizeConnectionString(dsn)),
	)

	return c, nil
}

// applyIsolation issues exactly one vendor-level isolation statement.
func (c *Conn) applyIsolation(ctx context.Context, level descriptor.Isolation) error {
	stmt, err := c.dialect.IsolationStmt(level)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if _, err := c.session.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: set isolation level: %s", ErrConnection, logging.SanitizeError(err))
	}
	return nil
}

// handle returns the target statements run against: the open transaction
// when one exists, the bare session otherwise.
func (c *Conn) handle() dbtx {
	if c.tx != nil {
		return c.tx
	}
	return c.session
}

// ID returns the correlation id used in log output.
func (c *Conn) ID() uuid.UUID { return c.id }

// Descriptor returns the (post-transform) canonical descriptor this
// connection was opened from.
func (c *Conn) Descriptor() descriptor.Descriptor { return c.desc }

// Dialect returns the dialect serving this connection.
func (c *Conn) Dialect() dialect.Dialect { return c.dialect }

// InTransaction reports whether a transaction scope is open.
func (c *Conn) InTransaction() bool { return c.inTx }

// RollbackOnly reports whether the current transaction has been marked
// rollback-only.
func (c *Conn) RollbackOnly() bool { return c.inTx && c.rollbackOnly }

// Close releases the connection. It is idempotent: the first call
// cascade-closes everything the Conn exclusively owns (aborting any
// still-open transaction first), subsequent calls are no-ops.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs error

	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && err != sql.ErrTxDone {
			errs = multierr.Append(errs, fmt.Errorf("%w: abort transaction: %v", ErrRelease, err))
		}
		c.resetTxState()
	}

	if c.session != nil {
		if err := c.session.Close(); err != nil && err != sql.ErrConnDone {
			errs = multierr.Append(errs, fmt.Errorf("%w: close session: %v", ErrRelease, err))
		}
		c.session = nil
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: close handle: %v", ErrRelease, err))
		}
		c.db = nil
	}

	if errs != nil {
		c.logger.Warn("connection closed with errors",
			zap.String("conn_id", c.id.String()),
			zap.String("error", logging.SanitizeError(errs)),
		)
		return errs
	}

	c.logger.Debug("connection closed", zap.String("conn_id", c.id.String()))
	return nil
}

func (c *Conn) resetTxState() {
	c.tx = nil
	c.inTx = false
	c.rollbackOnly = false
	c.savepointSeq = 0
}
