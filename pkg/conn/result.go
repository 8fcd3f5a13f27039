package conn

import (
	"database/sql"
	"fmt"

	"go.uber.org/multierr"
)

// ColumnInfo describes a result column with its database type name.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResult holds the outcome of a query. In eager mode (the default)
// all rows are materialized up front and the driver handles are already
// released; in lazy mode rows stream through Next and the handles stay
// open until Close or exhaustion. The statement and result-set handles
// are exclusively owned by the result.
type QueryResult struct {
	stmt *sql.Stmt
	rows *sql.Rows

	lazy    bool
	columns []ColumnInfo
	data    []map[string]any
	cursor  int
	closed  bool
}

// Lazy reports whether the result streams rows on demand.
func (r *QueryResult) Lazy() bool { return r.lazy }

// Columns describes the result columns.
func (r *QueryResult) Columns() []ColumnInfo { return r.columns }

// Data returns the materialized rows. It is nil for a lazy result that
// has not been consumed.
func (r *QueryResult) Data() []map[string]any { return r.data }

// init captures column metadata before any row is read.
func (r *QueryResult) init() error {
	names, err := r.rows.Columns()
	if err != nil {
		return fmt.Errorf("%w: columns: %v", ErrStatement, err)
	}

	r.columns = make([]ColumnInfo, len(names))
	for i, name := range names {
		r.columns[i] = ColumnInfo{Name: name}
	}

	// Type names are best-effort; not every driver reports them.
	if types, err := r.rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			if i < len(r.columns) && ct != nil {
				r.columns[i].Type = ct.DatabaseTypeName()
			}
		}
	}
	return nil
}

// materialize drains the result set into memory.
func (r *QueryResult) materialize() error {
	r.data = make([]map[string]any, 0)
	for r.rows.Next() {
		row, err := r.scanRow()
		if err != nil {
			return err
		}
		r.data = append(r.data, row)
	}
	if err := r.rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStatement, err)
	}
	return nil
}

// Next returns the next row. For eager results it walks the materialized
// data; for lazy results it advances the live cursor, releasing the
// underlying handles once the sequence is exhausted.
func (r *QueryResult) Next() (map[string]any, bool, error) {
	if r.data != nil {
		if r.cursor >= len(r.data) {
			return nil, false, nil
		}
		row := r.data[r.cursor]
		r.cursor++
		return row, true, nil
	}

	if r.closed {
		return nil, false, nil
	}

	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			r.Close()
			return nil, false, fmt.Errorf("%w: %v", ErrStatement, err)
		}
		if err := r.Close(); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	row, err := r.scanRow()
	if err != nil {
		r.Close()
		return nil, false, err
	}
	return row, true, nil
}

func (r *QueryResult) scanRow() (map[string]any, error) {
	values := make([]any, len(r.columns))
	ptrs := make([]any, len(r.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("%w: scan: %v", ErrStatement, err)
	}

	row := make(map[string]any, len(r.columns))
	for i, col := range r.columns {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[col.Name] = v
	}
	return row, nil
}

// Close releases the statement and result-set handles. It is idempotent.
func (r *QueryResult) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var errs error
	if r.rows != nil {
		if err := r.rows.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: close rows: %v", ErrRelease, err))
		}
	}
	if r.stmt != nil {
		if err := r.stmt.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: close statement: %v", ErrRelease, err))
		}
	}
	return errs
}
