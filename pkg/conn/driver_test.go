package conn

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ekaya-inc/dbconn/pkg/descriptor"
	"github.com/ekaya-inc/dbconn/pkg/dialect"
)

// recorder captures every driver-level event in order so tests can
// assert on the exact vendor traffic a scenario produces. Events can be
// forced to fail by substring.
type recorder struct {
	mu     sync.Mutex
	events []string
	failOn map[string]error
}

func (r *recorder) record(event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	for sub, err := range r.failOn {
		if strings.Contains(event, sub) {
			return err
		}
	}
	return nil
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(sub string) int {
	n := 0
	for _, ev := range r.list() {
		if strings.Contains(ev, sub) {
			n++
		}
	}
	return n
}

type fakeDriver struct{ rec *recorder }

func (d *fakeDriver) Open(string) (driver.Conn, error) {
	if err := d.rec.record("open"); err != nil {
		return nil, err
	}
	return &fakeDriverConn{rec: d.rec}, nil
}

type fakeDriverConn struct{ rec *recorder }

var (
	_ driver.Conn          = (*fakeDriverConn)(nil)
	_ driver.ConnBeginTx   = (*fakeDriverConn)(nil)
	_ driver.ExecerContext = (*fakeDriverConn)(nil)
)

func (c *fakeDriverConn) Prepare(query string) (driver.Stmt, error) {
	if err := c.rec.record("prepare:" + query); err != nil {
		return nil, err
	}
	return &fakeStmt{rec: c.rec, query: query}, nil
}

func (c *fakeDriverConn) Close() error {
	return c.rec.record("conn-close")
}

func (c *fakeDriverConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *fakeDriverConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if err := c.rec.record("begin"); err != nil {
		return nil, err
	}
	return &fakeTx{rec: c.rec}, nil
}

func (c *fakeDriverConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	if err := c.rec.record("exec:" + query); err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

type fakeTx struct{ rec *recorder }

func (t *fakeTx) Commit() error   { return t.rec.record("commit") }
func (t *fakeTx) Rollback() error { return t.rec.record("rollback") }

type fakeStmt struct {
	rec   *recorder
	query string
}

func (s *fakeStmt) Close() error  { return s.rec.record("stmt-close:" + s.query) }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec([]driver.Value) (driver.Result, error) {
	if err := s.rec.record("exec:" + s.query); err != nil {
		return nil, err
	}
	return driver.RowsAffected(1), nil
}

func (s *fakeStmt) Query([]driver.Value) (driver.Rows, error) {
	if err := s.rec.record("query:" + s.query); err != nil {
		return nil, err
	}
	return &fakeRows{rec: s.rec}, nil
}

// fakeRows serves a fixed two-row result set (id, name).
type fakeRows struct {
	rec *recorder
	pos int
}

var fakeRowData = [][2]driver.Value{
	{int64(1), []byte("alpha")},
	{int64(2), []byte("beta")},
}

func (r *fakeRows) Columns() []string { return []string{"id", "name"} }
func (r *fakeRows) Close() error      { return r.rec.record("rows-close") }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(fakeRowData) {
		return io.EOF
	}
	dest[0] = fakeRowData[r.pos][0]
	dest[1] = fakeRowData[r.pos][1]
	r.pos++
	return nil
}

var fakeBackendSeq atomic.Int64

// newFakeBackend registers a fresh fake driver plus a dialect serving it
// and returns the recorder together with a descriptor that resolves to
// the new dialect. Registrations are global, so every call gets unique
// names.
func newFakeBackend(t *testing.T, failOn map[string]error) (*recorder, descriptor.Descriptor) {
	t.Helper()

	n := fakeBackendSeq.Add(1)
	rec := &recorder{failOn: failOn}

	driverName := fmt.Sprintf("fakedrv-%d", n)
	sql.Register(driverName, &fakeDriver{rec: rec})

	name := fmt.Sprintf("fakesql-%d", n)
	dialect.Register(dialect.Dialect{
		Name:        name,
		DriverName:  driverName,
		DisplayName: "Fake SQL",
		DefaultPort: 1,
		DSN: func(d descriptor.Descriptor) (string, error) {
			return name + ":" + d.Subname(), nil
		},
		IsolationStmt: func(level descriptor.Isolation) (string, error) {
			return "SET ISOLATION " + string(level), nil
		},
	})

	return rec, descriptor.Descriptor{
		Subprotocol: name,
		Host:        "db.test",
		Database:    "app",
	}
}
