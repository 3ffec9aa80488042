package dbmo_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/mirrortom/dbmo"
	"github.com/mirrortom/dbmo/drivers/ansi"
)

const fakeDriverName = "dbmofake"

// fakeBackend records what reaches the driver. One backend per test, addressed by DSN.
type fakeBackend struct {
	mu sync.Mutex

	opens     int
	begins    int
	commits   int
	rollbacks int
	execs     []fakeCall
	queries   []fakeCall

	failCommit error
	failExec   error
	failPing   error

	// failRollback fails a ROLLBACK statement sent outside a driver.Tx
	failRollback error

	results  map[string]fakeRows
	outValue int64
}

type fakeCall struct {
	query string
	args  []driver.NamedValue
}

type fakeRows struct {
	columns []string
	values  [][]driver.Value
}

var (
	backendsMu sync.Mutex
	backends   = map[string]*fakeBackend{}
)

func init() {
	ansi.RegisterCustomDriver(fakeDriverName, fakeDriver{})
}

// newFakeEngine returns an engine whose statements reach a fresh fake backend. The fake binds
// with ? placeholders, like MySQL.
func newFakeEngine(t *testing.T, opts ...dbmo.Option) (*dbmo.Engine, *fakeBackend) {
	t.Helper()
	b := &fakeBackend{results: map[string]fakeRows{}, outValue: 42}
	dsn := t.Name()
	backendsMu.Lock()
	backends[dsn] = b
	backendsMu.Unlock()

	e, err := dbmo.New(ansi.New(fakeDriverName, ansi.WithStyle(ansi.Question)), dsn, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = e.Close()
		backendsMu.Lock()
		delete(backends, dsn)
		backendsMu.Unlock()
	})
	return e, b
}

func (b *fakeBackend) counts() (opens, begins, commits, rollbacks int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens, b.begins, b.commits, b.rollbacks
}

func (b *fakeBackend) execCalls() []fakeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]fakeCall(nil), b.execs...)
}

func (b *fakeBackend) queryCalls() []fakeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]fakeCall(nil), b.queries...)
}

type fakeDriver struct{}

func (fakeDriver) Open(dsn string) (driver.Conn, error) {
	backendsMu.Lock()
	b, ok := backends[dsn]
	backendsMu.Unlock()
	if !ok {
		return nil, errors.New("fake: unknown backend " + dsn)
	}
	b.mu.Lock()
	b.opens++
	b.mu.Unlock()
	return &fakeConn{b: b}, nil
}

type fakeConn struct{ b *fakeBackend }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("fake: prepare not supported")
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) Ping(context.Context) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	return c.b.failPing
}

func (b *fakeBackend) setPingError(err error) {
	b.mu.Lock()
	b.failPing = err
	b.mu.Unlock()
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *fakeConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	c.b.begins++
	return &fakeTx{b: c.b}, nil
}

// CheckNamedValue passes sql.Out through and converts everything else the default way.
func (c *fakeConn) CheckNamedValue(nv *driver.NamedValue) error {
	if _, ok := nv.Value.(sql.Out); ok {
		return nil
	}
	v, err := driver.DefaultParameterConverter.ConvertValue(nv.Value)
	if err != nil {
		return err
	}
	nv.Value = v
	return nil
}

func (c *fakeConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if strings.EqualFold(query, "ROLLBACK") {
		if c.b.failRollback != nil {
			return nil, c.b.failRollback
		}
		c.b.rollbacks++
		return driver.RowsAffected(0), nil
	}
	c.b.execs = append(c.b.execs, fakeCall{query: query, args: args})
	if c.b.failExec != nil {
		return nil, c.b.failExec
	}
	for _, a := range args {
		out, ok := a.Value.(sql.Out)
		if !ok {
			continue
		}
		switch dest := out.Dest.(type) {
		case *int64:
			*dest = c.b.outValue
		case *string:
			*dest = "out"
		case *any:
			*dest = c.b.outValue
		}
	}
	return driver.RowsAffected(1), nil
}

func (c *fakeConn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	c.b.queries = append(c.b.queries, fakeCall{query: query, args: args})
	if c.b.failExec != nil {
		return nil, c.b.failExec
	}
	res, ok := c.b.results[query]
	if !ok {
		return nil, errors.New("fake: no result for " + query)
	}
	return &fakeRowsIter{rows: res}, nil
}

type fakeTx struct{ b *fakeBackend }

func (t *fakeTx) Commit() error {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	if t.b.failCommit != nil {
		return t.b.failCommit
	}
	t.b.commits++
	return nil
}

func (t *fakeTx) Rollback() error {
	t.b.mu.Lock()
	defer t.b.mu.Unlock()
	t.b.rollbacks++
	return nil
}

type fakeRowsIter struct {
	rows fakeRows
	pos  int
}

func (r *fakeRowsIter) Columns() []string { return r.rows.columns }

func (r *fakeRowsIter) Close() error { return nil }

func (r *fakeRowsIter) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows.values) {
		return io.EOF
	}
	copy(dest, r.rows.values[r.pos])
	r.pos++
	return nil
}

// captureLogger collects engine diagnostics.
type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level  dbmo.LogLevel
	msg    string
	fields map[string]any
}

func (c *captureLogger) Log(level dbmo.LogLevel, msg string, fields map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, logEntry{level, msg, fields})
}

func (c *captureLogger) find(msg string) (logEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if strings.EqualFold(e.msg, msg) {
			return e, true
		}
	}
	return logEntry{}, false
}

func (c *captureLogger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
