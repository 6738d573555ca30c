package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync/atomic"
)

// FakeDB is an in-memory database/sql driver that records transaction
// outcomes. It accepts any statement, so unit tests can exercise
// transaction-lifecycle code without a real database.
type FakeDB struct {
	DB *sql.DB

	begins    atomic.Int64
	commits   atomic.Int64
	rollbacks atomic.Int64
}

// NewFakeDB opens a *sql.DB backed by the fake driver.
func NewFakeDB() *FakeDB {
	f := &FakeDB{}
	f.DB = sql.OpenDB(fakeConnector{f: f})
	return f
}

func (f *FakeDB) Begins() int    { return int(f.begins.Load()) }
func (f *FakeDB) Commits() int   { return int(f.commits.Load()) }
func (f *FakeDB) Rollbacks() int { return int(f.rollbacks.Load()) }

type fakeConnector struct{ f *FakeDB }

func (c fakeConnector) Connect(context.Context) (driver.Conn, error) {
	return &fakeConn{f: c.f}, nil
}
func (c fakeConnector) Driver() driver.Driver { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return nil, driver.ErrBadConn }

type fakeConn struct{ f *FakeDB }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) { return &fakeStmt{}, nil }
func (c *fakeConn) Close() error                              { return nil }

func (c *fakeConn) Begin() (driver.Tx, error) {
	c.f.begins.Add(1)
	return &fakeTx{f: c.f}, nil
}

func (c *fakeConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return c.Begin()
}

func (c *fakeConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

func (c *fakeConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return &fakeRows{}, nil
}

type fakeTx struct{ f *FakeDB }

func (t *fakeTx) Commit() error {
	t.f.commits.Add(1)
	return nil
}

func (t *fakeTx) Rollback() error {
	t.f.rollbacks.Add(1)
	return nil
}

type fakeStmt struct{}

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }
func (s *fakeStmt) Exec([]driver.Value) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}
func (s *fakeStmt) Query([]driver.Value) (driver.Rows, error) { return &fakeRows{}, nil }

type fakeRows struct{}

func (r *fakeRows) Columns() []string              { return nil }
func (r *fakeRows) Close() error                   { return nil }
func (r *fakeRows) Next([]driver.Value) error      { return io.EOF }
