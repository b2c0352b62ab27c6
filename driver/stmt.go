package driver

import (
	"context"
	"database/sql/driver"
)

// Stmt implements driver.Stmt and driver.StmtQueryContext.
type Stmt struct {
	conn   *Conn
	query  string
	closed bool
}

// Close closes the prepared statement.
func (s *Stmt) Close() error {
	if s.closed {
		return driver.ErrBadConn
	}
	s.closed = true
	return nil
}

// NumInput returns 0, HFQL has no placeholders.
func (s *Stmt) NumInput() int {
	return 0
}

// Exec always fails, HFQL has no statements without results.
func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, ErrNotSupported
}

// Query executes the prepared statement.
func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), nil)
}

// QueryContext executes the prepared statement with context support.
func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if s.closed {
		return nil, driver.ErrBadConn
	}
	return s.conn.QueryContext(ctx, s.query, args)
}

var _ driver.Stmt = &Stmt{}
var _ driver.StmtQueryContext = &Stmt{}
