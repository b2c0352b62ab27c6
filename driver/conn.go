package driver

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/omniql-engine/hfql/engine/executor"
)

var errBindParameters = errors.New("hfql: bind parameters are not supported")

// Conn implements driver.Conn and driver.QueryerContext.
type Conn struct {
	exec *executor.Executor
}

// Prepare parses query so syntax errors surface before execution.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	if _, err := c.exec.Parse(query); err != nil {
		return nil, err
	}
	return &Stmt{conn: c, query: query}, nil
}

// Close is a no-op; the executor outlives its connections.
func (c *Conn) Close() error {
	return nil
}

// Begin always fails, HFQL is read-only.
func (c *Conn) Begin() (driver.Tx, error) {
	return nil, ErrNotSupported
}

// QueryContext executes an HFQL statement.
func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if len(args) > 0 {
		return nil, errBindParameters
	}
	result, err := c.exec.Execute(ctx, query, executor.NoLimit)
	if err != nil {
		return nil, err
	}
	return &Rows{ctx: ctx, result: result}, nil
}

var _ driver.Conn = &Conn{}
var _ driver.QueryerContext = &Conn{}
