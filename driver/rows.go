package driver

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"

	"github.com/omniql-engine/hfql/engine/executor"
	"github.com/omniql-engine/hfql/mapping"
)

// RowError carries an execution failure reported by the result stream.
type RowError struct {
	Message string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("hfql: %s", e.Message)
}

// Rows implements driver.Rows over an executor result.
type Rows struct {
	ctx    context.Context
	result executor.Result
}

// Columns returns the column aliases.
func (r *Rows) Columns() []string {
	return r.result.ColumnNames()
}

// ColumnTypeDatabaseTypeName returns the SQL name of the column type.
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	types := r.result.ColumnTypes()
	if index < 0 || index >= len(types) {
		return ""
	}
	return mapping.SQLTypeName(types[index])
}

// Close closes the underlying result.
func (r *Rows) Close() error {
	return r.result.Close()
}

// Next populates dest with the next row. Returns io.EOF when there are no
// more rows and *RowError when the row reports a failure.
func (r *Rows) Next(dest []driver.Value) error {
	if !r.result.HasNext(r.ctx) {
		return io.EOF
	}
	row, err := r.result.NextRow(r.ctx)
	if errors.Is(err, executor.ErrNoMoreRows) {
		return io.EOF
	}
	if err != nil {
		return err
	}
	if row.IsError() {
		return &RowError{Message: row.Message()}
	}

	types := r.result.ColumnTypes()
	for i := range dest {
		dest[i] = nil
		if i < len(row.Values) && i < len(types) {
			dest[i] = toDriverValue(row.Values[i], types[i])
		}
	}
	return nil
}

var _ driver.Rows = &Rows{}
var _ driver.RowsColumnTypeDatabaseTypeName = &Rows{}
