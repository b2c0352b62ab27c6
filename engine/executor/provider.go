package executor

import (
	"context"

	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/mapping"
)

// ============================================================================
// CONSUMED CONTRACTS
// ============================================================================

// SearchProvider is one paginated search result set, bound to an opaque id.
// FetchWindow returns the resources at positions [from, to); a short or empty
// window means the results are exhausted.
type SearchProvider interface {
	FetchWindow(ctx context.Context, from, to int) ([]models.Resource, error)
	SearchID() string
}

// Searcher starts searches with WHERE terms pushed down, and resumes them by id
type Searcher interface {
	Search(ctx context.Context, resourceType string, where []models.WhereClause) (SearchProvider, error)
	Resume(ctx context.Context, searchID string) (SearchProvider, error)
}

// Evaluator evaluates a path expression against a resource
type Evaluator interface {
	Evaluate(ctx context.Context, res models.Resource, expression string) ([]models.Value, error)
}

// ============================================================================
// PRODUCED CONTRACT
// ============================================================================

// ErrorRowOffset is the offset of a synthetic error row
const ErrorRowOffset = -1

// Row is one result row. Offset is the resource position in the search
// results, or ErrorRowOffset; an error row carries its message as the only value.
type Row struct {
	Offset int
	Values []any
}

// IsError reports whether the row reports a failure instead of data
func (r Row) IsError() bool {
	return r.Offset == ErrorRowOffset
}

// Message returns the failure message of an error row
func (r Row) Message() string {
	if !r.IsError() || len(r.Values) == 0 {
		return ""
	}
	msg, _ := r.Values[0].(string)
	return msg
}

func errorRow(msg string) Row {
	return Row{Offset: ErrorRowOffset, Values: []any{msg}}
}

// Result is a forward-only sequence of rows with its projection shape
type Result interface {
	ColumnNames() []string
	ColumnTypes() []mapping.DataType
	HasNext(ctx context.Context) bool
	NextRow(ctx context.Context) (Row, error)
	// Limit returns the row bound, or -1 when unbounded
	Limit() int
	SearchID() string
	Statement() *models.Statement
	Close() error
	IsClosed() bool
}
