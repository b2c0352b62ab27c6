// Package executor runs parsed HFQL statements against a search provider,
// streaming rows through HAVING filtering and select projection.
package executor

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/engine/parser"
	"github.com/omniql-engine/hfql/mapping"
)

// NoLimit leaves the row count unbounded
const NoLimit = -1

// ErrContinueUnsupported is returned when resuming a grouped, counted or ordered statement
var ErrContinueUnsupported = errors.New("continuation is not supported for statements with GROUP BY, COUNT or ORDER BY")

// Executor parses and runs HFQL statements
type Executor struct {
	searcher      Searcher
	evaluator     Evaluator
	resourceTypes mapping.ResourceTypes
}

// Option configures an Executor
type Option func(*Executor)

// WithResourceTypes sets the resource types accepted in FROM
func WithResourceTypes(types mapping.ResourceTypes) Option {
	return func(e *Executor) {
		e.resourceTypes = types
	}
}

// New creates an Executor
func New(searcher Searcher, evaluator Evaluator, opts ...Option) *Executor {
	e := &Executor{
		searcher:      searcher,
		evaluator:     evaluator,
		resourceTypes: mapping.DefaultResourceTypes,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse parses text with the executor's resource types
func (e *Executor) Parse(text string) (*models.Statement, error) {
	return parser.Parse(text, parser.WithResourceTypes(e.resourceTypes))
}

// Execute parses text, starts a search with its WHERE terms and returns the
// result. limit applies when the statement has no LIMIT; NoLimit disables it.
func (e *Executor) Execute(ctx context.Context, text string, limit int) (Result, error) {
	stmt, err := e.Parse(text)
	if err != nil {
		return nil, err
	}

	provider, err := e.searcher.Search(ctx, stmt.FromResourceName, stmt.WhereClauses)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", stmt.FromResourceName, err)
	}

	log.WithFields(log.Fields{
		"resourceType": stmt.FromResourceName,
		"searchId":     provider.SearchID(),
		"where":        len(stmt.WhereClauses),
		"having":       len(stmt.HavingClauses),
	}).Debug("Executing HFQL statement")

	return e.result(ctx, stmt, provider, 0, effectiveLimit(stmt, limit)), nil
}

// Continue resumes a previous search at offset, re-parsing the same text
func (e *Executor) Continue(ctx context.Context, text, searchID string, offset, limit int) (Result, error) {
	stmt, err := e.Parse(text)
	if err != nil {
		return nil, err
	}
	if stmt.NeedsMaterialization() {
		return nil, ErrContinueUnsupported
	}
	if offset < 0 {
		return nil, fmt.Errorf("invalid continuation offset: %d", offset)
	}

	provider, err := e.searcher.Resume(ctx, searchID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume search %s: %w", searchID, err)
	}

	log.WithFields(log.Fields{
		"searchId": searchID,
		"offset":   offset,
	}).Debug("Continuing HFQL statement")

	return e.result(ctx, stmt, provider, offset, effectiveLimit(stmt, limit)), nil
}

func (e *Executor) result(ctx context.Context, stmt *models.Statement, provider SearchProvider, offset, limit int) Result {
	opts := CursorOptions{
		Offset:      offset,
		ColumnTypes: ColumnTypes(stmt),
		Having:      CompileHaving(stmt.HavingClauses, e.evaluator),
	}

	if stmt.NeedsMaterialization() {
		cursor := NewCursor(stmt, provider, e.evaluator, opts)
		return materialize(ctx, cursor, e.evaluator, limit)
	}

	if limit >= 0 {
		opts.Limit = &limit
	}
	return NewCursor(stmt, provider, e.evaluator, opts)
}

// effectiveLimit prefers the statement LIMIT over the caller limit
func effectiveLimit(stmt *models.Statement, limit int) int {
	if stmt.HasLimit() {
		return *stmt.Limit
	}
	if limit < 0 {
		return NoLimit
	}
	return limit
}

// ColumnTypes resolves the type of each select clause
func ColumnTypes(stmt *models.Statement) []mapping.DataType {
	types := make([]mapping.DataType, len(stmt.SelectClauses))
	for i, sc := range stmt.SelectClauses {
		types[i] = mapping.ResolveColumnType(sc.Clause, sc.Operator == models.SelectOperatorCount)
	}
	return types
}
