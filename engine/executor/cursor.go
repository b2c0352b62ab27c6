package executor

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/mapping"
)

// BatchSize is the number of resources requested per FetchWindow call
const BatchSize = 1000

// ErrNoMoreRows is returned by NextRow when the cursor has nothing left
var ErrNoMoreRows = errors.New("no more rows")

// Predicate decides whether a fetched resource is kept
type Predicate func(ctx context.Context, res models.Resource) (bool, error)

// CursorOptions configures a Cursor
type CursorOptions struct {
	Limit       *int // nil for unbounded
	Offset      int  // first search result position to fetch
	ColumnTypes []mapping.DataType
	Having      Predicate // nil keeps every resource
}

// Cursor streams rows from a search provider one batch at a time. It is not
// safe for concurrent use.
type Cursor struct {
	stmt      *models.Statement
	provider  SearchProvider
	evaluator Evaluator

	limit       *int
	columnNames []string
	columnTypes []mapping.DataType
	having      Predicate

	batch      []models.Resource
	fetched    bool // batch holds a window
	final      bool // batch is the last window
	batchStart int
	batchIndex int
	nextOffset int

	candidate       models.Resource
	candidateOffset int
	hasCandidate    bool

	accepted  int
	exhausted bool
	pending   *Row
}

var _ Result = (*Cursor)(nil)

// NewCursor creates a cursor over provider for stmt
func NewCursor(stmt *models.Statement, provider SearchProvider, evaluator Evaluator, opts CursorOptions) *Cursor {
	return &Cursor{
		stmt:        stmt,
		provider:    provider,
		evaluator:   evaluator,
		limit:       opts.Limit,
		columnNames: stmt.Aliases(),
		columnTypes: opts.ColumnTypes,
		having:      opts.Having,
		nextOffset:  opts.Offset,
	}
}

// HasNext reports whether NextRow will return a row, fetching as needed
func (c *Cursor) HasNext(ctx context.Context) bool {
	c.advance(ctx)
	return c.hasCandidate || c.pending != nil
}

// NextRow returns the next row. Evaluation failures produce one error row,
// after which the cursor is exhausted.
func (c *Cursor) NextRow(ctx context.Context) (Row, error) {
	c.advance(ctx)

	if c.pending != nil {
		row := *c.pending
		c.pending = nil
		return row, nil
	}
	if !c.hasCandidate {
		return Row{}, ErrNoMoreRows
	}

	values := make([]any, len(c.stmt.SelectClauses))
	for i, sc := range c.stmt.SelectClauses {
		result, err := c.evaluator.Evaluate(ctx, c.candidate, sc.Clause)
		if err != nil {
			c.hasCandidate = false
			c.candidate = nil
			c.exhausted = true
			return errorRow(fmt.Sprintf("Failed to evaluate FHIRPath expression \"%s\". Error: %s", sc.Clause, err.Error())), nil
		}
		if len(result) > 0 {
			values[i] = result[0].Cell()
		}
	}

	row := Row{Offset: c.candidateOffset, Values: values}
	c.hasCandidate = false
	c.candidate = nil
	return row, nil
}

// nextResource returns the next accepted resource without projecting it.
// A non-nil row is a terminal error row.
func (c *Cursor) nextResource(ctx context.Context) (models.Resource, int, *Row) {
	c.advance(ctx)
	if c.pending != nil {
		row := *c.pending
		c.pending = nil
		return nil, 0, &row
	}
	if !c.hasCandidate {
		return nil, 0, nil
	}
	res, offset := c.candidate, c.candidateOffset
	c.hasCandidate = false
	c.candidate = nil
	return res, offset, nil
}

// advance finds the next resource accepted by the HAVING predicate
func (c *Cursor) advance(ctx context.Context) {
	if c.hasCandidate || c.pending != nil {
		return
	}
	if c.limit != nil && c.accepted >= *c.limit {
		c.exhausted = true
	}

	for !c.hasCandidate && !c.exhausted {
		if !c.fetched {
			if err := c.fetch(ctx); err != nil {
				c.fail(err.Error())
				return
			}
			if len(c.batch) == 0 {
				c.exhausted = true
				break
			}
		}

		if c.batchIndex >= len(c.batch) {
			if c.final {
				c.exhausted = true
				break
			}
			c.fetched = false
			continue
		}

		res := c.batch[c.batchIndex]
		offset := c.batchStart + c.batchIndex
		c.batchIndex++

		if c.having != nil {
			ok, err := c.having(ctx, res)
			if err != nil {
				c.fail(err.Error())
				return
			}
			if !ok {
				continue
			}
		}

		c.candidate = res
		c.candidateOffset = offset
		c.hasCandidate = true
	}

	if c.hasCandidate {
		c.accepted++
		if c.limit != nil && c.accepted >= *c.limit {
			c.exhausted = true
		}
	}
}

func (c *Cursor) fetch(ctx context.Context) error {
	from := c.nextOffset
	to := from + BatchSize

	batch, err := c.provider.FetchWindow(ctx, from, to)
	if err != nil {
		return err
	}
	if len(batch) > BatchSize {
		batch = batch[:BatchSize]
	}

	log.WithFields(log.Fields{
		"searchId": c.provider.SearchID(),
		"from":     from,
		"to":       to,
		"fetched":  len(batch),
		"accepted": c.accepted,
		"limit":    c.Limit(),
	}).Debug("Fetched search window")

	c.batch = batch
	c.fetched = true
	c.final = len(batch) < BatchSize
	c.batchStart = from
	c.batchIndex = 0
	c.nextOffset = to
	return nil
}

func (c *Cursor) fail(msg string) {
	row := errorRow(msg)
	c.pending = &row
	c.hasCandidate = false
	c.candidate = nil
	c.exhausted = true
	c.batch = nil
}

// ColumnNames returns the select aliases
func (c *Cursor) ColumnNames() []string {
	return c.columnNames
}

// ColumnTypes returns the resolved type of each column
func (c *Cursor) ColumnTypes() []mapping.DataType {
	return c.columnTypes
}

// Limit returns the row bound, or -1 when unbounded
func (c *Cursor) Limit() int {
	if c.limit == nil {
		return -1
	}
	return *c.limit
}

func (c *Cursor) SearchID() string {
	return c.provider.SearchID()
}

func (c *Cursor) Statement() *models.Statement {
	return c.stmt
}

// Close is a no-op, the search provider owns its resources
func (c *Cursor) Close() error {
	return nil
}

func (c *Cursor) IsClosed() bool {
	return false
}
