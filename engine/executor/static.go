package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/mapping"
)

// StaticResult is a fully materialized result, used for statements that
// group, count or order
type StaticResult struct {
	stmt        *models.Statement
	columnNames []string
	columnTypes []mapping.DataType
	rows        []Row
	index       int
	limit       int
	searchID    string
}

var _ Result = (*StaticResult)(nil)

// NewStaticResult wraps already computed rows
func NewStaticResult(stmt *models.Statement, columnTypes []mapping.DataType, rows []Row, limit int, searchID string) *StaticResult {
	return &StaticResult{
		stmt:        stmt,
		columnNames: stmt.Aliases(),
		columnTypes: columnTypes,
		rows:        rows,
		limit:       limit,
		searchID:    searchID,
	}
}

// HasNext reports whether rows remain
func (r *StaticResult) HasNext(context.Context) bool {
	return r.index < len(r.rows)
}

// NextRow returns the next row, or ErrNoMoreRows
func (r *StaticResult) NextRow(context.Context) (Row, error) {
	if r.index >= len(r.rows) {
		return Row{}, ErrNoMoreRows
	}
	row := r.rows[r.index]
	r.index++
	return row, nil
}

func (r *StaticResult) ColumnNames() []string           { return r.columnNames }
func (r *StaticResult) ColumnTypes() []mapping.DataType { return r.columnTypes }
func (r *StaticResult) Limit() int                      { return r.limit }
func (r *StaticResult) SearchID() string                { return r.searchID }
func (r *StaticResult) Statement() *models.Statement    { return r.stmt }
func (r *StaticResult) Close() error                    { return nil }
func (r *StaticResult) IsClosed() bool                  { return false }

// ============================================================================
// MATERIALIZATION
// ============================================================================

type group struct {
	values []any // first value of each GROUP BY clause
	count  int
}

// materialize drains the cursor and applies grouping, counting, ordering and
// the limit. Any failure yields a single error row.
func materialize(ctx context.Context, cursor *Cursor, evaluator Evaluator, limit int) *StaticResult {
	stmt := cursor.Statement()
	static := func(rows []Row) *StaticResult {
		return NewStaticResult(stmt, cursor.ColumnTypes(), rows, limit, cursor.SearchID())
	}

	var rows []Row
	var err error
	if stmt.HasCount() || len(stmt.GroupByClauses) > 0 {
		rows, err = groupRows(ctx, cursor, evaluator)
	} else {
		rows, err = drainRows(ctx, cursor)
	}
	if err != nil {
		return static([]Row{errorRow(err.Error())})
	}

	if len(stmt.OrderByClauses) > 0 {
		if err := orderRows(stmt, cursor.ColumnTypes(), rows); err != nil {
			return static([]Row{errorRow(err.Error())})
		}
	}

	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Offset = i
	}
	return static(rows)
}

func drainRows(ctx context.Context, cursor *Cursor) ([]Row, error) {
	var rows []Row
	for cursor.HasNext(ctx) {
		row, err := cursor.NextRow(ctx)
		if err != nil {
			return nil, err
		}
		if row.IsError() {
			return nil, errors.New(row.Message())
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func groupRows(ctx context.Context, cursor *Cursor, evaluator Evaluator) ([]Row, error) {
	stmt := cursor.Statement()

	// every plain column must be one of the grouped expressions
	columns := make([]int, len(stmt.SelectClauses))
	for i, sc := range stmt.SelectClauses {
		columns[i] = -1
		if sc.Operator == models.SelectOperatorCount {
			continue
		}
		for j, g := range stmt.GroupByClauses {
			if g == sc.Clause {
				columns[i] = j
			}
		}
		if columns[i] < 0 {
			return nil, fmt.Errorf("Unable to select on non-grouped column in a count expression: %s", sc.Clause)
		}
	}

	index := map[string]*group{}
	var order []*group
	for {
		res, _, errRow := cursor.nextResource(ctx)
		if errRow != nil {
			return nil, errors.New(errRow.Message())
		}
		if res == nil {
			break
		}

		values := make([]any, len(stmt.GroupByClauses))
		for j, clause := range stmt.GroupByClauses {
			result, err := evaluator.Evaluate(ctx, res, clause)
			if err != nil {
				return nil, fmt.Errorf("Failed to evaluate FHIRPath expression \"%s\". Error: %s", clause, err.Error())
			}
			if len(result) > 0 {
				values[j] = result[0].Cell()
			}
		}

		k := groupKey(values)
		g, ok := index[k]
		if !ok {
			g = &group{values: values}
			index[k] = g
			order = append(order, g)
		}
		g.count++
	}

	// COUNT without GROUP BY still reports a single row
	if len(order) == 0 && len(stmt.GroupByClauses) == 0 {
		order = append(order, &group{})
	}

	rows := make([]Row, 0, len(order))
	for _, g := range order {
		values := make([]any, len(stmt.SelectClauses))
		for i, sc := range stmt.SelectClauses {
			if sc.Operator == models.SelectOperatorCount {
				values[i] = strconv.Itoa(g.count)
				continue
			}
			values[i] = g.values[columns[i]]
		}
		rows = append(rows, Row{Values: values})
	}
	return rows, nil
}

func groupKey(values []any) string {
	var b strings.Builder
	for _, v := range values {
		if s, ok := v.(string); ok {
			b.WriteByte('s')
			b.WriteString(strconv.Quote(s))
		} else {
			b.WriteByte('n')
		}
		b.WriteByte(0)
	}
	return b.String()
}

// orderRows sorts rows in place by the ORDER BY clauses, each matched to a
// column by alias or clause text
func orderRows(stmt *models.Statement, types []mapping.DataType, rows []Row) error {
	type key struct {
		column    int
		numeric   bool
		ascending bool
	}

	keys := make([]key, 0, len(stmt.OrderByClauses))
	for _, ob := range stmt.OrderByClauses {
		column := -1
		for i, sc := range stmt.SelectClauses {
			counted := sc.Operator == models.SelectOperatorCount && strings.EqualFold(sc.Alias, ob.Clause)
			if counted || sc.Alias == ob.Clause || sc.Clause == ob.Clause {
				column = i
				break
			}
		}
		if column < 0 {
			return fmt.Errorf("Invalid/unknown ORDER BY clause: %s", ob.Clause)
		}
		numeric := false
		if column < len(types) {
			numeric = types[column] == mapping.TypeInteger || types[column] == mapping.TypeDecimal || types[column] == mapping.TypeLongInt
		}
		keys = append(keys, key{column: column, numeric: numeric, ascending: ob.Ascending})
	}

	sort.SliceStable(rows, func(a, b int) bool {
		for _, k := range keys {
			cmp := compareCells(rows[a].Values[k.column], rows[b].Values[k.column], k.numeric)
			if cmp == 0 {
				continue
			}
			if k.ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
	return nil
}

// compareCells orders nil before any value
func compareCells(a, b any, numeric bool) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	if numeric {
		return compareNumeric(as, bs)
	}
	return strings.Compare(as, bs)
}
