package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/hfql/engine/fhirpath"
	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/engine/parser"
	"github.com/omniql-engine/hfql/mapping"
)

// fakeProvider serves a fixed slice and records every window requested
type fakeProvider struct {
	id        string
	resources []models.Resource
	infinite  bool // generate resources for any window
	failAt    int  // fail the fetch starting at this offset, -1 never
	windows   [][2]int
	where     []models.WhereClause
}

func (p *fakeProvider) FetchWindow(_ context.Context, from, to int) ([]models.Resource, error) {
	p.windows = append(p.windows, [2]int{from, to})
	if p.failAt >= 0 && from >= p.failAt {
		return nil, errors.New("search backend unavailable")
	}
	if p.infinite {
		out := make([]models.Resource, 0, to-from)
		for i := from; i < to; i++ {
			out = append(out, patient(i, "Simpson"))
		}
		return out, nil
	}
	if from >= len(p.resources) {
		return nil, nil
	}
	if to > len(p.resources) {
		to = len(p.resources)
	}
	return p.resources[from:to], nil
}

func (p *fakeProvider) SearchID() string { return p.id }

type fakeSearcher struct {
	provider *fakeProvider
	resumed  string
}

func (s *fakeSearcher) Search(_ context.Context, _ string, where []models.WhereClause) (SearchProvider, error) {
	s.provider.where = where
	return s.provider, nil
}

func (s *fakeSearcher) Resume(_ context.Context, searchID string) (SearchProvider, error) {
	if searchID != s.provider.id {
		return nil, errors.New("search not found")
	}
	s.resumed = searchID
	return s.provider, nil
}

func patient(i int, family string) models.Resource {
	return models.Resource{
		"resourceType": "Patient",
		"id":           fmt.Sprintf("%d", i),
		"active":       i%2 == 0,
		"name":         []any{map[string]any{"family": family, "given": []any{fmt.Sprintf("Given%d", i)}}},
	}
}

func patients(n int) []models.Resource {
	out := make([]models.Resource, n)
	for i := range out {
		out[i] = patient(i, "Simpson")
	}
	return out
}

func newProvider(resources []models.Resource) *fakeProvider {
	return &fakeProvider{id: "search-1", resources: resources, failAt: -1}
}

func mustParse(t *testing.T, text string) *models.Statement {
	t.Helper()
	stmt, err := parser.Parse(text)
	require.NoError(t, err)
	return stmt
}

func drain(t *testing.T, r Result) []Row {
	t.Helper()
	ctx := context.Background()
	var rows []Row
	for r.HasNext(ctx) {
		row, err := r.NextRow(ctx)
		require.NoError(t, err)
		rows = append(rows, row)
	}
	_, err := r.NextRow(ctx)
	assert.ErrorIs(t, err, ErrNoMoreRows)
	return rows
}

func intPtr(i int) *int { return &i }

// ============================================================================
// CURSOR
// ============================================================================

func TestCursor_ProjectsRows(t *testing.T) {
	stmt := mustParse(t, "select id, name.family, name.given as Given, telecom from Patient")
	provider := newProvider(patients(3))
	cursor := NewCursor(stmt, provider, fhirpath.New(), CursorOptions{})

	rows := drain(t, cursor)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{Offset: 1, Values: []any{"1", "Simpson", "Given1", nil}}, rows[1])
	assert.Equal(t, []string{"id", "name.family", "Given", "telecom"}, cursor.ColumnNames())
	assert.Equal(t, -1, cursor.Limit())
	assert.Equal(t, "search-1", cursor.SearchID())
	assert.Equal(t, [][2]int{{0, BatchSize}}, provider.windows)
	assert.NoError(t, cursor.Close())
	assert.False(t, cursor.IsClosed())
}

func TestCursor_FetchesMonotonicWindows(t *testing.T) {
	stmt := mustParse(t, "select id from Patient")
	provider := newProvider(patients(2500))

	rows := drain(t, NewCursor(stmt, provider, fhirpath.New(), CursorOptions{}))
	require.Len(t, rows, 2500)
	assert.Equal(t, 2499, rows[2499].Offset)
	assert.Equal(t, [][2]int{{0, 1000}, {1000, 2000}, {2000, 3000}}, provider.windows)
}

func TestCursor_FullFinalBatchFetchesOnceMore(t *testing.T) {
	stmt := mustParse(t, "select id from Patient")
	provider := newProvider(patients(BatchSize))

	rows := drain(t, NewCursor(stmt, provider, fhirpath.New(), CursorOptions{}))
	assert.Len(t, rows, BatchSize)
	assert.Equal(t, [][2]int{{0, 1000}, {1000, 2000}}, provider.windows)
}

func TestCursor_LimitBoundsUnboundedUpstream(t *testing.T) {
	stmt := mustParse(t, "select id from Patient")
	provider := &fakeProvider{id: "s", infinite: true, failAt: -1}

	rows := drain(t, NewCursor(stmt, provider, fhirpath.New(), CursorOptions{Limit: intPtr(5)}))
	assert.Len(t, rows, 5)
	assert.Len(t, provider.windows, 1)
}

func TestCursor_LimitZero(t *testing.T) {
	stmt := mustParse(t, "select id from Patient")
	provider := newProvider(patients(3))
	cursor := NewCursor(stmt, provider, fhirpath.New(), CursorOptions{Limit: intPtr(0)})

	assert.Empty(t, drain(t, cursor))
	assert.Empty(t, provider.windows)
	assert.Equal(t, 0, cursor.Limit())
}

func TestCursor_StartOffset(t *testing.T) {
	stmt := mustParse(t, "select id from Patient")
	provider := newProvider(patients(10))

	rows := drain(t, NewCursor(stmt, provider, fhirpath.New(), CursorOptions{Offset: 7}))
	require.Len(t, rows, 3)
	assert.Equal(t, 7, rows[0].Offset)
	assert.Equal(t, "7", rows[0].Values[0])
}

func TestCursor_HavingRejectsDoNotCount(t *testing.T) {
	stmt := mustParse(t, "select id from Patient having active limit 2")
	provider := newProvider(patients(10))
	ev := fhirpath.New()

	rows := drain(t, NewCursor(stmt, provider, ev, CursorOptions{
		Limit:  stmt.Limit,
		Having: CompileHaving(stmt.HavingClauses, ev),
	}))
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Offset)
	assert.Equal(t, 2, rows[1].Offset)
}

func TestCursor_ProjectionErrorEndsStream(t *testing.T) {
	stmt := mustParse(t, "select id, name.given > 'A' from Patient")
	resources := patients(4)
	// the third resource has two given names, which the comparison rejects
	resources[2]["name"] = []any{map[string]any{"given": []any{"A", "B"}}}
	provider := newProvider(resources)

	rows := drain(t, NewCursor(stmt, provider, fhirpath.New(), CursorOptions{}))
	require.Len(t, rows, 3)
	assert.False(t, rows[1].IsError())
	assert.True(t, rows[2].IsError())
	assert.Equal(t, ErrorRowOffset, rows[2].Offset)
	assert.Equal(t,
		`Failed to evaluate FHIRPath expression "name.given > 'A'". Error: operator > requires single operands, got 2 and 1 items`,
		rows[2].Message())
}

func TestCursor_PredicateErrorYieldsOneErrorRow(t *testing.T) {
	stmt := mustParse(t, "select id from Patient having name.bogus()")
	provider := newProvider(patients(3))
	ev := fhirpath.New()
	cursor := NewCursor(stmt, provider, ev, CursorOptions{Having: CompileHaving(stmt.HavingClauses, ev)})

	rows := drain(t, cursor)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsError())
	assert.Contains(t, rows[0].Message(), "unknown function: bogus")
}

func TestCursor_FetchErrorAfterRows(t *testing.T) {
	stmt := mustParse(t, "select id from Patient")
	provider := newProvider(patients(1500))
	provider.failAt = 1000

	rows := drain(t, NewCursor(stmt, provider, fhirpath.New(), CursorOptions{}))
	require.Len(t, rows, 1001)
	assert.Equal(t, Row{Offset: ErrorRowOffset, Values: []any{"search backend unavailable"}}, rows[1000])
}

// ============================================================================
// HAVING
// ============================================================================

func TestCompileHaving(t *testing.T) {
	ev := fhirpath.New()
	res := models.Resource{
		"resourceType":  "Observation",
		"status":        "final",
		"valueQuantity": map[string]any{"value": 120.0},
		"code":          map[string]any{"text": "Blood pressure"},
	}

	tests := []struct {
		having string
		want   bool
	}{
		{"status = 'final'", true},
		{"status = 'FINAL'", false},
		{"status in ('draft' | 'final')", true},
		{"value.ofType(Quantity).value > '100'", true},
		{"value.ofType(Quantity).value <= '100'", false},
		{"value.ofType(Quantity).value >= '120'", true},
		{"code.text < 'C'", true},
		{"value.ofType(Quantity).value > 100", true},
		{"status = 'final' and code.text = 'Other'", false},
		{"status.exists() and code.exists()", true},
		{"missing = 'x'", false},
	}

	for _, tt := range tests {
		t.Run(tt.having, func(t *testing.T) {
			stmt := mustParse(t, "select id from Observation having "+tt.having)
			ok, err := CompileHaving(stmt.HavingClauses, ev)(context.Background(), res)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	assert.Nil(t, CompileHaving(nil, ev))
}

// ============================================================================
// EXECUTOR
// ============================================================================

func TestExecute_PushesWhereAndLimits(t *testing.T) {
	searcher := &fakeSearcher{provider: newProvider(patients(20))}
	exec := New(searcher, fhirpath.New())

	result, err := exec.Execute(context.Background(), "select id from Patient where family = 'Simpson'", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Limit())
	assert.Len(t, drain(t, result), 3)
	assert.Equal(t, []models.WhereClause{{Left: "family", Operator: models.OperatorEquals, Right: []string{"'Simpson'"}}}, searcher.provider.where)

	// the statement LIMIT wins over the caller limit
	result, err = exec.Execute(context.Background(), "select id from Patient limit 5", 3)
	require.NoError(t, err)
	assert.Len(t, drain(t, result), 5)

	result, err = exec.Execute(context.Background(), "select id from Patient", NoLimit)
	require.NoError(t, err)
	assert.Len(t, drain(t, result), 20)
}

func TestExecute_ColumnTypes(t *testing.T) {
	searcher := &fakeSearcher{provider: newProvider(patients(1))}
	result, err := New(searcher, fhirpath.New()).Execute(context.Background(), "select id, active, birthDate, name.given.count(), name from Patient", NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []mapping.DataType{
		mapping.TypeString, mapping.TypeBoolean, mapping.TypeDate, mapping.TypeInteger, mapping.TypeJSON,
	}, result.ColumnTypes())
}

func TestExecute_ParseError(t *testing.T) {
	exec := New(&fakeSearcher{provider: newProvider(nil)}, fhirpath.New())
	_, err := exec.Execute(context.Background(), "select id from Bogus", NoLimit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown resource type 'Bogus'")

	exec = New(&fakeSearcher{provider: newProvider(nil)}, fhirpath.New(), WithResourceTypes(mapping.NewResourceTypeSet("Bogus")))
	_, err = exec.Execute(context.Background(), "select id from Bogus", NoLimit)
	assert.NoError(t, err)
}

func TestContinue(t *testing.T) {
	searcher := &fakeSearcher{provider: newProvider(patients(10))}
	exec := New(searcher, fhirpath.New())

	result, err := exec.Continue(context.Background(), "select id from Patient", "search-1", 8, NoLimit)
	require.NoError(t, err)
	rows := drain(t, result)
	require.Len(t, rows, 2)
	assert.Equal(t, 8, rows[0].Offset)
	assert.Equal(t, "search-1", searcher.resumed)

	_, err = exec.Continue(context.Background(), "select id from Patient", "other", 0, NoLimit)
	assert.Error(t, err)

	_, err = exec.Continue(context.Background(), "select count(*) from Patient", "search-1", 0, NoLimit)
	assert.ErrorIs(t, err, ErrContinueUnsupported)
}

// ============================================================================
// STATIC RESULTS
// ============================================================================

func familyPatients() []models.Resource {
	families := []string{"Simpson", "Flanders", "Simpson", "Simpson", "Flanders", "Burns"}
	out := make([]models.Resource, len(families))
	for i, f := range families {
		out[i] = patient(i, f)
	}
	return out
}

func TestExecute_GroupByCount(t *testing.T) {
	searcher := &fakeSearcher{provider: newProvider(familyPatients())}
	exec := New(searcher, fhirpath.New())

	result, err := exec.Execute(context.Background(),
		"select name.family, count(*) from Patient group by name.family order by count(*) desc", NoLimit)
	require.NoError(t, err)
	assert.Equal(t, []string{"name.family", "Count(*)"}, result.ColumnNames())

	rows := drain(t, result)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{Offset: 0, Values: []any{"Simpson", "3"}}, rows[0])
	assert.Equal(t, Row{Offset: 1, Values: []any{"Flanders", "2"}}, rows[1])
	assert.Equal(t, Row{Offset: 2, Values: []any{"Burns", "1"}}, rows[2])
}

func TestExecute_CountWithoutGroup(t *testing.T) {
	searcher := &fakeSearcher{provider: newProvider(familyPatients())}
	result, err := New(searcher, fhirpath.New()).Execute(context.Background(),
		"select count(*) as Total from Patient having active", NoLimit)
	require.NoError(t, err)

	rows := drain(t, result)
	require.Len(t, rows, 1)
	assert.Equal(t, []any{"3"}, rows[0].Values)
}

func TestExecute_NonGroupedColumn(t *testing.T) {
	searcher := &fakeSearcher{provider: newProvider(familyPatients())}
	result, err := New(searcher, fhirpath.New()).Execute(context.Background(),
		"select id, count(*) from Patient group by name.family", NoLimit)
	require.NoError(t, err)

	rows := drain(t, result)
	require.Len(t, rows, 1)
	assert.Equal(t, "Unable to select on non-grouped column in a count expression: id", rows[0].Message())
}

func TestExecute_OrderByAndLimit(t *testing.T) {
	searcher := &fakeSearcher{provider: newProvider(familyPatients())}
	exec := New(searcher, fhirpath.New())

	result, err := exec.Execute(context.Background(),
		"select Family: name.family, id from Patient order by Family asc, id desc limit 4", NoLimit)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Limit())

	var got [][2]any
	for _, row := range drain(t, result) {
		got = append(got, [2]any{row.Values[0], row.Values[1]})
	}
	assert.Equal(t, [][2]any{{"Burns", "5"}, {"Flanders", "4"}, {"Flanders", "1"}, {"Simpson", "3"}}, got)

	result, err = exec.Execute(context.Background(), "select id from Patient order by birthDate", NoLimit)
	require.NoError(t, err)
	rows := drain(t, result)
	require.Len(t, rows, 1)
	assert.Equal(t, "Invalid/unknown ORDER BY clause: birthDate", rows[0].Message())
}

func TestCompareCells(t *testing.T) {
	assert.Equal(t, -1, compareCells(nil, "a", false))
	assert.Equal(t, 1, compareCells("a", nil, false))
	assert.Equal(t, 0, compareCells(nil, nil, true))
	assert.Equal(t, 1, compareCells("10", "9", true))
	assert.Equal(t, -1, compareCells("10", "9", false))
}
