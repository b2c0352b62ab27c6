package driver

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/hfql/engine/executor"
	"github.com/omniql-engine/hfql/engine/fhirpath"
	"github.com/omniql-engine/hfql/engine/models"
	"github.com/omniql-engine/hfql/engine/search"
	"github.com/omniql-engine/hfql/mapping"
)

func openEngine(t *testing.T, name string) *sql.DB {
	t.Helper()
	store := search.NewMemoryStore()
	store.Add(models.Resource{"resourceType": "Patient", "id": "p1", "active": true,
		"name": []any{map[string]any{"family": "Simpson", "given": []any{"Homer", "Jay"}}}})
	store.Add(models.Resource{"resourceType": "Patient", "id": "p2", "active": false,
		"name": []any{map[string]any{"family": "Simpson", "given": []any{"Marge"}}}})

	ev := fhirpath.New()
	Register(name, executor.New(search.NewMemorySearcher(store, ev), ev))
	t.Cleanup(func() { Unregister(name) })

	db, err := sql.Open(DriverName, name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestQuery(t *testing.T) {
	db := openEngine(t, "query")

	rows, err := db.Query("select id, active, name.given.count() as Givens, name.family from Patient")
	require.NoError(t, err)
	defer rows.Close()

	columns, err := rows.Columns()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "active", "Givens", "name.family"}, columns)

	types, err := rows.ColumnTypes()
	require.NoError(t, err)
	var names []string
	for _, ct := range types {
		names = append(names, ct.DatabaseTypeName())
	}
	assert.Equal(t, []string{"VARCHAR", "BOOLEAN", "INTEGER", "VARCHAR"}, names)

	type patient struct {
		id     string
		active bool
		givens int64
		family sql.NullString
	}
	var got []patient
	for rows.Next() {
		var p patient
		require.NoError(t, rows.Scan(&p.id, &p.active, &p.givens, &p.family))
		got = append(got, p)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []patient{
		{"p1", true, 2, sql.NullString{String: "Simpson", Valid: true}},
		{"p2", false, 1, sql.NullString{String: "Simpson", Valid: true}},
	}, got)
}

func TestQuery_ErrorRow(t *testing.T) {
	db := openEngine(t, "error-row")

	rows, err := db.Query("select id from Patient order by bogus")
	require.NoError(t, err)
	defer rows.Close()

	assert.False(t, rows.Next())
	var rowErr *RowError
	require.ErrorAs(t, rows.Err(), &rowErr)
	assert.Equal(t, "Invalid/unknown ORDER BY clause: bogus", rowErr.Message)
}

func TestPrepare(t *testing.T) {
	db := openEngine(t, "prepare")

	_, err := db.Prepare("select id from")
	assert.Error(t, err)

	stmt, err := db.Prepare("select id from Patient where _id = 'p2'")
	require.NoError(t, err)
	defer stmt.Close()

	var id string
	require.NoError(t, stmt.QueryRowContext(context.Background()).Scan(&id))
	assert.Equal(t, "p2", id)
}

func TestUnsupported(t *testing.T) {
	db := openEngine(t, "unsupported")

	_, err := db.Exec("select id from Patient")
	assert.Error(t, err)

	_, err = db.Begin()
	assert.ErrorIs(t, err, ErrNotSupported)

	_, err = db.Query("select id from Patient", "p1")
	assert.Error(t, err)
}

func TestUnknownEngine(t *testing.T) {
	openEngine(t, "known")

	db, err := sql.Open(DriverName, "missing")
	require.NoError(t, err)
	defer db.Close()
	assert.ErrorIs(t, db.Ping(), ErrUnknownEngine)
}

func TestToDriverValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		typ  mapping.DataType
		want any
	}{
		{"nil", nil, mapping.TypeInteger, nil},
		{"integer", "42", mapping.TypeInteger, int64(42)},
		{"long", "9000000000", mapping.TypeLongInt, int64(9000000000)},
		{"decimal", "1.5", mapping.TypeDecimal, 1.5},
		{"boolean", "true", mapping.TypeBoolean, true},
		{"unparsable integer", "abc", mapping.TypeInteger, "abc"},
		{"string", "x", mapping.TypeString, "x"},
		{"date stays text", "2024-01-01", mapping.TypeDate, "2024-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toDriverValue(tt.in, tt.typ))
		})
	}
}
