package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/hfql/engine/executor"
	"github.com/omniql-engine/hfql/engine/fhirpath"
	"github.com/omniql-engine/hfql/engine/models"
)

const bundleJSON = `{
	"resourceType": "Bundle",
	"entry": [
		{"resource": {"resourceType": "Patient", "id": "p1", "active": true, "gender": "male",
			"birthDate": "1956-05-12", "name": [{"family": "Simpson", "given": ["Homer"]}]}},
		{"resource": {"resourceType": "Patient", "id": "p2", "active": false, "gender": "female",
			"birthDate": "1982-03-19", "name": [{"family": "Simpson", "given": ["Marge"]}]}},
		{"resource": {"resourceType": "Patient", "id": "p3", "gender": "male",
			"birthDate": "1950-01-01", "name": [{"family": "Flanders", "given": ["Ned"]}]}},
		{"resource": {"resourceType": "Observation", "id": "o1", "status": "final",
			"subject": {"reference": "Patient/p1"}, "valueQuantity": {"value": 450}}},
		{"resource": {"resourceType": "Observation", "id": "o2", "status": "preliminary",
			"subject": {"reference": "Patient/p2"}, "valueQuantity": {"value": 550}}}
	]
}`

func newStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	n, err := store.Load([]byte(bundleJSON))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	return store
}

func ids(t *testing.T, provider interface {
	FetchWindow(context.Context, int, int) ([]models.Resource, error)
}) []string {
	t.Helper()
	resources, err := provider.FetchWindow(context.Background(), 0, 100)
	require.NoError(t, err)
	out := []string{}
	for _, r := range resources {
		out = append(out, r.ID())
	}
	return out
}

func where(left string, op models.WhereClauseOperator, right ...string) models.WhereClause {
	if right == nil {
		right = []string{}
	}
	return models.WhereClause{Left: left, Operator: op, Right: right}
}

func TestMemorySearcher_Search(t *testing.T) {
	searcher := NewMemorySearcher(newStore(t), fhirpath.New())

	tests := []struct {
		name         string
		resourceType string
		where        []models.WhereClause
		want         []string
	}{
		{"no terms", "Patient", nil, []string{"p1", "p2", "p3"}},
		{"string case-insensitive", "Patient", []models.WhereClause{where("family", models.OperatorEquals, "'simpson'")}, []string{"p1", "p2"}},
		{"exact modifier", "Patient", []models.WhereClause{where("family:exact", models.OperatorEquals, "'simpson'")}, []string{}},
		{"contains modifier", "Patient", []models.WhereClause{where("given:contains", models.OperatorEquals, "'AR'")}, []string{"p2"}},
		{"id", "Patient", []models.WhereClause{where("_id", models.OperatorEquals, "'p3'")}, []string{"p3"}},
		{"in", "Patient", []models.WhereClause{where("given", models.OperatorIn, "'Ned'", "'Homer'")}, []string{"p1", "p3"}},
		{"conjunction", "Patient", []models.WhereClause{
			where("family", models.OperatorEquals, "'Simpson'"),
			where("gender", models.OperatorEquals, "'male'"),
		}, []string{"p1"}},
		{"date prefix", "Patient", []models.WhereClause{where("birthdate", models.OperatorEquals, "'lt1960-01-01'")}, []string{"p1", "p3"}},
		{"date comparison", "Patient", []models.WhereClause{where("birthdate", models.OperatorGreaterThan, "'1980'")}, []string{"p2"}},
		{"quantity prefix", "Observation", []models.WhereClause{where("value-quantity", models.OperatorEquals, "'ge500'")}, []string{"o2"}},
		{"quantity equals number", "Observation", []models.WhereClause{where("value-quantity", models.OperatorEquals, "'450'")}, []string{"o1"}},
		{"reference id part", "Observation", []models.WhereClause{where("patient", models.OperatorEquals, "'p2'")}, []string{"o2"}},
		{"missing", "Patient", []models.WhereClause{where("active:missing", models.OperatorEquals, "'true'")}, []string{"p3"}},
		{"unary", "Patient", []models.WhereClause{where("active", models.OperatorUnaryBoolean)}, []string{"p1"}},
		{"path fallback", "Observation", []models.WhereClause{where("valueQuantity.value", models.OperatorLessThan, "'500'")}, []string{"o1"}},
		{"unknown type", "Encounter", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := searcher.Search(context.Background(), tt.resourceType, tt.where)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(t, provider))
		})
	}
}

func TestMemorySearcher_UnsupportedParameter(t *testing.T) {
	searcher := NewMemorySearcher(newStore(t), fhirpath.New())

	_, err := searcher.Search(context.Background(), "Patient",
		[]models.WhereClause{where("_has:Observation:subject:status", models.OperatorEquals, "'final'")})
	assert.ErrorIs(t, err, ErrUnsupportedParameter)

	_, err = searcher.Search(context.Background(), "Observation",
		[]models.WhereClause{where("subject:Patient.name", models.OperatorEquals, "'x'")})
	assert.ErrorIs(t, err, ErrUnsupportedParameter)

	// dotted chain through a reference parameter
	_, err = searcher.Search(context.Background(), "Observation",
		[]models.WhereClause{where("subject.name", models.OperatorEquals, "'Simpson'")})
	assert.ErrorIs(t, err, ErrUnsupportedParameter)

	_, err = searcher.Search(context.Background(), "Observation",
		[]models.WhereClause{where("patient.family", models.OperatorIn, "'foo'", "'bar'")})
	assert.ErrorIs(t, err, ErrUnsupportedParameter)
}

func TestMemorySearcher_ResumeSnapshot(t *testing.T) {
	store := newStore(t)
	searcher := NewMemorySearcher(store, fhirpath.New())

	provider, err := searcher.Search(context.Background(), "Patient", nil)
	require.NoError(t, err)

	store.Add(models.Resource{"resourceType": "Patient", "id": "p4"})

	resumed, err := searcher.Resume(context.Background(), provider.SearchID())
	require.NoError(t, err)
	assert.Equal(t, provider.SearchID(), resumed.SearchID())
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(t, resumed))

	window, err := resumed.FetchWindow(context.Background(), 2, 10)
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "p3", window[0].ID())

	window, err = resumed.FetchWindow(context.Background(), 3, 10)
	require.NoError(t, err)
	assert.Empty(t, window)

	_, err = searcher.Resume(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSearchNotFound)
}

func TestMemorySearcher_BoundsSearches(t *testing.T) {
	searcher := NewMemorySearcher(newStore(t), fhirpath.New(), WithMaxSearches(10))
	ctx := context.Background()

	first, err := searcher.Search(ctx, "Patient", nil)
	require.NoError(t, err)
	var last executor.SearchProvider
	for i := 0; i < 500; i++ {
		last, err = searcher.Search(ctx, "Patient", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 10, searcher.searches.len())

	_, err = searcher.Resume(ctx, first.SearchID())
	assert.ErrorIs(t, err, ErrSearchNotFound)
	_, err = searcher.Resume(ctx, last.SearchID())
	assert.NoError(t, err)
}

func TestMemorySearcher_ExpiredSearch(t *testing.T) {
	searcher := NewMemorySearcher(newStore(t), fhirpath.New(), WithSearchTTL(20*time.Millisecond))
	ctx := context.Background()

	provider, err := searcher.Search(ctx, "Patient", nil)
	require.NoError(t, err)
	_, err = searcher.Resume(ctx, provider.SearchID())
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = searcher.Resume(ctx, provider.SearchID())
	assert.ErrorIs(t, err, ErrSearchNotFound)
}

func TestMemoryStore_AssignsIDs(t *testing.T) {
	store := NewMemoryStore()
	store.Add(models.Resource{"resourceType": "Patient"})

	stored := store.Resources("Patient")
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].ID())
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_LoadPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(bundleJSON), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`[{"resourceType":"Patient","id":"p9"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	store := NewMemoryStore()
	n, err := store.LoadPath(dir)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Len(t, store.Resources("Patient"), 4)

	n, err = NewMemoryStore().LoadPath(filepath.Join(dir, "b.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte(`{"id":"x"}`), 0o644))
	_, err = NewMemoryStore().LoadPath(dir)
	assert.ErrorContains(t, err, "missing resourceType")

	_, err = NewMemoryStore().LoadPath(filepath.Join(dir, "absent.json"))
	assert.Error(t, err)
}
