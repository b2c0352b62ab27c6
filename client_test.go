package hfql

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniql-engine/hfql/engine/executor"
	"github.com/omniql-engine/hfql/engine/fhirpath"
	"github.com/omniql-engine/hfql/engine/lexer"
	"github.com/omniql-engine/hfql/engine/search"
	"github.com/omniql-engine/hfql/mapping"
)

const testBundle = `{
	"resourceType": "Bundle",
	"entry": [
		{"resource": {"resourceType": "Patient", "id": "p1", "active": true,
			"name": [{"family": "Simpson", "given": ["Homer"]}]}},
		{"resource": {"resourceType": "Patient", "id": "p2", "active": false,
			"name": [{"family": "Simpson", "given": ["Marge"]}]}},
		{"resource": {"resourceType": "Patient", "id": "p3",
			"name": [{"family": "Flanders", "given": ["Ned"]}]}}
	]
}`

func testStore(t *testing.T) *search.MemoryStore {
	t.Helper()
	store := search.NewMemoryStore()
	_, err := store.Load([]byte(testBundle))
	require.NoError(t, err)
	return store
}

func TestParse(t *testing.T) {
	stmt, err := Parse("select id, name.family as Family from Patient where family = 'Simpson' limit 2")
	require.NoError(t, err)
	assert.Equal(t, "Patient", stmt.FromResourceName)
	require.Len(t, stmt.SelectClauses, 2)
	assert.Equal(t, "Family", stmt.SelectClauses[1].Alias)

	_, err = Parse("select id from Patinet")
	var perr *lexer.ParseError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, "Patient", perr.Suggestion)

	_, err = ParseWithResourceTypes("select id from Widget", mapping.NewResourceTypeSet("Widget"))
	assert.NoError(t, err)
}

func TestClient_QueryMaps(t *testing.T) {
	client := WrapMemory(testStore(t))

	rows, err := client.QueryMaps(context.Background(), "select id, name.given as Given from Patient where family = 'simpson'")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": "p1", "Given": "Homer"},
		{"id": "p2", "Given": "Marge"},
	}, rows)
}

func TestClient_QueryMapsErrorRow(t *testing.T) {
	client := WrapMemory(testStore(t))

	_, err := client.QueryMaps(context.Background(), "select id from Patient order by bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid/unknown ORDER BY clause: bogus")
}

func TestClient_SetLimitAndContinue(t *testing.T) {
	client := WrapMemory(testStore(t))
	client.SetLimit(2)
	ctx := context.Background()

	result, err := client.Query(ctx, "select id from Patient")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Limit())

	rows, err := rowsToMaps(ctx, result)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	client.SetLimit(executor.NoLimit)
	resumed, err := client.Continue(ctx, "select id from Patient", result.SearchID(), 2)
	require.NoError(t, err)
	rest, err := rowsToMaps(ctx, resumed)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": "p3"}}, rest)
}

func TestClient_GroupCount(t *testing.T) {
	client := WrapMemory(testStore(t))

	rows, err := client.QueryMaps(context.Background(),
		"select name.family, count(*) from Patient group by name.family order by count(*) desc")
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"name.family": "Simpson", "Count(*)": "2"},
		{"name.family": "Flanders", "Count(*)": "1"},
	}, rows)
}

func TestClient_WrapRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	backend := search.NewMemorySearcher(testStore(t), fhirpath.New())
	client := WrapRedis(rdb, backend, time.Minute)
	ctx := context.Background()

	result, err := client.Query(ctx, "select id from Patient having active")
	require.NoError(t, err)
	rows, err := rowsToMaps(ctx, result)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": "p1"}}, rows)

	// a second client sharing Redis continues the same search
	other := WrapRedis(rdb, search.NewMemorySearcher(search.NewMemoryStore(), fhirpath.New()), time.Minute)
	resumed, err := other.Continue(ctx, "select id from Patient", result.SearchID(), 1)
	require.NoError(t, err)
	rest, err := rowsToMaps(ctx, resumed)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": "p2"}, {"id": "p3"}}, rest)
}
