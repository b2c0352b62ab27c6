// client.go

package hfql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/omniql-engine/hfql/engine/executor"
	"github.com/omniql-engine/hfql/engine/fhirpath"
	"github.com/omniql-engine/hfql/engine/search"
)

// ============================================
// CLIENT STRUCT
// ============================================

// Client runs HFQL statements against a search backend
type Client struct {
	exec  *executor.Executor
	limit int
}

// ============================================
// CONSTRUCTORS
// ============================================

// NewClient creates a client over any searcher and path evaluator
func NewClient(searcher executor.Searcher, evaluator executor.Evaluator, opts ...executor.Option) *Client {
	return &Client{
		exec:  executor.New(searcher, evaluator, opts...),
		limit: executor.NoLimit,
	}
}

// WrapMemory queries resources held in memory
func WrapMemory(store *search.MemoryStore) *Client {
	ev := fhirpath.New()
	return NewClient(search.NewMemorySearcher(store, ev), ev)
}

// WrapMongo queries FHIR documents stored one collection per resource type
func WrapMongo(db *mongo.Database) *Client {
	return NewClient(search.NewMongoSearcher(db), fhirpath.New())
}

// WrapRedis caches the searches of backend in Redis, so results can be
// continued by any client sharing rdb
func WrapRedis(rdb *redis.Client, backend executor.Searcher, ttl time.Duration) *Client {
	return NewClient(search.NewRedisCache(rdb, backend, ttl), fhirpath.New())
}

// ============================================
// CONFIGURATION
// ============================================

// SetLimit bounds statements without a LIMIT; executor.NoLimit removes the bound
func (c *Client) SetLimit(limit int) {
	c.limit = limit
}

// Executor returns the executor backing the client
func (c *Client) Executor() *executor.Executor {
	return c.exec
}

// ============================================
// QUERY METHODS
// ============================================

// Query executes an HFQL statement and returns its row stream
func (c *Client) Query(ctx context.Context, input string) (executor.Result, error) {
	return c.exec.Execute(ctx, input, c.limit)
}

// Continue resumes a previous query at offset
func (c *Client) Continue(ctx context.Context, input, searchID string, offset int) (executor.Result, error) {
	return c.exec.Continue(ctx, input, searchID, offset, c.limit)
}

// QueryMaps executes an HFQL statement and collects each row keyed by
// column alias. An error row is returned as an error.
func (c *Client) QueryMaps(ctx context.Context, input string) ([]map[string]any, error) {
	result, err := c.Query(ctx, input)
	if err != nil {
		return nil, err
	}
	defer result.Close()
	return rowsToMaps(ctx, result)
}

func rowsToMaps(ctx context.Context, result executor.Result) ([]map[string]any, error) {
	columns := result.ColumnNames()
	results := []map[string]any{}

	for result.HasNext(ctx) {
		row, err := result.NextRow(ctx)
		if errors.Is(err, executor.ErrNoMoreRows) {
			break
		}
		if err != nil {
			return nil, err
		}
		if row.IsError() {
			return results, fmt.Errorf("query failed: %s", row.Message())
		}

		m := make(map[string]any, len(columns))
		for i, col := range columns {
			if i < len(row.Values) {
				m[col] = row.Values[i]
			}
		}
		results = append(results, m)
	}
	return results, nil
}
