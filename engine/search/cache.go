package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/omniql-engine/hfql/engine/executor"
	"github.com/omniql-engine/hfql/engine/models"
)

// DefaultCacheTTL is how long cached searches live without access
const DefaultCacheTTL = time.Hour

const (
	keyPrefix  = "hfql:search:"
	totalField = "total"
)

// RedisCache wraps a Searcher and caches every fetched window in Redis under
// the search id, so a search can be resumed from any process sharing the cache
type RedisCache struct {
	client  redis.UniversalClient
	backend executor.Searcher
	ttl     time.Duration
}

var _ executor.Searcher = (*RedisCache)(nil)

// searchMeta is stored as JSON at hfql:search:<id>
type searchMeta struct {
	ResourceType    string               `json:"resourceType"`
	Where           []models.WhereClause `json:"where"`
	BackendSearchID string               `json:"backendSearchId"`
	Created         time.Time            `json:"created"`
}

// NewRedisCache creates a cache in front of backend. A ttl of zero uses DefaultCacheTTL.
func NewRedisCache(client redis.UniversalClient, backend executor.Searcher, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, backend: backend, ttl: ttl}
}

func metaKey(id string) string { return keyPrefix + id }
func rowsKey(id string) string { return keyPrefix + id + ":rows" }

// Search starts a backend search and records it under a new cache search id
func (c *RedisCache) Search(ctx context.Context, resourceType string, where []models.WhereClause) (executor.SearchProvider, error) {
	backend, err := c.backend.Search(ctx, resourceType, where)
	if err != nil {
		return nil, err
	}

	meta := searchMeta{
		ResourceType:    resourceType,
		Where:           where,
		BackendSearchID: backend.SearchID(),
		Created:         time.Now().UTC(),
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search metadata: %w", err)
	}

	id := uuid.NewString()
	if err := c.client.Set(ctx, metaKey(id), data, c.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store search %s: %w", id, err)
	}

	log.WithFields(log.Fields{
		"searchId":        id,
		"backendSearchId": meta.BackendSearchID,
		"resourceType":    resourceType,
	}).Debug("Cached search")

	return &cacheProvider{cache: c, id: id, meta: meta, backend: backend}, nil
}

// Resume loads the metadata of a cached search. The backend search is only
// resumed when a window is not cached.
func (c *RedisCache) Resume(ctx context.Context, searchID string) (executor.SearchProvider, error) {
	data, err := c.client.Get(ctx, metaKey(searchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrSearchNotFound, searchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load search %s: %w", searchID, err)
	}

	var meta searchMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode search %s: %w", searchID, err)
	}
	return &cacheProvider{cache: c, id: searchID, meta: meta}, nil
}

type cacheProvider struct {
	cache   *RedisCache
	id      string
	meta    searchMeta
	backend executor.SearchProvider // nil until needed after Resume
}

func (p *cacheProvider) SearchID() string {
	return p.id
}

// FetchWindow serves [from, to) from the cache when every position is
// present, else fetches it from the backend and stores it
func (p *cacheProvider) FetchWindow(ctx context.Context, from, to int) ([]models.Resource, error) {
	if to <= from {
		return nil, nil
	}
	client := p.cache.client
	key := rowsKey(p.id)

	fields := make([]string, 0, to-from+1)
	for i := from; i < to; i++ {
		fields = append(fields, strconv.Itoa(i))
	}
	fields = append(fields, totalField)

	cached, err := client.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached window: %w", err)
	}

	end := to
	if total, ok := cached[len(cached)-1].(string); ok {
		if n, err := strconv.Atoi(total); err == nil && n < end {
			end = n
		}
	}
	if resources, ok := decodeWindow(cached[:len(cached)-1], end-from); ok {
		p.touch(ctx)
		log.WithFields(log.Fields{
			"searchId": p.id,
			"from":     from,
			"to":       to,
			"rows":     len(resources),
		}).Debug("Search cache hit")
		return resources, nil
	}

	backend, err := p.backendProvider(ctx)
	if err != nil {
		return nil, err
	}
	resources, err := backend.FetchWindow(ctx, from, to)
	if err != nil {
		return nil, err
	}

	values := make([]any, 0, 2*len(resources)+2)
	for i, res := range resources {
		data, err := encodeResource(res)
		if err != nil {
			return nil, err
		}
		values = append(values, strconv.Itoa(from+i), data)
	}
	if len(resources) < to-from {
		values = append(values, totalField, strconv.Itoa(from+len(resources)))
	}
	if len(values) > 0 {
		if err := client.HSet(ctx, key, values...).Err(); err != nil {
			return nil, fmt.Errorf("failed to cache window: %w", err)
		}
	}
	p.touch(ctx)
	return resources, nil
}

// decodeWindow decodes the first n cached values, reporting false on any gap
func decodeWindow(cached []any, n int) ([]models.Resource, bool) {
	if n <= 0 {
		return nil, true
	}
	resources := make([]models.Resource, 0, n)
	for _, v := range cached[:n] {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		res, err := decodeResource([]byte(s))
		if err != nil {
			return nil, false
		}
		resources = append(resources, res)
	}
	return resources, true
}

func (p *cacheProvider) backendProvider(ctx context.Context) (executor.SearchProvider, error) {
	if p.backend != nil {
		return p.backend, nil
	}
	backend, err := p.cache.backend.Resume(ctx, p.meta.BackendSearchID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume search %s: %w", p.id, err)
	}
	p.backend = backend
	return backend, nil
}

// touch refreshes the ttl of both keys
func (p *cacheProvider) touch(ctx context.Context) {
	pipe := p.cache.client.TxPipeline()
	pipe.Expire(ctx, metaKey(p.id), p.cache.ttl)
	pipe.Expire(ctx, rowsKey(p.id), p.cache.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).WithField("searchId", p.id).Warn("Failed to refresh search cache ttl")
	}
}
