package search

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Bounds on the searches a MemorySearcher or MongoSearcher keeps for Resume
const (
	DefaultSearchTTL   = DefaultCacheTTL
	DefaultMaxSearches = 1000
)

// SearcherOption bounds the searches a searcher keeps for Resume
type SearcherOption func(*searchLimits)

type searchLimits struct {
	ttl time.Duration
	max int
}

// WithSearchTTL forgets a search ttl after it was last started or resumed
func WithSearchTTL(ttl time.Duration) SearcherOption {
	return func(l *searchLimits) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithMaxSearches keeps at most n searches, dropping the least recently used
func WithMaxSearches(n int) SearcherOption {
	return func(l *searchLimits) {
		if n > 0 {
			l.max = n
		}
	}
}

// searchRegistry maps search ids to what a provider needs to resume them
type searchRegistry[V any] struct {
	searches *expirable.LRU[string, V]
}

func newSearchRegistry[V any](opts []SearcherOption) *searchRegistry[V] {
	limits := searchLimits{ttl: DefaultSearchTTL, max: DefaultMaxSearches}
	for _, opt := range opts {
		opt(&limits)
	}
	return &searchRegistry[V]{searches: expirable.NewLRU[string, V](limits.max, nil, limits.ttl)}
}

// add remembers a search under a new id
func (r *searchRegistry[V]) add(search V) string {
	id := uuid.NewString()
	r.searches.Add(id, search)
	return id
}

// get returns a search and restarts its ttl
func (r *searchRegistry[V]) get(id string) (V, bool) {
	search, ok := r.searches.Get(id)
	if ok {
		r.searches.Add(id, search)
	}
	return search, ok
}

func (r *searchRegistry[V]) len() int {
	return r.searches.Len()
}
