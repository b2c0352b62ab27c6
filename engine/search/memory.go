package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/omniql-engine/hfql/engine/executor"
	"github.com/omniql-engine/hfql/engine/models"
)

// ============================================================================
// STORE
// ============================================================================

// MemoryStore holds resources by type in insertion order
type MemoryStore struct {
	mu        sync.RWMutex
	resources map[string][]models.Resource
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{resources: map[string][]models.Resource{}}
}

// Add stores resources, assigning an id to any that lack one
func (s *MemoryStore) Add(resources ...models.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range resources {
		if res.ID() == "" {
			res["id"] = uuid.NewString()
		}
		t := res.ResourceType()
		s.resources[t] = append(s.resources[t], res)
	}
}

// Load decodes a resource, an array of resources or a Bundle and stores the result
func (s *MemoryStore) Load(data []byte) (int, error) {
	resources, err := models.DecodeResources(data)
	if err != nil {
		return 0, err
	}
	s.Add(resources...)
	return len(resources), nil
}

// LoadPath loads a JSON file, or every *.json file of a directory in name order
func (s *MemoryStore) LoadPath(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", path, err)
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return 0, fmt.Errorf("failed to load %s: %w", path, err)
		}
		files = files[:0]
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(files)
	}

	total := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return total, fmt.Errorf("failed to load %s: %w", f, err)
		}
		n, err := s.Load(data)
		if err != nil {
			return total, fmt.Errorf("failed to load %s: %w", f, err)
		}
		total += n
	}
	return total, nil
}

// Resources returns the stored resources of one type
func (s *MemoryStore) Resources(resourceType string) []models.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Resource(nil), s.resources[resourceType]...)
}

// Len returns the number of stored resources
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.resources {
		n += len(list)
	}
	return n
}

// ============================================================================
// SEARCHER
// ============================================================================

// MemorySearcher searches a MemoryStore, evaluating WHERE parameters as paths.
// Each search snapshots its matches so windows stay stable under later adds.
type MemorySearcher struct {
	store     *MemoryStore
	evaluator executor.Evaluator
	searches  *searchRegistry[[]models.Resource]
}

var _ executor.Searcher = (*MemorySearcher)(nil)

// NewMemorySearcher creates a searcher over store
func NewMemorySearcher(store *MemoryStore, evaluator executor.Evaluator, opts ...SearcherOption) *MemorySearcher {
	return &MemorySearcher{
		store:     store,
		evaluator: evaluator,
		searches:  newSearchRegistry[[]models.Resource](opts),
	}
}

// Search filters the stored resources of resourceType by where
func (m *MemorySearcher) Search(ctx context.Context, resourceType string, where []models.WhereClause) (executor.SearchProvider, error) {
	conditions, err := resolveConditions(resourceType, where)
	if err != nil {
		return nil, err
	}

	var matched []models.Resource
	for _, res := range m.store.Resources(resourceType) {
		ok, err := m.matches(ctx, res, conditions)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, res)
		}
	}

	id := m.searches.add(matched)

	log.WithFields(log.Fields{
		"searchId":     id,
		"resourceType": resourceType,
		"matched":      len(matched),
	}).Debug("Memory search")

	return &memoryProvider{id: id, resources: matched}, nil
}

// Resume returns the snapshot of a previous search
func (m *MemorySearcher) Resume(_ context.Context, searchID string) (executor.SearchProvider, error) {
	matched, ok := m.searches.get(searchID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSearchNotFound, searchID)
	}
	return &memoryProvider{id: searchID, resources: matched}, nil
}

func (m *MemorySearcher) matches(ctx context.Context, res models.Resource, conditions []condition) (bool, error) {
	for _, cond := range conditions {
		var actual []string
		for _, path := range cond.param.Paths {
			values, err := m.evaluator.Evaluate(ctx, res, path)
			if err != nil {
				return false, fmt.Errorf("failed to evaluate search parameter %s: %w", cond.param.Name, err)
			}
			for _, v := range values {
				if !v.IsNull() {
					actual = append(actual, v.Text)
				}
			}
		}
		if !cond.matches(actual) {
			return false, nil
		}
	}
	return true, nil
}

type memoryProvider struct {
	id        string
	resources []models.Resource
}

func (p *memoryProvider) FetchWindow(_ context.Context, from, to int) ([]models.Resource, error) {
	if from < 0 || from >= len(p.resources) || to <= from {
		return nil, nil
	}
	if to > len(p.resources) {
		to = len(p.resources)
	}
	return p.resources[from:to], nil
}

func (p *memoryProvider) SearchID() string {
	return p.id
}
