// Package memory is an in-memory vector store using brute-force cosine
// similarity. It is the default backend and backs the test suite.
package memory

import (
	"context"
	"math"
	"net/http"
	"sort"
	"sync"

	"worldbook/internal/domain"
)

// Store holds named collections of points behind one mutex.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	dimension int
	points    map[string]domain.StoredPoint
	order     []string // insertion order, keeps equal-score results stable
}

func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) CreateCollection(_ context.Context, name string, dimension int, _ string) error {
	if dimension <= 0 {
		return &domain.StoreError{Op: "create collection", StatusCode: http.StatusBadRequest, Message: "invalid dimension"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		if c.dimension != dimension {
			return &domain.StoreError{Op: "create collection", StatusCode: http.StatusConflict, Message: "collection exists with different dimension"}
		}
		return nil
	}
	s.collections[name] = &collection{dimension: dimension, points: make(map[string]domain.StoredPoint)}
	return nil
}

func (s *Store) Upsert(_ context.Context, name string, points []domain.StoredPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return notFound("upsert", name)
	}
	for _, p := range points {
		if len(p.Vector) != c.dimension {
			return &domain.StoreError{Op: "upsert", StatusCode: http.StatusBadRequest, Message: "vector dimension mismatch"}
		}
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = p
	}
	return nil
}

func (s *Store) Search(_ context.Context, name string, vector []float64, limit int) ([]domain.SearchCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil, notFound("search", name)
	}
	if limit <= 0 {
		limit = 10
	}
	results := make([]domain.SearchCandidate, 0, len(c.order))
	for _, id := range c.order {
		p := c.points[id]
		results = append(results, domain.SearchCandidate{
			ID:      p.ID,
			Score:   cosine(p.Vector, vector),
			Payload: p.Payload,
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if limit > len(results) {
		limit = len(results)
	}
	return results[:limit], nil
}

func (s *Store) DeleteRecords(_ context.Context, name string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return notFound("delete records", name)
	}
	for _, id := range ids {
		if _, exists := c.points[id]; !exists {
			continue
		}
		delete(c.points, id)
		for i, oid := range c.order {
			if oid == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return notFound("delete collection", name)
	}
	delete(s.collections, name)
	return nil
}

func notFound(op, name string) *domain.StoreError {
	return &domain.StoreError{Op: op, StatusCode: http.StatusNotFound, Message: "collection " + name + " not found"}
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
