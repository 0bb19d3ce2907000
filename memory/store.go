package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/habiliai/supportagent/errors"
)

type (
	// Store persists memory records and runs owner-scoped similarity search.
	Store interface {
		// Insert assigns ID and CreatedAt on m.
		Insert(ctx context.Context, m *Memory) error
		// List returns the owner's records, newest first.
		List(ctx context.Context, userID string) ([]*Memory, error)
		// Search scores the owner's records by cosine similarity to query and
		// returns those strictly above threshold, best first, at most topK.
		Search(ctx context.Context, userID string, query []float32, topK int, threshold float64) ([]ScoredMemory, error)
		// Update rewrites content, embedding and CreatedAt of the record with
		// this id and owner, or returns errors.ErrNotFound.
		Update(ctx context.Context, id uint, userID string, content string, embedding []float32) error
		Close() error
	}

	// InMemoryStore is a simple in-memory implementation
	InMemoryStore struct {
		mu      sync.RWMutex
		nextID  uint
		records []*Memory
		now     func() time.Time
	}
)

var (
	_ Store = (*InMemoryStore)(nil)
)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID: 1,
		now:    time.Now,
	}
}

func (s *InMemoryStore) Insert(_ context.Context, m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextID
	m.CreatedAt = s.now()
	s.nextID++
	s.records = append(s.records, m.clone())

	return nil
}

func (s *InMemoryStore) List(_ context.Context, userID string) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Memory
	for _, m := range s.records {
		if m.UserID == userID {
			results = append(results, m.clone())
		}
	}
	sortNewestFirst(results)

	return results, nil
}

func (s *InMemoryStore) Search(_ context.Context, userID string, query []float32, topK int, threshold float64) ([]ScoredMemory, error) {
	if topK <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "top_k must be positive")
	}
	queryNorm := norm(query)
	if queryNorm == 0 {
		return []ScoredMemory{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// only the owner's records with a usable vector of the query's dimension
	var candidates []*Memory
	for _, m := range s.records {
		if m.UserID == userID && len(m.Embedding) == len(query) && norm(m.Embedding) > 0 {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return []ScoredMemory{}, nil
	}

	dim := len(query)
	queryVec := make([]float64, dim)
	for i, v := range query {
		queryVec[i] = float64(v)
	}
	memoryData := make([]float64, len(candidates)*dim)
	for i, m := range candidates {
		for j, v := range m.Embedding {
			memoryData[i*dim+j] = float64(v)
		}
	}

	// candidates (N x d) * query (d) = dot products
	var dots mat.VecDense
	dots.MulVec(mat.NewDense(len(candidates), dim, memoryData), mat.NewVecDense(dim, queryVec))

	results := make([]ScoredMemory, 0, len(candidates))
	for i, m := range candidates {
		score := dots.AtVec(i) / (queryNorm * norm(m.Embedding))
		if score > threshold {
			results = append(results, ScoredMemory{Memory: m.clone(), Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

func (s *InMemoryStore) Update(_ context.Context, id uint, userID string, content string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.records {
		if m.ID == id && m.UserID == userID {
			m.Content = content
			m.Embedding = embedding
			m.CreatedAt = s.now()
			return nil
		}
	}

	return errors.Wrapf(errors.ErrNotFound, "memory %d", id)
}

func (s *InMemoryStore) Close() error {
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func sortNewestFirst(memories []*Memory) {
	sort.SliceStable(memories, func(i, j int) bool {
		if memories[i].CreatedAt.Equal(memories[j].CreatedAt) {
			return memories[i].ID > memories[j].ID
		}
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
}
