package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/habiliai/supportagent/errors"
)

type (
	// ChromemStore keeps vectors in an embedded chromem-go database, one
	// collection per user. Records live in process memory only.
	ChromemStore struct {
		db          *chromem.DB
		collections map[string]*chromem.Collection
		records     map[uint]*Memory
		nextID      uint
		mu          sync.RWMutex
	}
)

const (
	metaUserID     = "user_id"
	metaImportance = "importance"
	metaEmbedded   = "embedded"
)

var (
	_ Store = (*ChromemStore)(nil)
)

func NewChromemStore() *ChromemStore {
	return &ChromemStore{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		records:     make(map[uint]*Memory),
		nextID:      1,
	}
}

// collection must be called with s.mu held for writing.
func (s *ChromemStore) collection(userID string) (*chromem.Collection, error) {
	if col, ok := s.collections[userID]; ok {
		return col, nil
	}

	col, err := s.db.CreateCollection(fmt.Sprintf("user_%s", userID), nil, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create collection for %s", userID)
	}
	s.collections[userID] = col
	return col, nil
}

func (s *ChromemStore) put(ctx context.Context, m *Memory) error {
	col, err := s.collection(m.UserID)
	if err != nil {
		return err
	}

	embedded := norm(m.Embedding) > 0
	vec := m.Embedding
	if !embedded {
		existing, ok := s.records[m.ID]
		if !ok || norm(existing.Embedding) == 0 {
			// nothing searchable to keep in the collection
			return nil
		}
		// chromem cannot normalize a zero vector, keep the previous one masked
		vec = existing.Embedding
	}

	if err := col.AddDocument(ctx, chromem.Document{
		ID:        strconv.FormatUint(uint64(m.ID), 10),
		Content:   m.Content,
		Embedding: vec,
		Metadata: map[string]string{
			metaUserID:     m.UserID,
			metaImportance: string(m.Importance),
			metaEmbedded:   strconv.FormatBool(embedded),
		},
	}); err != nil {
		return errors.Wrapf(err, "failed to add document %d", m.ID)
	}
	return nil
}

func (s *ChromemStore) Insert(ctx context.Context, m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextID
	m.CreatedAt = time.Now()
	if err := s.put(ctx, m); err != nil {
		return err
	}
	s.nextID++
	s.records[m.ID] = m.clone()

	return nil
}

func (s *ChromemStore) List(_ context.Context, userID string) ([]*Memory, error) {
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

func (s *ChromemStore) Search(ctx context.Context, userID string, query []float32, topK int, threshold float64) ([]ScoredMemory, error) {
	if topK <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "top_k must be positive")
	}
	if norm(query) == 0 {
		return []ScoredMemory{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[userID]
	if !ok || col.Count() == 0 {
		return []ScoredMemory{}, nil
	}

	// threshold filtering needs every candidate scored
	hits, err := col.QueryEmbedding(ctx, query, col.Count(), map[string]string{metaEmbedded: "true"}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query collection for %s", userID)
	}

	results := make([]ScoredMemory, 0, len(hits))
	for _, hit := range hits {
		score := float64(hit.Similarity)
		if score <= threshold {
			continue
		}
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		m, ok := s.records[uint(id)]
		if !ok || m.UserID != userID {
			continue
		}
		results = append(results, ScoredMemory{Memory: m.clone(), Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Memory.ID < results[j].Memory.ID
		}
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

func (s *ChromemStore) Update(ctx context.Context, id uint, userID string, content string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[id]
	if !ok || existing.UserID != userID {
		return errors.Wrapf(errors.ErrNotFound, "memory %d", id)
	}

	updated := existing.clone()
	updated.Content = content
	updated.Embedding = embedding
	updated.CreatedAt = time.Now()
	if err := s.put(ctx, updated); err != nil {
		return err
	}
	s.records[id] = updated

	return nil
}

func (s *ChromemStore) Close() error {
	return nil
}
