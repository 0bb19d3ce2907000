package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/habiliai/supportagent/embedding"
	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/internal/mytesting"
	"github.com/habiliai/supportagent/memory"
)

// StoreTestSuite runs the same contract against every Store backend.
type StoreTestSuite struct {
	mytesting.Suite

	newStore func(t *testing.T) memory.Store
	store    memory.Store
}

func (s *StoreTestSuite) SetupTest() {
	s.Suite.SetupTest()
	s.store = s.newStore(s.T())
}

func (s *StoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
	s.Suite.TearDownTest()
}

func (s *StoreTestSuite) insert(userID, content string, vec ...float32) *memory.Memory {
	m := &memory.Memory{
		UserID:     userID,
		Content:    content,
		Importance: memory.ImportanceMedium,
		Embedding:  vec,
	}
	s.Require().NoError(s.store.Insert(s, m))
	s.Require().NotZero(m.ID)
	return m
}

func (s *StoreTestSuite) TestInsertAssignsIncreasingIDs() {
	first := s.insert("alice", "first", 1, 0, 0)
	second := s.insert("alice", "second", 0, 1, 0)

	s.Greater(second.ID, first.ID)
	s.False(first.CreatedAt.IsZero())
}

func (s *StoreTestSuite) TestSearchFiltersOrdersAndTruncates() {
	exact := s.insert("alice", "exact", 1, 0, 0)
	near := s.insert("alice", "close", 0.9, 0.1, 0)
	s.insert("alice", "orthogonal", 0, 1, 0)
	s.insert("bob", "foreign exact", 1, 0, 0)

	results, err := s.store.Search(s, "alice", []float32{1, 0, 0}, 5, 0.5)
	s.Require().NoError(err)
	s.Require().Len(results, 2)
	s.Equal(exact.ID, results[0].Memory.ID)
	s.Equal(near.ID, results[1].Memory.ID)
	s.InDelta(1.0, results[0].Score, 1e-4)
	s.GreaterOrEqual(results[0].Score, results[1].Score)
	for _, r := range results {
		s.Equal("alice", r.Memory.UserID)
		s.Greater(r.Score, 0.5)
	}

	results, err = s.store.Search(s, "alice", []float32{1, 0, 0}, 1, 0.5)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal(exact.ID, results[0].Memory.ID)
}

func (s *StoreTestSuite) TestSearchThresholdIsStrict() {
	s.insert("alice", "close", 0.9, 0.1, 0)
	s.insert("alice", "orthogonal", 0, 1, 0)

	// orthogonal scores exactly 0 and must not pass a 0 threshold
	results, err := s.store.Search(s, "alice", []float32{1, 0, 0}, 5, 0)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal("close", results[0].Memory.Content)

	results, err = s.store.Search(s, "alice", []float32{1, 0, 0}, 5, 0.999)
	s.Require().NoError(err)
	s.Empty(results)
}

func (s *StoreTestSuite) TestSearchTiesKeepInsertionOrder() {
	first := s.insert("alice", "first", 1, 0, 0)
	second := s.insert("alice", "second", 2, 0, 0)

	results, err := s.store.Search(s, "alice", []float32{1, 0, 0}, 5, 0.5)
	s.Require().NoError(err)
	s.Require().Len(results, 2)
	s.Equal(first.ID, results[0].Memory.ID)
	s.Equal(second.ID, results[1].Memory.ID)
}

func (s *StoreTestSuite) TestSearchSkipsZeroVectors() {
	s.insert("alice", "unavailable", 0, 0, 0)

	results, err := s.store.Search(s, "alice", []float32{1, 0, 0}, 5, 0)
	s.Require().NoError(err)
	s.Empty(results)

	results, err = s.store.Search(s, "alice", []float32{0, 0, 0}, 5, 0)
	s.Require().NoError(err)
	s.Empty(results)

	memories, err := s.store.List(s, "alice")
	s.Require().NoError(err)
	s.Len(memories, 1)
}

func (s *StoreTestSuite) TestSearchUnknownUser() {
	s.insert("alice", "exact", 1, 0, 0)

	results, err := s.store.Search(s, "nobody", []float32{1, 0, 0}, 5, 0)
	s.Require().NoError(err)
	s.Empty(results)
}

func (s *StoreTestSuite) TestListNewestFirst() {
	s.insert("alice", "older", 1, 0, 0)
	time.Sleep(5 * time.Millisecond)
	s.insert("alice", "newer", 0, 1, 0)
	s.insert("bob", "foreign", 0, 0, 1)

	memories, err := s.store.List(s, "alice")
	s.Require().NoError(err)
	s.Require().Len(memories, 2)
	s.Equal("newer", memories[0].Content)
	s.Equal("older", memories[1].Content)
}

func (s *StoreTestSuite) TestUpdateRequiresOwner() {
	m := s.insert("alice", "original", 1, 0, 0)

	err := s.store.Update(s, m.ID, "mallory", "hijacked", []float32{0, 1, 0})
	s.Require().ErrorIs(err, errors.ErrNotFound)

	err = s.store.Update(s, m.ID+100, "alice", "missing", []float32{0, 1, 0})
	s.Require().ErrorIs(err, errors.ErrNotFound)

	memories, err := s.store.List(s, "alice")
	s.Require().NoError(err)
	s.Require().Len(memories, 1)
	s.Equal("original", memories[0].Content)
}

func (s *StoreTestSuite) TestUpdateRewritesContentAndEmbedding() {
	m := s.insert("alice", "likes tea", 1, 0, 0)
	time.Sleep(5 * time.Millisecond)

	s.Require().NoError(s.store.Update(s, m.ID, "alice", "likes coffee", []float32{0, 1, 0}))

	memories, err := s.store.List(s, "alice")
	s.Require().NoError(err)
	s.Require().Len(memories, 1)
	s.Equal("likes coffee", memories[0].Content)
	s.True(memories[0].CreatedAt.After(m.CreatedAt))

	results, err := s.store.Search(s, "alice", []float32{0, 1, 0}, 5, 0.9)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal(m.ID, results[0].Memory.ID)

	results, err = s.store.Search(s, "alice", []float32{1, 0, 0}, 5, 0.5)
	s.Require().NoError(err)
	s.Empty(results)
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{
		newStore: func(*testing.T) memory.Store { return memory.NewInMemoryStore() },
	})
}

func TestChromemStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{
		newStore: func(*testing.T) memory.Store { return memory.NewChromemStore() },
	})
}

func TestInMemoryStoreRejectsNonPositiveTopK(t *testing.T) {
	_, err := memory.NewInMemoryStore().Search(t.Context(), "alice", []float32{1}, 0, 0.5)
	if !errors.Is(err, errors.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}

type failingEncoder struct{}

func (failingEncoder) Encode(context.Context, embedding.Task, ...string) ([][]float32, error) {
	return nil, errors.New("backend down")
}
