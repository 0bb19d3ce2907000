package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/habiliai/supportagent/embedding"
	"github.com/habiliai/supportagent/errors"
)

type (
	// Embedder is satisfied by *embedding.Provider.
	Embedder interface {
		Embed(ctx context.Context, text string, isQuery bool) embedding.Vector
		Dimension() int
	}

	// Service is the semantic long-term memory: every operation embeds
	// through the Embedder and is scoped to one user.
	Service struct {
		store    Store
		embedder Embedder
		logger   *slog.Logger
	}
)

var (
	_ Embedder = (*embedding.Provider)(nil)
)

func NewService(store Store, embedder Embedder, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		logger:   logger,
	}
}

// Store embeds content as a document and persists it. A record written while
// the embedding backend is unavailable is kept but never matches a search.
func (s *Service) Store(ctx context.Context, userID, content string, importance Importance) (*Memory, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "user id cannot be empty")
	}
	if strings.TrimSpace(content) == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "content cannot be empty")
	}
	if importance == "" {
		importance = ImportanceMedium
	}
	if !importance.Valid() {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "invalid importance %q", importance)
	}

	vec, err := s.embed(ctx, content, false)
	if err != nil {
		return nil, err
	}

	m := &Memory{
		UserID:     userID,
		Content:    content,
		Importance: importance,
		Embedding:  vec,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "memory stored", "user_id", userID, "memory_id", m.ID, "embedded", !vec.IsZero())
	return m, nil
}

// Search returns the user's memories scoring strictly above threshold, best
// first, at most topK of them.
func (s *Service) Search(ctx context.Context, userID, query string, topK int, threshold float64) ([]ScoredMemory, error) {
	if topK <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "top_k must be a positive integer")
	}
	if !(threshold >= 0 && threshold <= 1) {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "similarity_threshold must be between 0.0 and 1.0")
	}

	vec, err := s.embed(ctx, query, true)
	if err != nil {
		return nil, err
	}
	if vec.IsZero() {
		return []ScoredMemory{}, nil
	}

	results, err := s.store.Search(ctx, userID, vec, topK, threshold)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "memories searched", "user_id", userID, "results", len(results))
	return results, nil
}

// Update re-embeds content and rewrites the record only when both id and
// owner match; otherwise it returns errors.ErrNotFound.
func (s *Service) Update(ctx context.Context, id uint, userID, content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "content cannot be empty")
	}

	vec, err := s.embed(ctx, content, false)
	if err != nil {
		return err
	}

	return s.store.Update(ctx, id, userID, content, vec)
}

func (s *Service) List(ctx context.Context, userID string) ([]*Memory, error) {
	return s.store.List(ctx, userID)
}

func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) embed(ctx context.Context, text string, isQuery bool) (embedding.Vector, error) {
	vec := s.embedder.Embed(ctx, text, isQuery)
	if len(vec) != s.embedder.Dimension() {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "embedding dimension %d, expected %d", len(vec), s.embedder.Dimension())
	}
	return vec, nil
}
