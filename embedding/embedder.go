package embedding

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/habiliai/supportagent/errors"
)

type (
	// Task tells the encoder which side of an asymmetric search a text is on.
	Task string

	// Vector is a fixed-dimension embedding. An all-zero vector means the
	// embedding was unavailable and carries no semantic position.
	Vector []float32

	// Encoder turns already-prefixed texts into vectors.
	Encoder interface {
		Encode(ctx context.Context, task Task, texts ...string) ([][]float32, error)
	}

	Provider struct {
		encoder   Encoder
		dimension int
		timeout   time.Duration
		logger    *slog.Logger
	}
)

const (
	TaskQuery    Task = "search_query"
	TaskDocument Task = "search_document"
)

func (t Task) String() string {
	return string(t)
}

// Prefix is the marker prepended to every text of this task.
func (t Task) Prefix() string {
	return string(t) + ": "
}

func TaskFor(isQuery bool) Task {
	if isQuery {
		return TaskQuery
	}
	return TaskDocument
}

// StripPrefix removes the task marker for backends that apply it themselves.
func (t Task) StripPrefix(text string) string {
	return strings.TrimPrefix(text, t.Prefix())
}

func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func NewProvider(encoder Encoder, dimension int, timeout time.Duration, logger *slog.Logger) *Provider {
	return &Provider{
		encoder:   encoder,
		dimension: dimension,
		timeout:   timeout,
		logger:    logger,
	}
}

func (p *Provider) Dimension() int {
	return p.dimension
}

// Embed encodes text with the query or document prefix. It never fails: on
// any backend error it logs and returns a zero vector of the configured
// dimension.
func (p *Provider) Embed(ctx context.Context, text string, isQuery bool) Vector {
	vec, err := p.TryEmbed(ctx, text, isQuery)
	if err != nil {
		p.logger.WarnContext(ctx, "embedding unavailable, using zero vector", "error", err, "is_query", isQuery)
		return make(Vector, p.dimension)
	}
	return vec
}

// TryEmbed is Embed without the zero-vector fallback.
func (p *Provider) TryEmbed(ctx context.Context, text string, isQuery bool) (Vector, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	task := TaskFor(isQuery)
	embeddings, err := p.encoder.Encode(ctx, task, task.Prefix()+text)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrEmbeddingUnavailable, "%v", err)
	}
	if len(embeddings) != 1 {
		return nil, errors.Wrapf(errors.ErrEmbeddingUnavailable, "expected 1 embedding, got %d", len(embeddings))
	}
	if len(embeddings[0]) != p.dimension {
		return nil, errors.Wrapf(errors.ErrEmbeddingUnavailable, "expected dimension %d, got %d", p.dimension, len(embeddings[0]))
	}

	return embeddings[0], nil
}
