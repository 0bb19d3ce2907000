package embedding

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
)

// CachedEncoder memoises another encoder per (task, text).
type CachedEncoder struct {
	next  Encoder
	cache *ristretto.Cache
}

var (
	_ Encoder = (*CachedEncoder)(nil)
)

func NewCachedEncoder(next Encoder, maxCost int64) (*CachedEncoder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create embedding cache")
	}

	return &CachedEncoder{next: next, cache: cache}, nil
}

func (e *CachedEncoder) Encode(ctx context.Context, task Task, texts ...string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing    []string
		missingIdx []int
	)
	for i, text := range texts {
		if v, ok := e.cache.Get(cacheKey(task, text)); ok {
			out[i] = v.([]float32)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	embeddings, err := e.next.Encode(ctx, task, missing...)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(missing) {
		return nil, errors.Errorf("encoder returned %d embeddings for %d texts", len(embeddings), len(missing))
	}
	for j, emb := range embeddings {
		out[missingIdx[j]] = emb
		e.cache.Set(cacheKey(task, missing[j]), emb, int64(len(emb)*4))
	}
	e.cache.Wait()

	return out, nil
}

func (e *CachedEncoder) Close() {
	e.cache.Close()
}

func cacheKey(task Task, text string) string {
	return task.String() + "\x00" + text
}
