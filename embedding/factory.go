package embedding

import (
	"log/slog"

	"github.com/openai/openai-go/option"

	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/errors"
)

// NewFromConfig builds the configured encoder, wraps it in a cache when
// enabled and returns the provider with a release func for the cache.
func NewFromConfig(conf *config.EmbeddingConfig, logger *slog.Logger) (*Provider, func(), error) {
	var encoder Encoder
	switch conf.Provider {
	case config.EmbeddingProviderNomic:
		if conf.NomicAPIKey == "" {
			logger.Warn("NOMIC_API_KEY is not set, memory embeddings will be unavailable")
		}
		encoder = NewNomicEncoder(conf.NomicAPIKey, conf.Model, conf.Dimension)
	case config.EmbeddingProviderOpenAI:
		model := conf.Model
		if model == NomicTextEmbedderModel {
			model = ""
		}
		encoder = NewOpenAIEncoder(model, conf.Dimension, option.WithAPIKey(conf.OpenAIAPIKey))
	case config.EmbeddingProviderLexical:
		encoder = NewLexicalEncoder(conf.Dimension)
	default:
		return nil, nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown embedding provider %q", conf.Provider)
	}

	release := func() {}
	if conf.CacheMaxCost > 0 {
		cached, err := NewCachedEncoder(encoder, conf.CacheMaxCost)
		if err != nil {
			return nil, nil, err
		}
		encoder, release = cached, cached.Close
	}

	logger.Info("embedding provider ready", "provider", conf.Provider, "dimension", conf.Dimension)
	return NewProvider(encoder, conf.Dimension, conf.Timeout, logger), release, nil
}
