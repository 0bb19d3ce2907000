package config

import (
	"time"

	"github.com/pkg/errors"
)

const (
	EmbeddingProviderNomic   = "nomic"
	EmbeddingProviderOpenAI  = "openai"
	EmbeddingProviderLexical = "lexical"
)

type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
	// CacheMaxCost bounds the embedding cache in bytes; zero disables it.
	CacheMaxCost int64 `yaml:"cacheMaxCost"`

	NomicAPIKey  string `yaml:"nomicApiKey"`
	OpenAIAPIKey string `yaml:"openaiApiKey"`
}

func NewEmbeddingConfig() *EmbeddingConfig {
	return &EmbeddingConfig{
		Provider:     EmbeddingProviderNomic,
		Model:        "nomic-embed-text-v1.5",
		Dimension:    768,
		Timeout:      15 * time.Second,
		CacheMaxCost: 32 << 20,
	}
}

func (c *EmbeddingConfig) applyEnv() {
	setString(&c.NomicAPIKey, "NOMIC_API_KEY")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.Provider, "EMBEDDING_PROVIDER")
}

func (c *EmbeddingConfig) Validate() error {
	switch c.Provider {
	case EmbeddingProviderNomic, EmbeddingProviderOpenAI, EmbeddingProviderLexical:
	default:
		return errors.Errorf("unknown embedding.provider %q", c.Provider)
	}
	if c.Dimension <= 0 {
		return errors.New("embedding.dimension must be positive")
	}
	return nil
}
