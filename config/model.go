package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

type ModelConfig struct {
	// Name is "<provider>/<model>", e.g. openai/gpt-4o-mini or anthropic/claude-3-5-haiku-latest
	Name        string        `yaml:"name"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int64         `yaml:"maxTokens"`
	Timeout     time.Duration `yaml:"timeout"`

	OpenAIAPIKey    string `yaml:"openaiApiKey"`
	OpenAIBaseURL   string `yaml:"openaiBaseUrl"`
	AnthropicAPIKey string `yaml:"anthropicApiKey"`
}

func NewModelConfig() *ModelConfig {
	return &ModelConfig{
		Name:        "openai/gpt-4o-mini",
		Temperature: 0.7,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
	}
}

func (c *ModelConfig) applyEnv() {
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&c.Name, "MODEL")
}

// Provider returns the part of Name before the first slash.
func (c *ModelConfig) Provider() string {
	provider, _, _ := strings.Cut(c.Name, "/")
	return provider
}

// ModelName returns the part of Name after the first slash.
func (c *ModelConfig) ModelName() string {
	_, name, _ := strings.Cut(c.Name, "/")
	return name
}

func (c *ModelConfig) Validate() error {
	if !strings.Contains(c.Name, "/") || c.ModelName() == "" {
		return errors.Errorf("model.name %q must be <provider>/<model>", c.Name)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return errors.Errorf("model.temperature %v must be between 0 and 2", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return errors.New("model.maxTokens must be positive")
	}
	return nil
}
