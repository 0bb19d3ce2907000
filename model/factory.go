package model

import (
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/errors"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// New selects the backend from the "<provider>/<model>" name.
func New(conf *config.ModelConfig, logger *slog.Logger) (Model, error) {
	switch conf.Provider() {
	case ProviderOpenAI:
		if conf.OpenAIAPIKey == "" {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "OPENAI_API_KEY is required for %s", conf.Name)
		}
		opts := []option.RequestOption{
			option.WithAPIKey(conf.OpenAIAPIKey),
			option.WithRequestTimeout(conf.Timeout),
		}
		if conf.OpenAIBaseURL != "" {
			opts = append(opts, option.WithBaseURL(conf.OpenAIBaseURL))
		}
		logger.Info("chat model ready", "provider", ProviderOpenAI, "model", conf.ModelName())
		return NewOpenAI(openai.NewClient(opts...), conf.ModelName(), conf.Temperature, conf.MaxTokens), nil
	case ProviderAnthropic:
		if conf.AnthropicAPIKey == "" {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "ANTHROPIC_API_KEY is required for %s", conf.Name)
		}
		client := anthropic.NewClient(
			anthropicoption.WithAPIKey(conf.AnthropicAPIKey),
			anthropicoption.WithRequestTimeout(conf.Timeout),
		)
		logger.Info("chat model ready", "provider", ProviderAnthropic, "model", conf.ModelName())
		return NewAnthropic(client, conf.ModelName(), conf.Temperature, conf.MaxTokens), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown model provider %q", conf.Provider())
	}
}
