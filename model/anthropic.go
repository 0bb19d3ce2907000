package model

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/habiliai/supportagent/errors"
)

type Anthropic struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

var (
	_ Model = (*Anthropic)(nil)
)

func NewAnthropic(client anthropic.Client, model string, temperature float64, maxTokens int64) *Anthropic {
	return &Anthropic{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (m *Anthropic) params(prompt Prompt) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.User)),
		},
		Temperature: anthropic.Float(m.temperature),
	}
	if strings.TrimSpace(prompt.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: prompt.System}}
	}
	return params
}

func (m *Anthropic) Invoke(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := m.client.Messages.New(ctx, m.params(prompt))
	if err != nil {
		return "", errors.Wrapf(err, "anthropic message generation failed")
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String(), nil
}

func (m *Anthropic) Stream(ctx context.Context, prompt Prompt, onChunk func(chunk string) error) (string, error) {
	stream := m.client.Messages.NewStreaming(ctx, m.params(prompt))
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		event := stream.Current()

		switch event := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := event.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				sb.WriteString(delta.Text)
				if err := onChunk(delta.Text); err != nil {
					return sb.String(), err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return sb.String(), errors.Wrapf(err, "anthropic streaming error")
	}

	return sb.String(), nil
}
