package model

import (
	"context"
	"strings"

	"github.com/openai/openai-go"

	"github.com/habiliai/supportagent/errors"
)

type OpenAI struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

var (
	_ Model = (*OpenAI)(nil)
)

func NewOpenAI(client openai.Client, model string, temperature float64, maxTokens int64) *OpenAI {
	return &OpenAI{
		client:      client,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (m *OpenAI) params(prompt Prompt) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if strings.TrimSpace(prompt.System) != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	messages = append(messages, openai.UserMessage(prompt.User))

	return openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(m.model),
		Messages:            messages,
		Temperature:         openai.Float(m.temperature),
		MaxCompletionTokens: openai.Int(m.maxTokens),
	}
}

func (m *OpenAI) Invoke(ctx context.Context, prompt Prompt) (string, error) {
	res, err := m.client.Chat.Completions.New(ctx, m.params(prompt))
	if err != nil {
		return "", errors.Wrapf(err, "openai chat completion failed")
	}
	if len(res.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}

	return res.Choices[0].Message.Content, nil
}

func (m *OpenAI) Stream(ctx context.Context, prompt Prompt, onChunk func(chunk string) error) (string, error) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, m.params(prompt))
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		sb.WriteString(delta)
		if err := onChunk(delta); err != nil {
			return sb.String(), err
		}
	}
	if err := stream.Err(); err != nil {
		return sb.String(), errors.Wrapf(err, "openai streaming error")
	}

	return sb.String(), nil
}
