// Package modeltest provides a scripted model.Model for tests.
package modeltest

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/habiliai/supportagent/model"
)

// Model is a testify mock. Invoke expectations return (string, error).
// Stream expectations return ([]string, error): the chunks are sent to the
// callback in order before the error is returned.
type Model struct {
	mock.Mock
}

var (
	_ model.Model = (*Model)(nil)
)

func (m *Model) Invoke(ctx context.Context, prompt model.Prompt) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *Model) Stream(ctx context.Context, prompt model.Prompt, onChunk func(chunk string) error) (string, error) {
	args := m.Called(ctx, prompt)

	chunks, _ := args.Get(0).([]string)
	var sb strings.Builder
	for _, chunk := range chunks {
		sb.WriteString(chunk)
		if err := onChunk(chunk); err != nil {
			return sb.String(), err
		}
	}
	return sb.String(), args.Error(1)
}

// Invokes returns the prompts passed to Invoke so far.
func (m *Model) Invokes() []model.Prompt {
	var prompts []model.Prompt
	for _, call := range m.Calls {
		if call.Method == "Invoke" {
			prompts = append(prompts, call.Arguments.Get(1).(model.Prompt))
		}
	}
	return prompts
}
