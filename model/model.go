package model

import (
	"context"
)

type (
	// Prompt is one rendered request: the system instructions and the user
	// turn carrying tools, history, input and scratchpad.
	Prompt struct {
		System string
		User   string
	}

	// Model is a chat completion backend.
	Model interface {
		Invoke(ctx context.Context, prompt Prompt) (string, error)
		// Stream calls onChunk for every text delta and returns the
		// accumulated text. An error from onChunk aborts the stream.
		Stream(ctx context.Context, prompt Prompt, onChunk func(chunk string) error) (string, error)
	}
)
