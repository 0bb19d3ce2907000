package agent

import (
	"context"
	"sync"

	"github.com/habiliai/supportagent/errors"
)

type (
	// Checkpointer persists the State of each thread.
	// Load returns errors.ErrNotFound for an unknown thread.
	Checkpointer interface {
		Save(ctx context.Context, threadID string, state *State) error
		Load(ctx context.Context, threadID string) (*State, error)
	}

	InMemoryCheckpointer struct {
		mu     sync.RWMutex
		states map[string]*State
	}
)

var (
	_ Checkpointer = (*InMemoryCheckpointer)(nil)
)

func NewInMemoryCheckpointer() *InMemoryCheckpointer {
	return &InMemoryCheckpointer{
		states: make(map[string]*State),
	}
}

func (c *InMemoryCheckpointer) Save(_ context.Context, threadID string, state *State) error {
	if threadID == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "thread id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[threadID] = state.Clone()
	return nil
}

func (c *InMemoryCheckpointer) Load(_ context.Context, threadID string) (*State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, ok := c.states[threadID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "no checkpoint for thread %s", threadID)
	}
	return state.Clone(), nil
}
