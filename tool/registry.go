package tool

import (
	"sync"

	"github.com/habiliai/supportagent/errors"
)

// Registry holds the tools available to one agent, in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	names []string
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool),
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if name == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "tool name is required")
	}
	if _, ok := r.tools[name]; ok {
		return errors.Errorf("tool %s already registered", name)
	}

	r.tools[name] = t
	r.names = append(r.names, name)
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.names...)
}

func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.names))
	for _, name := range r.names {
		tools = append(tools, r.tools[name])
	}
	return tools
}
