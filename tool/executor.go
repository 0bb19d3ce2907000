package tool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/internal/stringutils"
)

// Executor runs registered tools and turns every outcome into observation
// text for the model. It never returns an error and never panics.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
}

func NewExecutor(registry *Registry, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
	}
}

func (e *Executor) Registry() *Registry {
	return e.registry
}

func (e *Executor) Execute(ctx context.Context, name string, input string) string {
	t, ok := e.registry.Get(name)
	if !ok {
		err := errors.Wrapf(errors.ErrUnknownTool, "%s", name)
		e.logger.WarnContext(ctx, "unknown tool requested", "tool", name, "error", err)
		return fmt.Sprintf("Error: Failed to execute tool %s: tool '%s' not found in registry", name, name)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	started := time.Now()
	out, err := invoke(ctx, t, input)
	if err != nil {
		e.logger.WarnContext(ctx, "tool failed", "tool", name, "error", errors.Wrapf(errors.ErrToolExecution, "%v", err))
		return fmt.Sprintf("Error: Failed to execute tool %s: %v", name, err)
	}

	e.logger.DebugContext(ctx, "tool executed", "tool", name, "elapsed", time.Since(started))
	return stringutils.Sanitize(out)
}

func invoke(ctx context.Context, t Tool, input string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()

	return t.Invoke(ctx, input)
}
