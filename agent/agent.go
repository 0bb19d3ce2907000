// Package agent runs the decision loop of the support agent: it asks the
// model for the next step, dispatches tool calls through the executor and
// checkpoints the thread state after every transition.
package agent

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/internal/mylog"
	"github.com/habiliai/supportagent/model"
	"github.com/habiliai/supportagent/parser"
	"github.com/habiliai/supportagent/tool"
)

const (
	MalformedToolCallMessage = "Error: Malformed tool call received."

	tracerName = "github.com/habiliai/supportagent/agent"
)

type (
	Agent struct {
		model        model.Model
		executor     *tool.Executor
		checkpointer Checkpointer
		protocol     parser.Protocol
		prompter     *Prompter
		tracer       trace.Tracer
		logger       *slog.Logger
		now          func() time.Time

		maxToolRounds  int
		maxHistory     int
		fallbackAnswer string
	}

	Option func(*Agent) error

	Request struct {
		ThreadID string
		UserID   string
		Message  string
	}

	Result struct {
		ThreadID string `json:"thread_id"`
		Answer   string `json:"answer"`
		// Streamed reports whether Answer was built from streamed chunks.
		Streamed   bool `json:"streamed"`
		ToolRounds int  `json:"tool_rounds"`
	}

	// turn carries the per-turn bookkeeping that is not checkpointed.
	turn struct {
		req       Request
		state     *State
		onChunk   func(chunk string) error
		draft     string
		rounds    int
		streamed  bool
		exhausted bool
	}
)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) error {
		a.logger = logger
		return nil
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Agent) error {
		a.tracer = tp.Tracer(tracerName)
		return nil
	}
}

func WithProtocol(protocol parser.Protocol) Option {
	return func(a *Agent) error {
		a.protocol = protocol
		return nil
	}
}

func WithPrompt(name string) Option {
	return func(a *Agent) error {
		prompter, err := NewPrompter(name)
		if err != nil {
			return err
		}
		a.prompter = prompter
		return nil
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Agent) error {
		a.now = now
		return nil
	}
}

// WithConfig applies the prompt, bounds and fallback answer of conf.
func WithConfig(conf *config.AgentConfig) Option {
	return func(a *Agent) error {
		if err := WithPrompt(conf.Prompt)(a); err != nil {
			return err
		}
		a.maxToolRounds = conf.MaxToolRounds
		a.maxHistory = conf.MaxHistory
		a.fallbackAnswer = conf.FallbackAnswer
		return nil
	}
}

func New(m model.Model, executor *tool.Executor, checkpointer Checkpointer, opts ...Option) (*Agent, error) {
	defaults := config.NewAgentConfig()
	a := &Agent{
		model:        m,
		executor:     executor,
		checkpointer: checkpointer,
		protocol:     parser.ReAct{},
		tracer:       noop.NewTracerProvider().Tracer(tracerName),
		logger:       mylog.Discard(),
		now:          time.Now,

		maxToolRounds:  defaults.MaxToolRounds,
		maxHistory:     defaults.MaxHistory,
		fallbackAnswer: defaults.FallbackAnswer,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	if a.prompter == nil {
		prompter, err := NewPrompter(defaults.Prompt)
		if err != nil {
			return nil, err
		}
		a.prompter = prompter
	}
	if a.maxToolRounds < 1 {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "max tool rounds must be at least 1")
	}

	return a, nil
}

// Run answers one user turn without streaming.
func (a *Agent) Run(ctx context.Context, req Request) (*Result, error) {
	return a.run(ctx, req, nil)
}

// Stream answers one user turn and sends the final answer to onChunk as it
// is generated. Tool rounds are never streamed. If streaming fails the answer
// of the preceding full decision is used, so a turn is always produced.
func (a *Agent) Stream(ctx context.Context, req Request, onChunk func(chunk string) error) (*Result, error) {
	return a.run(ctx, req, onChunk)
}

// Messages returns the checkpointed conversation of threadID.
func (a *Agent) Messages(ctx context.Context, threadID string) ([]Message, error) {
	state, err := a.checkpointer.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return state.Messages, nil
}

func (a *Agent) run(ctx context.Context, req Request, onChunk func(chunk string) error) (*Result, error) {
	if req.ThreadID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "thread id is required")
	}
	if req.Message == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "message is required")
	}

	logger := a.logger.With("thread_id", req.ThreadID)

	state, err := a.checkpointer.Load(ctx, req.ThreadID)
	if errors.Is(err, errors.ErrNotFound) {
		state = &State{}
	} else if err != nil {
		return nil, err
	}

	r := &turn{req: req, state: state, onChunk: onChunk}
	state.Messages = append(state.Messages, Message{
		Role:      RoleUser,
		Content:   req.Message,
		CreatedAt: a.now(),
	})
	state.NextAction = ""
	state.PendingActions = nil
	if err := a.checkpointer.Save(ctx, req.ThreadID, state); err != nil {
		return nil, err
	}

	step := StepDeciding
	for step != StepEnd {
		logger.Debug("agent step", "step", step.String(), "round", r.rounds)

		var next Step
		switch step {
		case StepDeciding:
			next, err = a.decide(ctx, r)
		case StepCallingTool:
			next, err = a.callTools(ctx, r)
		case StepResponding:
			next, err = a.respond(ctx, r)
		default:
			err = errors.Wrapf(errors.ErrInternal, "unexpected step %s", step)
		}
		if err != nil {
			return nil, err
		}

		// a cancelled stream still leaves its turn in the checkpoint
		if err := a.checkpointer.Save(context.WithoutCancel(ctx), req.ThreadID, state); err != nil {
			return nil, err
		}
		step = next
	}

	last := state.Messages[len(state.Messages)-1]
	logger.Info("agent turn completed", "tool_rounds", r.rounds, "streamed", r.streamed)
	return &Result{
		ThreadID:   req.ThreadID,
		Answer:     last.Content,
		Streamed:   r.streamed,
		ToolRounds: r.rounds,
	}, nil
}

func (a *Agent) promptValues(r *turn) *PromptValues {
	registry := a.executor.Registry()
	return &PromptValues{
		Tools:      describeTools(registry.Tools()),
		ToolNames:  registry.Names(),
		History:    r.state.History(a.maxHistory),
		Input:      r.state.Input(),
		Scratchpad: r.state.Scratchpad(),
		UserID:     r.req.UserID,
		Now:        a.now(),
	}
}

func (a *Agent) decide(ctx context.Context, r *turn) (Step, error) {
	ctx, span := a.tracer.Start(ctx, "agent.decide", trace.WithAttributes(
		attribute.String("thread_id", r.req.ThreadID),
		attribute.Int("round", r.rounds),
	))
	defer span.End()

	prompt, err := a.prompter.Render(a.promptValues(r))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return StepEnd, err
	}

	text, err := a.model.Invoke(ctx, prompt)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return StepEnd, errors.Wrapf(err, "failed to invoke model")
	}

	result := a.protocol.Parse(text)
	if !result.IsAction() {
		span.SetAttributes(attribute.String("next_action", string(NextActionRespond)))
		r.state.NextAction = NextActionRespond
		r.draft = result.FinalAnswer
		return StepResponding, nil
	}

	span.SetAttributes(
		attribute.String("next_action", string(NextActionCallTool)),
		attribute.String("tool", result.Action.Name),
	)
	if r.rounds >= a.maxToolRounds {
		a.logger.WarnContext(ctx, "tool round limit reached",
			"thread_id", r.req.ThreadID,
			"tool", result.Action.Name,
			"error", errors.Wrapf(errors.ErrMaxIterations, "limit %d", a.maxToolRounds),
		)
		r.state.NextAction = NextActionRespond
		r.exhausted = true
		return StepResponding, nil
	}

	r.state.Messages = append(r.state.Messages, Message{
		Role:      RoleAssistant,
		Content:   text,
		CreatedAt: a.now(),
	})
	r.state.NextAction = NextActionCallTool
	r.state.PendingActions = []parser.Action{*result.Action}
	return StepCallingTool, nil
}

func (a *Agent) callTools(ctx context.Context, r *turn) (Step, error) {
	ctx, span := a.tracer.Start(ctx, "agent.tools", trace.WithAttributes(
		attribute.String("thread_id", r.req.ThreadID),
		attribute.Int("actions", len(r.state.PendingActions)),
	))
	defer span.End()

	for _, action := range r.state.PendingActions {
		var (
			out    string
			callID = action.Name
		)
		if action.Malformed() {
			a.logger.WarnContext(ctx, "malformed tool call",
				"thread_id", r.req.ThreadID,
				"tool", action.Name,
				"error", errors.Wrapf(errors.ErrMalformedToolCall, "action %q input %q", action.Name, action.Input),
			)
			out = MalformedToolCallMessage
			if callID == "" {
				callID = "unknown"
			}
		} else {
			out = a.executor.Execute(ctx, action.Name, action.Input)
		}

		r.state.Messages = append(r.state.Messages, Message{
			Role:       RoleTool,
			Content:    out,
			ToolCallID: callID,
			CreatedAt:  a.now(),
		})
	}

	r.rounds++
	r.state.PendingActions = nil
	r.state.NextAction = ""
	return StepDeciding, nil
}

func (a *Agent) respond(ctx context.Context, r *turn) (Step, error) {
	ctx, span := a.tracer.Start(ctx, "agent.respond", trace.WithAttributes(
		attribute.String("thread_id", r.req.ThreadID),
		attribute.Bool("streaming", r.onChunk != nil),
	))
	defer span.End()

	answer := r.draft
	switch {
	case r.exhausted:
		answer = a.fallbackAnswer
		if r.onChunk != nil {
			if err := r.onChunk(answer); err == nil {
				r.streamed = true
			}
		}
	case r.onChunk != nil:
		streamed, err := a.stream(ctx, r)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			a.logger.WarnContext(ctx, "streaming failed, using the full response",
				"thread_id", r.req.ThreadID,
				"error", err,
			)
		} else if cleaned := parser.CleanFinalAnswer(streamed); cleaned != "" {
			answer = cleaned
			r.streamed = true
		}
	}
	if answer == "" {
		answer = a.fallbackAnswer
	}

	r.state.Messages = append(r.state.Messages, Message{
		Role:      RoleAssistant,
		Content:   answer,
		CreatedAt: a.now(),
	})
	r.state.NextAction = ""
	r.state.PendingActions = nil
	return StepEnd, nil
}

func (a *Agent) stream(ctx context.Context, r *turn) (string, error) {
	prompt, err := a.prompter.Render(a.promptValues(r))
	if err != nil {
		return "", err
	}

	text, err := a.model.Stream(ctx, prompt, r.onChunk)
	if err != nil {
		return text, errors.Wrapf(errors.ErrStreaming, "%v", err)
	}
	if err := ctx.Err(); err != nil {
		return text, errors.Wrapf(errors.ErrStreaming, "%v", err)
	}
	return text, nil
}
