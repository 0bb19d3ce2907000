package agent

import (
	"slices"
	"time"

	"github.com/habiliai/supportagent/parser"
)

type (
	Role       string
	NextAction string

	Message struct {
		Role    Role   `json:"role"`
		Content string `json:"content"`
		// ToolCallID names the tool whose result this message carries.
		ToolCallID string    `json:"tool_call_id,omitempty"`
		CreatedAt  time.Time `json:"created_at"`
	}

	// State is the checkpointed conversation of one thread.
	State struct {
		Messages       []Message       `json:"messages"`
		NextAction     NextAction      `json:"next_action,omitempty"`
		PendingActions []parser.Action `json:"pending_actions,omitempty"`
	}

	Step int
)

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"

	NextActionCallTool NextAction = "call_tool"
	NextActionRespond  NextAction = "respond"
)

const (
	StepStart Step = iota
	StepDeciding
	StepCallingTool
	StepResponding
	StepEnd
)

func (s Step) String() string {
	switch s {
	case StepStart:
		return "start"
	case StepDeciding:
		return "deciding"
	case StepCallingTool:
		return "calling_tool"
	case StepResponding:
		return "responding"
	case StepEnd:
		return "end"
	default:
		return "unknown"
	}
}

func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	return &State{
		Messages:       slices.Clone(s.Messages),
		NextAction:     s.NextAction,
		PendingActions: slices.Clone(s.PendingActions),
	}
}

func (s *State) lastUserIndex() int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// Input is the content of the last user message.
func (s *State) Input() string {
	if i := s.lastUserIndex(); i >= 0 {
		return s.Messages[i].Content
	}
	return ""
}

// History is every message before the last user message, keeping at most
// the newest limit of them. limit <= 0 keeps all.
func (s *State) History(limit int) []Message {
	i := s.lastUserIndex()
	if i < 0 {
		i = len(s.Messages)
	}
	history := s.Messages[:i]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

// Scratchpad is the assistant and tool turns after the last user message.
func (s *State) Scratchpad() []Message {
	var scratchpad []Message
	for _, msg := range s.Messages[s.lastUserIndex()+1:] {
		if msg.Role == RoleAssistant || msg.Role == RoleTool {
			scratchpad = append(scratchpad, msg)
		}
	}
	return scratchpad
}
