package errors

import (
	"fmt"
)

var (
	ErrInvalidConfig        = fmt.Errorf("supportagent: invalid config")
	ErrNotFound             = fmt.Errorf("supportagent: not found")
	ErrInvalidParams        = fmt.Errorf("supportagent: invalid params")
	ErrInternal             = fmt.Errorf("supportagent: internal error")
	ErrUnknownTool          = fmt.Errorf("supportagent: unknown tool")
	ErrMalformedInput       = fmt.Errorf("supportagent: malformed tool input")
	ErrMalformedToolCall    = fmt.Errorf("supportagent: malformed tool call")
	ErrToolExecution        = fmt.Errorf("supportagent: tool execution failed")
	ErrEmbeddingUnavailable = fmt.Errorf("supportagent: embedding unavailable")
	ErrStreaming            = fmt.Errorf("supportagent: streaming failed")
	ErrMaxIterations        = fmt.Errorf("supportagent: max tool rounds exceeded")
)
