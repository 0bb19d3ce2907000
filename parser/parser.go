// Package parser reads the textual tool-call protocol out of raw model output.
//
// The grammar has two case-sensitive markers, each introducing a value on
// some line of the output:
//
//	Action: <tool name>
//	Action Input: <argument payload>
//
// The first line carrying each marker wins and its value is the rest of that
// line, trimmed. Anything after the input line is ignored. When either marker
// is absent the output is read as a final answer instead; see CleanFinalAnswer.
// A marker with a blank value still yields an Action, which the agent reports
// back to the model as a malformed tool call.
//
// Markers are found anywhere in a line, not only at its start, so a marker
// quoted inside prose still counts. Models often prefix the marker with a
// bullet or a thought, and those calls must not be lost.
package parser

import (
	"strings"
)

const (
	ActionMarker      = "Action:"
	ActionInputMarker = "Action Input:"
	FinalAnswerMarker = "Final Answer:"
	ThoughtMarker     = "Thought:"
	ObservationMarker = "Observation:"

	codeFence = "```"
)

type (
	// Action is a tool invocation requested by the model.
	Action struct {
		Name  string `json:"action"`
		Input string `json:"action_input"`
	}

	// Result holds exactly one of Action or FinalAnswer.
	Result struct {
		Action      *Action
		FinalAnswer string
	}

	// Protocol turns raw model output into a Result.
	Protocol interface {
		Parse(text string) Result
	}

	// ReAct implements Protocol for the Action / Action Input / Final Answer format.
	ReAct struct{}
)

var (
	_ Protocol = ReAct{}
)

func (r Result) IsAction() bool {
	return r.Action != nil
}

func (ReAct) Parse(text string) Result {
	return Parse(text)
}

// Parse detects a tool invocation first and falls back to a cleaned final answer.
func Parse(text string) Result {
	if action, ok := ParseAction(text); ok {
		return Result{Action: action}
	}
	return Result{FinalAnswer: CleanFinalAnswer(text)}
}

// ParseAction scans text for the first Action and Action Input lines.
func ParseAction(text string) (*Action, bool) {
	var (
		name, input           string
		foundName, foundInput bool
	)
	for _, line := range strings.Split(text, "\n") {
		if !foundName {
			if v, ok := valueAfter(line, ActionMarker); ok {
				name, foundName = v, true
			}
		}
		if !foundInput {
			if v, ok := valueAfter(line, ActionInputMarker); ok {
				input, foundInput = v, true
			}
		}
		if foundName && foundInput {
			break
		}
	}

	if !foundName || !foundInput {
		return nil, false
	}
	return &Action{Name: name, Input: input}, true
}

// Malformed reports whether either field of the action is blank.
func (a *Action) Malformed() bool {
	return a == nil || a.Name == "" || a.Input == ""
}

// valueAfter finds marker anywhere in line.
func valueAfter(line, marker string) (string, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(line[idx+len(marker):]), true
}

// CleanFinalAnswer extracts the user-facing answer from model output.
//
// With a Final Answer marker the answer is everything after its first
// occurrence. Without one, fenced code blocks are dropped, then every
// Thought segment up to the next Final Answer marker or the end of the text,
// and the remainder is trimmed. The rules are reapplied until the text stops
// changing, so the function is idempotent.
func CleanFinalAnswer(text string) string {
	for {
		cleaned := cleanOnce(text)
		if cleaned == text {
			return cleaned
		}
		text = cleaned
	}
}

func cleanOnce(text string) string {
	if idx := strings.Index(text, FinalAnswerMarker); idx >= 0 {
		return strings.TrimSpace(text[idx+len(FinalAnswerMarker):])
	}

	cleaned := stripCodeBlocks(text)
	cleaned = stripThoughts(cleaned)
	return strings.TrimSpace(cleaned)
}

// stripCodeBlocks removes every complete ``` fenced block. An unterminated
// fence is left in place.
func stripCodeBlocks(text string) string {
	var sb strings.Builder
	for {
		start := strings.Index(text, codeFence)
		if start < 0 {
			break
		}
		end := strings.Index(text[start+len(codeFence):], codeFence)
		if end < 0 {
			break
		}
		sb.WriteString(text[:start])
		text = text[start+len(codeFence)+end+len(codeFence):]
	}
	sb.WriteString(text)
	return sb.String()
}

// stripThoughts removes each Thought segment through the next Final Answer
// marker or the end of the text.
func stripThoughts(text string) string {
	var sb strings.Builder
	for {
		start := strings.Index(text, ThoughtMarker)
		if start < 0 {
			break
		}
		sb.WriteString(text[:start])
		rest := text[start:]
		end := strings.Index(rest, FinalAnswerMarker)
		if end < 0 {
			text = ""
			break
		}
		text = rest[end:]
	}
	sb.WriteString(text)
	return sb.String()
}
