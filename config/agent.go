package config

import (
	"github.com/pkg/errors"
)

const (
	CheckpointerSqlite = "sqlite"
	CheckpointerMemory = "memory"

	PromptReactChat       = "react_chat"
	PromptCustomerSupport = "customer_support"
)

type AgentConfig struct {
	Prompt         string `yaml:"prompt"`
	MaxToolRounds  int    `yaml:"maxToolRounds"`
	MaxHistory     int    `yaml:"maxHistory"`
	Streaming      bool   `yaml:"streaming"`
	FallbackAnswer string `yaml:"fallbackAnswer"`
	Checkpointer   string `yaml:"checkpointer"`
	ThreadIDPrefix string `yaml:"threadIdPrefix"`
	ThreadIDLength int    `yaml:"threadIdLength"`
}

func NewAgentConfig() *AgentConfig {
	return &AgentConfig{
		Prompt:         PromptCustomerSupport,
		MaxToolRounds:  10,
		MaxHistory:     50,
		Streaming:      true,
		FallbackAnswer: "I'm sorry, I wasn't able to complete that request. Please try rephrasing it or contact customer support at (555) 123-4567.",
		Checkpointer:   CheckpointerSqlite,
		ThreadIDPrefix: "customer_",
		ThreadIDLength: 8,
	}
}

func (c *AgentConfig) Validate() error {
	if c.MaxToolRounds < 1 {
		return errors.New("agent.maxToolRounds must be at least 1")
	}
	if c.MaxHistory < 1 {
		return errors.New("agent.maxHistory must be at least 1")
	}
	switch c.Prompt {
	case PromptReactChat, PromptCustomerSupport:
	default:
		return errors.Errorf("unknown agent.prompt %q", c.Prompt)
	}
	switch c.Checkpointer {
	case CheckpointerSqlite, CheckpointerMemory:
	default:
		return errors.Errorf("unknown agent.checkpointer %q", c.Checkpointer)
	}
	if c.ThreadIDLength < 1 || c.ThreadIDLength > 32 {
		return errors.New("agent.threadIdLength must be between 1 and 32")
	}
	return nil
}
