package config

import (
	"time"

	"github.com/pkg/errors"
)

type (
	WeatherConfig struct {
		APIKey string `yaml:"apiKey"`
	}

	MCPServerConfig struct {
		// Transport is stdio, sse or http; empty picks sse when URL is set, stdio otherwise.
		Transport string            `yaml:"transport"`
		Command   string            `yaml:"command"`
		Args      []string          `yaml:"args"`
		Env       map[string]string `yaml:"env"`
		URL       string            `yaml:"url"`
		Headers   map[string]string `yaml:"headers"`
	}

	ToolConfig struct {
		Timeout    time.Duration              `yaml:"timeout"`
		Timezone   string                     `yaml:"timezone"`
		FireCrawl  FireCrawlConfig            `yaml:"firecrawl"`
		Weather    WeatherConfig              `yaml:"weather"`
		Feeds      []string                   `yaml:"feeds"`
		MCPServers map[string]MCPServerConfig `yaml:"mcpServers"`
	}
)

func NewToolConfig() *ToolConfig {
	return &ToolConfig{
		Timeout:   30 * time.Second,
		Timezone:  "Local",
		FireCrawl: *NewFireCrawlConfig(),
	}
}

func (c *ToolConfig) applyEnv() {
	c.FireCrawl.applyEnv()
	setString(&c.Weather.APIKey, "OPENWEATHER_API_KEY")
	setString(&c.Timezone, "SUPPORT_TIMEZONE")
}

func (c *ToolConfig) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("tools.timeout must be positive")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrapf(err, "invalid tools.timezone %q", c.Timezone)
	}
	for name, server := range c.MCPServers {
		switch server.Transport {
		case "", "stdio", "sse", "http":
		default:
			return errors.Errorf("mcp server %s: unsupported transport %q", name, server.Transport)
		}
		if server.Command == "" && server.URL == "" {
			return errors.Errorf("mcp server %s: command or url is required", name)
		}
	}
	return nil
}
