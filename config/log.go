package config

type LogConfig struct {
	LogLevel     string `yaml:"level"`
	LogHandler   string `yaml:"handler"`
	Trace        bool   `yaml:"trace"`
	TraceVerbose bool   `yaml:"traceVerbose"`
}

func NewLogConfig() *LogConfig {
	return &LogConfig{
		LogLevel:   "info",
		LogHandler: "default",
	}
}

func (c *LogConfig) applyEnv() {
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogHandler, "LOG_HANDLER")
}
