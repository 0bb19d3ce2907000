package config

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/habiliai/supportagent/errors"
)

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Model     ModelConfig     `yaml:"model"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Memory    MemoryConfig    `yaml:"memory"`
	Agent     AgentConfig     `yaml:"agent"`
	Tools     ToolConfig      `yaml:"tools"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func NewConfig() *Config {
	return &Config{
		Log:       *NewLogConfig(),
		Model:     *NewModelConfig(),
		Embedding: *NewEmbeddingConfig(),
		Memory:    *NewMemoryConfig(),
		Agent:     *NewAgentConfig(),
		Tools:     *NewToolConfig(),
		Database: DatabaseConfig{
			Path: "data/customer_support.db",
		},
		Server: ServerConfig{
			Port: 3001,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then the environment. A .env file in the
// working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to load .env")
	}

	conf := NewConfig()
	if path != "" {
		yamlBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read file %s", path)
		}
		if err := yaml.Unmarshal(yamlBytes, conf); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal file %s", path)
		}
	}

	conf.ApplyEnv()

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func (c *Config) ApplyEnv() {
	c.Log.applyEnv()
	c.Model.applyEnv()
	c.Embedding.applyEnv()
	c.Tools.applyEnv()

	setString(&c.Database.Path, "DATABASE_PATH")
	setInt(&c.Server.Port, "PORT")
}

func (c *Config) Validate() error {
	for _, v := range []interface{ Validate() error }{
		&c.Model,
		&c.Embedding,
		&c.Memory,
		&c.Agent,
		&c.Tools,
	} {
		if err := v.Validate(); err != nil {
			return errors.Wrapf(errors.ErrInvalidConfig, "%v", err)
		}
	}
	if c.Database.Path == "" && (c.Memory.Store == MemoryStoreSqlite || c.Agent.Checkpointer == CheckpointerSqlite) {
		return errors.Wrapf(errors.ErrInvalidConfig, "database.path is required for sqlite persistence")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Wrapf(errors.ErrInvalidConfig, "server.port %d is out of range", c.Server.Port)
	}

	return nil
}
