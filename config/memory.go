package config

import (
	"github.com/pkg/errors"
)

const (
	MemoryStoreSqlite  = "sqlite"
	MemoryStoreMemory  = "memory"
	MemoryStoreChromem = "chromem"
)

type (
	SearchDefaults struct {
		TopK      int     `yaml:"topK"`
		Threshold float64 `yaml:"threshold"`
	}

	MemoryConfig struct {
		Store string `yaml:"store"`

		// Retrieve holds the retrieve_memory tool defaults, API the HTTP search defaults.
		Retrieve SearchDefaults `yaml:"retrieve"`
		API      SearchDefaults `yaml:"api"`
	}
)

func NewMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		Store:    MemoryStoreSqlite,
		Retrieve: SearchDefaults{TopK: 3, Threshold: 0.7},
		API:      SearchDefaults{TopK: 5, Threshold: 0.75},
	}
}

func (c *MemoryConfig) Validate() error {
	switch c.Store {
	case MemoryStoreSqlite, MemoryStoreMemory, MemoryStoreChromem:
	default:
		return errors.Errorf("unknown memory.store %q", c.Store)
	}
	for name, d := range map[string]SearchDefaults{"retrieve": c.Retrieve, "api": c.API} {
		if d.TopK <= 0 {
			return errors.Errorf("memory.%s.topK must be positive", name)
		}
		if !(d.Threshold >= 0 && d.Threshold <= 1) {
			return errors.Errorf("memory.%s.threshold must be between 0.0 and 1.0", name)
		}
	}
	return nil
}
