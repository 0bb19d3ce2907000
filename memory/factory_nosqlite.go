//go:build without_sqlite

package memory

import (
	"gorm.io/gorm"

	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/errors"
)

func NewStoreFromConfig(conf *config.MemoryConfig, _ *gorm.DB, _ int) (Store, error) {
	switch conf.Store {
	case config.MemoryStoreMemory:
		return NewInMemoryStore(), nil
	case config.MemoryStoreChromem:
		return NewChromemStore(), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "memory store %q is not available in this build", conf.Store)
	}
}
