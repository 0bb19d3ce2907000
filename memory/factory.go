//go:build !without_sqlite

package memory

import (
	"gorm.io/gorm"

	"github.com/habiliai/supportagent/config"
	"github.com/habiliai/supportagent/errors"
)

// NewStoreFromConfig opens the configured backend. gormDB is only used by
// the sqlite store.
func NewStoreFromConfig(conf *config.MemoryConfig, gormDB *gorm.DB, dimension int) (Store, error) {
	switch conf.Store {
	case config.MemoryStoreSqlite:
		if gormDB == nil {
			return nil, errors.Wrapf(errors.ErrInvalidConfig, "sqlite memory store needs a database")
		}
		return NewSqliteStore(gormDB, dimension)
	case config.MemoryStoreMemory:
		return NewInMemoryStore(), nil
	case config.MemoryStoreChromem:
		return NewChromemStore(), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "unknown memory store %q", conf.Store)
	}
}
