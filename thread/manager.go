package thread

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/internal/db"
)

type (
	// Thread indexes a conversation. Its messages live in the agent checkpoint.
	Thread struct {
		ID        string    `gorm:"primaryKey;size:64" json:"thread_id"`
		UserID    string    `gorm:"index" json:"user_id"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `gorm:"index" json:"updated_at"`
	}

	Manager struct {
		db     *gorm.DB
		prefix string
		length int
		logger *slog.Logger
	}
)

func NewManager(gormDB *gorm.DB, prefix string, length int, logger *slog.Logger) (*Manager, error) {
	if length < 1 || length > 32 {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "thread id length %d must be between 1 and 32", length)
	}
	if err := db.AutoMigrate(gormDB, &Thread{}); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate threads")
	}

	return &Manager{
		db:     gormDB,
		prefix: prefix,
		length: length,
		logger: logger,
	}, nil
}

// NewThreadID returns the prefix followed by random hex characters.
func (m *Manager) NewThreadID() string {
	return m.prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:m.length]
}

func (m *Manager) Create(ctx context.Context, userID string) (*Thread, error) {
	_, tx := db.OpenSession(ctx, m.db)

	thread := Thread{
		ID:     m.NewThreadID(),
		UserID: userID,
	}
	if err := tx.Create(&thread).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create thread")
	}

	m.logger.Info("thread created", "thread_id", thread.ID, "user_id", userID)
	return &thread, nil
}

// Touch records activity on threadID, creating the index entry if needed.
// The owner is set once: userID only fills a thread that has none yet.
func (m *Manager) Touch(ctx context.Context, threadID string, userID string) error {
	_, tx := db.OpenSession(ctx, m.db)

	now := time.Now()
	thread := Thread{
		ID:        threadID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "updated_at"}, Value: now},
			{Column: clause.Column{Name: "user_id"}, Value: gorm.Expr("CASE WHEN threads.user_id IS NULL OR threads.user_id = '' THEN excluded.user_id ELSE threads.user_id END")},
		},
	}).Create(&thread).Error; err != nil {
		return errors.Wrapf(err, "failed to touch thread %s", threadID)
	}

	return nil
}

func (m *Manager) Get(ctx context.Context, threadID string) (*Thread, error) {
	_, tx := db.OpenSession(ctx, m.db)

	var thread Thread
	if r := tx.Limit(1).Find(&thread, "id = ?", threadID); r.Error != nil {
		return nil, errors.Wrapf(r.Error, "failed to find thread")
	} else if r.RowsAffected == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "thread %s not found", threadID)
	}

	return &thread, nil
}

// List returns the most recently active threads first.
func (m *Manager) List(ctx context.Context, limit int) ([]Thread, error) {
	_, tx := db.OpenSession(ctx, m.db)
	if limit <= 0 {
		limit = 50
	}

	var threads []Thread
	if err := tx.Order("updated_at DESC").Order("id ASC").Limit(limit).Find(&threads).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find threads")
	}

	return threads, nil
}
