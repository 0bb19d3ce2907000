package agent

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/internal/db"
)

type (
	Checkpoint struct {
		ThreadID  string                    `gorm:"primaryKey;size:64"`
		State     datatypes.JSONType[State] `gorm:"not null"`
		UpdatedAt time.Time
	}

	GormCheckpointer struct {
		db *gorm.DB
	}
)

var (
	_ Checkpointer = (*GormCheckpointer)(nil)
)

func NewGormCheckpointer(gormDB *gorm.DB) (*GormCheckpointer, error) {
	if err := db.AutoMigrate(gormDB, &Checkpoint{}); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate checkpoints")
	}
	return &GormCheckpointer{db: gormDB}, nil
}

func (c *GormCheckpointer) Save(ctx context.Context, threadID string, state *State) error {
	if threadID == "" {
		return errors.Wrapf(errors.ErrInvalidParams, "thread id is required")
	}

	_, tx := db.OpenSession(ctx, c.db)
	checkpoint := Checkpoint{
		ThreadID: threadID,
		State:    datatypes.NewJSONType(*state.Clone()),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "thread_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(&checkpoint).Error; err != nil {
		return errors.Wrapf(err, "failed to save checkpoint for thread %s", threadID)
	}

	return nil
}

func (c *GormCheckpointer) Load(ctx context.Context, threadID string) (*State, error) {
	_, tx := db.OpenSession(ctx, c.db)

	var checkpoint Checkpoint
	if r := tx.Limit(1).Find(&checkpoint, "thread_id = ?", threadID); r.Error != nil {
		return nil, errors.Wrapf(r.Error, "failed to load checkpoint for thread %s", threadID)
	} else if r.RowsAffected == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no checkpoint for thread %s", threadID)
	}

	state := checkpoint.State.Data()
	return &state, nil
}
