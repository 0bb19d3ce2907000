//go:build !without_sqlite

package memory

import (
	"context"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"gorm.io/gorm"

	"github.com/habiliai/supportagent/errors"
	"github.com/habiliai/supportagent/internal/db"
)

type (
	// SqliteStore implements Store using SQLite with sqlite-vec extension
	SqliteStore struct {
		db     *gorm.DB
		vecDim int
	}

	SqliteMemoryRecord struct {
		ID         uint   `gorm:"primaryKey;autoIncrement"`
		UserID     string `gorm:"index;not null"`
		Content    string `gorm:"not null"`
		Importance string `gorm:"not null;default:medium"`
		Embedding  []byte
		// Embedded is false when the embedding backend was unavailable at
		// write time; such rows are listed but never searched.
		Embedded  bool `gorm:"not null;default:false"`
		CreatedAt time.Time
	}

	sqliteSearchRow struct {
		ID         uint
		UserID     string
		Content    string
		Importance string
		CreatedAt  time.Time
		Similarity float64
	}
)

var (
	_ Store = (*SqliteStore)(nil)
)

func init() {
	// registers vec0 functions on every connection opened afterwards
	sqlite_vec.Auto()
}

func (SqliteMemoryRecord) TableName() string {
	return "semantic_memories"
}

// NewSqliteStore creates a memory store on an open gorm sqlite handle.
func NewSqliteStore(gormDB *gorm.DB, dimension int) (*SqliteStore, error) {
	if dimension <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "invalid embedding dimension %d", dimension)
	}
	if err := db.AutoMigrate(gormDB, &SqliteMemoryRecord{}); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate memory table")
	}

	return &SqliteStore{
		db:     gormDB,
		vecDim: dimension,
	}, nil
}

func (s *SqliteStore) Insert(ctx context.Context, m *Memory) error {
	if len(m.Embedding) != s.vecDim {
		return errors.Wrapf(errors.ErrInvalidParams, "embedding dimension %d, expected %d", len(m.Embedding), s.vecDim)
	}
	blob, err := sqlite_vec.SerializeFloat32(m.Embedding)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize embedding")
	}

	record := SqliteMemoryRecord{
		UserID:     m.UserID,
		Content:    m.Content,
		Importance: string(m.Importance),
		Embedding:  blob,
		Embedded:   norm(m.Embedding) > 0,
	}
	_, tx := db.OpenSession(ctx, s.db)
	if err := tx.Create(&record).Error; err != nil {
		return errors.Wrapf(err, "failed to insert memory")
	}

	m.ID = record.ID
	m.CreatedAt = record.CreatedAt
	return nil
}

func (s *SqliteStore) List(ctx context.Context, userID string) ([]*Memory, error) {
	var records []SqliteMemoryRecord
	_, tx := db.OpenSession(ctx, s.db)
	if err := tx.
		Select("id", "user_id", "content", "importance", "created_at").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&records).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to list memories")
	}

	results := make([]*Memory, 0, len(records))
	for _, r := range records {
		results = append(results, &Memory{
			ID:         r.ID,
			UserID:     r.UserID,
			Content:    r.Content,
			Importance: Importance(r.Importance),
			CreatedAt:  r.CreatedAt,
		})
	}
	return results, nil
}

func (s *SqliteStore) Search(ctx context.Context, userID string, query []float32, topK int, threshold float64) ([]ScoredMemory, error) {
	if topK <= 0 {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "top_k must be positive")
	}
	if len(query) != s.vecDim || norm(query) == 0 {
		return []ScoredMemory{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to serialize query embedding")
	}

	var rows []sqliteSearchRow
	_, tx := db.OpenSession(ctx, s.db)
	if err := tx.Raw(`
		SELECT id, user_id, content, importance, created_at,
			CASE WHEN embedded = 1 THEN 1 - vec_distance_cosine(embedding, ?) END AS similarity
		FROM semantic_memories
		WHERE user_id = ? AND embedded = 1
			AND CASE WHEN embedded = 1 THEN 1 - vec_distance_cosine(embedding, ?) END > ?
		ORDER BY similarity DESC, id ASC
		LIMIT ?
	`, blob, userID, blob, threshold, topK).Scan(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to search memories")
	}

	results := make([]ScoredMemory, 0, len(rows))
	for _, r := range rows {
		results = append(results, ScoredMemory{
			Memory: &Memory{
				ID:         r.ID,
				UserID:     r.UserID,
				Content:    r.Content,
				Importance: Importance(r.Importance),
				CreatedAt:  r.CreatedAt,
			},
			Score: r.Similarity,
		})
	}
	return results, nil
}

func (s *SqliteStore) Update(ctx context.Context, id uint, userID string, content string, embedding []float32) error {
	if len(embedding) != s.vecDim {
		return errors.Wrapf(errors.ErrInvalidParams, "embedding dimension %d, expected %d", len(embedding), s.vecDim)
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize embedding")
	}

	_, tx := db.OpenSession(ctx, s.db)
	res := tx.Model(&SqliteMemoryRecord{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{
			"content":    content,
			"embedding":  blob,
			"embedded":   norm(embedding) > 0,
			"created_at": time.Now(),
		})
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to update memory %d", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "memory %d", id)
	}

	return nil
}

// Close is a no-op; the gorm handle belongs to the caller.
func (s *SqliteStore) Close() error {
	return nil
}
