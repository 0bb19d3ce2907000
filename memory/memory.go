package memory

import (
	"time"
)

type (
	Importance string

	Memory struct {
		ID         uint       `json:"id" jsonschema:"description=The id of the memory"`
		UserID     string     `json:"user_id" jsonschema:"description=The owner of the memory"`
		Content    string     `json:"content" jsonschema:"description=The remembered information"`
		Importance Importance `json:"importance" jsonschema:"enum=low,enum=medium,enum=high"`
		CreatedAt  time.Time  `json:"created_at"`

		Embedding []float32 `json:"-"`
	}

	// ScoredMemory holds a memory with its similarity score
	ScoredMemory struct {
		Memory *Memory `json:"memory" jsonschema:"description=The memory that was found"`
		Score  float64 `json:"score" jsonschema:"description=The cosine similarity of the memory to the query"`
	}
)

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

func (i Importance) Valid() bool {
	switch i {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

func (m *Memory) clone() *Memory {
	c := *m
	return &c
}
