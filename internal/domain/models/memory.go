package models

import (
	"time"
)

// EmbeddingsInfo records metadata about how a Memory's embedding vector
// was produced.
type EmbeddingsInfo struct {
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// Memory is a vector-indexed fragment of long-term, per-user memory
// (spec's MemoryRecord). It is opaque content plus an embedding used for
// similarity search; the vector index and durable log both key it by ID.
type Memory struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Content        string          `json:"content"`
	Embeddings     []float32       `json:"embeddings,omitempty"`
	EmbeddingsInfo *EmbeddingsInfo `json:"embeddings_info,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

func NewMemory(id, userID, content string) *Memory {
	now := time.Now().UTC()
	return &Memory{
		ID:        id,
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m *Memory) SetEmbeddings(embeddings []float32, info *EmbeddingsInfo) {
	m.Embeddings = embeddings
	m.EmbeddingsInfo = info
	m.UpdatedAt = time.Now().UTC()
}

func (m *Memory) SetContent(content string) {
	m.Content = content
	m.UpdatedAt = time.Now().UTC()
}

func (m *Memory) HasEmbeddings() bool {
	return len(m.Embeddings) > 0
}
