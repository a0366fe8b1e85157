package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/alicia/internal/domain/models"
	"github.com/longregen/alicia/internal/ports"
	"github.com/pgvector/pgvector-go"
)

// MemoryRepository is both the durable audit log and the vector index
// for MemoryRecords: the embedding column lives on the same table as
// the durable row, and similarity search is a plain SQL query using
// pgvector's cosine-distance operator.
type MemoryRepository struct {
	BaseRepository
}

func NewMemoryRepository(pool *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{BaseRepository: NewBaseRepository(pool)}
}

func (r *MemoryRepository) Create(ctx context.Context, memory *models.Memory) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var embeddingsInfo []byte
	var err error
	if memory.EmbeddingsInfo != nil {
		embeddingsInfo, err = json.Marshal(memory.EmbeddingsInfo)
		if err != nil {
			return err
		}
	}

	var embeddings *pgvector.Vector
	if len(memory.Embeddings) > 0 {
		v := pgvector.NewVector(memory.Embeddings)
		embeddings = &v
	}

	query := `
		INSERT INTO kanon_memory (
			id, user_id, content, embeddings, embeddings_info, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.conn(ctx).Exec(ctx, query,
		memory.ID, memory.UserID, memory.Content, embeddings, embeddingsInfo, memory.CreatedAt, memory.UpdatedAt,
	)
	return err
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Memory, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, content, embeddings, embeddings_info, created_at, updated_at, deleted_at
		FROM kanon_memory
		WHERE id = $1 AND deleted_at IS NULL`

	return scanMemory(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *MemoryRepository) Update(ctx context.Context, memory *models.Memory) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var embeddingsInfo []byte
	var err error
	if memory.EmbeddingsInfo != nil {
		embeddingsInfo, err = json.Marshal(memory.EmbeddingsInfo)
		if err != nil {
			return err
		}
	}

	var embeddings *pgvector.Vector
	if len(memory.Embeddings) > 0 {
		v := pgvector.NewVector(memory.Embeddings)
		embeddings = &v
	}

	query := `
		UPDATE kanon_memory
		SET content = $2, embeddings = $3, embeddings_info = $4, updated_at = $5
		WHERE id = $1 AND deleted_at IS NULL`

	_, err = r.conn(ctx).Exec(ctx, query, memory.ID, memory.Content, embeddings, embeddingsInfo, memory.UpdatedAt)
	return err
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `UPDATE kanon_memory SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.conn(ctx).Exec(ctx, query, id)
	return err
}

// Search performs a user-scoped cosine-similarity search; every query
// filters by user_id.
func (r *MemoryRepository) Search(ctx context.Context, opts ports.MemorySearchOptions) ([]*ports.MemorySearchResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if len(opts.Embedding) == 0 {
		return nil, errors.New("embedding cannot be empty")
	}
	if opts.Limit <= 0 {
		opts.Limit = 10
	}

	vector := pgvector.NewVector(opts.Embedding)

	query := `
		SELECT id, user_id, content, embeddings, embeddings_info, created_at, updated_at, deleted_at,
			   1 - (embeddings <=> $1) as similarity
		FROM kanon_memory
		WHERE deleted_at IS NULL AND user_id = $2 AND embeddings IS NOT NULL`
	args := []interface{}{vector, opts.UserID}

	if opts.Threshold != nil {
		query += ` AND 1 - (embeddings <=> $1) >= $3`
		args = append(args, *opts.Threshold)
	}

	query += fmt.Sprintf(` ORDER BY embeddings <=> $1 LIMIT $%d`, len(args)+1)
	args = append(args, opts.Limit)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*ports.MemorySearchResult
	for rows.Next() {
		var m models.Memory
		var embeddings *pgvector.Vector
		var embeddingsInfo []byte
		var similarity float32

		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Content, &embeddings, &embeddingsInfo,
			&m.CreatedAt, &m.UpdatedAt, &m.DeletedAt, &similarity,
		); err != nil {
			return nil, err
		}

		if embeddings != nil {
			m.Embeddings = embeddings.Slice()
		}
		if len(embeddingsInfo) > 0 {
			var info models.EmbeddingsInfo
			if err := json.Unmarshal(embeddingsInfo, &info); err != nil {
				return nil, fmt.Errorf("failed to unmarshal embeddings info: %w", err)
			}
			m.EmbeddingsInfo = &info
		}

		results = append(results, &ports.MemorySearchResult{Memory: &m, Similarity: similarity})
	}

	return results, rows.Err()
}

func scanMemory(row pgx.Row) (*models.Memory, error) {
	var m models.Memory
	var embeddings *pgvector.Vector
	var embeddingsInfo []byte
	var deletedAt sql.NullTime

	err := row.Scan(&m.ID, &m.UserID, &m.Content, &embeddings, &embeddingsInfo, &m.CreatedAt, &m.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}

	if embeddings != nil {
		m.Embeddings = embeddings.Slice()
	}
	if len(embeddingsInfo) > 0 {
		var info models.EmbeddingsInfo
		if err := json.Unmarshal(embeddingsInfo, &info); err != nil {
			return nil, err
		}
		m.EmbeddingsInfo = &info
	}
	m.DeletedAt = getTimePtr(deletedAt)

	return &m, nil
}
