package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/alicia/internal/domain/models"
)

type KnowledgeBufferRepository struct {
	BaseRepository
}

func NewKnowledgeBufferRepository(pool *pgxpool.Pool) *KnowledgeBufferRepository {
	return &KnowledgeBufferRepository{BaseRepository: NewBaseRepository(pool)}
}

// Replace deletes the previous knowledge buffer for user-id and inserts
// the new list in insertion order, atomically.
func (r *KnowledgeBufferRepository) Replace(ctx context.Context, userID string, items []*models.KnowledgeBufferItem) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	conn := r.conn(ctx)

	if _, err := conn.Exec(ctx, `DELETE FROM kanon_knowledge_buffer WHERE user_id = $1`, userID); err != nil {
		return err
	}

	for _, item := range items {
		query := `
			INSERT INTO kanon_knowledge_buffer (id, user_id, content, insertion_order)
			VALUES ($1, $2, $3, $4)`
		if _, err := conn.Exec(ctx, query, item.ID, item.UserID, item.Content, item.InsertionOrder); err != nil {
			return err
		}
	}
	return nil
}

func (r *KnowledgeBufferRepository) ListByUser(ctx context.Context, userID string) ([]*models.KnowledgeBufferItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, content, insertion_order
		FROM kanon_knowledge_buffer
		WHERE user_id = $1
		ORDER BY insertion_order ASC`

	rows, err := r.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.KnowledgeBufferItem
	for rows.Next() {
		var item models.KnowledgeBufferItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.Content, &item.InsertionOrder); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}
