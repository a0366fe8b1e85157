package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/alicia/internal/domain/models"
)

type MemoryUpdateRepository struct {
	BaseRepository
}

func NewMemoryUpdateRepository(pool *pgxpool.Pool) *MemoryUpdateRepository {
	return &MemoryUpdateRepository{BaseRepository: NewBaseRepository(pool)}
}

func (r *MemoryUpdateRepository) Append(ctx context.Context, cmd *models.MemoryUpdateCommand) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO kanon_memory_update_records (id, user_id, kind, content, target_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.conn(ctx).Exec(ctx, query,
		cmd.ID, cmd.UserID, string(cmd.Kind), cmd.Content, nullString(cmd.TargetID), cmd.CreatedAt,
	)
	return err
}

func (r *MemoryUpdateRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.MemoryUpdateCommand, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, kind, content, target_id, created_at
		FROM kanon_memory_update_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.MemoryUpdateCommand
	for rows.Next() {
		var cmd models.MemoryUpdateCommand
		var kind string
		var targetID sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.UserID, &kind, &cmd.Content, &targetID, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		cmd.Kind = models.MemoryUpdateKind(kind)
		cmd.TargetID = getString(targetID)
		out = append(out, &cmd)
	}
	return out, rows.Err()
}
