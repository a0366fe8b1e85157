package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/alicia/internal/domain/models"
)

type UserRepository struct {
	BaseRepository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{BaseRepository: NewBaseRepository(pool)}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO kanon_users (
			id, display_name, credential_hash, nickname, description, auth_token,
			summary_text, window_count, total_turns, created_at, last_login_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.conn(ctx).Exec(ctx, query,
		user.ID,
		user.DisplayName,
		user.CredentialHash,
		user.Nickname,
		nullString(user.Description),
		nullString(user.AuthToken),
		user.SummaryText,
		user.WindowCount,
		user.TotalTurns,
		user.CreatedAt,
		nullTime(user.LastLoginAt),
		user.UpdatedAt,
	)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, display_name, credential_hash, nickname, description, auth_token,
			   summary_text, window_count, total_turns, created_at, last_login_at, updated_at
		FROM kanon_users WHERE id = $1`

	return scanUser(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByDisplayName(ctx context.Context, displayName string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, display_name, credential_hash, nickname, description, auth_token,
			   summary_text, window_count, total_turns, created_at, last_login_at, updated_at
		FROM kanon_users WHERE display_name = $1`

	return scanUser(r.conn(ctx).QueryRow(ctx, query, displayName))
}

func (r *UserRepository) GetByToken(ctx context.Context, token string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, display_name, credential_hash, nickname, description, auth_token,
			   summary_text, window_count, total_turns, created_at, last_login_at, updated_at
		FROM kanon_users WHERE auth_token = $1`

	return scanUser(r.conn(ctx).QueryRow(ctx, query, token))
}

func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE kanon_users SET
			display_name = $2, nickname = $3, description = $4, auth_token = $5,
			summary_text = $6, window_count = $7, total_turns = $8,
			last_login_at = $9, updated_at = $10
		WHERE id = $1`

	_, err := r.conn(ctx).Exec(ctx, query,
		user.ID,
		user.DisplayName,
		user.Nickname,
		nullString(user.Description),
		nullString(user.AuthToken),
		user.SummaryText,
		user.WindowCount,
		user.TotalTurns,
		nullTime(user.LastLoginAt),
		user.UpdatedAt,
	)
	return err
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var description, authToken sql.NullString
	var lastLogin sql.NullTime

	err := row.Scan(
		&u.ID,
		&u.DisplayName,
		&u.CredentialHash,
		&u.Nickname,
		&description,
		&authToken,
		&u.SummaryText,
		&u.WindowCount,
		&u.TotalTurns,
		&u.CreatedAt,
		&lastLogin,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Description = getString(description)
	u.AuthToken = getString(authToken)
	u.LastLoginAt = getTimePtr(lastLogin)

	return &u, nil
}
