package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/alicia/internal/domain/models"
)

type ConversationEntryRepository struct {
	BaseRepository
}

func NewConversationEntryRepository(pool *pgxpool.Pool) *ConversationEntryRepository {
	return &ConversationEntryRepository{BaseRepository: NewBaseRepository(pool)}
}

// Append writes entries in append order within a single statement batch.
// ConversationEntry rows are never updated or deleted.
func (r *ConversationEntryRepository) Append(ctx context.Context, entries []*models.ConversationEntry) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	conn := r.conn(ctx)
	for _, e := range entries {
		auxData, err := marshalJSONField(&e.AuxData)
		if err != nil {
			return err
		}
		query := `
			INSERT INTO kanon_conversation_entries (
				id, user_id, timestamp, source, content_type, content, aux_data
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		if _, err := conn.Exec(ctx, query,
			e.ID, e.UserID, e.Timestamp, string(e.Source), string(e.ContentType), e.Content, auxData,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *ConversationEntryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ConversationEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, timestamp, source, content_type, content, aux_data
		FROM kanon_conversation_entries
		WHERE user_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries, err := scanConversationEntries(rows)
	if err != nil {
		return nil, err
	}
	// reverse to chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// ListRange returns the slice [max(0, end-count), end) in chronological
// order and the user's total entry count, for the history endpoint.
func (r *ConversationEntryRepository) ListRange(ctx context.Context, userID string, end, count int) ([]*models.ConversationEntry, int, error) {
	total, err := r.CountByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}

	if end < 0 || end > total {
		end = total
	}
	start := end - count
	if start < 0 {
		start = 0
	}
	if start >= end {
		return []*models.ConversationEntry{}, total, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, timestamp, source, content_type, content, aux_data
		FROM kanon_conversation_entries
		WHERE user_id = $1
		ORDER BY timestamp ASC, id ASC
		OFFSET $2 LIMIT $3`

	rows, err := r.conn(ctx).Query(ctx, query, userID, start, end-start)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := scanConversationEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *ConversationEntryRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var count int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM kanon_conversation_entries WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (r *ConversationEntryRepository) GetByID(ctx context.Context, id string) (*models.ConversationEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, timestamp, source, content_type, content, aux_data
		FROM kanon_conversation_entries WHERE id = $1`

	return scanConversationEntry(r.conn(ctx).QueryRow(ctx, query, id))
}

func scanConversationEntry(row pgx.Row) (*models.ConversationEntry, error) {
	var e models.ConversationEntry
	var source, contentType string
	var auxData []byte

	if err := row.Scan(&e.ID, &e.UserID, &e.Timestamp, &source, &contentType, &e.Content, &auxData); err != nil {
		return nil, err
	}
	e.Source = models.EntrySource(source)
	e.ContentType = models.NormalizeContentType(contentType)
	if len(auxData) > 0 {
		if err := json.Unmarshal(auxData, &e.AuxData); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func scanConversationEntries(rows pgx.Rows) ([]*models.ConversationEntry, error) {
	var out []*models.ConversationEntry
	for rows.Next() {
		var e models.ConversationEntry
		var source, contentType string
		var auxData []byte

		if err := rows.Scan(&e.ID, &e.UserID, &e.Timestamp, &source, &contentType, &e.Content, &auxData); err != nil {
			return nil, err
		}
		e.Source = models.EntrySource(source)
		e.ContentType = models.NormalizeContentType(contentType)
		if len(auxData) > 0 {
			if err := json.Unmarshal(auxData, &e.AuxData); err != nil {
				return nil, err
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
