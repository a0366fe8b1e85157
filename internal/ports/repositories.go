package ports

import (
	"context"

	"github.com/longregen/alicia/internal/domain/models"
)

// UserRepository persists User rows in the durable log.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*models.User, error)
	GetByToken(ctx context.Context, token string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// ConversationEntryRepository is the append-only log of ConversationEntry
// rows. Entries are never updated or deleted.
type ConversationEntryRepository interface {
	Append(ctx context.Context, entries []*models.ConversationEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.ConversationEntry, error)
	// ListRange returns the slice [max(0, end-count), end) in chronological
	// order, plus the user's total entry count (not the resolved start
	// index); end == -1 means "from most recent".
	ListRange(ctx context.Context, userID string, end, count int) ([]*models.ConversationEntry, int, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	GetByID(ctx context.Context, id string) (*models.ConversationEntry, error)
}

// KnowledgeBufferRepository stores the per-user knowledge buffer
// snapshot. Writes are always a wholesale replace.
type KnowledgeBufferRepository interface {
	Replace(ctx context.Context, userID string, items []*models.KnowledgeBufferItem) error
	ListByUser(ctx context.Context, userID string) ([]*models.KnowledgeBufferItem, error)
}

// MemoryRepository is the durable-log side of the memory store for
// MemoryRecords: the audit trail lives here even though similarity
// search is served by the vector index columns on the same table.
type MemoryRepository interface {
	Create(ctx context.Context, memory *models.Memory) error
	GetByID(ctx context.Context, id string) (*models.Memory, error)
	Update(ctx context.Context, memory *models.Memory) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, opts MemorySearchOptions) ([]*MemorySearchResult, error)
}

// MemorySearchOptions configures a vector-index similarity search.
type MemorySearchOptions struct {
	UserID    string
	Embedding []float32
	Limit     int
	Threshold *float32
}

// MemorySearchResult pairs a Memory with its cosine similarity score.
type MemorySearchResult struct {
	Memory     *models.Memory
	Similarity float32
}

// MemoryUpdateRepository is the durable audit log of every
// MemoryUpdateCommand applied by the memory writer.
type MemoryUpdateRepository interface {
	Append(ctx context.Context, cmd *models.MemoryUpdateCommand) error
	ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.MemoryUpdateCommand, error)
}

// IDGenerator mints opaque, prefixed identifiers for every entity kind.
type IDGenerator interface {
	GenerateUserID() string
	GenerateConversationEntryID() string
	GenerateKnowledgeBufferItemID() string
	GenerateMemoryID() string
	GenerateMemoryUpdateID() string
}

// TransactionManager scopes a function to a single durable-log
// transaction; repositories resolve their connection from ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
