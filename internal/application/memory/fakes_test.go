package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/longregen/alicia/internal/domain/models"
	"github.com/longregen/alicia/internal/ports"
)

type fakeUsers struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	calls int
}

func newFakeUsers(u *models.User) *fakeUsers {
	return &fakeUsers{byID: map[string]*models.User{u.ID: u}}
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	u, ok := f.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByDisplayName(ctx context.Context, name string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.DisplayName == name {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeUsers) GetByToken(ctx context.Context, token string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.AuthToken == token {
			return u, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeUsers) Update(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	return nil
}

type fakeEntries struct {
	mu   sync.Mutex
	byID map[string][]*models.ConversationEntry
}

func newFakeEntries() *fakeEntries {
	return &fakeEntries{byID: make(map[string][]*models.ConversationEntry)}
}

func (f *fakeEntries) Append(ctx context.Context, entries []*models.ConversationEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range entries {
		f.byID[e.UserID] = append(f.byID[e.UserID], e)
	}
	return nil
}

func (f *fakeEntries) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ConversationEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.byID[userID]
	if limit <= 0 || limit >= len(all) {
		return all, nil
	}
	return all[len(all)-limit:], nil
}

func (f *fakeEntries) ListRange(ctx context.Context, userID string, end, count int) ([]*models.ConversationEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.byID[userID]
	total := len(all)
	if end < 0 || end > total {
		end = total
	}
	start := end - count
	if start < 0 {
		start = 0
	}
	return all[start:end], total, nil
}

func (f *fakeEntries) CountByUser(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID[userID]), nil
}

func (f *fakeEntries) GetByID(ctx context.Context, id string) (*models.ConversationEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entries := range f.byID {
		for _, e := range entries {
			if e.ID == id {
				return e, nil
			}
		}
	}
	return nil, errors.New("not found")
}

type fakeKnowledgeBuf struct {
	mu    sync.Mutex
	byUse map[string][]*models.KnowledgeBufferItem
}

func newFakeKnowledgeBuf() *fakeKnowledgeBuf {
	return &fakeKnowledgeBuf{byUse: make(map[string][]*models.KnowledgeBufferItem)}
}

func (f *fakeKnowledgeBuf) Replace(ctx context.Context, userID string, items []*models.KnowledgeBufferItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUse[userID] = items
	return nil
}

func (f *fakeKnowledgeBuf) ListByUser(ctx context.Context, userID string) ([]*models.KnowledgeBufferItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byUse[userID], nil
}

type fakeMemories struct {
	mu   sync.Mutex
	byID map[string]*models.Memory
}

func newFakeMemories() *fakeMemories {
	return &fakeMemories{byID: make(map[string]*models.Memory)}
}

func (f *fakeMemories) Create(ctx context.Context, m *models.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[m.ID] = m
	return nil
}

func (f *fakeMemories) GetByID(ctx context.Context, id string) (*models.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return m, nil
}

func (f *fakeMemories) Update(ctx context.Context, m *models.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[m.ID] = m
	return nil
}

func (f *fakeMemories) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

func (f *fakeMemories) Search(ctx context.Context, opts ports.MemorySearchOptions) ([]*ports.MemorySearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*ports.MemorySearchResult
	for _, m := range f.byID {
		if m.UserID != opts.UserID {
			continue
		}
		out = append(out, &ports.MemorySearchResult{Memory: m, Similarity: 1.0})
	}
	return out, nil
}

type fakeMemoryUpdates struct {
	mu   sync.Mutex
	byUse map[string][]*models.MemoryUpdateCommand
}

func newFakeMemoryUpdates() *fakeMemoryUpdates {
	return &fakeMemoryUpdates{byUse: make(map[string][]*models.MemoryUpdateCommand)}
}

func (f *fakeMemoryUpdates) Append(ctx context.Context, cmd *models.MemoryUpdateCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byUse[cmd.UserID] = append(f.byUse[cmd.UserID], cmd)
	return nil
}

func (f *fakeMemoryUpdates) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.MemoryUpdateCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.byUse[userID]
	if limit <= 0 || limit >= len(all) {
		return all, nil
	}
	return all[len(all)-limit:], nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeCache) CompareAndSwap(ctx context.Context, key string, ttlSeconds int, modify func(current []byte, exists bool) ([]byte, error)) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, exists := f.data[key]
	next, err := modify(current, exists)
	if err != nil {
		return false, err
	}
	f.data[key] = next
	return true, nil
}

type fakeEmbeddings struct{}

func (fakeEmbeddings) Embed(ctx context.Context, text string) (*ports.EmbeddingResult, error) {
	return &ports.EmbeddingResult{Embedding: []float32{0.1, 0.2}, Model: "fake-embed", Dimensions: 2}, nil
}

func (fakeEmbeddings) GetDimensions() int { return 2 }

type fakeIDs struct{ n int }

func (f *fakeIDs) next(prefix string) string {
	f.n++
	return prefix + "_" + strconv.Itoa(f.n)
}

func (f *fakeIDs) GenerateUserID() string               { return f.next("usr") }
func (f *fakeIDs) GenerateConversationEntryID() string  { return f.next("entry") }
func (f *fakeIDs) GenerateKnowledgeBufferItemID() string { return f.next("kb") }
func (f *fakeIDs) GenerateMemoryID() string             { return f.next("mem") }
func (f *fakeIDs) GenerateMemoryUpdateID() string       { return f.next("upd") }
