package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/longregen/alicia/internal/domain/models"
	"github.com/longregen/alicia/internal/ports"
)

type fakeTokens struct {
	userID string
	err    error
}

func (f *fakeTokens) Validate(ctx context.Context, username, token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.userID, nil
}

type fakeUsers struct {
	mu   sync.Mutex
	byID map[string]*models.User
}

func newFakeUsers(u *models.User) *fakeUsers {
	return &fakeUsers{byID: map[string]*models.User{u.ID: u}}
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error { return nil }
func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *u
	return &cp, nil
}
func (f *fakeUsers) GetByDisplayName(ctx context.Context, name string) (*models.User, error) {
	return nil, errors.New("unsupported")
}
func (f *fakeUsers) GetByToken(ctx context.Context, token string) (*models.User, error) {
	return nil, errors.New("unsupported")
}
func (f *fakeUsers) Update(ctx context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	return nil
}

type fakeEntries struct {
	mu   sync.Mutex
	list []*models.ConversationEntry
}

func newFakeEntries() *fakeEntries { return &fakeEntries{} }

func (f *fakeEntries) Append(ctx context.Context, entries []*models.ConversationEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = append(f.list, entries...)
	return nil
}

func (f *fakeEntries) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ConversationEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ConversationEntry
	for _, e := range f.list {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeEntries) ListRange(ctx context.Context, userID string, end, count int) ([]*models.ConversationEntry, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*models.ConversationEntry
	for _, e := range f.list {
		if e.UserID == userID {
			all = append(all, e)
		}
	}
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
	n := 0
	for _, e := range f.list {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeEntries) GetByID(ctx context.Context, id string) (*models.ConversationEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.list {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, errors.New("not found")
}

type noopKB struct{}

func (noopKB) Replace(ctx context.Context, userID string, items []*models.KnowledgeBufferItem) error {
	return nil
}
func (noopKB) ListByUser(ctx context.Context, userID string) ([]*models.KnowledgeBufferItem, error) {
	return nil, nil
}

type noopMemories struct{}

func (noopMemories) Create(ctx context.Context, m *models.Memory) error { return nil }
func (noopMemories) GetByID(ctx context.Context, id string) (*models.Memory, error) {
	return nil, errors.New("not found")
}
func (noopMemories) Update(ctx context.Context, m *models.Memory) error { return nil }
func (noopMemories) Delete(ctx context.Context, id string) error       { return nil }
func (noopMemories) Search(ctx context.Context, opts ports.MemorySearchOptions) ([]*ports.MemorySearchResult, error) {
	return nil, nil
}

type noopMemoryUpdates struct{}

func (noopMemoryUpdates) Append(ctx context.Context, cmd *models.MemoryUpdateCommand) error {
	return nil
}
func (noopMemoryUpdates) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*models.MemoryUpdateCommand, error) {
	return nil, nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: make(map[string][]byte)} }

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
func (f *fakeCache) CompareAndSwap(ctx context.Context, key string, ttlSeconds int, modify func([]byte, bool) ([]byte, error)) (bool, error) {
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

type noopEmbeddings struct{}

func (noopEmbeddings) Embed(ctx context.Context, text string) (*ports.EmbeddingResult, error) {
	return &ports.EmbeddingResult{Embedding: []float32{0.1}, Model: "fake", Dimensions: 1}, nil
}
func (noopEmbeddings) GetDimensions() int { return 1 }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return prefix
}

func (s *seqIDs) GenerateUserID() string               { return s.next("usr") }
func (s *seqIDs) GenerateConversationEntryID() string   { return s.next("entry") }
func (s *seqIDs) GenerateKnowledgeBufferItemID() string { return s.next("kb") }
func (s *seqIDs) GenerateMemoryID() string              { return s.next("mem") }
func (s *seqIDs) GenerateMemoryUpdateID() string        { return s.next("upd") }

type fakeLLM struct {
	response string
}

func (f *fakeLLM) Chat(ctx context.Context, messages []ports.LLMMessage) (*ports.LLMResponse, error) {
	return &ports.LLMResponse{Content: f.response}, nil
}
func (f *fakeLLM) ChatJSON(ctx context.Context, messages []ports.LLMMessage) (*ports.LLMResponse, error) {
	return &ports.LLMResponse{Content: f.response}, nil
}

type fakeTTS struct{}

func (fakeTTS) Synthesize(ctx context.Context, text, tone string) (*ports.TTSResult, error) {
	return &ports.TTSResult{Audio: []byte("audio:" + text), Format: "wav"}, nil
}

type fakeCatalog struct{}

func (fakeCatalog) ByTitle(title string) (*models.Song, bool)      { return nil, false }
func (fakeCatalog) FuzzyByTitle(query string) (*models.Song, bool) { return nil, false }
func (fakeCatalog) BySegmentText(snippet string) []*models.Song    { return nil }
func (fakeCatalog) ListSingable(max int) []*models.Song            { return nil }
func (fakeCatalog) CanSing(title string) bool                      { return false }
func (fakeCatalog) LyricsAndAudio(songTitle, segmentDescription string) (string, []byte, error) {
	return "", nil, errors.New("no songs in test catalog")
}

type fakeTxMgr struct{}

func (fakeTxMgr) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeVision struct {
	description string
}

func (f *fakeVision) Describe(ctx context.Context, jpeg []byte) (string, error) {
	return f.description, nil
}
