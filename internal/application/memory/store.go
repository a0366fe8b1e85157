// Package memory provides the unified cache-aside view over the
// durable log, the hot cache, and the vector index that every other
// component reads and writes through: one facade wrapping multiple
// repositories with a cache-then-db read pattern.
package memory

import (
	"context"
	"encoding/json"
	"log"

	"github.com/longregen/alicia/internal/domain"
	"github.com/longregen/alicia/internal/domain/models"
	"github.com/longregen/alicia/internal/ports"
)

// Store is the memory facade. All fields are narrow ports so it can be
// wired against postgres+redis in production and fakes in tests.
type Store struct {
	Users         ports.UserRepository
	Entries       ports.ConversationEntryRepository
	KnowledgeBuf  ports.KnowledgeBufferRepository
	Memories      ports.MemoryRepository
	MemoryUpdates ports.MemoryUpdateRepository
	Cache         ports.HotCache
	Embeddings    ports.EmbeddingService
	IDs           ports.IDGenerator

	TTLSeconds          int
	SimilarityThreshold float32
}

func New(
	users ports.UserRepository,
	entries ports.ConversationEntryRepository,
	kb ports.KnowledgeBufferRepository,
	memories ports.MemoryRepository,
	memoryUpdates ports.MemoryUpdateRepository,
	cache ports.HotCache,
	embeddings ports.EmbeddingService,
	ids ports.IDGenerator,
	ttlSeconds int,
	similarityThreshold float32,
) *Store {
	return &Store{
		Users:               users,
		Entries:             entries,
		KnowledgeBuf:        kb,
		Memories:            memories,
		MemoryUpdates:       memoryUpdates,
		Cache:               cache,
		Embeddings:          embeddings,
		IDs:                 ids,
		TTLSeconds:          ttlSeconds,
		SimilarityThreshold: similarityThreshold,
	}
}

type cachedContext struct {
	Summary       string                      `json:"summary"`
	Conversations []*models.ConversationEntry `json:"conversations"`
}

// PrefillWorkingSet loads the requested per-user caches (all four when
// kinds is empty) from the durable log into the hot cache. Idempotent.
// It returns false at the first kind that fails, whether the durable
// log read or the hot-cache write failed; kinds written before that
// failure stay in the hot cache.
func (s *Store) PrefillWorkingSet(ctx context.Context, userID string, kinds []Kind) bool {
	if len(kinds) == 0 {
		kinds = []Kind{KindContext, KindKnowledge, KindNickname, KindRecentUpdates}
	}

	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		log.Printf("[memory.Store] prefill failed, user lookup: user=%s err=%v", userID, err)
		return false
	}

	for _, kind := range kinds {
		var err error
		switch kind {
		case KindContext:
			err = s.prefillContext(ctx, user)
		case KindKnowledge:
			err = s.prefillKnowledge(ctx, userID)
		case KindNickname:
			err = s.prefillNickname(ctx, user)
		case KindRecentUpdates:
			err = s.prefillRecentUpdates(ctx, userID)
		}
		if err != nil {
			log.Printf("[memory.Store] prefill failed: user=%s kind=%s err=%v", userID, kind, err)
			return false
		}
	}
	return true
}

func (s *Store) prefillContext(ctx context.Context, user *models.User) error {
	entries, err := s.Entries.ListByUser(ctx, user.ID, user.WindowCount)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(cachedContext{Summary: user.SummaryText, Conversations: entries})
	if err != nil {
		return err
	}
	return s.Cache.Set(ctx, contextKey(user.ID), payload, s.TTLSeconds)
}

func (s *Store) prefillKnowledge(ctx context.Context, userID string) error {
	items, err := s.KnowledgeBuf.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(models.ContentsOf(items))
	if err != nil {
		return err
	}
	return s.Cache.Set(ctx, knowledgeKey(userID), payload, s.TTLSeconds)
}

func (s *Store) prefillNickname(ctx context.Context, user *models.User) error {
	return s.Cache.Set(ctx, nicknameKey(user.ID), []byte(user.Nickname), s.TTLSeconds)
}

func (s *Store) prefillRecentUpdates(ctx context.Context, userID string) error {
	cmds, err := s.MemoryUpdates.ListRecentByUser(ctx, userID, recentUpdatesLimit)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(cmds)
	if err != nil {
		return err
	}
	return s.Cache.Set(ctx, recentUpdatesKey(userID), payload, s.TTLSeconds)
}

// AppendConversations writes entries to the durable log, bumps the
// user's counters, then appends them into the cached context under the
// optimistic-lock protocol. The durable log is authoritative even if
// the cache update is dropped.
func (s *Store) AppendConversations(ctx context.Context, userID string, entries []*models.ConversationEntry) error {
	if len(entries) == 0 {
		return nil
	}

	if err := s.Entries.Append(ctx, entries); err != nil {
		return err
	}

	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.RecordTurns(len(entries))
	if err := s.Users.Update(ctx, user); err != nil {
		return err
	}

	ok, err := s.Cache.CompareAndSwap(ctx, contextKey(userID), s.TTLSeconds, func(current []byte, exists bool) ([]byte, error) {
		var cc cachedContext
		if exists {
			if err := json.Unmarshal(current, &cc); err != nil {
				return nil, err
			}
		} else {
			cc.Summary = user.SummaryText
		}
		cc.Conversations = append(cc.Conversations, entries...)
		return json.Marshal(cc)
	})
	if err != nil {
		log.Printf("[memory.Store] append cache update errored: user=%s err=%v", userID, err)
	} else if !ok {
		log.Printf("[memory.Store] append cache update dropped after lock contention: user=%s", userID)
	}
	return nil
}

// ReadContext is cache-aside: a present `user_context:{user}` key is parsed
// and returned directly; otherwise the working set is prefilled from
// the durable log and re-read once.
func (s *Store) ReadContext(ctx context.Context, userID string) (string, []*models.ConversationEntry, error) {
	raw, ok, err := s.Cache.Get(ctx, contextKey(userID))
	if err != nil {
		return "", nil, err
	}
	if !ok {
		if !s.PrefillWorkingSet(ctx, userID, []Kind{KindContext}) {
			return "", nil, nil
		}
		raw, ok, err = s.Cache.Get(ctx, contextKey(userID))
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return "", nil, nil
		}
	}
	var cc cachedContext
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", nil, domain.NewDomainError(domain.KindState, domain.ErrCacheCorrupt, "context:"+userID)
	}
	return cc.Summary, cc.Conversations, nil
}

func (s *Store) ReadKnowledgeBuffer(ctx context.Context, userID string) ([]string, error) {
	raw, ok, err := s.Cache.Get(ctx, knowledgeKey(userID))
	if err != nil {
		return nil, err
	}
	if !ok {
		if !s.PrefillWorkingSet(ctx, userID, []Kind{KindKnowledge}) {
			return nil, nil
		}
		raw, ok, err = s.Cache.Get(ctx, knowledgeKey(userID))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, domain.NewDomainError(domain.KindState, domain.ErrCacheCorrupt, "knowledge:"+userID)
	}
	return items, nil
}

func (s *Store) ReadNickname(ctx context.Context, userID string) (string, error) {
	raw, ok, err := s.Cache.Get(ctx, nicknameKey(userID))
	if err != nil {
		return "", err
	}
	if !ok {
		if !s.PrefillWorkingSet(ctx, userID, []Kind{KindNickname}) {
			return "", nil
		}
		raw, ok, err = s.Cache.Get(ctx, nicknameKey(userID))
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
	}
	return string(raw), nil
}

func (s *Store) ReadRecentUpdates(ctx context.Context, userID string) ([]*models.MemoryUpdateCommand, error) {
	raw, ok, err := s.Cache.Get(ctx, recentUpdatesKey(userID))
	if err != nil {
		return nil, err
	}
	if !ok {
		if !s.PrefillWorkingSet(ctx, userID, []Kind{KindRecentUpdates}) {
			return nil, nil
		}
		raw, ok, err = s.Cache.Get(ctx, recentUpdatesKey(userID))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
	}
	var cmds []*models.MemoryUpdateCommand
	if err := json.Unmarshal(raw, &cmds); err != nil {
		return nil, domain.NewDomainError(domain.KindState, domain.ErrCacheCorrupt, "recent-updates:"+userID)
	}
	return trimCommands(cmds, recentUpdatesLimit), nil
}

// ReplaceKnowledgeBuffer performs a wholesale snapshot replacement in
// the durable log and overwrites the cache with no CAS.
func (s *Store) ReplaceKnowledgeBuffer(ctx context.Context, userID string, contents []string) error {
	items := make([]*models.KnowledgeBufferItem, len(contents))
	for i, c := range contents {
		items[i] = models.NewKnowledgeBufferItem(s.IDs.GenerateKnowledgeBufferItemID(), userID, c, i)
	}
	if err := s.KnowledgeBuf.Replace(ctx, userID, items); err != nil {
		return err
	}
	payload, err := json.Marshal(contents)
	if err != nil {
		return err
	}
	if err := s.Cache.Set(ctx, knowledgeKey(userID), payload, s.TTLSeconds); err != nil {
		log.Printf("[memory.Store] knowledge cache overwrite failed: user=%s err=%v", userID, err)
	}
	return nil
}

// ReplaceSummary updates the User row and keeps only the tail
// newWindowCount entries in the cached context, under the optimistic
// lock protocol.
func (s *Store) ReplaceSummary(ctx context.Context, userID, newSummary string, newWindowCount int) error {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.ReplaceSummary(newSummary, newWindowCount)
	if err := s.Users.Update(ctx, user); err != nil {
		return err
	}

	ok, err := s.Cache.CompareAndSwap(ctx, contextKey(userID), s.TTLSeconds, func(current []byte, exists bool) ([]byte, error) {
		cc := cachedContext{Summary: newSummary}
		if exists {
			var prev cachedContext
			if err := json.Unmarshal(current, &prev); err == nil {
				cc.Conversations = tailOf(prev.Conversations, newWindowCount)
			}
		}
		return json.Marshal(cc)
	})
	if err != nil {
		log.Printf("[memory.Store] summary cache update errored: user=%s err=%v", userID, err)
	} else if !ok {
		log.Printf("[memory.Store] summary cache update dropped after lock contention: user=%s", userID)
	}
	return nil
}

func (s *Store) UpdateNickname(ctx context.Context, userID, newNickname string) error {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	user.SetNickname(newNickname)
	if err := s.Users.Update(ctx, user); err != nil {
		return err
	}
	if err := s.Cache.Set(ctx, nicknameKey(userID), []byte(newNickname), s.TTLSeconds); err != nil {
		log.Printf("[memory.Store] nickname cache overwrite failed: user=%s err=%v", userID, err)
	}
	return nil
}

// RecordMemoryUpdate appends a canonical command to the durable audit
// log and to the trimmed `user_recent_memory_update:{user}` cache.
func (s *Store) RecordMemoryUpdate(ctx context.Context, userID string, cmd *models.MemoryUpdateCommand) error {
	if err := s.MemoryUpdates.Append(ctx, cmd); err != nil {
		return err
	}

	raw, ok, err := s.Cache.Get(ctx, recentUpdatesKey(userID))
	var cmds []*models.MemoryUpdateCommand
	if err == nil && ok {
		_ = json.Unmarshal(raw, &cmds)
	}
	cmds = trimCommands(append(cmds, cmd), recentUpdatesLimit)
	payload, err := json.Marshal(cmds)
	if err != nil {
		return err
	}
	if err := s.Cache.Set(ctx, recentUpdatesKey(userID), payload, s.TTLSeconds); err != nil {
		log.Printf("[memory.Store] recent-updates cache overwrite failed: user=%s err=%v", userID, err)
	}
	return nil
}

// RecordUsedIDs overwrites the `user_used_uuid:{user}` snapshot wholesale,
// called by the retrieval planner after a search.
func (s *Store) RecordUsedIDs(ctx context.Context, userID string, ids []string) error {
	payload, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.Cache.Set(ctx, usedIDsKey(userID), payload, s.TTLSeconds)
}

func (s *Store) ReadUsedIDs(ctx context.Context, userID string) ([]string, error) {
	raw, ok, err := s.Cache.Get(ctx, usedIDsKey(userID))
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, domain.NewDomainError(domain.KindState, domain.ErrCacheCorrupt, "used-ids:"+userID)
	}
	return ids, nil
}

// AddMemoryFragment embeds content, stores it in the vector index and
// the durable log, and records the corresponding MemoryUpdateCommand.
func (s *Store) AddMemoryFragment(ctx context.Context, userID, content string) (string, error) {
	id := s.IDs.GenerateMemoryID()
	m := models.NewMemory(id, userID, content)
	if emb, err := s.Embeddings.Embed(ctx, content); err == nil {
		m.SetEmbeddings(emb.Embedding, &models.EmbeddingsInfo{Model: emb.Model, Dimensions: emb.Dimensions})
	} else {
		log.Printf("[memory.Store] embedding failed for new memory: user=%s err=%v", userID, err)
	}
	if err := s.Memories.Create(ctx, m); err != nil {
		return "", err
	}
	cmd := models.NewMemoryUpdateCommand(s.IDs.GenerateMemoryUpdateID(), userID, models.MemoryUpdateAdd, content, "")
	if err := s.RecordMemoryUpdate(ctx, userID, cmd); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateMemoryFragment(ctx context.Context, userID, id, content string) error {
	m, err := s.Memories.GetByID(ctx, id)
	if err != nil {
		return err
	}
	m.SetContent(content)
	if emb, err := s.Embeddings.Embed(ctx, content); err == nil {
		m.SetEmbeddings(emb.Embedding, &models.EmbeddingsInfo{Model: emb.Model, Dimensions: emb.Dimensions})
	} else {
		log.Printf("[memory.Store] embedding failed for memory update: user=%s id=%s err=%v", userID, id, err)
	}
	if err := s.Memories.Update(ctx, m); err != nil {
		return err
	}
	cmd := models.NewMemoryUpdateCommand(s.IDs.GenerateMemoryUpdateID(), userID, models.MemoryUpdateUpdate, content, id)
	return s.RecordMemoryUpdate(ctx, userID, cmd)
}

func (s *Store) DeleteMemoryFragment(ctx context.Context, id string) error {
	return s.Memories.Delete(ctx, id)
}

// MemorySearchHit is one vector-index similarity-search result.
type MemorySearchHit struct {
	ID      string
	Content string
	Score   float32
}

// VectorSearch embeds query and searches the vector index, always
// filtered by user-id.
func (s *Store) VectorSearch(ctx context.Context, userID, query string, k int) ([]MemorySearchHit, error) {
	emb, err := s.Embeddings.Embed(ctx, query)
	if err != nil {
		return nil, domain.NewDomainError(domain.KindUpstream, domain.ErrEmbeddingUnavailable, err.Error())
	}
	results, err := s.Memories.Search(ctx, ports.MemorySearchOptions{
		UserID:    userID,
		Embedding: emb.Embedding,
		Limit:     k,
		Threshold: &s.SimilarityThreshold,
	})
	if err != nil {
		return nil, err
	}
	hits := make([]MemorySearchHit, len(results))
	for i, r := range results {
		hits[i] = MemorySearchHit{ID: r.Memory.ID, Content: r.Memory.Content, Score: r.Similarity}
	}
	return hits, nil
}

func trimCommands(cmds []*models.MemoryUpdateCommand, limit int) []*models.MemoryUpdateCommand {
	if len(cmds) <= limit {
		return cmds
	}
	return cmds[len(cmds)-limit:]
}

func tailOf(entries []*models.ConversationEntry, n int) []*models.ConversationEntry {
	if n <= 0 || len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}
