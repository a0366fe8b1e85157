// Package summarizer compacts the oldest entries of a user's working
// window into an updated rolling summary in the background once the
// window exceeds a configured size, using a per-user map+mutex to keep
// at most one summarization running per user at a time.
package summarizer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/longregen/alicia/internal/application/memory"
	"github.com/longregen/alicia/internal/domain/models"
	"github.com/longregen/alicia/internal/ports"
)

// Summarizer compacts a user's working window into a rolling summary.
type Summarizer struct {
	store           *memory.Store
	llm             ports.LLMService
	rawContextLimit int
	notZipCount     int

	mu      sync.Mutex
	running map[string]bool
}

func New(store *memory.Store, llm ports.LLMService, rawContextLimit, notZipCount int) *Summarizer {
	return &Summarizer{
		store:           store,
		llm:             llm,
		rawContextLimit: rawContextLimit,
		notZipCount:     notZipCount,
		running:         make(map[string]bool),
	}
}

// ShouldTrigger reports whether the working window exceeds the
// configured threshold.
func (s *Summarizer) ShouldTrigger(windowCount int) bool {
	return windowCount > s.rawContextLimit
}

// TriggerAsync starts a background summarization for userID unless one
// is already running; a second trigger while running is dropped.
func (s *Summarizer) TriggerAsync(ctx context.Context, userID string) {
	s.mu.Lock()
	if s.running[userID] {
		s.mu.Unlock()
		log.Printf("[summarizer.Summarizer] trigger dropped, already running: user=%s", userID)
		return
	}
	s.running[userID] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.running, userID)
			s.mu.Unlock()
		}()
		if err := s.run(ctx, userID); err != nil {
			log.Printf("[summarizer.Summarizer] run failed: user=%s err=%v", userID, err)
		}
	}()
}

func (s *Summarizer) run(ctx context.Context, userID string) error {
	summary, entries, err := s.store.ReadContext(ctx, userID)
	if err != nil {
		return fmt.Errorf("read context: %w", err)
	}
	if len(entries) <= s.notZipCount {
		return nil
	}

	oldest := entries[:len(entries)-s.notZipCount]
	newSummary, err := s.summarize(ctx, summary, oldest)
	if err != nil {
		return fmt.Errorf("summarize: %w", err)
	}

	return s.store.ReplaceSummary(ctx, userID, newSummary, s.notZipCount)
}

func (s *Summarizer) summarize(ctx context.Context, currentSummary string, oldest []*models.ConversationEntry) (string, error) {
	var b strings.Builder
	for _, e := range oldest {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Source, e.Content)
	}

	messages := []ports.LLMMessage{
		{Role: "system", Content: "Produce an updated rolling summary of this conversation that preserves continuity. Reply with the summary text only."},
		{Role: "user", Content: fmt.Sprintf("Current summary:\n%s\n\nOlder entries to fold in:\n%s", currentSummary, b.String())},
	}

	resp, err := s.llm.Chat(ctx, messages)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
