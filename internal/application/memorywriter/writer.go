// Package memorywriter asks the language model for memory-update
// commands describing the turn that just completed, resolves short id
// references, and applies them through the memory store.
package memorywriter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/longregen/alicia/internal/application/memory"
	"github.com/longregen/alicia/internal/application/retrieval"
	"github.com/longregen/alicia/internal/domain/models"
	"github.com/longregen/alicia/internal/ports"
)

// Writer applies the language model's memory-update commands for a turn.
type Writer struct {
	store *memory.Store
	llm   ports.LLMService
}

func New(store *memory.Store, llm ports.LLMService) *Writer {
	return &Writer{store: store, llm: llm}
}

// CommandKind mirrors the three command shapes the language model may
// emit.
type CommandKind string

const (
	CommandAdd            CommandKind = "v_add"
	CommandUpdate         CommandKind = "v_update"
	CommandUpdateUsername CommandKind = "update_username"
)

type rawCommand struct {
	Kind        CommandKind `json:"kind"`
	Document    string      `json:"document,omitempty"`
	UUID        string      `json:"uuid,omitempty"`
	NewDocument string      `json:"new_document,omitempty"`
	NewName     string      `json:"new_name,omitempty"`
}

type commandPlan struct {
	Commands []rawCommand `json:"commands"`
}

// Apply runs the writer for one turn. ctx is expected to carry the
// turn's open durable-log transaction; every memory store call here is
// "non-committing" only in the sense that the caller, not the writer,
// commits it.
func (w *Writer) Apply(ctx context.Context, userID, userInput string, agentReplyContents []string, formattedHistory string, usedIDs []string) error {
	recent, err := w.store.ReadRecentUpdates(ctx, userID)
	if err != nil {
		log.Printf("[memorywriter.Writer] failed reading recent updates: user=%s err=%v", userID, err)
	}

	plan := w.askForCommands(ctx, userInput, agentReplyContents, formattedHistory)
	if len(plan.Commands) == 0 {
		return nil
	}

	resolvable := buildResolvableIDs(usedIDs, recent)

	for _, cmd := range plan.Commands {
		if err := w.applyOne(ctx, userID, cmd, resolvable); err != nil {
			log.Printf("[memorywriter.Writer] command failed, skipping: user=%s kind=%s err=%v", userID, cmd.Kind, err)
		}
	}
	return nil
}

func (w *Writer) applyOne(ctx context.Context, userID string, cmd rawCommand, resolvable []string) error {
	switch cmd.Kind {
	case CommandAdd:
		if strings.TrimSpace(cmd.Document) == "" {
			return fmt.Errorf("v_add: empty document")
		}
		_, err := w.store.AddMemoryFragment(ctx, userID, cmd.Document)
		return err

	case CommandUpdate:
		targetID, ok := resolvePrefix(cmd.UUID, resolvable)
		if !ok {
			return fmt.Errorf("v_update: uuid prefix %q not resolvable", cmd.UUID)
		}
		if strings.TrimSpace(cmd.NewDocument) == "" {
			return fmt.Errorf("v_update: empty new_document")
		}
		return w.store.UpdateMemoryFragment(ctx, userID, targetID, cmd.NewDocument)

	case CommandUpdateUsername:
		if strings.TrimSpace(cmd.NewName) == "" {
			return fmt.Errorf("update_username: empty new_name")
		}
		return w.store.UpdateNickname(ctx, userID, cmd.NewName)

	default:
		return fmt.Errorf("unknown command kind: %s", cmd.Kind)
	}
}

// buildResolvableIDs is the union of ids used by this turn's retrieval
// and ids named in the recent-updates cache, in that priority order:
// the first match against this list wins.
func buildResolvableIDs(usedIDs []string, recent []*models.MemoryUpdateCommand) []string {
	out := append([]string(nil), usedIDs...)
	for _, cmd := range recent {
		if cmd.TargetID != "" {
			out = append(out, cmd.TargetID)
		}
	}
	return out
}

func resolvePrefix(prefix string, candidates []string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			return c, true
		}
	}
	return "", false
}

func (w *Writer) askForCommands(ctx context.Context, userInput string, agentReplyContents []string, formattedHistory string) commandPlan {
	messages := []ports.LLMMessage{
		{Role: "system", Content: "Reply with JSON only: {\"commands\": [{\"kind\": \"v_add\"|\"v_update\"|\"update_username\", \"document\": ..., \"uuid\": ..., \"new_document\": ..., \"new_name\": ...}]}. Emit a command only for facts worth remembering long-term."},
		{Role: "user", Content: fmt.Sprintf("History:\n%s\n\nUser said: %s\n\nAgent replied: %s", formattedHistory, userInput, strings.Join(agentReplyContents, "\n"))},
	}

	resp, err := w.llm.ChatJSON(ctx, messages)
	if err != nil {
		log.Printf("[memorywriter.Writer] command request failed: %v", err)
		return commandPlan{}
	}

	payload := retrieval.ExtractJSON(resp.Content)
	var plan commandPlan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		log.Printf("[memorywriter.Writer] command JSON parse failed, no commands applied: %v", err)
		return commandPlan{}
	}
	return plan
}
