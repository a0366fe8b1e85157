// Package retrieval asks the language model for a plan of tool
// invocations, executes them against the tool dispatcher, and reduces
// the results into the turn's knowledge buffer, through a fixed
// five-phase algorithm rather than an open-ended tool-use loop.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/longregen/alicia/internal/application/memory"
	"github.com/longregen/alicia/internal/application/tools"
	"github.com/longregen/alicia/internal/ports"
)

const dedupePrefixLen = 50

// Planner drives the retrieval phase of a turn.
type Planner struct {
	store      *memory.Store
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	llm        ports.LLMService
}

func New(store *memory.Store, registry *tools.Registry, llm ports.LLMService) *Planner {
	return &Planner{
		store:      store,
		registry:   registry,
		dispatcher: tools.NewDispatcher(registry),
		llm:        llm,
	}
}

// Result is the planner's output: the deduplicated knowledge buffer for
// this turn plus the set of vector ids it touched.
type Result struct {
	KnowledgeBuffer []string
	UsedIDs         []string
}

type toolCallPlan struct {
	ToolCalls []tools.Invocation `json:"tool_calls"`
}

// Run executes the five-phase algorithm and persists its output via
// the memory store.
func (p *Planner) Run(ctx context.Context, userID, userInput, formattedHistory string) (*Result, error) {
	previousContents, err := p.store.ReadKnowledgeBuffer(ctx, userID)
	if err != nil {
		log.Printf("[retrieval.Planner] failed reading previous knowledge buffer: user=%s err=%v", userID, err)
	}
	alreadyUsed, err := p.store.ReadUsedIDs(ctx, userID)
	if err != nil {
		log.Printf("[retrieval.Planner] failed reading used-ids: user=%s err=%v", userID, err)
	}

	previous := make([]tools.PreviousResult, len(previousContents))
	for i, c := range previousContents {
		previous[i] = tools.PreviousResult{Content: c}
	}
	session := tools.NewRetrievalSession(userID, previous, alreadyUsed)

	plan := p.askForPlan(ctx, userInput, formattedHistory)

	var collected []string
	for _, call := range plan.ToolCalls {
		out, err := p.dispatcher.Dispatch(ctx, call, map[string]any{"session": session})
		if err != nil {
			log.Printf("[retrieval.Planner] tool call failed, skipping: user=%s tool=%s err=%v", userID, call.Tool, err)
			continue
		}
		out = strings.TrimSpace(out)
		if out != "" {
			collected = append(collected, out)
		}
	}

	deduped := dedupeByPrefix(collected, dedupePrefixLen)

	if err := p.store.ReplaceKnowledgeBuffer(ctx, userID, deduped); err != nil {
		return nil, err
	}

	var usedIDs []string
	for id := range session.UsedIDs {
		usedIDs = append(usedIDs, id)
	}
	if err := p.store.RecordUsedIDs(ctx, userID, usedIDs); err != nil {
		log.Printf("[retrieval.Planner] failed persisting used-ids: user=%s err=%v", userID, err)
	}

	return &Result{KnowledgeBuffer: deduped, UsedIDs: usedIDs}, nil
}

func (p *Planner) askForPlan(ctx context.Context, userInput, formattedHistory string) toolCallPlan {
	catalogDesc := p.describeCatalog()

	messages := []ports.LLMMessage{
		{Role: "system", Content: catalogDesc},
		{Role: "system", Content: "Reply with JSON only: {\"tool_calls\": [{\"tool\": name, \"parameters\": {...}}, ...]}. Propose zero or more tool calls relevant to the user's message."},
		{Role: "user", Content: fmt.Sprintf("History:\n%s\n\nUser message: %s", formattedHistory, userInput)},
	}

	resp, err := p.llm.ChatJSON(ctx, messages)
	if err != nil {
		log.Printf("[retrieval.Planner] plan request failed: %v", err)
		return toolCallPlan{}
	}

	payload := ExtractJSON(resp.Content)
	var plan toolCallPlan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		log.Printf("[retrieval.Planner] plan JSON parse failed, using empty plan: %v", err)
		return toolCallPlan{}
	}
	return plan
}

func (p *Planner) describeCatalog() string {
	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, t := range p.registry.All() {
		b.WriteString(fmt.Sprintf("- %s(%s): %s\n", t.Name, describeParams(t.Params), t.Description))
	}
	return b.String()
}

func describeParams(params []tools.Param) string {
	var parts []string
	for _, p := range params {
		parts = append(parts, fmt.Sprintf("%s: %s", p.Name, p.Type))
	}
	return strings.Join(parts, ", ")
}

// dedupeByPrefix removes entries whose first prefixLen characters
// (after trimming) match one already kept, preserving order.
func dedupeByPrefix(items []string, prefixLen int) []string {
	seen := make(map[string]bool, len(items))
	var out []string
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		key := trimmed
		if runes := []rune(key); len(runes) > prefixLen {
			key = string(runes[:prefixLen])
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}
	return out
}
