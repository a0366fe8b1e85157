package orchestrator

import (
	"fmt"
	"strings"

	"github.com/longregen/alicia/internal/domain/models"
)

// formatHistory renders entries as a compact transcript for LLM
// prompts; summary, when non-empty, is prepended as prior context.
func formatHistory(summary string, entries []*models.ConversationEntry) string {
	var b strings.Builder
	if summary != "" {
		fmt.Fprintf(&b, "Summary of earlier conversation: %s\n", summary)
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "%s: %s\n", e.Source, e.Content)
	}
	return b.String()
}
