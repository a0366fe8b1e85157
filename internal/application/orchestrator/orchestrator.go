// Package orchestrator is the top-level per-turn controller: it wires
// the memory store through the response streamer and owns the
// background-write task.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/longregen/alicia/internal/application/generator"
	"github.com/longregen/alicia/internal/application/intent"
	"github.com/longregen/alicia/internal/application/memory"
	"github.com/longregen/alicia/internal/application/memorywriter"
	"github.com/longregen/alicia/internal/application/retrieval"
	"github.com/longregen/alicia/internal/application/streaming"
	"github.com/longregen/alicia/internal/application/summarizer"
	"github.com/longregen/alicia/internal/domain"
	"github.com/longregen/alicia/internal/domain/models"
	"github.com/longregen/alicia/internal/ports"
)

// Orchestrator depends on narrow ports plus the concrete pipeline
// components; nothing here reaches for a global.
type Orchestrator struct {
	Tokens  ports.TokenValidator
	Store   *memory.Store
	Entries ports.ConversationEntryRepository
	TxMgr   ports.TransactionManager
	IDs     ports.IDGenerator

	Planner      *retrieval.Planner
	IntentPlaner *intent.Planner
	Generator    *generator.Generator
	Streamer     *streaming.Streamer
	Writer       *memorywriter.Writer
	Summarizer   *summarizer.Summarizer

	Vision     ports.VisionService
	ImagesRoot string
}

// AuthenticatedUserID maps {username, token} to an opaque user id.
func (o *Orchestrator) AuthenticatedUserID(ctx context.Context, username, token string) (string, error) {
	userID, err := o.Tokens.Validate(ctx, username, token)
	if err != nil {
		return "", domain.NewDomainError(domain.KindAuth, domain.ErrTokenInvalid, err.Error())
	}
	return userID, nil
}

// HandleText drives one text turn end-to-end, streaming frames to sink
// and awaiting the background write before returning.
func (o *Orchestrator) HandleText(ctx context.Context, userID, text string, sink streaming.FrameSink) error {
	if text == "" {
		return domain.NewDomainError(domain.KindValidation, domain.ErrEmptyContent, "text is empty")
	}

	userEntry := models.NewConversationEntry(o.IDs.GenerateConversationEntryID(), userID, models.EntrySourceUser, models.ContentTypeText, text)
	if err := o.Store.AppendConversations(ctx, userID, []*models.ConversationEntry{userEntry}); err != nil {
		return fmt.Errorf("append user entry: %w", err)
	}

	return o.runTurn(ctx, userID, text, sink)
}

// HandleImage normalizes an uploaded image, stores it, describes it
// via the vision collaborator, appends an image ConversationEntry, and
// then runs the same turn pipeline as a text turn.
func (o *Orchestrator) HandleImage(ctx context.Context, userID string, imageBytes []byte, clientPath string, normalize func([]byte) ([]byte, error), sink streaming.FrameSink) error {
	jpeg, err := normalize(imageBytes)
	if err != nil {
		return domain.NewDomainError(domain.KindValidation, domain.ErrInvalidInput, "image normalize failed: "+err.Error())
	}

	serverPath, err := saveImage(o.ImagesRoot, userID, jpeg)
	if err != nil {
		return fmt.Errorf("save image: %w", err)
	}

	description, err := o.Vision.Describe(ctx, jpeg)
	if err != nil {
		return domain.NewDomainError(domain.KindUpstream, domain.ErrVisionUnavailable, err.Error())
	}

	content := "（用户发送了一张图片）：" + description
	entry := models.NewConversationEntry(o.IDs.GenerateConversationEntryID(), userID, models.EntrySourceUser, models.ContentTypeImage, content).
		WithImageAux(clientPath, serverPath)

	if err := o.Store.AppendConversations(ctx, userID, []*models.ConversationEntry{entry}); err != nil {
		return fmt.Errorf("append image entry: %w", err)
	}

	return o.runTurn(ctx, userID, content, sink)
}

// runTurn drives retrieval, intent planning, generation, streaming,
// and the background write for either a text or an image turn; sink is
// nil only in tests that don't need live frames.
func (o *Orchestrator) runTurn(ctx context.Context, userID, userInput string, sink streaming.FrameSink) error {
	var nickname string
	var retrievalResult *retrieval.Result
	var summary string
	var history []*models.ConversationEntry

	var wg sync.WaitGroup
	var nickErr, retrievalErr, ctxErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		summary, history, ctxErr = o.Store.ReadContext(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		nickname, nickErr = o.Store.ReadNickname(ctx, userID)
	}()
	wg.Wait()
	if ctxErr != nil {
		return fmt.Errorf("read context: %w", ctxErr)
	}
	if nickErr != nil {
		log.Printf("[orchestrator] nickname read failed, defaulting: user=%s err=%v", userID, nickErr)
		nickname = "你"
	}
	if nickname == "" {
		nickname = "你"
	}

	formatted := formatHistory(summary, history)

	retrievalResult, retrievalErr = o.Planner.Run(ctx, userID, userInput, formatted)
	if retrievalErr != nil {
		log.Printf("[orchestrator] retrieval planner failed, continuing with empty knowledge: user=%s err=%v", userID, retrievalErr)
		retrievalResult = &retrieval.Result{}
	}

	plan, err := o.IntentPlaner.Plan(ctx, userInput, formatted, retrievalResult.KnowledgeBuffer)
	if err != nil {
		return domain.NewDomainError(domain.KindUpstream, domain.ErrLLMUnavailable, "intent planning failed: "+err.Error())
	}

	items, err := o.Generator.Generate(ctx, plan, userInput, formatted, retrievalResult.KnowledgeBuffer, nickname)
	if err != nil {
		return domain.NewDomainError(domain.KindUpstream, domain.ErrLLMUnavailable, "generation failed: "+err.Error())
	}

	agentEntries, agentContents, err := o.buildAgentEntries(userID, items)
	if err != nil {
		return err
	}

	var bgErr error
	var bgWg sync.WaitGroup
	bgWg.Add(1)
	go func() {
		defer bgWg.Done()
		bgErr = o.backgroundWrite(userID, userInput, agentEntries, agentContents, formatted, retrievalResult.UsedIDs)
	}()

	var streamErr error
	if sink != nil {
		streamErr = o.streamAll(ctx, items, sink)
		if streamErr != nil {
			log.Printf("[orchestrator] stream truncated: user=%s err=%v", userID, streamErr)
		}
	}

	bgWg.Wait()
	if bgErr != nil {
		log.Printf("[orchestrator] background write failed, rolled back: user=%s err=%v", userID, bgErr)
	}

	return streamErr
}

func (o *Orchestrator) buildAgentEntries(userID string, items []generator.Item) ([]*models.ConversationEntry, []string, error) {
	var entries []*models.ConversationEntry
	var contents []string

	for _, item := range items {
		switch item.Type {
		case generator.ItemSay:
			say, err := item.AsSay()
			if err != nil {
				continue
			}
			e := models.NewConversationEntry(o.IDs.GenerateConversationEntryID(), userID, models.EntrySourceAgent, models.ContentTypeText, say.Content).
				WithAgentTextAux(say.Expression, say.Tone)
			entries = append(entries, e)
			contents = append(contents, say.Content)
		case generator.ItemSing:
			sing, err := item.AsSing()
			if err != nil {
				continue
			}
			e := models.NewConversationEntry(o.IDs.GenerateConversationEntryID(), userID, models.EntrySourceAgent, models.ContentTypeSing, fmt.Sprintf("《%s》：%s", sing.SongName, sing.Segment)).
				WithSingAux(sing.SongName, sing.Segment)
			entries = append(entries, e)
			contents = append(contents, e.Content)
		}
	}
	return entries, contents, nil
}

func (o *Orchestrator) streamAll(ctx context.Context, items []generator.Item, sink streaming.FrameSink) error {
	for _, item := range items {
		if err := o.Streamer.StreamItem(ctx, item, sink); err != nil {
			return err
		}
	}
	return nil
}

// backgroundWrite runs on an independent durable handle: append agent
// entries and apply memory-writer commands, committed as one
// transaction. The summarization trigger is checked after that commit
// succeeds, outside the transaction. On failure the whole write rolls
// back, the trigger is not checked, and the already-streamed response
// is not retroactively invalidated.
func (o *Orchestrator) backgroundWrite(userID, userInput string, agentEntries []*models.ConversationEntry, agentContents []string, formattedHistory string, usedIDs []string) error {
	bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var windowCountAfter int
	err := o.TxMgr.WithTransaction(bgCtx, func(txCtx context.Context) error {
		if len(agentEntries) > 0 {
			if err := o.Store.AppendConversations(txCtx, userID, agentEntries); err != nil {
				return fmt.Errorf("append agent entries: %w", err)
			}
		}
		if err := o.Writer.Apply(txCtx, userID, userInput, agentContents, formattedHistory, usedIDs); err != nil {
			return fmt.Errorf("memory writer: %w", err)
		}

		_, history, err := o.Store.ReadContext(txCtx, userID)
		if err == nil {
			windowCountAfter = len(history)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if o.Summarizer.ShouldTrigger(windowCountAfter) {
		o.Summarizer.TriggerAsync(context.Background(), userID)
	}
	return nil
}
