package orchestrator

import (
	"context"
	"testing"

	"github.com/longregen/alicia/internal/application/generator"
	"github.com/longregen/alicia/internal/application/intent"
	"github.com/longregen/alicia/internal/application/memory"
	"github.com/longregen/alicia/internal/application/memorywriter"
	"github.com/longregen/alicia/internal/application/retrieval"
	"github.com/longregen/alicia/internal/application/streaming"
	"github.com/longregen/alicia/internal/application/summarizer"
	"github.com/longregen/alicia/internal/application/tools"
	"github.com/longregen/alicia/internal/domain"
	"github.com/longregen/alicia/internal/domain/models"
)

func newTestOrchestrator(t *testing.T, llmResponse string) (*Orchestrator, *fakeEntries) {
	t.Helper()

	u := models.NewUser("u_1", "xiaoming", "hash")
	users := newFakeUsers(u)
	entries := newFakeEntries()
	store := memory.New(users, entries, noopKB{}, noopMemories{}, noopMemoryUpdates{}, newFakeCache(), noopEmbeddings{}, &seqIDs{}, 300, 0.75)

	llm := &fakeLLM{response: llmResponse}
	registry := tools.BuildStandardRegistry(store, fakeCatalog{})
	planner := retrieval.New(store, registry, llm)
	intentPlanner := intent.New(llm, fakeCatalog{})
	gen := generator.New(llm, []string{"平静", "开心"}, []string{"平和", "愉悦"})
	streamer := streaming.New(fakeTTS{}, fakeCatalog{})
	writer := memorywriter.New(store, llm)
	summ := summarizer.New(store, llm, 40, 10)

	o := &Orchestrator{
		Tokens:       &fakeTokens{userID: "u_1"},
		Store:        store,
		Entries:      entries,
		TxMgr:        fakeTxMgr{},
		IDs:          &seqIDs{},
		Planner:      planner,
		IntentPlaner: intentPlanner,
		Generator:    gen,
		Streamer:     streamer,
		Writer:       writer,
		Summarizer:   summ,
		Vision:       &fakeVision{description: "一只猫"},
		ImagesRoot:   t.TempDir(),
	}
	return o, entries
}

func TestHandleText_RejectsEmptyInput(t *testing.T) {
	o, _ := newTestOrchestrator(t, `{"response":[{"type":"say","parameters":{"content":"你好","expression":"平静","tone":"平和"}}]}`)

	err := o.HandleText(context.Background(), "u_1", "", nil)
	if err == nil {
		t.Fatal("expected error for empty text")
	}
	if domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandleText_StreamsFramesAndPersistsTurn(t *testing.T) {
	o, entries := newTestOrchestrator(t, `{"response":[{"type":"say","parameters":{"content":"你好呀。","expression":"开心","tone":"愉悦"}}]}`)

	var frames []streaming.Frame
	err := o.HandleText(context.Background(), "u_1", "你好", func(_ context.Context, f streaming.Frame) error {
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) == 0 {
		t.Fatal("expected at least one streamed frame")
	}

	stored, _ := entries.ListByUser(context.Background(), "u_1", 0)
	var sawUser, sawAgent bool
	for _, e := range stored {
		if e.Source == models.EntrySourceUser {
			sawUser = true
		}
		if e.Source == models.EntrySourceAgent {
			sawAgent = true
		}
	}
	if !sawUser || !sawAgent {
		t.Errorf("expected both a user and an agent entry persisted, got %d entries", len(stored))
	}
}

func TestHistory_SlicesFromMostRecentWhenEndIsNegativeOne(t *testing.T) {
	o, entries := newTestOrchestrator(t, `{"response":[]}`)

	for i := 0; i < 5; i++ {
		e := models.NewConversationEntry("e", "u_1", models.EntrySourceUser, models.ContentTypeText, "msg")
		_ = entries.Append(context.Background(), []*models.ConversationEntry{e})
	}

	page, err := o.History(context.Background(), "u_1", -1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page.Entries))
	}
	if page.Total != 5 {
		t.Errorf("expected total=5, got %d", page.Total)
	}
}

func TestFetchImage_RejectsOtherUsersImage(t *testing.T) {
	o, entries := newTestOrchestrator(t, `{"response":[]}`)

	e := models.NewConversationEntry("img_1", "someone_else", models.EntrySourceUser, models.ContentTypeImage, "a photo").
		WithImageAux("client.jpg", "/tmp/doesnotexist.jpg")
	_ = entries.Append(context.Background(), []*models.ConversationEntry{e})

	_, _, err := o.FetchImage(context.Background(), "u_1", "img_1")
	if err == nil {
		t.Fatal("expected error fetching another user's image")
	}
}
