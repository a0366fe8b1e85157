package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/longregen/alicia/internal/domain/models"
	"github.com/longregen/alicia/internal/ports"
)

type fakeLLM struct {
	response string
}

func (f *fakeLLM) Chat(ctx context.Context, messages []ports.LLMMessage) (*ports.LLMResponse, error) {
	return &ports.LLMResponse{Content: f.response}, nil
}

func (f *fakeLLM) ChatJSON(ctx context.Context, messages []ports.LLMMessage) (*ports.LLMResponse, error) {
	return &ports.LLMResponse{Content: f.response}, nil
}

type fakeCatalog struct {
	lyrics string
	err    error
}

func (c *fakeCatalog) ByTitle(title string) (*models.Song, bool)      { return nil, false }
func (c *fakeCatalog) FuzzyByTitle(query string) (*models.Song, bool) { return nil, false }
func (c *fakeCatalog) BySegmentText(snippet string) []*models.Song    { return nil }
func (c *fakeCatalog) ListSingable(max int) []*models.Song            { return nil }
func (c *fakeCatalog) CanSing(title string) bool                      { return c.err == nil }
func (c *fakeCatalog) LyricsAndAudio(songTitle, segmentDescription string) (string, []byte, error) {
	if c.err != nil {
		return "", nil, c.err
	}
	return c.lyrics, []byte("audio"), nil
}

func TestPlan_DefaultsOnMalformedJSON(t *testing.T) {
	p := New(&fakeLLM{response: "not json"}, &fakeCatalog{})

	step, err := p.Plan(context.Background(), "你好", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.ReplyIntensity != IntensityNormal || step.SingingAction != SingingNone {
		t.Errorf("expected default normal/none, got %+v", step)
	}
}

func TestPlan_ResolvesLyricsWhenSingingChosen(t *testing.T) {
	llm := &fakeLLM{response: `{"reply_intensity":"normal","singing_action":"perform","song":"光与影的对白","segment":"段落1"}`}
	p := New(llm, &fakeCatalog{lyrics: "段落1歌词"})

	step, err := p.Plan(context.Background(), "唱首歌", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.SingingAction != SingingPerform {
		t.Errorf("expected singing action perform, got %v", step.SingingAction)
	}
	if step.Lyrics != "段落1歌词" {
		t.Errorf("expected resolved lyrics, got %q", step.Lyrics)
	}
}

func TestPlan_DowngradesWhenSongNotFound(t *testing.T) {
	llm := &fakeLLM{response: `{"reply_intensity":"normal","singing_action":"perform","song":"没有这首歌","segment":"段落1"}`}
	p := New(llm, &fakeCatalog{err: errors.New("not found")})

	step, err := p.Plan(context.Background(), "唱首歌", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.SingingAction != SingingNone {
		t.Errorf("expected downgrade to none, got %v", step.SingingAction)
	}
	if step.Song != "" || step.Segment != "" {
		t.Errorf("expected song/segment cleared, got song=%q segment=%q", step.Song, step.Segment)
	}
}

func TestPlan_DefaultsReplyIntensityWhenOmitted(t *testing.T) {
	llm := &fakeLLM{response: `{"singing_action":"none"}`}
	p := New(llm, &fakeCatalog{})

	step, err := p.Plan(context.Background(), "嗯", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.ReplyIntensity != IntensityNormal {
		t.Errorf("expected default normal intensity, got %v", step.ReplyIntensity)
	}
}
