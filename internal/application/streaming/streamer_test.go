package streaming

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/longregen/alicia/internal/application/generator"
	"github.com/longregen/alicia/internal/domain/models"
	"github.com/longregen/alicia/internal/ports"
)

type fakeTTS struct {
	fail bool
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, tone string) (*ports.TTSResult, error) {
	if f.fail {
		return nil, errors.New("tts unavailable")
	}
	return &ports.TTSResult{Audio: []byte("audio:" + text), Format: "wav"}, nil
}

type fakeCatalog struct {
	lyrics string
	audio  []byte
	err    error
}

func (c *fakeCatalog) ByTitle(title string) (*models.Song, bool)      { return nil, false }
func (c *fakeCatalog) FuzzyByTitle(query string) (*models.Song, bool) { return nil, false }
func (c *fakeCatalog) BySegmentText(snippet string) []*models.Song    { return nil }
func (c *fakeCatalog) ListSingable(max int) []*models.Song            { return nil }
func (c *fakeCatalog) CanSing(title string) bool                      { return true }
func (c *fakeCatalog) LyricsAndAudio(songTitle, segmentDescription string) (string, []byte, error) {
	return c.lyrics, c.audio, c.err
}

func sayItem(content, expression, tone string) generator.Item {
	payload, _ := json.Marshal(generator.SayParameters{Content: content, Expression: expression, Tone: tone})
	return generator.Item{Type: generator.ItemSay, Parameters: payload}
}

func singItem(song, segment string) generator.Item {
	payload, _ := json.Marshal(generator.SingParameters{SongName: song, Segment: segment})
	return generator.Item{Type: generator.ItemSing, Parameters: payload}
}

func TestStreamSay_EmitsOneFinalFramePerFragment(t *testing.T) {
	s := New(&fakeTTS{}, &fakeCatalog{})

	var frames []Frame
	err := s.StreamSay(context.Background(), generator.SayParameters{
		Content: "今天天气真不错。我们出去走走吧！", Expression: "开心", Tone: "愉悦",
	}, func(_ context.Context, f Frame) error {
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) == 0 {
		t.Fatal("expected at least one frame")
	}
	for _, f := range frames {
		if !f.IsFinalPackage {
			t.Errorf("say fragment frame must have is_final_package=true")
		}
		if f.Expression == nil || *f.Expression != "开心" {
			t.Errorf("expected expression 开心, got %v", f.Expression)
		}
	}
}

func TestStreamSay_TTSFailureAborts(t *testing.T) {
	s := New(&fakeTTS{fail: true}, &fakeCatalog{})

	err := s.StreamSay(context.Background(), generator.SayParameters{
		Content: "你好。", Expression: "平静", Tone: "平和",
	}, func(_ context.Context, f Frame) error { return nil })
	if err == nil {
		t.Fatal("expected error when TTS fails")
	}
}

func TestStreamSing_LeadFrameCarriesLyricsAndExpression(t *testing.T) {
	audio := make([]byte, maxSingChunkBytes+10)
	s := New(&fakeTTS{}, &fakeCatalog{lyrics: "段落1歌词", audio: audio})

	var frames []Frame
	err := s.StreamSing(context.Background(), generator.SingParameters{SongName: "光与影的对白", Segment: "段落1"},
		func(_ context.Context, f Frame) error {
			frames = append(frames, f)
			return nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 chunks for audio slightly over the cap, got %d", len(frames))
	}
	if frames[0].Expression == nil || *frames[0].Expression != singExpression {
		t.Errorf("expected lead frame expression %q, got %v", singExpression, frames[0].Expression)
	}
	wantPrefix := "（唱歌）：《光与影的对白》\n段落1歌词"
	if frames[0].Text != wantPrefix {
		t.Errorf("unexpected lead text: %q", frames[0].Text)
	}
	if frames[1].Text != "" || frames[1].Expression != nil {
		t.Errorf("expected trailing chunk to carry no text/expression, got %+v", frames[1])
	}
	if !frames[len(frames)-1].IsFinalPackage {
		t.Errorf("expected last chunk to be final")
	}
	if frames[0].UUID != frames[1].UUID {
		t.Errorf("expected all chunks of one sing item to share a uuid")
	}
}

func TestStreamItem_DispatchesByType(t *testing.T) {
	s := New(&fakeTTS{}, &fakeCatalog{lyrics: "l", audio: []byte("a")})

	var gotSay, gotSing bool
	sink := func(_ context.Context, f Frame) error {
		if f.Expression != nil && *f.Expression == singExpression {
			gotSing = true
		} else {
			gotSay = true
		}
		return nil
	}

	if err := s.StreamItem(context.Background(), sayItem("你好。", "平静", "平和"), sink); err != nil {
		t.Fatalf("say dispatch failed: %v", err)
	}
	if err := s.StreamItem(context.Background(), singItem("光与影的对白", "段落1"), sink); err != nil {
		t.Fatalf("sing dispatch failed: %v", err)
	}
	if !gotSay || !gotSing {
		t.Errorf("expected both say and sing frames, gotSay=%v gotSing=%v", gotSay, gotSing)
	}
}

func TestStreamSing_AudioDecodableBase64(t *testing.T) {
	s := New(&fakeTTS{}, &fakeCatalog{lyrics: "l", audio: []byte("tiny-clip")})

	var frame Frame
	err := s.StreamSing(context.Background(), generator.SingParameters{SongName: "x", Segment: "y"}, func(_ context.Context, f Frame) error {
		frame = f
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(frame.Audio)
	if err != nil {
		t.Fatalf("audio is not valid base64: %v", err)
	}
	if string(decoded) != "tiny-clip" {
		t.Errorf("decoded audio = %q, want %q", decoded, "tiny-clip")
	}
}
