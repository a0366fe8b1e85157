package streaming

import (
	"context"
	"encoding/base64"
	"fmt"
	"runtime"

	"github.com/google/uuid"

	"github.com/longregen/alicia/internal/application/generator"
	"github.com/longregen/alicia/internal/ports"
)

// maxSingChunkBytes is the ≤640 KiB ceiling on a single sing-audio
// frame.
const maxSingChunkBytes = 640 * 1024

const singExpression = "唱歌"

// FrameSink receives one frame at a time; returning an error aborts the
// remainder of the stream (e.g. the client disconnected).
type FrameSink func(ctx context.Context, frame Frame) error

// Streamer turns generator output into a sequence of output frames.
type Streamer struct {
	tts     ports.TTSService
	catalog ports.SongCatalog
}

func New(tts ports.TTSService, catalog ports.SongCatalog) *Streamer {
	return &Streamer{tts: tts, catalog: catalog}
}

// StreamItem dispatches a single generator.Item to the matching
// streaming strategy.
func (s *Streamer) StreamItem(ctx context.Context, item generator.Item, sink FrameSink) error {
	switch item.Type {
	case generator.ItemSay:
		say, err := item.AsSay()
		if err != nil {
			return err
		}
		return s.StreamSay(ctx, say, sink)
	case generator.ItemSing:
		sing, err := item.AsSing()
		if err != nil {
			return err
		}
		return s.StreamSing(ctx, sing, sink)
	default:
		return fmt.Errorf("unknown item type: %s", item.Type)
	}
}

// StreamSay splits say.Content into spoken fragments, synthesizes
// speech per fragment, and emits one terminal frame per fragment.
func (s *Streamer) StreamSay(ctx context.Context, say generator.SayParameters, sink FrameSink) error {
	fragments := Split(say.Content)
	if len(fragments) == 0 {
		return nil
	}

	for i, fragment := range fragments {
		speakingText := StripParens(fragment)

		var audioB64 string
		if speakingText != "" {
			result, err := s.tts.Synthesize(ctx, speakingText, say.Tone)
			if err != nil {
				return fmt.Errorf("synthesize fragment %d: %w", i, err)
			}
			audioB64 = base64.StdEncoding.EncodeToString(result.Audio)
		}

		frame := Frame{
			UUID:           uuid.NewString(),
			Text:           fragment,
			Expression:     stringPtr(say.Expression),
			Audio:          audioB64,
			IsFinalPackage: true,
		}
		if err := sink(ctx, frame); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

// StreamSing fetches the segment's lyrics and audio from the catalog
// and emits a lead frame followed by ≤640 KiB audio-only chunks, the
// last carrying is_final_package = true.
func (s *Streamer) StreamSing(ctx context.Context, sing generator.SingParameters, sink FrameSink) error {
	lyrics, audio, err := s.catalog.LyricsAndAudio(sing.SongName, sing.Segment)
	if err != nil {
		return err
	}

	chunks := chunkBytes(audio, maxSingChunkBytes)
	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}
	streamUUID := uuid.NewString()

	leadText := fmt.Sprintf("（唱歌）：《%s》\n%s", sing.SongName, lyrics)
	for i, chunk := range chunks {
		frame := Frame{
			UUID:           streamUUID,
			Audio:          base64.StdEncoding.EncodeToString(chunk),
			IsFinalPackage: i == len(chunks)-1,
		}
		if i == 0 {
			frame.Text = leadText
			frame.Expression = stringPtr(singExpression)
		}
		if err := sink(ctx, frame); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

func chunkBytes(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	var chunks [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}
