package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/longregen/alicia/internal/adapters/circuitbreaker"
	"github.com/longregen/alicia/internal/ports"
)

const (
	defaultTTSEndpoint = "http://localhost:8000"
	speechPath         = "/audio/speech"
	TTSTimeout         = 30 * time.Second
	defaultVoice       = "af_sarah"
)

// TTSAdapter is an OpenAI-compatible speech-synthesis client. Tone maps
// to voice preset via an injected table; tones with no entry fall back
// to defaultVoice.
type TTSAdapter struct {
	client      *Client
	model       string
	voiceByTone map[string]string
	breaker     *circuitbreaker.CircuitBreaker
}

func NewTTSAdapter(endpoint, model string, voiceByTone map[string]string) *TTSAdapter {
	if endpoint == "" {
		endpoint = defaultTTSEndpoint
	}
	if model == "" {
		model = "kokoro"
	}

	return &TTSAdapter{
		client:      NewClient(endpoint),
		model:       model,
		voiceByTone: voiceByTone,
		breaker:     circuitbreaker.New(5, 30*time.Second),
	}
}

type ttsRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format,omitempty"`
}

func (t *TTSAdapter) Synthesize(ctx context.Context, text, tone string) (*ports.TTSResult, error) {
	var result *ports.TTSResult
	err := t.breaker.Execute(func() error {
		var err error
		result, err = t.doSynthesize(ctx, text, tone)
		return err
	})
	return result, err
}

func (t *TTSAdapter) doSynthesize(ctx context.Context, text, tone string) (*ports.TTSResult, error) {
	if text == "" {
		return nil, fmt.Errorf("text is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, TTSTimeout)
	defer cancel()

	voice := defaultVoice
	if v, ok := t.voiceByTone[tone]; ok && v != "" {
		voice = v
	}

	req := ttsRequest{
		Model:          t.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "mp3",
	}

	audioData, err := t.client.PostJSONRaw(ctx, speechPath, req)
	if err != nil {
		return nil, fmt.Errorf("TTS synthesis failed: %w", err)
	}

	return &ports.TTSResult{Audio: audioData, Format: req.ResponseFormat}, nil
}
