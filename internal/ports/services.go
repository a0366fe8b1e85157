package ports

import (
	"context"

	"github.com/longregen/alicia/internal/domain/models"
)

// LLMMessage is one turn in an LLM chat-completion request.
type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMResponse is a non-streaming LLM chat-completion result.
type LLMResponse struct {
	Content string `json:"content"`
}

// LLMService is the out-of-scope language-model collaborator; only the
// contract this runtime needs is declared here.
type LLMService interface {
	// Chat returns the model's free-form text reply.
	Chat(ctx context.Context, messages []LLMMessage) (*LLMResponse, error)
	// ChatJSON instructs the model to reply with JSON only (used by the
	// Retrieval Planner, Memory Writer, Planner, and Main Generator).
	ChatJSON(ctx context.Context, messages []LLMMessage) (*LLMResponse, error)
}

// EmbeddingResult is the output of the embedding collaborator.
type EmbeddingResult struct {
	Embedding  []float32
	Model      string
	Dimensions int
}

// EmbeddingService is the out-of-scope embedding collaborator.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) (*EmbeddingResult, error)
	GetDimensions() int
}

// TTSResult is one synthesized speech clip.
type TTSResult struct {
	Audio  []byte
	Format string
}

// TTSService is the out-of-scope speech-synthesis collaborator.
type TTSService interface {
	Synthesize(ctx context.Context, text, tone string) (*TTSResult, error)
}

// VisionService is the out-of-scope vision-describer collaborator used
// to produce an initial description for image turns.
type VisionService interface {
	Describe(ctx context.Context, jpeg []byte) (string, error)
}

// SongCatalog is the read-only, in-memory index over the song directory
// tree loaded at startup.
type SongCatalog interface {
	ByTitle(title string) (*models.Song, bool)
	FuzzyByTitle(query string) (*models.Song, bool)
	BySegmentText(snippet string) []*models.Song
	ListSingable(max int) []*models.Song
	CanSing(title string) bool
	LyricsAndAudio(songTitle, segmentDescription string) (lyrics string, audio []byte, err error)
}

// TokenValidator is the out-of-scope authentication collaborator:
// given {username, token}, either return the opaque user-id or reject.
type TokenValidator interface {
	Validate(ctx context.Context, username, token string) (userID string, err error)
}
