// Package intent decides reply intensity and singing action for the
// current turn, resolving the literal lyrics of any chosen song
// segment at plan time so the generator never has to reach into the
// catalog itself.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/longregen/alicia/internal/application/retrieval"
	"github.com/longregen/alicia/internal/ports"
)

type ReplyIntensity string

const (
	IntensityNormal  ReplyIntensity = "normal"
	IntensitySerious ReplyIntensity = "serious"
)

type SingingAction string

const (
	SingingNone    SingingAction = "none"
	SingingPropose SingingAction = "propose"
	SingingPerform SingingAction = "perform"
)

// PlanningStep is the planner's output, consumed by the generator.
type PlanningStep struct {
	ReplyIntensity ReplyIntensity `json:"reply_intensity"`
	SingingAction  SingingAction  `json:"singing_action"`
	Song           string         `json:"song,omitempty"`
	Segment        string         `json:"segment,omitempty"`
	Lyrics         string         `json:"lyrics,omitempty"`
}

// Planner decides the reply intensity and singing action for a turn.
type Planner struct {
	llm     ports.LLMService
	catalog ports.SongCatalog
}

func New(llm ports.LLMService, catalog ports.SongCatalog) *Planner {
	return &Planner{llm: llm, catalog: catalog}
}

type modelPlan struct {
	ReplyIntensity ReplyIntensity `json:"reply_intensity"`
	SingingAction  SingingAction  `json:"singing_action"`
	Song           string         `json:"song,omitempty"`
	Segment        string         `json:"segment,omitempty"`
}

// Plan asks the language model for intent, then (when the model chose
// to propose or perform a song) fetches that segment's literal lyrics
// from the catalog.
func (p *Planner) Plan(ctx context.Context, userInput, formattedHistory string, knowledgeBuffer []string) (*PlanningStep, error) {
	messages := []ports.LLMMessage{
		{Role: "system", Content: "Reply with JSON only: {\"reply_intensity\": \"normal\"|\"serious\", \"singing_action\": \"none\"|\"propose\"|\"perform\", \"song\": ..., \"segment\": ...}. song/segment are required only when singing_action is not \"none\"."},
		{Role: "user", Content: fmt.Sprintf("History:\n%s\n\nKnowledge:\n%s\n\nUser message: %s", formattedHistory, strings.Join(knowledgeBuffer, "\n"), userInput)},
	}

	resp, err := p.llm.ChatJSON(ctx, messages)
	if err != nil {
		return nil, err
	}

	var mp modelPlan
	if err := json.Unmarshal([]byte(retrieval.ExtractJSON(resp.Content)), &mp); err != nil {
		log.Printf("[intent.Planner] plan JSON parse failed, defaulting to normal/none: %v", err)
		return &PlanningStep{ReplyIntensity: IntensityNormal, SingingAction: SingingNone}, nil
	}

	step := &PlanningStep{ReplyIntensity: mp.ReplyIntensity, SingingAction: mp.SingingAction, Song: mp.Song, Segment: mp.Segment}
	if step.ReplyIntensity == "" {
		step.ReplyIntensity = IntensityNormal
	}
	if step.SingingAction == "" {
		step.SingingAction = SingingNone
	}

	if step.SingingAction != SingingNone && step.Song != "" && step.Segment != "" {
		lyrics, _, err := p.catalog.LyricsAndAudio(step.Song, step.Segment)
		if err != nil {
			log.Printf("[intent.Planner] chosen song/segment not found, downgrading to no singing: song=%s segment=%s err=%v", step.Song, step.Segment, err)
			step.SingingAction = SingingNone
			step.Song, step.Segment = "", ""
		} else {
			step.Lyrics = lyrics
		}
	}

	return step, nil
}
