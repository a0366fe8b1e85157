// Package generator turns an intent plan and turn context into a
// structured reply list of "say" and "sing" items the streamer frames
// and streams to the client.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/longregen/alicia/internal/application/intent"
	"github.com/longregen/alicia/internal/application/retrieval"
	"github.com/longregen/alicia/internal/ports"
)

type ItemType string

const (
	ItemSay  ItemType = "say"
	ItemSing ItemType = "sing"
)

// SayParameters is the payload of a "say" item.
type SayParameters struct {
	Content    string `json:"content"`
	Expression string `json:"expression"`
	Tone       string `json:"tone"`
}

// SingParameters is the payload of a "sing" item.
type SingParameters struct {
	SongName string `json:"song_name"`
	Segment  string `json:"segment"`
}

// Item is one entry of the generator's reply list.
type Item struct {
	Type       ItemType        `json:"type"`
	Parameters json.RawMessage `json:"parameters"`
}

// AsSay decodes the item's parameters as SayParameters.
func (i Item) AsSay() (SayParameters, error) {
	var p SayParameters
	err := json.Unmarshal(i.Parameters, &p)
	return p, err
}

// AsSing decodes the item's parameters as SingParameters.
func (i Item) AsSing() (SingParameters, error) {
	var p SingParameters
	err := json.Unmarshal(i.Parameters, &p)
	return p, err
}

type replyEnvelope struct {
	Response []Item `json:"response"`
}

// Generator produces the model's structured reply list for one turn.
type Generator struct {
	llm                ports.LLMService
	allowedExpressions []string
	allowedTones       []string
}

func New(llm ports.LLMService, allowedExpressions, allowedTones []string) *Generator {
	return &Generator{llm: llm, allowedExpressions: allowedExpressions, allowedTones: allowedTones}
}

// Generate returns the turn's reply list in order. sing items may
// appear only when plan permits; expression/tone are drawn from the
// allowed sets, validated and clamped to the defaults on violation.
func (g *Generator) Generate(ctx context.Context, plan *intent.PlanningStep, userInput, formattedHistory string, knowledgeBuffer []string, nickname string) ([]Item, error) {
	messages := []ports.LLMMessage{
		{Role: "system", Content: g.systemPrompt(plan)},
		{Role: "user", Content: fmt.Sprintf("History:\n%s\n\nKnowledge:\n%s\n\nNickname for the user: %s\n\nUser message: %s", formattedHistory, strings.Join(knowledgeBuffer, "\n"), nickname, userInput)},
	}

	resp, err := g.llm.ChatJSON(ctx, messages)
	if err != nil {
		return nil, err
	}

	var env replyEnvelope
	if err := json.Unmarshal([]byte(retrieval.ExtractJSON(resp.Content)), &env); err != nil {
		return nil, fmt.Errorf("parse reply envelope: %w", err)
	}

	return g.sanitize(env.Response, plan), nil
}

func (g *Generator) systemPrompt(plan *intent.PlanningStep) string {
	var b strings.Builder
	b.WriteString("Reply with JSON only: {\"response\": [{\"type\": \"say\", \"parameters\": {\"content\":..., \"expression\":..., \"tone\":...}} | {\"type\": \"sing\", \"parameters\": {\"song_name\":..., \"segment\":...}}]}.\n")
	fmt.Fprintf(&b, "Reply intensity: %s.\n", plan.ReplyIntensity)
	if plan.SingingAction == intent.SingingNone {
		b.WriteString("Do not include any \"sing\" items.\n")
	} else {
		fmt.Fprintf(&b, "You may sing %q, segment %q, with lyrics:\n%s\n", plan.Song, plan.Segment, plan.Lyrics)
	}
	fmt.Fprintf(&b, "Allowed expressions: %s.\n", strings.Join(g.allowedExpressions, ", "))
	fmt.Fprintf(&b, "Allowed tones: %s.\n", strings.Join(g.allowedTones, ", "))
	return b.String()
}

// sanitize drops sing items when the plan forbids singing and clamps
// expression/tone to the allowed sets.
func (g *Generator) sanitize(items []Item, plan *intent.PlanningStep) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		switch item.Type {
		case ItemSing:
			if plan.SingingAction == intent.SingingNone {
				log.Printf("[generator.Generator] dropping sing item, plan forbids singing")
				continue
			}
			out = append(out, item)
		case ItemSay:
			say, err := item.AsSay()
			if err != nil {
				log.Printf("[generator.Generator] dropping malformed say item: %v", err)
				continue
			}
			say.Expression = clampToAllowed(say.Expression, g.allowedExpressions)
			say.Tone = clampToAllowed(say.Tone, g.allowedTones)
			payload, err := json.Marshal(say)
			if err != nil {
				continue
			}
			out = append(out, Item{Type: ItemSay, Parameters: payload})
		default:
			log.Printf("[generator.Generator] dropping item of unknown type %q", item.Type)
		}
	}
	return out
}

func clampToAllowed(value string, allowed []string) string {
	for _, a := range allowed {
		if a == value {
			return value
		}
	}
	if len(allowed) > 0 {
		return allowed[0]
	}
	return value
}
