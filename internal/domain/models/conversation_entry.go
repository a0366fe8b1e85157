package models

import (
	"time"
)

// EntrySource identifies who produced a ConversationEntry.
type EntrySource string

const (
	EntrySourceUser   EntrySource = "user"
	EntrySourceAgent  EntrySource = "agent"
	EntrySourceSystem EntrySource = "system"
)

// ContentType is the canonical content-type set for ConversationEntry.
// Legacy "picture" values from older producers are read as ContentTypeImage.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeSing  ContentType = "sing"
	ContentTypeImage ContentType = "image"
	ContentTypeCmd   ContentType = "cmd"

	legacyContentTypePicture = "picture"
)

// NormalizeContentType maps legacy content-type spellings onto the
// canonical set; see spec Open Question on PICTURE vs IMAGE.
func NormalizeContentType(raw string) ContentType {
	if raw == legacyContentTypePicture {
		return ContentTypeImage
	}
	return ContentType(raw)
}

// ImageAuxData is the aux-data payload for an image ConversationEntry.
type ImageAuxData struct {
	ClientPath string `json:"client_path"`
	ServerPath string `json:"server_path"`
}

// SingAuxData is the aux-data payload for a sing ConversationEntry.
type SingAuxData struct {
	Song    string `json:"song"`
	Segment string `json:"segment"`
}

// AgentTextAuxData is the aux-data payload for an agent text ConversationEntry.
type AgentTextAuxData struct {
	Expression string `json:"expression,omitempty"`
	Tone       string `json:"tone,omitempty"`
}

// ConversationEntry is one append-only row in a user's durable log.
type ConversationEntry struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Timestamp   time.Time   `json:"timestamp"`
	Source      EntrySource `json:"source"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content"`
	AuxData     map[string]any `json:"aux_data,omitempty"`
}

func NewConversationEntry(id, userID string, source EntrySource, contentType ContentType, content string) *ConversationEntry {
	return &ConversationEntry{
		ID:          id,
		UserID:      userID,
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		Source:      source,
		ContentType: contentType,
		Content:     content,
	}
}

func (e *ConversationEntry) WithImageAux(clientPath, serverPath string) *ConversationEntry {
	e.AuxData = map[string]any{
		"client_path": clientPath,
		"server_path": serverPath,
	}
	return e
}

func (e *ConversationEntry) WithSingAux(song, segment string) *ConversationEntry {
	e.AuxData = map[string]any{
		"song":    song,
		"segment": segment,
	}
	return e
}

func (e *ConversationEntry) WithAgentTextAux(expression, tone string) *ConversationEntry {
	e.AuxData = map[string]any{
		"expression": expression,
		"tone":       tone,
	}
	return e
}

func (e *ConversationEntry) IsFromUser() bool {
	return e.Source == EntrySourceUser
}

func (e *ConversationEntry) IsFromAgent() bool {
	return e.Source == EntrySourceAgent
}
