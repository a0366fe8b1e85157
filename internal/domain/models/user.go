package models

import (
	"time"
)

// User is a single registered person with a durable conversation history,
// a rolling summary of older turns, and an opaque auth token.
type User struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"display_name"`
	CredentialHash string     `json:"-"`
	Nickname       string     `json:"nickname"`
	Description    string     `json:"description,omitempty"`
	AuthToken      string     `json:"-"`
	SummaryText    string     `json:"summary_text,omitempty"`
	WindowCount    int        `json:"window_count"`
	TotalTurns     int        `json:"total_turns"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func NewUser(id, displayName, credentialHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:             id,
		DisplayName:    displayName,
		CredentialHash: credentialHash,
		Nickname:       "你",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IssueToken replaces the user's auth token; a user holds at most one
// valid token at a time.
func (u *User) IssueToken(token string) {
	u.AuthToken = token
	now := time.Now().UTC()
	u.LastLoginAt = &now
	u.UpdatedAt = now
}

func (u *User) SetNickname(nickname string) {
	u.Nickname = nickname
	u.UpdatedAt = time.Now().UTC()
}

// RecordTurns bumps total-turns and working-window-count by the number
// of entries just appended. total-turns always equals the number of
// ConversationEntry rows for this user.
func (u *User) RecordTurns(count int) {
	u.TotalTurns += count
	u.WindowCount += count
	u.UpdatedAt = time.Now().UTC()
}

// ReplaceSummary installs a new rolling summary and resets the working
// window to the tail kept verbatim alongside it.
func (u *User) ReplaceSummary(summary string, windowCount int) {
	u.SummaryText = summary
	u.WindowCount = windowCount
	u.UpdatedAt = time.Now().UTC()
}

// NeedsSummarization reports whether the working window has exceeded
// the configured raw-context-limit.
func (u *User) NeedsSummarization(rawContextLimit int) bool {
	return u.WindowCount > rawContextLimit
}
