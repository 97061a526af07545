package models

import (
	"time"
)

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one persisted conversation turn. Turns are append-only;
// Metadata may be enriched by the agent that produced the turn but Content
// is never rewritten.
type ChatMessage struct {
	ID        string                 `json:"id" db:"id"`
	WidgetID  string                 `json:"widget_id" db:"widget_id"`
	Role      string                 `json:"role" db:"role"`
	Content   string                 `json:"content" db:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// ConversationState is the conversation snapshot one pipeline invocation
// operates on. Once compaction has triggered, Summary is set and Messages
// holds only the most recent raw turns.
type ConversationState struct {
	Messages []ChatMessage `json:"messages"`
	Summary  string        `json:"summary,omitempty"`
}

// Effective returns the message sequence agents should see: the summary as a
// synthetic system turn (when present) followed by the raw turns.
func (s ConversationState) Effective() []ChatMessage {
	if s.Summary == "" {
		return s.Messages
	}
	out := make([]ChatMessage, 0, len(s.Messages)+1)
	out = append(out, ChatMessage{
		Role:    RoleSystem,
		Content: "[Conversation summary]\n" + s.Summary,
	})
	return append(out, s.Messages...)
}
