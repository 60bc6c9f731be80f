package chat

import (
	"errors"
	"time"

	"github.com/ziadkadry99/workmate/internal/llm"
)

var (
	// ErrNotFound is returned when a conversation does not exist or belongs
	// to another user.
	ErrNotFound = errors.New("conversation not found")
	// ErrEmptyMessage is returned when a send carries no content.
	ErrEmptyMessage = errors.New("message content is required")
)

// Metadata is the free-form JSON column on a conversation.
type Metadata struct {
	Summary          string     `json:"summary,omitempty"`
	LastSummarizedAt *time.Time `json:"last_summarized_at,omitempty"`
	Preview          string     `json:"preview,omitempty"`
}

// Conversation is a chat thread owned by one user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProjectID string    `json:"project_id,omitempty"`
	Title     string    `json:"title"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageMetadata is the JSON column on a message.
type MessageMetadata struct {
	// Error marks a synthesized assistant bubble for a failed send.
	Error    bool   `json:"error,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Message is immutable once stored.
type Message struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	ConversationID string          `json:"conversation_id"`
	Role           llm.Role        `json:"role"`
	Content        string          `json:"content"`
	Metadata       MessageMetadata `json:"metadata"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Synthesized reports whether the message was generated locally in place of
// a model reply: an error bubble or the no-backend fallback text. Such
// messages are shown to the user but never sent back to the model.
func (m Message) Synthesized() bool {
	return m.Metadata.Error || m.Metadata.Fallback
}

// conversational returns msgs without synthesized replies.
func conversational(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.Synthesized() {
			out = append(out, m)
		}
	}
	return out
}

// Importance is the heuristic relevance record computed for a message.
type Importance struct {
	Score               int      `json:"score"`
	MatchedKeywords     []string `json:"matched_keywords"`
	IsKeyDecision       bool     `json:"is_key_decision"`
	IsRequirement       bool     `json:"is_requirement"`
	IsActionItem        bool     `json:"is_action_item"`
	IsHighPriority      bool     `json:"is_high_priority"`
	IsTechnicalDecision bool     `json:"is_technical_decision"`
}

// ScoredMessage pairs a message with its importance. Never persisted.
type ScoredMessage struct {
	Message
	Importance Importance `json:"importance"`
}
