package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ziadkadry99/workmate/internal/llm"
	"github.com/ziadkadry99/workmate/internal/logger"
)

// DefaultSummarizeEvery is the message-count checkpoint interval.
const DefaultSummarizeEvery = 20

// ShouldSummarize reports whether count is a summarization checkpoint.
func ShouldSummarize(count, every int) bool {
	if every <= 0 {
		every = DefaultSummarizeEvery
	}
	return count > 0 && count%every == 0
}

// Summarizer compresses a conversation's history into its metadata.
type Summarizer struct {
	store  *Store
	sender Sender
	log    *logger.Logger
	now    func() time.Time
}

// NewSummarizer creates a summarizer that talks to the model through sender.
func NewSummarizer(store *Store, sender Sender, log *logger.Logger) *Summarizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Summarizer{
		store:  store,
		sender: sender,
		log:    log.With("service", "Summarizer"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// MaybeSummarize summarizes the conversation and logs any failure instead of
// returning it.
func (s *Summarizer) MaybeSummarize(ctx context.Context, conversationID string) {
	if _, err := s.Summarize(ctx, conversationID); err != nil {
		s.log.Warn("summarization failed", "conversation_id", conversationID, "error", err)
	}
}

// Summarize builds the summary prompt over the full history, sends it as a
// single-turn request and stores the result. Error bubbles and fallback text
// are left out of the prompt. It returns the summary, or "" when there was
// nothing to summarize.
func (s *Summarizer) Summarize(ctx context.Context, conversationID string) (string, error) {
	messages, err := s.store.Messages(ctx, conversationID)
	if err != nil {
		return "", err
	}
	messages = conversational(messages)
	if len(messages) == 0 {
		return "", nil
	}

	reply, err := s.sender.Exchange(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: BuildSummaryPrompt(messages)},
	})
	if err != nil {
		return "", fmt.Errorf("requesting summary: %w", err)
	}
	if reply.Fallback {
		return "", fmt.Errorf("requesting summary: no model backend reachable")
	}
	summary := strings.TrimSpace(reply.Content)
	if summary == "" {
		return "", fmt.Errorf("requesting summary: empty reply")
	}

	at := s.now()
	err = s.store.UpdateMetadata(ctx, conversationID, func(m *Metadata) {
		m.Summary = summary
		m.LastSummarizedAt = &at
	})
	if err != nil {
		return "", fmt.Errorf("storing summary: %w", err)
	}
	s.log.Info("conversation summarized", "conversation_id", conversationID, "messages", len(messages))
	return summary, nil
}
