// Package chat stores conversations and decides what history accompanies each
// new message sent to the language model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/workmate/internal/cache"
	"github.com/ziadkadry99/workmate/internal/gateway"
	"github.com/ziadkadry99/workmate/internal/llm"
	"github.com/ziadkadry99/workmate/internal/logger"
)

// Sender delivers an assembled context to the model.
type Sender interface {
	Exchange(ctx context.Context, messages []llm.Message) (*gateway.Reply, error)
}

const (
	recentConversationsLimit = 20
	recentConversationsTTL   = 5 * time.Minute
)

// RecentKey is the cache key for a user's recent conversation list.
func RecentKey(userID string) string {
	return cache.Key("conversations", userID)
}

// Config tunes the chat service.
type Config struct {
	MaxContextTokens int
	RecentWindow     int
	SummarizeEvery   int
}

// Service runs the send-message flow.
type Service struct {
	store      *Store
	assembler  *Assembler
	summarizer *Summarizer
	sender     Sender
	cache      *cache.Cache
	every      int
	log        *logger.Logger

	// background tracks summarization and titling goroutines.
	background sync.WaitGroup
}

// NewService wires a chat service.
func NewService(store *Store, sender Sender, c *cache.Cache, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if c == nil {
		c = cache.New(cache.Config{}, log)
	}
	every := cfg.SummarizeEvery
	if every <= 0 {
		every = DefaultSummarizeEvery
	}
	return &Service{
		store:      store,
		assembler:  NewAssembler(store, cfg.MaxContextTokens, cfg.RecentWindow, log),
		summarizer: NewSummarizer(store, sender, log),
		sender:     sender,
		cache:      c,
		every:      every,
		log:        log.With("service", "Chat"),
	}
}

// Store exposes the underlying store.
func (s *Service) Store() *Store { return s.store }

// Assembler exposes the context assembler.
func (s *Service) Assembler() *Assembler { return s.assembler }

// SendRequest is one user turn.
type SendRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	Content        string `json:"content"`
}

// SendResult is what a turn produced.
type SendResult struct {
	Conversation     *Conversation `json:"conversation"`
	UserMessage      *Message      `json:"user_message"`
	AssistantMessage *Message      `json:"assistant_message"`
	ContextMessages  int           `json:"context_messages"`
	ContextTokens    int           `json:"context_tokens"`
}

// SendMessage stores the user's message, asks the model with assembled
// context and stores the reply. Gateway failures become an assistant-role
// error message rather than an error return; only storage failures are
// returned.
func (s *Service) SendMessage(ctx context.Context, userID string, req SendRequest) (*SendResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	var conv *Conversation
	var err error
	firstExchange := false
	if req.ConversationID == "" {
		conv, err = s.store.CreateConversation(ctx, userID, req.ProjectID, "")
		if err != nil {
			return nil, err
		}
		firstExchange = true
	} else {
		if conv, err = s.ownedConversation(ctx, userID, req.ConversationID); err != nil {
			return nil, err
		}
		firstExchange = conv.Title == ""
	}

	// History is read before this turn's inserts; the new message is
	// appended in memory.
	asm, err := s.assembler.Build(ctx, conv.ID, content, 0)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.store.AddMessage(ctx, Message{
		UserID:         userID,
		ConversationID: conv.ID,
		Role:           llm.RoleUser,
		Content:        content,
	})
	if err != nil {
		return nil, err
	}
	s.afterInsert(ctx, conv.ID)

	assistant := Message{
		UserID:         userID,
		ConversationID: conv.ID,
		Role:           llm.RoleAssistant,
		CreatedAt:      laterThan(userMsg.CreatedAt),
	}
	reply, sendErr := s.sender.Exchange(ctx, asm.Messages)
	if sendErr != nil {
		s.log.Warn("model request failed", "conversation_id", conv.ID, "error", sendErr)
		assistant.Content = errorBubble(sendErr)
		assistant.Metadata.Error = true
	} else {
		assistant.Content = reply.Content
		assistant.Metadata.Strategy = reply.Strategy
		assistant.Metadata.Fallback = reply.Fallback
	}

	assistantMsg, err := s.store.AddMessage(ctx, assistant)
	if err != nil {
		return nil, err
	}
	s.afterInsert(ctx, conv.ID)

	if firstExchange {
		conv.Title = FallbackTitle(content)
		conv.Metadata.Preview = Preview(assistantMsg.Content)
		if err := s.store.SetTitle(ctx, conv.ID, conv.Title); err != nil {
			return nil, err
		}
		if err := s.store.UpdateMetadata(ctx, conv.ID, func(m *Metadata) { m.Preview = conv.Metadata.Preview }); err != nil {
			return nil, err
		}
		if sendErr == nil && !reply.Fallback {
			s.goBackground(ctx, func(ctx context.Context) { s.generateTitle(ctx, conv.ID, content, assistantMsg.Content) })
		}
	}

	s.cache.Invalidate(ctx, RecentKey(userID))

	return &SendResult{
		Conversation:     conv,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		ContextMessages:  len(asm.Messages),
		ContextTokens:    asm.UsedTokens,
	}, nil
}

// afterInsert checks the summarization checkpoint for the conversation.
func (s *Service) afterInsert(ctx context.Context, conversationID string) {
	n, err := s.store.CountMessages(ctx, conversationID)
	if err != nil {
		s.log.Warn("counting messages failed", "conversation_id", conversationID, "error", err)
		return
	}
	if ShouldSummarize(n, s.every) {
		s.goBackground(ctx, func(ctx context.Context) { s.summarizer.MaybeSummarize(ctx, conversationID) })
	}
}

// goBackground runs fn detached from the request's cancellation.
func (s *Service) goBackground(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		fn(ctx)
	}()
}

// Wait blocks until background summarization and titling finish.
func (s *Service) Wait() {
	s.background.Wait()
}

func (s *Service) generateTitle(ctx context.Context, conversationID, question, reply string) {
	resp, err := s.sender.Exchange(ctx, []llm.Message{
		{Role: llm.RoleUser, Content: BuildTitlePrompt(question, reply)},
	})
	if err != nil || resp.Fallback {
		s.log.Debug("title generation skipped", "conversation_id", conversationID, "error", err)
		return
	}
	title := cleanTitle(resp.Content)
	if title == "" {
		return
	}
	if err := s.store.SetTitle(ctx, conversationID, title); err != nil {
		s.log.Warn("storing title failed", "conversation_id", conversationID, "error", err)
		return
	}
	if conv, err := s.store.GetConversation(ctx, conversationID); err == nil {
		s.cache.Invalidate(ctx, RecentKey(conv.UserID))
	}
}

// RecentConversations returns the user's latest conversations through the cache.
func (s *Service) RecentConversations(ctx context.Context, userID string, opts ...cache.Option) ([]Conversation, error) {
	opts = append([]cache.Option{cache.WithTTL(recentConversationsTTL)}, opts...)
	return cache.Get(ctx, s.cache, RecentKey(userID), func(ctx context.Context) ([]Conversation, error) {
		convs, err := s.store.ListConversations(ctx, userID, recentConversationsLimit)
		if err != nil {
			return nil, err
		}
		if convs == nil {
			convs = []Conversation{}
		}
		return convs, nil
	}, opts...)
}

// Conversation returns a user's conversation with its messages.
func (s *Service) Conversation(ctx context.Context, userID, id string) (*Conversation, []Message, error) {
	conv, err := s.ownedConversation(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.store.Messages(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// DeleteConversation removes a user's conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, userID, id string) error {
	if _, err := s.ownedConversation(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteConversation(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, RecentKey(userID))
	return nil
}

// Summarize summarizes a conversation now and returns the summary.
func (s *Service) Summarize(ctx context.Context, conversationID string) (string, error) {
	return s.summarizer.Summarize(ctx, conversationID)
}

func (s *Service) ownedConversation(ctx context.Context, userID, id string) (*Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, ErrNotFound
	}
	return conv, nil
}

func errorBubble(err error) string {
	switch {
	case errors.Is(err, gateway.ErrAuthentication):
		return "I couldn't reach the assistant because no valid API key is configured. Add your provider key and try again."
	case errors.Is(err, gateway.ErrNetwork):
		return "Sorry, I couldn't reach the assistant just now. Please check your connection and try again."
	default:
		return fmt.Sprintf("Sorry, something went wrong while answering: %v", err)
	}
}

// laterThan keeps the assistant reply strictly after the user's message even
// when both land in the same clock tick.
func laterThan(t time.Time) time.Time {
	now := time.Now().UTC()
	if now.After(t) {
		return now
	}
	return t.Add(time.Microsecond)
}
