package chat

import (
	"context"
	"fmt"
	"sort"

	"github.com/ziadkadry99/workmate/internal/llm"
	"github.com/ziadkadry99/workmate/internal/logger"
)

const (
	// DefaultMaxContextTokens is the assembled-context budget.
	DefaultMaxContextTokens = 150000
	// DefaultRecentWindow is how many trailing messages are always considered first.
	DefaultRecentWindow = 100
)

// Assembly is an assembled context plus how it was built.
type Assembly struct {
	Messages []llm.Message
	// UsedTokens counts the summary and selected history, not the new message.
	UsedTokens     int
	RecentCount    int
	ImportantCount int
	HasSummary     bool
}

// Assembler picks which prior messages accompany a new one.
type Assembler struct {
	store        *Store
	maxTokens    int
	recentWindow int
	log          *logger.Logger
}

// NewAssembler creates an assembler. Non-positive limits use the defaults.
func NewAssembler(store *Store, maxTokens, recentWindow int, log *logger.Logger) *Assembler {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}
	if recentWindow <= 0 {
		recentWindow = DefaultRecentWindow
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Assembler{
		store:        store,
		maxTokens:    maxTokens,
		recentWindow: recentWindow,
		log:          log.With("service", "Assembler"),
	}
}

// Assemble returns the ordered context for newMessage: the stored summary as
// a system message, selected history, then the new user message.
// maxTokens <= 0 uses the assembler's default budget.
func (a *Assembler) Assemble(ctx context.Context, conversationID, newMessage string, maxTokens int) ([]llm.Message, error) {
	asm, err := a.Build(ctx, conversationID, newMessage, maxTokens)
	if err != nil {
		return nil, err
	}
	return asm.Messages, nil
}

// Build is Assemble with selection statistics.
func (a *Assembler) Build(ctx context.Context, conversationID, newMessage string, maxTokens int) (*Assembly, error) {
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}

	var summary string
	var history []Message
	if conversationID != "" {
		conv, err := a.store.GetConversation(ctx, conversationID)
		if err != nil {
			return nil, fmt.Errorf("loading conversation: %w", err)
		}
		summary = conv.Metadata.Summary
		if history, err = a.store.Messages(ctx, conversationID); err != nil {
			return nil, fmt.Errorf("loading history: %w", err)
		}
	}

	asm := selectContext(history, summary, newMessage, maxTokens, a.recentWindow)
	a.log.Debug("context assembled",
		"conversation_id", conversationID,
		"history", len(history),
		"recent", asm.RecentCount,
		"important", asm.ImportantCount,
		"used_tokens", asm.UsedTokens,
		"budget", maxTokens,
	)
	return asm, nil
}

// selectContext is the budgeted selection over an in-memory history that
// is already in creation order. Synthesized replies are not candidates.
func selectContext(history []Message, summary, newMessage string, maxTokens, window int) *Assembly {
	history = conversational(history)
	asm := &Assembly{HasSummary: summary != ""}
	used := 0
	if summary != "" {
		used = llm.EstimateTokens(summary)
	}

	split := len(history) - window
	if split < 0 {
		split = 0
	}
	recent := history[split:]
	older := history[:split]

	// Walk the recent window newest-first so the latest turns win the
	// budget. The newest message is admitted even when it alone overflows.
	keep := make([]bool, len(history))
	for i := len(recent) - 1; i >= 0; i-- {
		cost := llm.EstimateTokens(recent[i].Content)
		if i != len(recent)-1 && used+cost > maxTokens {
			break
		}
		used += cost
		keep[split+i] = true
		asm.RecentCount++
	}

	if used < maxTokens && len(older) > 0 {
		scored := ScoreMessages(older)
		idx := make([]int, len(scored))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(x, y int) bool {
			return scored[idx[x]].Importance.Score > scored[idx[y]].Importance.Score
		})
		for _, i := range idx {
			cost := llm.EstimateTokens(scored[i].Content)
			if used+cost > maxTokens {
				break
			}
			used += cost
			keep[i] = true
			asm.ImportantCount++
		}
	}

	if summary != "" {
		asm.Messages = append(asm.Messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Previous conversation summary: " + summary,
		})
	}
	for i, m := range history {
		if keep[i] {
			asm.Messages = append(asm.Messages, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	asm.Messages = append(asm.Messages, llm.Message{Role: llm.RoleUser, Content: newMessage})
	asm.UsedTokens = used
	return asm
}
