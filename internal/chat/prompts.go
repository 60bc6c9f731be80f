package chat

import (
	"fmt"
	"strings"
)

const (
	titleRunes   = 50
	previewRunes = 100
)

// BuildSummaryPrompt asks for a short summary of the given history.
func BuildSummaryPrompt(messages []Message) string {
	var sb strings.Builder
	sb.WriteString("Please provide a concise summary of the following conversation in 3-4 sentences. ")
	sb.WriteString("Focus on key decisions, requirements, and action items.\n\n")
	for i, m := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s: %s", m.Role, m.Content)
	}
	return sb.String()
}

// BuildTitlePrompt asks for a conversation title from the first exchange.
func BuildTitlePrompt(question, reply string) string {
	return fmt.Sprintf(`Generate a short, descriptive title (at most 6 words) for a conversation that starts with this exchange.

User: %s
Assistant: %s

Respond with only the title, no quotes or punctuation at the end.`, question, truncateRunes(reply, 500))
}

// FallbackTitle derives a title from the first question.
func FallbackTitle(question string) string {
	return truncateRunes(strings.TrimSpace(question), titleRunes)
}

// Preview is the snippet shown in conversation lists.
func Preview(reply string) string {
	return truncateRunes(strings.TrimSpace(reply), previewRunes)
}

// cleanTitle trims model output down to a single title line.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'` ")
	s = strings.TrimPrefix(s, "Title: ")
	return truncateRunes(s, titleRunes)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
