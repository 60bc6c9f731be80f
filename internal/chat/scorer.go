package chat

import (
	"strings"
	"unicode/utf8"
)

// keywordCategories is the fixed vocabulary the scorer recognizes. Each
// distinct matched term is worth two points.
var keywordCategories = []struct {
	name  string
	terms []string
}{
	{"decision", []string{"decision", "decide", "choose", "select", "option"}},
	{"requirement", []string{"require", "must", "should", "need", "necessary"}},
	{"action", []string{"task", "todo", "action", "next step", "deadline"}},
	{"priority", []string{"urgent", "priority", "critical", "important", "asap"}},
	{"implementation", []string{"implement", "build", "develop", "deploy"}},
	{"problem", []string{"problem", "issue", "bug", "error", "fix"}},
	{"feature", []string{"feature", "functionality", "capability"}},
	{"technical", []string{"architecture", "database", "api", "framework", "design"}},
	{"business", []string{"budget", "cost", "revenue", "client", "stakeholder"}},
	{"project", []string{"milestone", "sprint", "timeline", "schedule"}},
}

var (
	decisionTerms    = []string{"decision", "decide", "choose", "select", "option"}
	requirementTerms = []string{"require", "must", "should", "need", "necessary"}
	actionTerms      = []string{"task", "todo", "action", "next step", "deadline"}
	priorityTerms    = []string{"urgent", "priority", "critical", "important", "asap"}
	technicalTerms   = []string{"architecture", "database", "framework", "technology", "stack", "api", "infrastructure"}
)

const (
	pointsPerKeyword  = 2
	keyDecisionBonus  = 5
	requirementBonus  = 4
	actionItemBonus   = 3
	highPriorityBonus = 4
	technicalBonus    = 3

	longMessageChars     = 500
	longMessageBonus     = 2
	veryLongMessageChars = 1000
	veryLongMessageBonus = 3
)

// ScoreMessage rates how much a message is worth keeping in context. It is a
// pure function of content.
func ScoreMessage(content string) Importance {
	lower := strings.ToLower(content)
	imp := Importance{MatchedKeywords: []string{}}

	seen := make(map[string]bool)
	for _, cat := range keywordCategories {
		for _, term := range cat.terms {
			if seen[term] || !strings.Contains(lower, term) {
				continue
			}
			seen[term] = true
			imp.MatchedKeywords = append(imp.MatchedKeywords, term)
			imp.Score += pointsPerKeyword
		}
	}

	if containsAny(lower, decisionTerms) {
		imp.IsKeyDecision = true
		imp.Score += keyDecisionBonus
	}
	if containsAny(lower, requirementTerms) {
		imp.IsRequirement = true
		imp.Score += requirementBonus
	}
	if containsAny(lower, actionTerms) {
		imp.IsActionItem = true
		imp.Score += actionItemBonus
	}
	if containsAny(lower, priorityTerms) {
		imp.IsHighPriority = true
		imp.Score += highPriorityBonus
	}
	if containsAny(lower, technicalTerms) {
		imp.IsTechnicalDecision = true
		imp.Score += technicalBonus
	}

	chars := utf8.RuneCountInString(content)
	if chars > longMessageChars {
		imp.Score += longMessageBonus
	}
	if chars > veryLongMessageChars {
		imp.Score += veryLongMessageBonus
	}

	signals := 0
	for _, flag := range []bool{imp.IsKeyDecision, imp.IsRequirement, imp.IsActionItem, imp.IsHighPriority, imp.IsTechnicalDecision} {
		if flag {
			signals++
		}
	}
	if signals >= 2 {
		imp.Score += signals
	}

	return imp
}

// ScoreMessages scores each message, preserving order.
func ScoreMessages(messages []Message) []ScoredMessage {
	out := make([]ScoredMessage, len(messages))
	for i, m := range messages {
		out[i] = ScoredMessage{Message: m, Importance: ScoreMessage(m.Content)}
	}
	return out
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
