// Package condense rewrites follow-up questions into standalone ones so the
// vector search has something to match against. "Et pour la version 2 ?"
// retrieves nothing on its own; rewritten against the conversation it does.
package condense

import (
	"context"
	"fmt"
	"strings"

	"github.com/mferrand/ragapi/internal/rag/llm"
	"github.com/mferrand/ragapi/pkg/logger_i"
)

const (
	// Questions shorter than this are assumed to lean on earlier turns.
	shortQuestionChars = 80
	historyWindow      = 6
	turnMaxChars       = 200
	// Rewrites at or below this length are the model chatting back
	// ("Oui", "D'accord"), not a reformulated question.
	minRewriteChars = 5
)

// referentialCues are lowercase markers of a question that points back at
// the conversation. The user base is mostly French, hence the mix.
var referentialCues = []string{
	"celui", "celle", "ceux",
	"aussi", "précédent", "précédente",
	"ci-dessus", "dont on", "tu as dit", "vous avez dit",
	"it", "that", "this", "those", "these",
	"previous", "above", "you said", "also",
}

const condensePrompt = `Reformule la dernière question de l'utilisateur en une question autonome et complète, en te basant sur l'historique de conversation. Réponds uniquement avec la question reformulée, sans explication.

Historique:
%s

Dernière question: %s`

type Condenser struct {
	provider llm.Provider
	logger   *logger_i.Logger
}

func New(provider llm.Provider) *Condenser {
	return &Condenser{
		provider: provider,
		logger:   logger_i.NewLogger("Condense"),
	}
}

// NeedsCondensing is the gate: no history means nothing to resolve against,
// otherwise short questions and questions carrying a referential cue go
// through the rewrite.
func NeedsCondensing(question string, history []llm.Message) bool {
	if len(history) == 0 {
		return false
	}
	if len([]rune(question)) < shortQuestionChars {
		return true
	}
	lowered := strings.ToLower(question)
	for _, cue := range referentialCues {
		if containsWord(lowered, cue) {
			return true
		}
	}
	return false
}

// containsWord avoids matching cues inside larger words ("it" in "bit").
// Multi-word cues fall back to substring search.
func containsWord(haystack, cue string) bool {
	if strings.ContainsRune(cue, ' ') || strings.ContainsRune(cue, '-') {
		return strings.Contains(haystack, cue)
	}
	fields := strings.FieldsFunc(haystack, func(r rune) bool {
		return !isWordRune(r)
	})
	for _, f := range fields {
		if f == cue {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '\'' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127
}

// Condense rewrites the question against the recent history. Any failure
// falls back to the original question: a degraded search beats a failed
// request.
func (c *Condenser) Condense(ctx context.Context, model, question string, history []llm.Message) string {
	if !NeedsCondensing(question, history) {
		return question
	}

	prompt := fmt.Sprintf(condensePrompt, formatHistory(history), question)
	rewritten, err := c.provider.Chat(ctx, model,
		[]llm.Message{{Role: llm.RoleUser, Content: prompt}},
		llm.Options{Temperature: 0, MaxTokens: 150})
	if err != nil {
		c.logger.Warn("condensing failed, using original question", "error", err)
		return question
	}

	rewritten = strings.TrimSpace(rewritten)
	if len([]rune(rewritten)) <= minRewriteChars {
		return question
	}
	return rewritten
}

// formatHistory keeps the last six turns, each clipped to 200 chars, so the
// condensing prompt stays small no matter how long the conversation ran.
func formatHistory(history []llm.Message) string {
	start := 0
	if len(history) > historyWindow {
		start = len(history) - historyWindow
	}

	var b strings.Builder
	for _, turn := range history[start:] {
		content := turn.Content
		if runes := []rune(content); len(runes) > turnMaxChars {
			content = string(runes[:turnMaxChars]) + "..."
		}
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, content)
	}
	return b.String()
}
