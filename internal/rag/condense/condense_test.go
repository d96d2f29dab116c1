package condense

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mferrand/ragapi/internal/rag/llm"
)

type mockProvider struct {
	chatFunc func(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (string, error)
}

func (m *mockProvider) Chat(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (string, error) {
	return m.chatFunc(ctx, model, messages, opts)
}

func (m *mockProvider) Stream(ctx context.Context, model string, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func (m *mockProvider) Show(ctx context.Context, model string) (llm.ModelInfo, error) {
	return llm.ModelInfo{}, nil
}

func (m *mockProvider) Tags(ctx context.Context) ([]string, error) {
	return nil, nil
}

func someHistory() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleUser, Content: "Comment configurer le serveur de production ?"},
		{Role: llm.RoleAssistant, Content: "Il faut éditer le fichier config.yaml et définir le port."},
	}
}

func TestGateNoHistoryNeverCondenses(t *testing.T) {
	if NeedsCondensing("Et aussi ?", nil) {
		t.Error("first question of a conversation has nothing to resolve against")
	}
}

func TestGateShortQuestion(t *testing.T) {
	if !NeedsCondensing("Et pour la version 2 ?", someHistory()) {
		t.Error("short question with history should condense")
	}
}

func TestGateReferentialCues(t *testing.T) {
	longPad := strings.Repeat("considérant la configuration complète du déploiement ", 3)
	cases := []struct {
		name     string
		question string
		want     bool
	}{
		{"french aussi", longPad + "est-ce que cela s'applique aussi au serveur de test du projet", true},
		{"french precedent", longPad + "dans le chapitre précédent quelle était la procédure exacte à suivre", true},
		{"english that", longPad + "can you explain how that mechanism interacts with the scheduler component", true},
		{"standalone long", "Quelle est la procédure complète pour installer le serveur de production sur une machine Debian avec les dépendances système requises ?", false},
		{"cue inside word not matched", "La qualité des commits précédemment fusionnés dans la branche principale du dépôt doit être vérifiée systématiquement avant publication", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsCondensing(tc.question, someHistory()); got != tc.want {
				t.Errorf("NeedsCondensing(%q) = %v, want %v", tc.question, got, tc.want)
			}
		})
	}
}

func TestCondenseRewritesThroughProvider(t *testing.T) {
	var gotPrompt string
	var gotOpts llm.Options
	p := &mockProvider{chatFunc: func(_ context.Context, _ string, messages []llm.Message, opts llm.Options) (string, error) {
		gotPrompt = messages[0].Content
		gotOpts = opts
		return "  Comment configurer le port du serveur pour la version 2 ?\n", nil
	}}

	c := New(p)
	out := c.Condense(context.Background(), "llama3", "Et pour la version 2 ?", someHistory())
	if out != "Comment configurer le port du serveur pour la version 2 ?" {
		t.Errorf("got %q", out)
	}
	if !strings.Contains(gotPrompt, "Et pour la version 2 ?") {
		t.Error("prompt must carry the original question")
	}
	if !strings.Contains(gotPrompt, "config.yaml") {
		t.Error("prompt must carry the history")
	}
	if gotOpts.Temperature != 0 {
		t.Errorf("rewrite ran at temperature %v, condensing must be deterministic", gotOpts.Temperature)
	}
}

func TestCondenseFallsBackSilentlyOnError(t *testing.T) {
	p := &mockProvider{chatFunc: func(context.Context, string, []llm.Message, llm.Options) (string, error) {
		return "", errors.New("backend down")
	}}

	c := New(p)
	out := c.Condense(context.Background(), "llama3", "Et aussi ?", someHistory())
	if out != "Et aussi ?" {
		t.Errorf("got %q, want original question back", out)
	}
}

func TestCondenseFallsBackOnEmptyRewrite(t *testing.T) {
	p := &mockProvider{chatFunc: func(context.Context, string, []llm.Message, llm.Options) (string, error) {
		return "   ", nil
	}}

	c := New(p)
	if out := c.Condense(context.Background(), "llama3", "Et aussi ?", someHistory()); out != "Et aussi ?" {
		t.Errorf("got %q, want original question back", out)
	}
}

func TestCondenseFallsBackOnTooShortRewrite(t *testing.T) {
	cases := []struct {
		name    string
		rewrite string
		want    string
	}{
		{"bare acknowledgement", "Oui", "Et aussi ?"},
		{"exactly at the limit", "Quoi?", "Et aussi ?"},
		{"just past the limit", "Le port ?", "Le port ?"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &mockProvider{chatFunc: func(context.Context, string, []llm.Message, llm.Options) (string, error) {
				return tc.rewrite, nil
			}}
			c := New(p)
			if out := c.Condense(context.Background(), "llama3", "Et aussi ?", someHistory()); out != tc.want {
				t.Errorf("got %q, want %q", out, tc.want)
			}
		})
	}
}

func TestCondenseSkipsGateNegative(t *testing.T) {
	called := false
	p := &mockProvider{chatFunc: func(context.Context, string, []llm.Message, llm.Options) (string, error) {
		called = true
		return "rewritten", nil
	}}

	standalone := "Quelle est la procédure complète pour installer le serveur de production sur une machine Debian avec les dépendances système requises ?"
	c := New(p)
	if out := c.Condense(context.Background(), "llama3", standalone, someHistory()); out != standalone {
		t.Errorf("got %q", out)
	}
	if called {
		t.Error("provider must not be called when the gate says no")
	}
}

func TestHistoryWindowAndTruncation(t *testing.T) {
	history := make([]llm.Message, 0, 10)
	for i := 0; i < 9; i++ {
		history = append(history, llm.Message{Role: llm.RoleUser, Content: "ancienne question sans importance"})
	}
	long := strings.Repeat("x", 500)
	history = append(history, llm.Message{Role: llm.RoleAssistant, Content: long})

	formatted := formatHistory(history)
	if strings.Count(formatted, "\n") != 6 {
		t.Errorf("want 6 turns, formatted history:\n%s", formatted)
	}
	if strings.Contains(formatted, strings.Repeat("x", 201)) {
		t.Error("turns must be clipped to 200 chars")
	}
	if !strings.Contains(formatted, strings.Repeat("x", 200)+"...") {
		t.Error("clipped turn should end with ellipsis")
	}
}
