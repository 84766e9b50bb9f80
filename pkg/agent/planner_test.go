package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"planhub/pkg/domain"
)

// scriptedGenerator returns canned responses in call order.
type scriptedGenerator struct {
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (g *scriptedGenerator) GenerateText(_ context.Context, _, userPrompt string) (string, error) {
	idx := g.calls
	g.calls++
	g.prompts = append(g.prompts, userPrompt)
	if idx < len(g.errs) && g.errs[idx] != nil {
		return "", g.errs[idx]
	}
	if idx < len(g.replies) {
		return g.replies[idx], nil
	}
	return "", errors.New("no scripted reply")
}

func TestRunTurnReplyOnly(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"What problem are we solving?"}}
	p, err := New(Config{Generator: gen})
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}

	res, err := p.RunTurn(context.Background(), TurnInput{
		ProjectID: "demo",
		Message:   "Build a sensor logger",
	})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if res.Reply != "What problem are we solving?" {
		t.Fatalf("unexpected reply: %q", res.Reply)
	}
	if res.DocumentUpdated {
		t.Fatal("first turn should not regenerate the document")
	}
	if gen.calls != 1 {
		t.Fatalf("expected single generation call, got %d", gen.calls)
	}
}

func TestRunTurnExplicitDocumentAskTriggersScribe(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"Here is the plan.",
		"# Project Plan: Sensor Logger\n\n## 1.0 Executive Summary & Vision\nTODO",
	}}
	p, err := New(Config{Generator: gen})
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}

	res, err := p.RunTurn(context.Background(), TurnInput{
		ProjectID: "demo",
		Message:   "Please write the document now",
	})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if !res.DocumentUpdated {
		t.Fatal("explicit document ask should trigger the scribe stage")
	}
	if !strings.HasPrefix(res.Document, "# Project Plan:") {
		t.Fatalf("unexpected document: %q", res.Document)
	}
	if gen.calls != 2 {
		t.Fatalf("expected two generation calls, got %d", gen.calls)
	}
}

func TestRunTurnBacklogTriggersScribe(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"Noted.", "# Project Plan: Demo"}}
	p, err := New(Config{Generator: gen, DocEveryPairs: 1})
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}

	res, err := p.RunTurn(context.Background(), TurnInput{
		ProjectID:             "demo",
		Message:               "throughput target is 100k samples/sec",
		MessagesSinceDocWrite: 1,
	})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if !res.DocumentUpdated {
		t.Fatal("message backlog should trigger regeneration")
	}
}

func TestRunTurnScribeFailureKeepsReply(t *testing.T) {
	gen := &scriptedGenerator{
		replies: []string{"Understood."},
		errs:    []error{nil, errors.New("provider down")},
	}
	p, err := New(Config{Generator: gen})
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}

	res, err := p.RunTurn(context.Background(), TurnInput{
		ProjectID: "demo",
		Message:   "update the plan please",
	})
	if err != nil {
		t.Fatalf("scribe failure must not fail the turn: %v", err)
	}
	if res.Reply != "Understood." {
		t.Fatalf("reply lost: %q", res.Reply)
	}
	if res.DocumentUpdated {
		t.Fatal("failed scribe stage must leave the document untouched")
	}
}

func TestRunTurnStripsCodeFence(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"Done.",
		"```markdown\n# Project Plan: Demo\n```",
	}}
	p, err := New(Config{Generator: gen})
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	res, err := p.RunTurn(context.Background(), TurnInput{ProjectID: "demo", Message: "save the plan"})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	if res.Document != "# Project Plan: Demo" {
		t.Fatalf("code fence not stripped: %q", res.Document)
	}
}

func TestRunTurnPromptIncludesHistoryAndUploads(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"ok"}}
	p, err := New(Config{Generator: gen})
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	now := time.Now().UTC()
	_, err = p.RunTurn(context.Background(), TurnInput{
		ProjectID: "demo",
		Message:   "continue",
		History: []domain.Message{
			{Role: domain.RoleUser, UserName: "alice", Content: "earlier question", CreatedAt: now},
			{Role: domain.RoleAssistant, Content: "earlier answer", CreatedAt: now},
		},
		Uploads: []domain.UploadedDocument{
			{Filename: "requirements.txt", Content: "must log 100k samples per second"},
		},
	})
	if err != nil {
		t.Fatalf("run turn: %v", err)
	}
	prompt := gen.prompts[0]
	for _, want := range []string{"user (alice): earlier question", "assistant: earlier answer", "requirements.txt", "100k samples"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestRunTurnRejectsEmptyMessage(t *testing.T) {
	p, err := New(Config{Generator: &scriptedGenerator{}})
	if err != nil {
		t.Fatalf("new planner: %v", err)
	}
	if _, err := p.RunTurn(context.Background(), TurnInput{ProjectID: "demo", Message: "   "}); err == nil {
		t.Fatal("expected error for blank message")
	}
}

func TestUploadDigestTruncatesOnRuneBoundary(t *testing.T) {
	digest := buildUploadDigest([]domain.UploadedDocument{{
		Filename: "notes.txt",
		Content:  strings.Repeat("é", uploadSnippetLimit+5),
	}})
	if !utf8.ValidString(digest) {
		t.Fatal("digest contains a split rune")
	}
	if want := strings.Repeat("é", uploadSnippetLimit) + "…"; !strings.Contains(digest, want) {
		t.Fatal("digest snippet not truncated at the rune limit")
	}
}
