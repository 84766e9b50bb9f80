package agent

import (
	"context"
	"fmt"
	"strings"

	"planhub/pkg/ai"
	"planhub/pkg/domain"
)

const (
	// defaultDocEveryPairs is how many user/assistant pairs may accumulate
	// before the plan document is rewritten even without an explicit ask.
	defaultDocEveryPairs = 3
	defaultHistoryLimit  = 20
	uploadSnippetLimit   = 4000
)

// Planner drives one conversation turn: a product-manager reply stage and,
// when the update policy fires, a scribe stage that rewrites the whole plan
// document. The document is always rewritten in full, never patched.
type Planner struct {
	generator     ai.TextGenerator
	docEveryPairs int
	historyLimit  int
}

// Config tunes the planner pipeline.
type Config struct {
	Generator ai.TextGenerator
	// DocEveryPairs regenerates the document after this many message pairs
	// since the last write. Zero applies the default.
	DocEveryPairs int
	// HistoryLimit bounds how many history messages enter the prompt.
	HistoryLimit int
}

// New constructs a Planner.
func New(cfg Config) (*Planner, error) {
	if cfg.Generator == nil {
		return nil, fmt.Errorf("text generator required")
	}
	docEvery := cfg.DocEveryPairs
	if docEvery <= 0 {
		docEvery = defaultDocEveryPairs
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Planner{
		generator:     cfg.Generator,
		docEveryPairs: docEvery,
		historyLimit:  historyLimit,
	}, nil
}

// TurnInput carries the accumulated conversation state for one chat turn.
// History does not yet include the message being processed.
type TurnInput struct {
	ProjectID string
	UserName  string
	Message   string
	History   []domain.Message
	// Document is the current plan, empty when none was generated yet.
	Document string
	// MessagesSinceDocWrite counts history entries appended after the last
	// document write; it feeds the regeneration policy.
	MessagesSinceDocWrite int
	Uploads               []domain.UploadedDocument
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	Reply           string
	Document        string
	DocumentUpdated bool
}

// RunTurn produces the assistant reply and optionally a regenerated document.
// A failed scribe stage does not fail the turn: the reply is kept and the
// document simply stays as it was.
func (p *Planner) RunTurn(ctx context.Context, in TurnInput) (TurnResult, error) {
	if strings.TrimSpace(in.Message) == "" {
		return TurnResult{}, fmt.Errorf("message required")
	}
	reply, err := p.generator.GenerateText(ctx, managerSystemPrompt, p.buildManagerPrompt(in))
	if err != nil {
		return TurnResult{}, fmt.Errorf("generate reply: %w", err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return TurnResult{}, fmt.Errorf("empty reply from generator")
	}

	result := TurnResult{Reply: reply}
	if !p.shouldUpdateDocument(in) {
		return result, nil
	}
	doc, err := p.generator.GenerateText(ctx, scribeSystemPrompt, p.buildScribePrompt(in, reply))
	if err != nil {
		return result, nil
	}
	doc = strings.TrimSpace(doc)
	doc = stripCodeFence(doc)
	if doc == "" || doc == in.Document {
		return result, nil
	}
	result.Document = doc
	result.DocumentUpdated = true
	return result, nil
}

// shouldUpdateDocument decides when enough information has accumulated to
// rewrite the plan: an explicit ask in the user message, or a backlog of
// message pairs since the last write.
func (p *Planner) shouldUpdateDocument(in TurnInput) bool {
	if mentionsDocument(in.Message) {
		return true
	}
	// +1 for the message being processed in this turn.
	return in.MessagesSinceDocWrite+1 >= p.docEveryPairs*2
}

var documentTriggers = []string{
	"document", "project plan", "write it up", "save the plan",
	"update the plan", "show me the plan", "prd",
}

func mentionsDocument(message string) bool {
	lower := strings.ToLower(message)
	for _, trigger := range documentTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

func (p *Planner) buildManagerPrompt(in TurnInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n", in.ProjectID)
	if history := buildHistory(tail(in.History, p.historyLimit)); history != "" {
		sb.WriteString("Conversation so far:\n")
		sb.WriteString(history)
		sb.WriteString("\n\n")
	}
	if strings.TrimSpace(in.Document) != "" {
		sb.WriteString("Current project plan:\n")
		sb.WriteString(in.Document)
		sb.WriteString("\n\n")
	}
	if uploads := buildUploadDigest(in.Uploads); uploads != "" {
		sb.WriteString("Reference documents uploaded by the team:\n")
		sb.WriteString(uploads)
		sb.WriteString("\n")
	}
	who := strings.TrimSpace(in.UserName)
	if who == "" {
		who = "user"
	}
	fmt.Fprintf(&sb, "New message from %s: %s", who, in.Message)
	return sb.String()
}

func (p *Planner) buildScribePrompt(in TurnInput, reply string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %s\n", in.ProjectID)
	if history := buildHistory(tail(in.History, p.historyLimit)); history != "" {
		sb.WriteString("Conversation so far:\n")
		sb.WriteString(history)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "user: %s\nassistant: %s\n\n", in.Message, reply)
	if strings.TrimSpace(in.Document) != "" {
		sb.WriteString("Previous version of the plan:\n")
		sb.WriteString(in.Document)
		sb.WriteString("\n\n")
	}
	if uploads := buildUploadDigest(in.Uploads); uploads != "" {
		sb.WriteString("Reference documents:\n")
		sb.WriteString(uploads)
		sb.WriteString("\n")
	}
	sb.WriteString("Write the complete updated project plan now.")
	return sb.String()
}

func buildHistory(messages []domain.Message) string {
	if len(messages) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, msg := range messages {
		role := strings.ToLower(strings.TrimSpace(string(msg.Role)))
		if role == "" {
			role = "message"
		}
		if msg.UserName != "" && msg.Role == domain.RoleUser {
			role = role + " (" + msg.UserName + ")"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

func buildUploadDigest(uploads []domain.UploadedDocument) string {
	if len(uploads) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, u := range uploads {
		content := strings.TrimSpace(u.Content)
		if content == "" {
			continue
		}
		if runes := []rune(content); len(runes) > uploadSnippetLimit {
			content = string(runes[:uploadSnippetLimit]) + "…"
		}
		fmt.Fprintf(&sb, "--- %s ---\n%s\n", u.Filename, content)
	}
	return sb.String()
}

func tail(messages []domain.Message, limit int) []domain.Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}

// stripCodeFence unwraps a reply the model wrapped in a ```markdown fence.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) != 2 {
		return text
	}
	body := lines[1]
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
