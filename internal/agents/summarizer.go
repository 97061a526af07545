package agents

import (
	"context"
	"strings"

	"github.com/bizmatters/agent-builder/widget-studio/internal/llm"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

const summarizerPrompt = `You are a conversation summariser. Given a chat history between
a user and an AI assistant that configures dashboard widgets, produce a
concise summary that preserves:

1. What chart / widget has been configured (type, data source).
2. Key decisions made (query changes, filter additions, chart style choices).
3. Any outstanding requests or issues.
4. Important context the assistant would need to continue the conversation
   naturally.

Return a JSON object:
{
  "summary": "<concise summary, max 800 words>"
}

Be thorough but brief. Do NOT include raw SQL or full JSON configs;
describe them in natural language.`

// Summarizer compresses long chat histories so downstream agents stay within
// token limits.
type Summarizer struct {
	client llm.Client
}

func NewSummarizer(client llm.Client) *Summarizer {
	return &Summarizer{client: client}
}

// Run summarises history, folding in previousSummary when one exists.
func (a *Summarizer) Run(ctx context.Context, history []models.ChatMessage, previousSummary string) (string, error) {
	messages := []llm.Message{
		{Role: models.RoleSystem, Content: summarizerPrompt},
	}
	if previousSummary != "" {
		messages = append(messages, llm.Message{
			Role:    models.RoleSystem,
			Content: "Previous conversation summary:\n" + previousSummary,
		})
	}

	var b strings.Builder
	for _, m := range history {
		b.WriteString(strings.ToUpper(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	messages = append(messages, llm.Message{
		Role:    models.RoleUser,
		Content: "Summarise this conversation:\n\n" + b.String(),
	})

	var result struct {
		Summary string `json:"summary"`
	}
	if err := callJSON(ctx, a.client, NameSummarizer, messages, 0.3, &result); err != nil {
		return "", err
	}
	return result.Summary, nil
}
