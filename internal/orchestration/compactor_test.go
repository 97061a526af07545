package orchestration

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/widget-studio/internal/agents"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

func TestEstimateTokens(t *testing.T) {
	msgs := []models.ChatMessage{
		{Content: strings.Repeat("a", 400)},
		{Content: strings.Repeat("b", 80)},
	}
	assert.Equal(t, 120, EstimateTokens(msgs))
	assert.Equal(t, 0, EstimateTokens(nil))
}

func TestCompactorNoOpUnderBudget(t *testing.T) {
	client := &scriptedClient{}
	c := NewCompactor(agents.NewSummarizer(client), 64000)

	state := models.ConversationState{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "short"}},
	}
	out, compacted, err := c.MaybeCompact(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, compacted)
	assert.Equal(t, state, out)
	assert.Equal(t, 0, client.calls)
}

func TestCompactorCustomEstimator(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"summary":"s"}`}}
	c := NewCompactor(agents.NewSummarizer(client), 100).
		WithEstimator(func([]models.ChatMessage) int { return 1000 })

	_, compacted, err := c.MaybeCompact(context.Background(), models.ConversationState{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "tiny"}},
	})
	require.NoError(t, err)
	assert.True(t, compacted)
	assert.Equal(t, 1, client.calls)
}

func TestCompactorKeepsRecentTurns(t *testing.T) {
	client := &scriptedClient{responses: []string{`{"summary":"Built a sales chart with filters."}`}}
	c := NewCompactor(agents.NewSummarizer(client), 5)

	var msgs []models.ChatMessage
	for i := 0; i < 7; i++ {
		msgs = append(msgs, models.ChatMessage{
			Role:    models.RoleUser,
			Content: strings.Repeat("x", 50),
		})
	}
	out, compacted, err := c.MaybeCompact(context.Background(), models.ConversationState{
		Messages: msgs,
		Summary:  "earlier summary",
	})
	require.NoError(t, err)
	assert.True(t, compacted)
	assert.Len(t, out.Messages, 4)
	assert.Equal(t, msgs[3:], out.Messages)
	assert.Equal(t, "Built a sales chart with filters.", out.Summary)

	// The new summary replaces the old one outright; Effective prepends it
	// as a synthetic system turn.
	effective := out.Effective()
	require.Len(t, effective, 5)
	assert.Equal(t, models.RoleSystem, effective[0].Role)
	assert.Contains(t, effective[0].Content, "[Conversation summary]")
}

func TestCompactorPropagatesSummarizerFailure(t *testing.T) {
	client := &scriptedClient{responses: []string{"!rate_limited", "!rate_limited"}}
	c := NewCompactor(agents.NewSummarizer(client), 1)

	state := models.ConversationState{
		Messages: []models.ChatMessage{{Content: strings.Repeat("x", 100)}},
	}
	_, compacted, err := c.MaybeCompact(context.Background(), state)
	assert.Error(t, err)
	assert.False(t, compacted)
}
