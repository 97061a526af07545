package orchestration

import (
	"context"
	"log"

	"github.com/bizmatters/agent-builder/widget-studio/internal/agents"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

// charsPerToken is the rough ratio used for token estimation.
const charsPerToken = 4

// recentKeep is how many raw turns survive a compaction.
const recentKeep = 4

// EstimateTokens returns a cheap token estimate for the conversation.
func EstimateTokens(messages []models.ChatMessage) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return total / charsPerToken
}

// Compactor compresses a conversation when it grows past the token budget.
// Compaction runs at most once per pipeline invocation and is irreversible:
// the summary replaces the dropped turns for every later invocation.
type Compactor struct {
	summarizer *agents.Summarizer
	budget     int
	estimate   func([]models.ChatMessage) int
}

func NewCompactor(summarizer *agents.Summarizer, budget int) *Compactor {
	return &Compactor{summarizer: summarizer, budget: budget, estimate: EstimateTokens}
}

// WithEstimator replaces the default character-based token estimator.
func (c *Compactor) WithEstimator(fn func([]models.ChatMessage) int) *Compactor {
	c.estimate = fn
	return c
}

// MaybeCompact returns the conversation to run the pipeline on, and whether
// compaction happened. When the estimate is within budget the state passes
// through untouched.
func (c *Compactor) MaybeCompact(ctx context.Context, state models.ConversationState) (models.ConversationState, bool, error) {
	tokens := c.estimate(state.Messages)
	if tokens <= c.budget {
		return state, false, nil
	}

	log.Printf("[compactor] context too long (%d tokens > %d), summarizing", tokens, c.budget)

	summary, err := c.summarizer.Run(ctx, state.Messages, state.Summary)
	if err != nil {
		return state, false, err
	}

	recent := state.Messages
	if len(recent) > recentKeep {
		recent = recent[len(recent)-recentKeep:]
	}
	return models.ConversationState{Messages: recent, Summary: summary}, true, nil
}
