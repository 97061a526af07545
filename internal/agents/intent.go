package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/bizmatters/agent-builder/widget-studio/internal/llm"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

const requestAnalyzerPrompt = `You are a request router for a dashboard widget builder.
Analyse the user's message and the current widget state to decide which
specialist agents must run.

Return a JSON object, nothing else:

{
  "intent": "<one of the values below>",
  "needs_schema_analysis": <bool>,
  "needs_query": <bool>,
  "needs_filters": <bool>,
  "needs_chart": <bool>,
  "message": "<short reply ONLY when no agents are needed>",
  "summary": "<1-2 sentence summary of what the user wants>"
}

Possible intent values:
- "create_chart"   - user wants a brand-new chart / widget
- "modify_query"   - change the SQL / data source only
- "modify_chart"   - change visuals (chart type, colours, title...)
- "modify_filters" - add, remove, or tweak filters only
- "modify_all"     - broad change that touches query + chart
- "question"       - user asks a question (no widget change)
- "greeting"       - casual greeting / small talk

Routing rules:
- create_chart: all flags true
- modify_query: needs_query=true, needs_filters=true, needs_chart=true
  (output columns may change)
- modify_chart: needs_chart=true only
- modify_filters: needs_filters=true only
- modify_all: needs_query=true, needs_filters=true, needs_chart=true
- question/greeting: all flags false, answer in "message"

Set needs_schema_analysis=true whenever needs_query=true and there is a
database connected.`

// Routing is the request analyzer's decision: which downstream agents run
// for this user message.
type Routing struct {
	Intent              string `json:"intent"`
	NeedsSchemaAnalysis bool   `json:"needs_schema_analysis"`
	NeedsQuery          bool   `json:"needs_query"`
	NeedsFilters        bool   `json:"needs_filters"`
	NeedsChart          bool   `json:"needs_chart"`
	Message             string `json:"message"`
	Summary             string `json:"summary"`
}

// NeedsAny reports whether any build agent was selected. When false the
// routing's Message (or Summary) is the whole reply.
func (r Routing) NeedsAny() bool {
	return r.NeedsQuery || r.NeedsFilters || r.NeedsChart
}

// RequestAnalyzer classifies user intent and selects the agents to invoke.
type RequestAnalyzer struct {
	client llm.Client
}

func NewRequestAnalyzer(client llm.Client) *RequestAnalyzer {
	return &RequestAnalyzer{client: client}
}

func (a *RequestAnalyzer) Run(ctx context.Context, userMessage string, history []models.ChatMessage, widget *models.Widget, hasConnection bool) (Routing, error) {
	messages := []llm.Message{
		{Role: models.RoleSystem, Content: requestAnalyzerPrompt},
	}
	if widget != nil {
		messages = append(messages, llm.Message{
			Role:    models.RoleSystem,
			Content: "Current widget state:\n" + widgetSummary(widget),
		})
	}
	messages = append(messages, llm.Message{
		Role:    models.RoleSystem,
		Content: fmt.Sprintf("Database connected: %t", hasConnection),
	})
	messages = append(messages, historyMessages(history, 6)...)
	messages = append(messages, llm.Message{Role: models.RoleUser, Content: userMessage})

	var routing Routing
	if err := callJSON(ctx, a.client, NameRequestAnalyzer, messages, 0.2, &routing); err != nil {
		return Routing{}, err
	}
	if routing.Intent == "" {
		routing.Intent = "create_chart"
	}
	return routing, nil
}

// widgetSummary builds a concise textual snapshot of the widget for prompt
// context.
func widgetSummary(w *models.Widget) string {
	var parts []string
	if w.ChartType != "" {
		parts = append(parts, "chart_type: "+w.ChartType)
	}
	if w.QueryTemplate != "" {
		parts = append(parts, "query_template: "+w.QueryTemplate)
	}
	if len(w.ChartConfig) > 0 {
		parts = append(parts, fmt.Sprintf("chart_config: %v", w.ChartConfig))
	}
	if len(w.Filters) > 0 {
		labels := make([]string, 0, len(w.Filters))
		for _, f := range w.Filters {
			label := f.Label
			if label == "" {
				label = f.ParamName
			}
			labels = append(labels, label)
		}
		parts = append(parts, "filters: "+strings.Join(labels, ", "))
	}
	if len(parts) == 0 {
		return "Empty widget"
	}
	return strings.Join(parts, "\n")
}

// historyMessages converts the most recent `last` conversation turns into
// model messages.
func historyMessages(history []models.ChatMessage, last int) []llm.Message {
	if len(history) > last {
		history = history[len(history)-last:]
	}
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
