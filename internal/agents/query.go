package agents

import (
	"context"
	"encoding/json"

	"github.com/bizmatters/agent-builder/widget-studio/internal/llm"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

const queryBuilderPrompt = `You are a SQL query builder for a dashboard widget tool.
Given the user's request, a database schema analysis, and the current widget
state, produce (or modify) an SQL query template.

CRITICAL template rules:
1. Start the WHERE clause with  WHERE 1=1
2. Wrap each optional filter in conditional blocks:
   {% if param_name %} AND column = :param_name {% endif %}
3. For date_range filters use TWO conditions:
   {% if date_start %} AND col >= :date_start {% endif %}
   {% if date_end %} AND col <= :date_end {% endif %}
4. Parameters inside SQL use :param_name (colon prefix).
5. The query MUST return valid data even when NO filters are applied
   (all conditionals stripped out).
6. Conditional JOINs are allowed:
   {% if some_param %} JOIN ... {% endif %}
7. LIMIT is also allowed:
   {% if limit %} LIMIT :limit {% endif %}

Safety rules:
- Only SELECT queries. Never DROP, DELETE, UPDATE, INSERT.
- Always include GROUP BY / ORDER BY when aggregating.
- Use table aliases for readability.
- Prefer explicit JOIN over implicit comma joins.
- Use DATE_FORMAT or equivalent for date grouping.

Return a JSON object:
{
  "query_template": "SELECT ... (the full SQL template)",
  "explanation": "Short human-readable explanation",
  "output_columns": [
    {"name": "col_alias", "type": "string|number|date"}
  ]
}

output_columns describes what the query returns; the chart builder uses it
to map axes. If the user asks to MODIFY the existing query, keep unchanged
parts intact and only alter what is requested.`

// OutputColumn describes one column the generated query returns.
type OutputColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryResult is the query builder's output.
type QueryResult struct {
	QueryTemplate string         `json:"query_template"`
	Explanation   string         `json:"explanation"`
	OutputColumns []OutputColumn `json:"output_columns"`
}

// QueryBuilder generates or modifies SQL query templates.
type QueryBuilder struct {
	client llm.Client
}

func NewQueryBuilder(client llm.Client) *QueryBuilder {
	return &QueryBuilder{client: client}
}

func (a *QueryBuilder) Run(ctx context.Context, userMessage, summary string, history []models.ChatMessage, widget *models.Widget, analysis *SchemaAnalysis) (*QueryResult, error) {
	messages := []llm.Message{
		{Role: models.RoleSystem, Content: queryBuilderPrompt},
	}
	if analysis != nil {
		text, _ := json.MarshalIndent(analysis, "", "  ")
		messages = append(messages, llm.Message{
			Role:    models.RoleSystem,
			Content: "Database schema analysis:\n" + string(text),
		})
	}
	if widget != nil && widget.QueryTemplate != "" {
		messages = append(messages, llm.Message{
			Role:    models.RoleSystem,
			Content: "Current query template:\n" + widget.QueryTemplate,
		})
	}
	// The query builder needs only the latest turns; the intent summary
	// carries the rest.
	messages = append(messages, historyMessages(history, 4)...)
	messages = append(messages, llm.Message{Role: models.RoleUser, Content: userText(userMessage, summary)})

	var result QueryResult
	if err := callJSON(ctx, a.client, NameQueryBuilder, messages, 0.4, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// userText prefixes the user message with the request analyzer's intent
// summary when one exists.
func userText(userMessage, summary string) string {
	if summary == "" {
		return userMessage
	}
	return "[Intent: " + summary + "]\n" + userMessage
}
