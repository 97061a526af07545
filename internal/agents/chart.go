package agents

import (
	"context"
	"encoding/json"

	"github.com/bizmatters/agent-builder/widget-studio/internal/llm"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

const chartBuilderPrompt = `You are a data-visualisation expert for a Chart.js dashboard
widget builder. Given the SQL query's output columns, the user's request,
and the current widget state, choose the optimal chart type and produce a
chart_config.

Supported chart types:
  bar, line, pie, doughnut, area, scatter

Return a JSON object:
{
  "chart_type": "bar|line|pie|doughnut|area|scatter",
  "chart_config": {
    "x_axis": "column_name_for_x_axis",
    "y_axis": "column_name_for_y_axis",
    "colors": ["#4F46E5", "#10B981", "#F59E0B", "#EF4444"],
    "title": {
      "display": true,
      "text": "Descriptive Chart Title"
    },
    "legend": {
      "display": true,
      "position": "top"
    },
    "indexAxis": "x"
  },
  "explanation": "Why this chart type and config was chosen"
}

Guidelines:
1. Time-series data -> line or area chart.
2. Categorical comparison -> bar chart (horizontal if many categories:
   set indexAxis="y").
3. Part-of-whole -> pie or doughnut.
4. Two numeric axes -> scatter.
5. x_axis / y_axis must match column aliases returned by the SQL query.
6. Provide 4-8 pleasant colours (hex) that work well together.
7. Title text should be concise and descriptive.
8. If the user asks to change only the chart style, keep x_axis / y_axis
   from the current config unless the query changed too.`

// ChartResult is the chart builder's output.
type ChartResult struct {
	ChartType   string                 `json:"chart_type"`
	ChartConfig map[string]interface{} `json:"chart_config"`
	Explanation string                 `json:"explanation"`
}

// ChartBuilder chooses the chart type and builds its Chart.js configuration.
type ChartBuilder struct {
	client llm.Client
}

func NewChartBuilder(client llm.Client) *ChartBuilder {
	return &ChartBuilder{client: client}
}

func (a *ChartBuilder) Run(ctx context.Context, userMessage, summary string, history []models.ChatMessage, widget *models.Widget, outputColumns []OutputColumn) (*ChartResult, error) {
	messages := []llm.Message{
		{Role: models.RoleSystem, Content: chartBuilderPrompt},
	}
	if len(outputColumns) > 0 {
		text, _ := json.Marshal(outputColumns)
		messages = append(messages, llm.Message{
			Role:    models.RoleSystem,
			Content: "Query output columns:\n" + string(text),
		})
	}
	if widget != nil && (widget.ChartType != "" || len(widget.ChartConfig) > 0) {
		current := map[string]interface{}{}
		if widget.ChartType != "" {
			current["chart_type"] = widget.ChartType
		}
		if len(widget.ChartConfig) > 0 {
			current["chart_config"] = widget.ChartConfig
		}
		text, _ := json.MarshalIndent(current, "", "  ")
		messages = append(messages, llm.Message{
			Role:    models.RoleSystem,
			Content: "Current chart configuration:\n" + string(text),
		})
	}
	messages = append(messages, historyMessages(history, 4)...)
	messages = append(messages, llm.Message{Role: models.RoleUser, Content: userText(userMessage, summary)})

	var result ChartResult
	if err := callJSON(ctx, a.client, NameChartBuilder, messages, 0.5, &result); err != nil {
		return nil, err
	}
	if result.ChartType == "" {
		result.ChartType = "bar"
	}
	return &result, nil
}
