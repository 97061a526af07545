package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

func TestRequestAnalyzerRouting(t *testing.T) {
	client := &fakeClient{responses: []string{`{
		"intent": "modify_chart",
		"needs_schema_analysis": false,
		"needs_query": false,
		"needs_filters": false,
		"needs_chart": true,
		"message": "",
		"summary": "Make the chart a pie chart"
	}`}}

	routing, err := NewRequestAnalyzer(client).Run(
		context.Background(), "make it a pie chart", nil, &models.Widget{ChartType: "bar"}, true)
	require.NoError(t, err)

	assert.Equal(t, "modify_chart", routing.Intent)
	assert.True(t, routing.NeedsChart)
	assert.False(t, routing.NeedsQuery)
	assert.True(t, routing.NeedsAny())
}

func TestRequestAnalyzerGreeting(t *testing.T) {
	client := &fakeClient{responses: []string{`{
		"intent": "greeting",
		"message": "Hello! Ask me to build a chart.",
		"summary": "Greeting"
	}`}}

	routing, err := NewRequestAnalyzer(client).Run(context.Background(), "hi", nil, nil, false)
	require.NoError(t, err)

	assert.False(t, routing.NeedsAny())
	assert.Equal(t, "Hello! Ask me to build a chart.", routing.Message)
}

func TestRequestAnalyzerDefaultsIntent(t *testing.T) {
	client := &fakeClient{responses: []string{`{"needs_query": true}`}}

	routing, err := NewRequestAnalyzer(client).Run(context.Background(), "sales by month", nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, "create_chart", routing.Intent)
}

func TestWidgetSummary(t *testing.T) {
	assert.Equal(t, "Empty widget", widgetSummary(&models.Widget{}))

	w := &models.Widget{
		ChartType:     "bar",
		QueryTemplate: "SELECT 1",
		Filters: []models.FilterSpec{
			{ParamName: "status", Label: "Status"},
			{ParamName: "region"},
		},
	}
	summary := widgetSummary(w)
	assert.Contains(t, summary, "chart_type: bar")
	assert.Contains(t, summary, "query_template: SELECT 1")
	assert.Contains(t, summary, "filters: Status, region")
}

func TestHistoryMessagesKeepsMostRecent(t *testing.T) {
	var history []models.ChatMessage
	for i := 0; i < 10; i++ {
		history = append(history, models.ChatMessage{Role: models.RoleUser, Content: string(rune('a' + i))})
	}
	out := historyMessages(history, 6)
	require.Len(t, out, 6)
	assert.Equal(t, "e", out[0].Content)
	assert.Equal(t, "j", out[5].Content)
}
