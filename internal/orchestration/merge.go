package orchestration

import (
	"strings"

	"github.com/bizmatters/agent-builder/widget-studio/internal/agents"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

// merge combines the selected agents' outputs into the canonical result.
// Fields no agent produced stay nil, so persistence only touches what this
// turn actually changed.
func merge(routing agents.Routing, queryResult *agents.QueryResult, filterResult *agents.FilterResult, chartResult *agents.ChartResult) *Result {
	update := &models.WidgetUpdate{}
	filters := []models.FilterSpec{}
	var removals []string
	var explanations []string

	if queryResult != nil {
		if queryResult.QueryTemplate != "" {
			qt := queryResult.QueryTemplate
			update.QueryTemplate = &qt
		}
		if queryResult.Explanation != "" {
			explanations = append(explanations, "Query: "+queryResult.Explanation)
		}
	}

	if chartResult != nil {
		if chartResult.ChartType != "" {
			ct := chartResult.ChartType
			update.ChartType = &ct
		}
		if len(chartResult.ChartConfig) > 0 {
			update.ChartConfig = chartResult.ChartConfig
		}
		if chartResult.Explanation != "" {
			explanations = append(explanations, "Chart: "+chartResult.Explanation)
		}
	}

	if filterResult != nil {
		filters = filterResult.Filters
		removals = filterResult.Removals
		if filterResult.Explanation != "" {
			explanations = append(explanations, "Filters: "+filterResult.Explanation)
		}
		for _, w := range filterResult.Warnings {
			explanations = append(explanations, "Warning: "+w)
		}
	}

	message := strings.Join(explanations, "\n")
	if message == "" {
		message = routing.Summary
		if message == "" {
			message = "Done."
		}
	}

	if update.IsZero() {
		update = nil
	}
	return &Result{
		Message:      message,
		WidgetUpdate: update,
		Filters:      filters,
		Removals:     removals,
		Intent:       routing.Intent,
	}
}
