package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bizmatters/agent-builder/widget-studio/internal/llm"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
	"github.com/bizmatters/agent-builder/widget-studio/internal/queryengine"
)

const filterBuilderPrompt = `You are a filter designer for a dashboard widget tool.
Given the SQL query template and the database schema analysis, design
appropriate interactive filters.

## Available filter types

| filter_type | UI control          | When to use                          |
|-------------|---------------------|--------------------------------------|
| select      | Searchable dropdown | Categorical data with a finite set   |
| text        | Free-text input     | Arbitrary string match (LIKE / =)    |
| number      | Numeric input box   | Exact numeric value (LIMIT, year...) |
| date        | Single date picker  | One date bound (e.g. snapshot date)  |
| date_range  | Two date pickers    | Start + end bounds on date columns   |
| slider      | Range slider        | Bounded numeric range (price, qty)   |

### date_range details
Create ONE filter entry with filter_type="date_range". The param_name is a
base name (e.g. "order_date"). The system maps it to :order_date_start and
:order_date_end, and each bound may be set independently.

### slider details
For slider you MUST include a "config" object with:
  {"min": <number>, "max": <number>, "step": <number>}
Choose min/max based on realistic data ranges.

### select data source
Two options:
  Option A - Simple mode: set source_table + source_column for DISTINCT
  values from a single column.
  Option B - Custom query mode: set options_query to a SELECT returning
  "value" and "label" columns (for JOINs / computed labels). Leave
  source_table and source_column null.

## Return format (JSON)
{
  "filters": [
    {
      "param_name": "matches_query_placeholder",
      "label": "Human-readable label",
      "filter_type": "select|date|date_range|text|number|slider",
      "source_table": "table_name_or_null",
      "source_column": "column_name_or_null",
      "options_query": "SELECT ... AS value, ... AS label ... or null",
      "default_value": "value_or_null",
      "config": {"min": 0, "max": 100, "step": 1}
    }
  ],
  "removals": ["param_name_of_filter_to_remove"],
  "explanation": "Short summary of filters created",
  "warnings": ["any issues detected"]
}

## Rules
1. Every param_name must match a :param_name in the query.
2. source_table / source_column must exist in the schema.
3. Do NOT create filters for params absent from the query.
4. date_range requires :param_start and :param_end placeholders.
5. options_query must be a read-only SELECT with "value" + "label".
6. slider MUST have config with min, max, step.
7. List param_names of obsolete existing filters in "removals".
8. Choose the most appropriate filter_type for each parameter:
   dates -> date or date_range; status/category -> select;
   counts/limits -> number or slider; free text search -> text.`

// FilterResult is the filter builder's validated output.
type FilterResult struct {
	Filters     []models.FilterSpec `json:"filters"`
	Removals    []string            `json:"removals"`
	Explanation string              `json:"explanation"`
	Warnings    []string            `json:"warnings"`
}

// FilterBuilder designs filter definitions and validates them against the
// query template and schema before they reach persistence.
type FilterBuilder struct {
	client llm.Client
}

func NewFilterBuilder(client llm.Client) *FilterBuilder {
	return &FilterBuilder{client: client}
}

func (a *FilterBuilder) Run(ctx context.Context, userMessage, summary, queryTemplate string, widget *models.Widget, analysis *SchemaAnalysis) (*FilterResult, error) {
	messages := []llm.Message{
		{Role: models.RoleSystem, Content: filterBuilderPrompt},
	}
	if queryTemplate != "" {
		messages = append(messages, llm.Message{
			Role:    models.RoleSystem,
			Content: "Query template:\n" + queryTemplate,
		})
	}
	if analysis != nil {
		text, _ := json.MarshalIndent(analysis, "", "  ")
		messages = append(messages, llm.Message{
			Role:    models.RoleSystem,
			Content: "Schema analysis:\n" + string(text),
		})
	}
	if widget != nil && len(widget.Filters) > 0 {
		text, _ := json.Marshal(widget.Filters)
		messages = append(messages, llm.Message{
			Role:    models.RoleSystem,
			Content: "Current filters:\n" + string(text),
		})
	}
	messages = append(messages, llm.Message{Role: models.RoleUser, Content: userText(userMessage, summary)})

	var result FilterResult
	if err := callJSON(ctx, a.client, NameFilterBuilder, messages, 0.3, &result); err != nil {
		return nil, err
	}
	if queryTemplate != "" {
		sanitizeFilters(&result, queryTemplate, widget, analysis)
	}
	return &result, nil
}

// sanitizeFilters enforces the structural contract the model cannot be
// trusted to keep: every filter must bind a placeholder the template
// actually contains, identifiers must be well formed, and removals must
// refer to filters that exist.
func sanitizeFilters(result *FilterResult, queryTemplate string, widget *models.Widget, analysis *SchemaAnalysis) {
	allParams := make(map[string]bool)
	for _, p := range queryengine.AllParams(queryTemplate) {
		allParams[p] = true
	}

	knownTables := make(map[string]bool)
	if analysis != nil {
		for _, t := range analysis.Tables {
			knownTables[t.Name] = true
		}
	}

	valid := result.Filters[:0]
	for _, f := range result.Filters {
		if !queryengine.ValidIdentifier(f.ParamName) {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Filter %q has an invalid parameter name, removed.", f.ParamName))
			continue
		}
		if f.FilterType == models.FilterTypeDateRange {
			if !allParams[f.ParamName+"_start"] && !allParams[f.ParamName+"_end"] {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("Filter %q (date_range) has no matching :%s_start / :%s_end in the query, removed.",
						f.ParamName, f.ParamName, f.ParamName))
				continue
			}
		} else if !allParams[f.ParamName] {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Filter %q has no matching :%s in the query, removed.", f.ParamName, f.ParamName))
			continue
		}
		if f.SourceTable != nil && len(knownTables) > 0 && !knownTables[*f.SourceTable] {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Filter %q: source_table %q not found, cleared.", f.ParamName, *f.SourceTable))
			f.SourceTable = nil
			f.SourceColumn = nil
		}
		valid = append(valid, f)
	}
	result.Filters = valid

	existing := make(map[string]bool)
	if widget != nil {
		for _, f := range widget.Filters {
			existing[f.ParamName] = true
		}
	}
	removals := result.Removals[:0]
	for _, r := range result.Removals {
		if existing[r] {
			removals = append(removals, r)
		}
	}
	result.Removals = removals
}
