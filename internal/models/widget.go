package models

import (
	"time"
)

// FilterType identifies the UI control a filter renders as.
type FilterType string

const (
	FilterTypeSelect    FilterType = "select"
	FilterTypeText      FilterType = "text"
	FilterTypeNumber    FilterType = "number"
	FilterTypeDate      FilterType = "date"
	FilterTypeDateRange FilterType = "date_range"
	FilterTypeSlider    FilterType = "slider"
)

// IsNumeric reports whether values for this filter type must be numbers.
func (t FilterType) IsNumeric() bool {
	return t == FilterTypeNumber || t == FilterTypeSlider
}

// FilterOption is a single selectable value for a select filter.
type FilterOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterSpec declares one user-adjustable query parameter and its UI control.
// A date_range filter expands to two runtime parameters, <param>_start and
// <param>_end.
type FilterSpec struct {
	ID           string                 `json:"id,omitempty" db:"id"`
	WidgetID     string                 `json:"widget_id,omitempty" db:"widget_id"`
	ParamName    string                 `json:"param_name" db:"param_name"`
	Label        string                 `json:"label" db:"label"`
	FilterType   FilterType             `json:"filter_type" db:"filter_type"`
	SourceTable  *string                `json:"source_table" db:"source_table"`
	SourceColumn *string                `json:"source_column" db:"source_column"`
	OptionsQuery *string                `json:"options_query" db:"options_query"`
	DefaultValue *string                `json:"default_value" db:"default_value"`
	Options      []FilterOption         `json:"options,omitempty" db:"options"`
	Config       map[string]interface{} `json:"config,omitempty" db:"config"`
	SortOrder    int                    `json:"sort_order" db:"sort_order"`
}

// RuntimeParams returns the parameter names this filter contributes at query
// time.
func (f FilterSpec) RuntimeParams() []string {
	if f.FilterType == FilterTypeDateRange {
		return []string{f.ParamName + "_start", f.ParamName + "_end"}
	}
	return []string{f.ParamName}
}

// Widget is a persisted chart widget definition.
type Widget struct {
	ID            string                 `json:"id" db:"id"`
	ConnectionID  *string                `json:"connection_id" db:"connection_id"`
	Name          string                 `json:"name" db:"name"`
	Description   string                 `json:"description" db:"description"`
	ChartType     string                 `json:"chart_type" db:"chart_type"`
	QueryTemplate string                 `json:"-" db:"query_template"` // only the pipeline may set this
	ChartConfig   map[string]interface{} `json:"chart_config" db:"chart_config"`
	LayoutConfig  map[string]interface{} `json:"layout_config" db:"layout_config"`
	ChatSummary   string                 `json:"-" db:"chat_summary"`
	IsActive      bool                   `json:"is_active" db:"is_active"`
	Filters       []FilterSpec           `json:"filters"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at" db:"updated_at"`
}

// HasQuery reports whether the widget has a query template configured.
func (w *Widget) HasQuery() bool {
	return w.QueryTemplate != ""
}

// AllowedParams returns the set of runtime parameter names the widget's
// declared filters permit. Values outside this set are ignored so callers
// cannot inject arbitrary query parameters.
func (w *Widget) AllowedParams() map[string]bool {
	allowed := make(map[string]bool)
	for _, f := range w.Filters {
		for _, p := range f.RuntimeParams() {
			allowed[p] = true
		}
	}
	return allowed
}

// WidgetUpdate is the canonical partial update produced by one pipeline turn.
// A nil field means "no change"; the merger never fabricates a field no agent
// proposed.
type WidgetUpdate struct {
	ChartType     *string                `json:"chart_type,omitempty"`
	QueryTemplate *string                `json:"query_template,omitempty"`
	ChartConfig   map[string]interface{} `json:"chart_config,omitempty"`
}

// IsZero reports whether the update carries no changes at all.
func (u *WidgetUpdate) IsZero() bool {
	return u == nil || (u.ChartType == nil && u.QueryTemplate == nil && u.ChartConfig == nil)
}
