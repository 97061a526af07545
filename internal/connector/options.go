package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
	"github.com/bizmatters/agent-builder/widget-studio/internal/queryengine"
)

const maxOptions = 500

// FilterOptions resolves the selectable options for a select filter. Three
// modes, in priority order: a custom options_query returning value/label
// columns, a DISTINCT over source_table/source_column, and static options
// stored on the filter. All modes honor search and limit.
func (c *Connector) FilterOptions(ctx context.Context, conn *models.Connection, f *models.FilterSpec, search string, limit int) ([]models.FilterOption, error) {
	if limit <= 0 || limit > maxOptions {
		limit = maxOptions
	}

	if f.OptionsQuery != nil && *f.OptionsQuery != "" {
		return c.optionsFromQuery(ctx, conn, *f.OptionsQuery, search, limit)
	}
	if f.SourceTable != nil && f.SourceColumn != nil && *f.SourceTable != "" && *f.SourceColumn != "" {
		return c.optionsFromColumn(ctx, conn, *f.SourceTable, *f.SourceColumn, search, limit)
	}
	return staticOptions(f.Options, search, limit), nil
}

// optionsFromQuery wraps the custom query as a subselect so search and limit
// apply without touching the user's SQL.
func (c *Connector) optionsFromQuery(ctx context.Context, conn *models.Connection, optionsQuery, search string, limit int) ([]models.FilterOption, error) {
	if err := queryengine.ValidateOptionsQuery(optionsQuery); err != nil {
		return nil, err
	}
	inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(optionsQuery), ";"))

	params := map[string]interface{}{"limit": int64(limit)}
	where := ""
	if search != "" {
		where = "WHERE _opts.label LIKE :search "
		params["search"] = "%" + search + "%"
	}
	query := fmt.Sprintf(
		"SELECT _opts.value, _opts.label FROM (%s) AS _opts %sORDER BY _opts.label LIMIT :limit",
		inner, where)

	rows, err := c.ExecuteQuery(ctx, conn, query, params)
	if err != nil {
		return nil, err
	}
	return rowsToOptions(rows, "value", "label"), nil
}

func (c *Connector) optionsFromColumn(ctx context.Context, conn *models.Connection, table, column, search string, limit int) ([]models.FilterOption, error) {
	if !queryengine.ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if !queryengine.ValidIdentifier(column) {
		return nil, fmt.Errorf("invalid column name %q", column)
	}

	params := map[string]interface{}{"limit": int64(limit)}
	where := ""
	if search != "" {
		where = fmt.Sprintf("WHERE `%s`.`%s` LIKE :search ", table, column)
		params["search"] = "%" + search + "%"
	}
	query := fmt.Sprintf(
		"SELECT DISTINCT `%s`.`%s` AS value FROM `%s` %sORDER BY value LIMIT :limit",
		table, column, table, where)

	rows, err := c.ExecuteQuery(ctx, conn, query, params)
	if err != nil {
		return nil, err
	}
	return rowsToOptions(rows, "value", "value"), nil
}

func staticOptions(options []models.FilterOption, search string, limit int) []models.FilterOption {
	out := []models.FilterOption{}
	term := strings.ToLower(search)
	for _, o := range options {
		if term != "" && !strings.Contains(strings.ToLower(o.Label), term) {
			continue
		}
		out = append(out, o)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func rowsToOptions(rows []map[string]interface{}, valueCol, labelCol string) []models.FilterOption {
	out := make([]models.FilterOption, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.FilterOption{
			Value: stringify(row[valueCol]),
			Label: stringify(row[labelCol]),
		})
	}
	return out
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
