package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// CreateWidget inserts a new widget and returns it with generated fields.
func (s *Store) CreateWidget(ctx context.Context, w *models.Widget) (*models.Widget, error) {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO widgets (id, connection_id, name, description, chart_type, chart_config, layout_config, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		w.ID, w.ConnectionID, w.Name, w.Description, w.ChartType, w.ChartConfig, w.LayoutConfig, true,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create widget: %w", err)
	}
	w.IsActive = true
	w.Filters = []models.FilterSpec{}
	return w, nil
}

// GetWidget loads one widget with its filters.
func (s *Store) GetWidget(ctx context.Context, id string) (*models.Widget, error) {
	var w models.Widget
	err := s.db.QueryRow(ctx,
		`SELECT id, connection_id, name, description, chart_type,
		        COALESCE(query_template, ''), chart_config, layout_config,
		        COALESCE(chat_summary, ''), is_active, created_at, updated_at
		 FROM widgets WHERE id = $1`,
		id,
	).Scan(&w.ID, &w.ConnectionID, &w.Name, &w.Description, &w.ChartType,
		&w.QueryTemplate, &w.ChartConfig, &w.LayoutConfig,
		&w.ChatSummary, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get widget: %w", err)
	}

	filters, err := s.listFilters(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Filters = filters
	return &w, nil
}

// ListWidgets returns all active widgets, newest first, without filters.
func (s *Store) ListWidgets(ctx context.Context) ([]models.Widget, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, connection_id, name, description, chart_type,
		        COALESCE(query_template, ''), chart_config, layout_config,
		        is_active, created_at, updated_at
		 FROM widgets WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list widgets: %w", err)
	}
	defer rows.Close()

	widgets := []models.Widget{}
	for rows.Next() {
		var w models.Widget
		if err := rows.Scan(&w.ID, &w.ConnectionID, &w.Name, &w.Description, &w.ChartType,
			&w.QueryTemplate, &w.ChartConfig, &w.LayoutConfig,
			&w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan widget: %w", err)
		}
		widgets = append(widgets, w)
	}
	return widgets, rows.Err()
}

// UpdateWidgetMeta updates user-editable widget fields. The query template
// and chat summary are pipeline-owned and not touched here.
func (s *Store) UpdateWidgetMeta(ctx context.Context, w *models.Widget) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE widgets
		 SET connection_id = $2, name = $3, description = $4, layout_config = $5, updated_at = NOW()
		 WHERE id = $1`,
		w.ID, w.ConnectionID, w.Name, w.Description, w.LayoutConfig)
	if err != nil {
		return fmt.Errorf("failed to update widget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWidget removes a widget and its dependent rows.
func (s *Store) DeleteWidget(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		`DELETE FROM widget_filters WHERE widget_id = $1`,
		`DELETE FROM chat_messages WHERE widget_id = $1`,
	} {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete widget dependents: %w", err)
		}
	}
	tag, err := tx.Exec(ctx, `DELETE FROM widgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete widget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// DeleteFilter removes one filter from a widget.
func (s *Store) DeleteFilter(ctx context.Context, widgetID, filterID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM widget_filters WHERE id = $1 AND widget_id = $2`,
		filterID, widgetID)
	if err != nil {
		return fmt.Errorf("failed to delete filter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) listFilters(ctx context.Context, widgetID string) ([]models.FilterSpec, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, widget_id, param_name, label, filter_type,
		        source_table, source_column, options_query, default_value,
		        options, config, sort_order
		 FROM widget_filters WHERE widget_id = $1 ORDER BY sort_order, param_name`,
		widgetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}
	defer rows.Close()

	filters := []models.FilterSpec{}
	for rows.Next() {
		var f models.FilterSpec
		if err := rows.Scan(&f.ID, &f.WidgetID, &f.ParamName, &f.Label, &f.FilterType,
			&f.SourceTable, &f.SourceColumn, &f.OptionsQuery, &f.DefaultValue,
			&f.Options, &f.Config, &f.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan filter: %w", err)
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// ApplyOutcome is everything one successful pipeline turn persists.
type ApplyOutcome struct {
	WidgetID     string
	Update       *models.WidgetUpdate
	Filters      []models.FilterSpec
	Removals     []string
	UserMessage  models.ChatMessage
	ReplyMessage models.ChatMessage
	ChatSummary  *string
	// CompactedKeep, when positive, marks all but the newest N existing
	// turns as folded into the summary.
	CompactedKeep int
}

// ApplyResult persists a pipeline turn atomically: widget field updates,
// filter removals then additions, both conversation turns, and the updated
// chat summary when compaction ran. Either everything lands or nothing does.
func (s *Store) ApplyResult(ctx context.Context, outcome ApplyOutcome) ([]models.ChatMessage, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if u := outcome.Update; u != nil && !u.IsZero() {
		_, err = tx.Exec(ctx,
			`UPDATE widgets
			 SET chart_type = COALESCE($2, chart_type),
			     query_template = COALESCE($3, query_template),
			     chart_config = COALESCE($4, chart_config),
			     updated_at = NOW()
			 WHERE id = $1`,
			outcome.WidgetID, u.ChartType, u.QueryTemplate, u.ChartConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to update widget: %w", err)
		}
	}

	// Removals run before additions so a filter can be replaced in one turn.
	for _, param := range outcome.Removals {
		if _, err := tx.Exec(ctx,
			`DELETE FROM widget_filters WHERE widget_id = $1 AND param_name = $2`,
			outcome.WidgetID, param); err != nil {
			return nil, fmt.Errorf("failed to remove filter %q: %w", param, err)
		}
	}

	for i, f := range outcome.Filters {
		id := f.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO widget_filters
			   (id, widget_id, param_name, label, filter_type,
			    source_table, source_column, options_query, default_value, options, config, sort_order)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (widget_id, param_name) DO UPDATE SET
			   label = EXCLUDED.label,
			   filter_type = EXCLUDED.filter_type,
			   source_table = EXCLUDED.source_table,
			   source_column = EXCLUDED.source_column,
			   options_query = EXCLUDED.options_query,
			   default_value = EXCLUDED.default_value,
			   options = EXCLUDED.options,
			   config = EXCLUDED.config,
			   sort_order = EXCLUDED.sort_order`,
			id, outcome.WidgetID, f.ParamName, f.Label, f.FilterType,
			f.SourceTable, f.SourceColumn, f.OptionsQuery, f.DefaultValue, f.Options, f.Config, i)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert filter %q: %w", f.ParamName, err)
		}
	}

	if outcome.ChatSummary != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE widgets SET chat_summary = $2 WHERE id = $1`,
			outcome.WidgetID, *outcome.ChatSummary); err != nil {
			return nil, fmt.Errorf("failed to save chat summary: %w", err)
		}
	}

	if outcome.CompactedKeep > 0 {
		_, err = tx.Exec(ctx,
			`UPDATE chat_messages SET compacted = TRUE
			 WHERE widget_id = $1 AND id NOT IN (
			   SELECT id FROM chat_messages
			   WHERE widget_id = $1
			   ORDER BY created_at DESC, id DESC
			   LIMIT $2
			 )`,
			outcome.WidgetID, outcome.CompactedKeep)
		if err != nil {
			return nil, fmt.Errorf("failed to mark messages compacted: %w", err)
		}
	}

	saved := make([]models.ChatMessage, 0, 2)
	for _, msg := range []models.ChatMessage{outcome.UserMessage, outcome.ReplyMessage} {
		m, err := insertMessage(ctx, tx, outcome.WidgetID, msg)
		if err != nil {
			return nil, err
		}
		saved = append(saved, *m)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit pipeline result: %w", err)
	}
	return saved, nil
}
