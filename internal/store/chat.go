package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

// LoadConversation loads a widget's conversation state: its summary plus the
// raw turns recorded after the last compaction.
func (s *Store) LoadConversation(ctx context.Context, widgetID string) (models.ConversationState, error) {
	var state models.ConversationState

	err := s.db.QueryRow(ctx,
		`SELECT COALESCE(chat_summary, '') FROM widgets WHERE id = $1`,
		widgetID,
	).Scan(&state.Summary)
	if err != nil {
		if err == pgx.ErrNoRows {
			return state, ErrNotFound
		}
		return state, fmt.Errorf("failed to load chat summary: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, widget_id, role, content, metadata, created_at
		 FROM chat_messages
		 WHERE widget_id = $1 AND NOT compacted
		 ORDER BY created_at, id`,
		widgetID)
	if err != nil {
		return state, fmt.Errorf("failed to load chat messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.WidgetID, &m.Role, &m.Content, &m.Metadata, &m.CreatedAt); err != nil {
			return state, fmt.Errorf("failed to scan chat message: %w", err)
		}
		state.Messages = append(state.Messages, m)
	}
	return state, rows.Err()
}

// SaveMessage appends one conversation turn.
func (s *Store) SaveMessage(ctx context.Context, widgetID string, msg models.ChatMessage) (*models.ChatMessage, error) {
	return insertMessage(ctx, s.db, widgetID, msg)
}

// MarkCompacted flags every turn except the most recent `keep` as folded
// into the summary, so later loads return only the tail.
func (s *Store) MarkCompacted(ctx context.Context, widgetID string, keep int) error {
	_, err := s.db.Exec(ctx,
		`UPDATE chat_messages SET compacted = TRUE
		 WHERE widget_id = $1 AND id NOT IN (
		   SELECT id FROM chat_messages
		   WHERE widget_id = $1
		   ORDER BY created_at DESC, id DESC
		   LIMIT $2
		 )`,
		widgetID, keep)
	if err != nil {
		return fmt.Errorf("failed to mark messages compacted: %w", err)
	}
	return nil
}

type execer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertMessage(ctx context.Context, db execer, widgetID string, msg models.ChatMessage) (*models.ChatMessage, error) {
	msg.WidgetID = widgetID
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	err := db.QueryRow(ctx,
		`INSERT INTO chat_messages (id, widget_id, role, content, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		msg.ID, widgetID, msg.Role, msg.Content, msg.Metadata,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save chat message: %w", err)
	}
	return &msg, nil
}
