package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

// CreateConnection inserts a new target database connection.
func (s *Store) CreateConnection(ctx context.Context, c *models.Connection) (*models.Connection, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO connections (id, name, host, port, username, password, database_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		c.ID, c.Name, c.Host, c.Port, c.Username, c.Password, c.DatabaseName,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}
	return c, nil
}

// GetConnection loads one connection, including its credential.
func (s *Store) GetConnection(ctx context.Context, id string) (*models.Connection, error) {
	var c models.Connection
	err := s.db.QueryRow(ctx,
		`SELECT id, name, host, port, username, password, database_name, created_at, updated_at
		 FROM connections WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Host, &c.Port, &c.Username, &c.Password, &c.DatabaseName,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return &c, nil
}

// ListConnections returns all connections, newest first.
func (s *Store) ListConnections(ctx context.Context) ([]models.Connection, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, host, port, username, password, database_name, created_at, updated_at
		 FROM connections ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	conns := []models.Connection{}
	for rows.Next() {
		var c models.Connection
		if err := rows.Scan(&c.ID, &c.Name, &c.Host, &c.Port, &c.Username, &c.Password,
			&c.DatabaseName, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// DeleteConnection removes a connection; widgets keep running but lose their
// data source until reassigned.
func (s *Store) DeleteConnection(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE widgets SET connection_id = NULL WHERE connection_id = $1`, id); err != nil {
		return fmt.Errorf("failed to detach widgets: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM schema_analyses WHERE connection_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete cached analyses: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}
