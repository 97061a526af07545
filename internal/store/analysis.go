package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bizmatters/agent-builder/widget-studio/internal/agents"
)

// GetSchemaAnalysis returns the cached analysis for a connection when its
// stored schema hash matches expectedHash. A stale or missing cache is a
// miss, not an error.
func (s *Store) GetSchemaAnalysis(ctx context.Context, connectionID, expectedHash string) (*agents.SchemaAnalysis, error) {
	var storedHash string
	var payload []byte
	err := s.db.QueryRow(ctx,
		`SELECT schema_hash, analysis FROM schema_analyses WHERE connection_id = $1`,
		connectionID,
	).Scan(&storedHash, &payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load schema analysis: %w", err)
	}
	if storedHash != expectedHash {
		return nil, nil
	}

	var analysis agents.SchemaAnalysis
	if err := json.Unmarshal(payload, &analysis); err != nil {
		// A corrupt cache entry is treated as a miss and overwritten on the
		// next Put.
		return nil, nil
	}
	return &analysis, nil
}

// PutSchemaAnalysis upserts the cached analysis for a connection.
func (s *Store) PutSchemaAnalysis(ctx context.Context, connectionID, schemaHash string, analysis *agents.SchemaAnalysis) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to encode schema analysis: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO schema_analyses (id, connection_id, schema_hash, analysis)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (connection_id) DO UPDATE SET
		   schema_hash = EXCLUDED.schema_hash,
		   analysis = EXCLUDED.analysis,
		   updated_at = NOW()`,
		uuid.New().String(), connectionID, schemaHash, payload)
	if err != nil {
		return fmt.Errorf("failed to save schema analysis: %w", err)
	}
	return nil
}
