// Package connector talks to user-configured target MySQL databases: health
// checks, schema introspection, and read-only query execution.
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
	"github.com/bizmatters/agent-builder/widget-studio/internal/queryengine"
)

// maxRows caps every widget data query. Charts never need more.
const maxRows = 10000

// Connector opens short-lived connections to target databases. Target
// databases are external systems the user points us at; nothing is pooled
// across requests so credential changes take effect immediately.
type Connector struct {
	connectTimeout time.Duration
}

func New(connectTimeout time.Duration) *Connector {
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	return &Connector{connectTimeout: connectTimeout}
}

func (c *Connector) open(conn *models.Connection) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = conn.Username
	cfg.Passwd = conn.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", conn.Host, conn.Port)
	cfg.DBName = conn.DatabaseName
	cfg.ParseTime = true
	cfg.Timeout = c.connectTimeout

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open target database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Minute)
	return db, nil
}

// TestConnection verifies the target database is reachable with the stored
// credentials.
func (c *Connector) TestConnection(ctx context.Context, conn *models.Connection) error {
	db, err := c.open(conn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("target database unreachable: %w", err)
	}
	return nil
}

// GetSchema introspects the target database's tables, columns, and foreign
// keys from information_schema.
func (c *Connector) GetSchema(ctx context.Context, conn *models.Connection) (*models.Schema, error) {
	db, err := c.open(conn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	schema := &models.Schema{Database: conn.DatabaseName}

	rows, err := db.QueryContext(ctx,
		`SELECT TABLE_NAME, COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY
		 FROM information_schema.COLUMNS
		 WHERE TABLE_SCHEMA = ?
		 ORDER BY TABLE_NAME, ORDINAL_POSITION`,
		conn.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	defer rows.Close()

	tableIndex := map[string]int{}
	for rows.Next() {
		var table, column, colType, nullable, key string
		if err := rows.Scan(&table, &column, &colType, &nullable, &key); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		idx, ok := tableIndex[table]
		if !ok {
			idx = len(schema.Tables)
			tableIndex[table] = idx
			schema.Tables = append(schema.Tables, models.SchemaTable{Name: table})
		}
		schema.Tables[idx].Columns = append(schema.Tables[idx].Columns, models.SchemaColumn{
			Name:       column,
			Type:       colType,
			Nullable:   nullable == "YES",
			PrimaryKey: key == "PRI",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	fkRows, err := db.QueryContext(ctx,
		`SELECT TABLE_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		 FROM information_schema.KEY_COLUMN_USAGE
		 WHERE TABLE_SCHEMA = ? AND REFERENCED_TABLE_NAME IS NOT NULL
		 ORDER BY TABLE_NAME, CONSTRAINT_NAME, ORDINAL_POSITION`,
		conn.DatabaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var table, column, refTable, refColumn string
		if err := fkRows.Scan(&table, &column, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		idx, ok := tableIndex[table]
		if !ok {
			continue
		}
		schema.Tables[idx].ForeignKeys = append(schema.Tables[idx].ForeignKeys, models.ForeignKey{
			Columns:         []string{column},
			ReferredTable:   refTable,
			ReferredColumns: []string{refColumn},
		})
	}
	return schema, fkRows.Err()
}

// ExecuteQuery runs rendered, read-only SQL with bound parameters against
// the target database and returns rows as column-name maps.
func (c *Connector) ExecuteQuery(ctx context.Context, conn *models.Connection, sqlText string, params map[string]interface{}) ([]map[string]interface{}, error) {
	if err := queryengine.ValidateReadOnly(sqlText); err != nil {
		return nil, err
	}
	rebound, args, err := queryengine.Rebind(sqlText, params)
	if err != nil {
		return nil, err
	}

	db, err := c.open(conn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, rebound, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := []map[string]interface{}{}
	for rows.Next() {
		if len(out) >= maxRows {
			break
		}
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeValue makes driver values JSON-friendly. The MySQL driver hands
// back []byte for text and decimal columns.
func normalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
