package helpers

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// GetTestDatabasePool creates a database connection pool for testing
func GetTestDatabasePool(ctx context.Context) (*pgxpool.Pool, error) {
	databaseURL := buildDatabaseURL()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// buildDatabaseURL constructs the database URL from environment variables.
// Inside a cluster the service DNS name is the default host; locally it is
// localhost.
func buildDatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
			host = "widget-studio-db-rw.intelligence-widgets.svc"
		} else {
			host = "localhost"
		}
	}

	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("POSTGRES_DB")
	if dbname == "" {
		dbname = "widget_studio_test"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=prefer",
		user, password, host, port, dbname)
}

// TestDatabase provides database utilities for testing
type TestDatabase struct {
	Pool *pgxpool.Pool
	ctx  context.Context
}

// NewTestDatabase creates a new test database instance. The test is skipped
// when no database is reachable.
func NewTestDatabase(t *testing.T) *TestDatabase {
	ctx := context.Background()

	pool, err := GetTestDatabasePool(ctx)
	if err != nil {
		t.Skipf("Skipping: test database unavailable: %v", err)
	}

	return &TestDatabase{
		Pool: pool,
		ctx:  ctx,
	}
}

// Close closes the database connection
func (db *TestDatabase) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// CreateTestUser creates a test user with a bcrypt-hashed password and
// returns the user ID.
func (db *TestDatabase) CreateTestUser(t *testing.T, email, password string) string {
	hashed, err := db.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	var userID string
	err = db.Pool.QueryRow(db.ctx, `
		INSERT INTO users (name, email, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id
	`, "Test User", email, hashed).Scan(&userID)

	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return userID
}

// CreateTestWidget creates a widget row and returns the widget ID.
func (db *TestDatabase) CreateTestWidget(t *testing.T, name, description string) string {
	var widgetID string
	err := db.Pool.QueryRow(db.ctx, `
		INSERT INTO widgets (name, description, chart_type, is_active, created_at, updated_at)
		VALUES ($1, $2, 'bar', TRUE, NOW(), NOW())
		RETURNING id
	`, name, description).Scan(&widgetID)

	if err != nil {
		t.Fatalf("Failed to create test widget: %v", err)
	}

	return widgetID
}

// CreateTestConnection creates a target database connection row and returns
// its ID. The target it points at does not need to exist.
func (db *TestDatabase) CreateTestConnection(t *testing.T, name string) string {
	var connectionID string
	err := db.Pool.QueryRow(db.ctx, `
		INSERT INTO connections (name, host, port, username, password, database_name, created_at, updated_at)
		VALUES ($1, 'localhost', 3306, 'test', 'test', 'testdb', NOW(), NOW())
		RETURNING id
	`, name).Scan(&connectionID)

	if err != nil {
		t.Fatalf("Failed to create test connection: %v", err)
	}

	return connectionID
}

// DeleteTestWidget removes a widget and its dependents.
func (db *TestDatabase) DeleteTestWidget(t *testing.T, widgetID string) {
	for _, q := range []string{
		"DELETE FROM widget_filters WHERE widget_id = $1",
		"DELETE FROM chat_messages WHERE widget_id = $1",
		"DELETE FROM widgets WHERE id = $1",
	} {
		if _, err := db.Pool.Exec(db.ctx, q, widgetID); err != nil {
			t.Logf("Warning: cleanup failed: %v", err)
		}
	}
}

// GetMessageCount returns the number of visible chat messages for a widget.
func (db *TestDatabase) GetMessageCount(t *testing.T, widgetID string) int {
	var count int
	err := db.Pool.QueryRow(db.ctx,
		"SELECT COUNT(*) FROM chat_messages WHERE widget_id = $1 AND NOT compacted",
		widgetID).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to get message count: %v", err)
	}
	return count
}

// HashPassword hashes a password using bcrypt for testing
func (db *TestDatabase) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}
