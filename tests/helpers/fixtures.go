package helpers

// TestUser represents a test user fixture
type TestUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TestWidget represents a widget creation payload
type TestWidget struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TestConnection represents a target database connection payload
type TestConnection struct {
	Name         string `json:"name"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"database_name"`
}

// Default test fixtures
var (
	DefaultTestUser = TestUser{
		Email:    "test@example.com",
		Password: "test-password-123",
	}

	DefaultTestWidget = TestWidget{
		Name:        "Revenue Overview",
		Description: "Monthly revenue by region for integration testing",
	}

	DefaultTestConnection = TestConnection{
		Name:         "Test Warehouse",
		Host:         "localhost",
		Port:         3306,
		Username:     "test",
		Password:     "test",
		DatabaseName: "testdb",
	}

	// SampleQueryTemplate is a conditional template shaped the way the
	// query builder produces them.
	SampleQueryTemplate = "SELECT region, SUM(amount) AS total\n" +
		"FROM orders\n" +
		"WHERE 1=1\n" +
		"{% if status %} AND status = :status{% endif %}\n" +
		"GROUP BY region"
)
