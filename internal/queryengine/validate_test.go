package queryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		ident string
		valid bool
	}{
		{name: "simple", ident: "orders", valid: true},
		{name: "underscore_prefix", ident: "_tmp", valid: true},
		{name: "digits", ident: "t2_copy", valid: true},
		{name: "empty", ident: "", valid: false},
		{name: "leading_digit", ident: "2fast", valid: false},
		{name: "quote_injection", ident: "orders`; DROP TABLE x", valid: false},
		{name: "dotted_path", ident: "db.orders", valid: false},
		{name: "too_long", ident: "a123456789012345678901234567890123456789012345678901234567890123456789", valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidIdentifier(tt.ident))
		})
	}
}

func TestValidateReadOnly(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{name: "plain_select", sql: "SELECT id, name FROM users WHERE id = :id"},
		{name: "select_with_update_column", sql: "SELECT updated_at FROM users"},
		{name: "cte_select", sql: "WITH t AS (SELECT 1) SELECT * FROM t"},
		{name: "delete", sql: "DELETE FROM users", wantErr: true},
		{name: "lowercase_drop", sql: "drop table users", wantErr: true},
		{name: "embedded_truncate", sql: "SELECT 1; TRUNCATE users", wantErr: true},
		{name: "into_outfile", sql: "SELECT * FROM users INTO OUTFILE '/tmp/x'", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReadOnly(tt.sql)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOptionsQuery(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{name: "select", sql: "SELECT DISTINCT region FROM customers"},
		{name: "trailing_semicolon", sql: "SELECT id FROM t;"},
		{name: "with_cte", sql: "WITH r AS (SELECT 1) SELECT * FROM r"},
		{name: "empty", sql: "   ", wantErr: true},
		{name: "two_statements", sql: "SELECT 1; SELECT 2", wantErr: true},
		{name: "not_select", sql: "SHOW TABLES", wantErr: true},
		{name: "mutating", sql: "SELECT * FROM t WHERE EXISTS (DELETE FROM u)", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOptionsQuery(tt.sql)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
