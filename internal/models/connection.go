package models

import (
	"time"
)

// Connection is a user-configured target database connection.
type Connection struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Host         string    `json:"host" db:"host"`
	Port         int       `json:"port" db:"port"`
	Username     string    `json:"username" db:"username"`
	Password     string    `json:"-" db:"password"` // never expose in JSON
	DatabaseName string    `json:"database_name" db:"database_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Schema is the introspected shape of a target database.
type Schema struct {
	Database string        `json:"database"`
	Tables   []SchemaTable `json:"tables"`
}

// SchemaTable describes one table of a target database.
type SchemaTable struct {
	Name        string         `json:"name"`
	Columns     []SchemaColumn `json:"columns"`
	ForeignKeys []ForeignKey   `json:"foreign_keys"`
}

// SchemaColumn describes one column of a target table.
type SchemaColumn struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// ForeignKey describes one foreign-key relationship of a target table.
type ForeignKey struct {
	Columns         []string `json:"columns"`
	ReferredTable   string   `json:"referred_table"`
	ReferredColumns []string `json:"referred_columns"`
}
