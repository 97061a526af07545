package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

func sampleSchema() *models.Schema {
	return &models.Schema{
		Database: "shop",
		Tables: []models.SchemaTable{
			{
				Name: "orders",
				Columns: []models.SchemaColumn{
					{Name: "id", Type: "int", PrimaryKey: true},
					{Name: "customer_id", Type: "int"},
					{Name: "note", Type: "text", Nullable: true},
				},
				ForeignKeys: []models.ForeignKey{
					{Columns: []string{"customer_id"}, ReferredTable: "customers", ReferredColumns: []string{"id"}},
				},
			},
		},
	}
}

func TestHashSchema(t *testing.T) {
	a := sampleSchema()
	b := sampleSchema()
	assert.Equal(t, HashSchema(a), HashSchema(b))
	assert.Len(t, HashSchema(a), 64)

	b.Tables[0].Columns = append(b.Tables[0].Columns, models.SchemaColumn{Name: "total", Type: "decimal"})
	assert.NotEqual(t, HashSchema(a), HashSchema(b))
}

func TestFormatSchema(t *testing.T) {
	text := FormatSchema(sampleSchema())

	assert.Contains(t, text, "Database: shop")
	assert.Contains(t, text, "Table: orders")
	assert.Contains(t, text, "- id int [PK]")
	assert.Contains(t, text, "- note text NULL")
	assert.Contains(t, text, "FK: (customer_id) -> customers(id)")
}
