package agents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bizmatters/agent-builder/widget-studio/internal/llm"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

const schemaAnalyzerPrompt = `You are a database schema analyst for a dashboard / BI tool.
Given the raw schema (tables, columns, types, primary keys, foreign keys),
produce a rich semantic analysis.

Return a JSON object with the following structure:

{
  "tables": [
    {
      "name": "table_name",
      "description": "What this table stores",
      "key_columns": ["col1", "col2"],
      "relationships": [
        {
          "to": "other_table",
          "type": "many-to-one | one-to-many | many-to-many",
          "join": "this.col = other.col"
        }
      ]
    }
  ],
  "join_paths": [
    {
      "description": "Orders with customer info",
      "sql": "orders JOIN customers ON ..."
    }
  ],
  "suggested_metrics": [
    "Total revenue (SUM of order amount)",
    "Order count by status",
    "Monthly new customers"
  ],
  "notes": "Any useful observations about the schema"
}

Be thorough but concise. Focus on information that helps build SQL queries
and chart visualizations.`

// SchemaAnalysis is the semantic analysis of a target database schema. It is
// cached per connection and reused until the raw schema hash changes.
type SchemaAnalysis struct {
	Tables           []AnalyzedTable `json:"tables"`
	JoinPaths        []JoinPath      `json:"join_paths,omitempty"`
	SuggestedMetrics []string        `json:"suggested_metrics,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

// AnalyzedTable is one table's semantic description.
type AnalyzedTable struct {
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	KeyColumns    []string       `json:"key_columns"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// Relationship describes how one table joins to another.
type Relationship struct {
	To   string `json:"to"`
	Type string `json:"type"`
	Join string `json:"join"`
}

// JoinPath is a useful multi-table join the query builder can reuse.
type JoinPath struct {
	Description string `json:"description"`
	SQL         string `json:"sql"`
}

// HashSchema returns a deterministic hex digest of the raw schema, used to
// invalidate cached analyses when the target database changes shape.
func HashSchema(schema *models.Schema) string {
	canonical, _ := json.Marshal(schema)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// SchemaAnalyzer produces the semantic schema analysis. Cache lookups happen
// in the orchestration layer; this agent always calls the model.
type SchemaAnalyzer struct {
	client llm.Client
}

func NewSchemaAnalyzer(client llm.Client) *SchemaAnalyzer {
	return &SchemaAnalyzer{client: client}
}

func (a *SchemaAnalyzer) Run(ctx context.Context, schema *models.Schema) (*SchemaAnalysis, error) {
	messages := []llm.Message{
		{Role: models.RoleSystem, Content: schemaAnalyzerPrompt},
		{Role: models.RoleUser, Content: FormatSchema(schema)},
	}
	var analysis SchemaAnalysis
	if err := callJSON(ctx, a.client, NameSchemaAnalyzer, messages, 0.3, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// FormatSchema renders the raw schema as readable text for prompt context.
func FormatSchema(schema *models.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database: %s", schema.Database)
	for _, table := range schema.Tables {
		fmt.Fprintf(&b, "\n\nTable: %s", table.Name)
		for _, col := range table.Columns {
			pk := ""
			if col.PrimaryKey {
				pk = " [PK]"
			}
			nullable := ""
			if col.Nullable {
				nullable = " NULL"
			}
			fmt.Fprintf(&b, "\n  - %s %s%s%s", col.Name, col.Type, pk, nullable)
		}
		for _, fk := range table.ForeignKeys {
			fmt.Fprintf(&b, "\n  FK: (%s) -> %s(%s)",
				strings.Join(fk.Columns, ", "),
				fk.ReferredTable,
				strings.Join(fk.ReferredColumns, ", "))
		}
	}
	return b.String()
}
