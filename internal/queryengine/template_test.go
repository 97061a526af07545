package queryengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conditionalTemplate = `SELECT category, SUM(amount) AS total
FROM orders
WHERE 1=1
{% if status %} AND status = :status {% endif %}
{% if date_start %} AND created_at >= :date_start {% endif %}
{% if date_end %} AND created_at <= :date_end {% endif %}
GROUP BY category`

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		flags    map[string]bool
		contains []string
		excludes []string
	}{
		{
			name:     "flag_on_keeps_block",
			template: conditionalTemplate,
			flags:    map[string]bool{"status": true},
			contains: []string{"AND status = :status"},
			excludes: []string{":date_start", ":date_end", "{%"},
		},
		{
			name:     "flag_off_removes_block",
			template: conditionalTemplate,
			flags:    map[string]bool{},
			contains: []string{"WHERE 1=1", "GROUP BY category"},
			excludes: []string{":status", ":date_start", ":date_end"},
		},
		{
			name:     "independent_date_range_bounds",
			template: conditionalTemplate,
			flags:    map[string]bool{"date_start": true},
			contains: []string{"created_at >= :date_start"},
			excludes: []string{":date_end"},
		},
		{
			name:     "legacy_template_passes_through",
			template: "SELECT * FROM t WHERE (:x IS NULL OR col = :x)",
			flags:    map[string]bool{},
			contains: []string{"(:x IS NULL OR col = :x)"},
		},
		{
			name:     "double_escaped_delimiters_normalized",
			template: "SELECT 1 {%% if f %%} WHERE a = :a {%% endif %%}",
			flags:    map[string]bool{"f": true},
			contains: []string{"WHERE a = :a"},
			excludes: []string{"{%%"},
		},
		{
			name:     "trailing_semicolon_stripped",
			template: "SELECT 1 {% if f %} , 2 {% endif %};",
			flags:    map[string]bool{},
			contains: []string{"SELECT 1"},
			excludes: []string{";"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, tt.flags)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	flags := map[string]bool{"status": true, "date_end": true}
	first, err := Render(conditionalTemplate, flags)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Render(conditionalTemplate, flags)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRenderMalformed(t *testing.T) {
	tests := []struct {
		name     string
		template string
	}{
		{name: "unterminated_if", template: "SELECT 1 {% if f %} x"},
		{name: "endif_without_if", template: "SELECT 1 {% endif %}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Render(tt.template, nil)
			assert.Error(t, err)
		})
	}
}

func TestExtractParams(t *testing.T) {
	rendered, err := Render(conditionalTemplate, map[string]bool{"status": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"status"}, ExtractParams(rendered))

	rendered, err = Render(conditionalTemplate, map[string]bool{})
	require.NoError(t, err)
	assert.Empty(t, ExtractParams(rendered))

	// Repeated placeholders appear once, in first-use order.
	assert.Equal(t, []string{"a", "b"}, ExtractParams("WHERE x = :a AND y = :b AND z = :a"))
}

func TestAllParams(t *testing.T) {
	assert.Equal(t,
		[]string{"status", "date_start", "date_end"},
		AllParams(conditionalTemplate))
}
