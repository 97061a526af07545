package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

func TestStaticOptionsSearchAndLimit(t *testing.T) {
	options := []models.FilterOption{
		{Value: "pending", Label: "Pending"},
		{Value: "paid", Label: "Paid"},
		{Value: "shipped", Label: "Shipped"},
		{Value: "partial", Label: "Partially paid"},
	}

	t.Run("no_search_returns_all", func(t *testing.T) {
		assert.Len(t, staticOptions(options, "", 50), 4)
	})

	t.Run("search_is_case_insensitive", func(t *testing.T) {
		got := staticOptions(options, "PAID", 50)
		assert.Len(t, got, 2)
		assert.Equal(t, "Paid", got[0].Label)
		assert.Equal(t, "Partially paid", got[1].Label)
	})

	t.Run("limit_caps_results", func(t *testing.T) {
		assert.Len(t, staticOptions(options, "", 2), 2)
	})

	t.Run("empty_options", func(t *testing.T) {
		assert.Empty(t, staticOptions(nil, "x", 10))
	})
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "hello", normalizeValue([]byte("hello")))
	assert.Equal(t, int64(7), normalizeValue(int64(7)))
	assert.Nil(t, normalizeValue(nil))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", stringify(nil))
	assert.Equal(t, "abc", stringify("abc"))
	assert.Equal(t, "42", stringify(int64(42)))
}
