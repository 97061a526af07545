package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/widget-studio/tests/helpers"
)

func TestWidgetLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, "user-widgets", "widgets@example.com")

	do := func(method, path string, payload interface{}) *httptest.ResponseRecorder {
		var body bytes.Buffer
		if payload != nil {
			require.NoError(t, json.NewEncoder(&body).Encode(payload))
		}
		req := httptest.NewRequest(method, path, &body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)
		return w
	}

	// Create
	w := do(http.MethodPost, "/api/widgets", helpers.DefaultTestWidget)
	require.Equal(t, http.StatusCreated, w.Code)

	var widget map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &widget))
	widgetID, _ := widget["id"].(string)
	require.NotEmpty(t, widgetID)
	assert.Equal(t, helpers.DefaultTestWidget.Name, widget["name"])
	defer ts.DB.DeleteTestWidget(t, widgetID)

	// Read back
	w = do(http.MethodGet, "/api/widgets/"+widgetID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Update metadata
	w = do(http.MethodPatch, "/api/widgets/"+widgetID, map[string]interface{}{
		"name":        "Renamed Widget",
		"description": "updated",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &widget))
	assert.Equal(t, "Renamed Widget", widget["name"])

	// Delete
	w = do(http.MethodDelete, "/api/widgets/"+widgetID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(http.MethodGet, "/api/widgets/"+widgetID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatTurns(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, "user-chat", "chat@example.com")

	widgetID := ts.DB.CreateTestWidget(t, "Chat Widget", "chat integration target")
	defer ts.DB.DeleteTestWidget(t, widgetID)

	chat := func(message string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"message": message})
		req := httptest.NewRequest(http.MethodPost, "/api/widgets/"+widgetID+"/chat", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)
		return w
	}

	t.Run("greeting_turn", func(t *testing.T) {
		w := chat("hi there")
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp["message"], "Hello")
		assert.Nil(t, resp["widget_update"])

		assert.Equal(t, 2, ts.DB.GetMessageCount(t, widgetID))
	})

	t.Run("build_turn", func(t *testing.T) {
		ts.LLM.responses = []string{
			`{"intent":"create_chart","needs_query":true,"needs_filters":true,"needs_chart":true,
			  "summary":"Revenue by region as a bar chart"}`,
			`{"query_template":"` + "SELECT region, SUM(amount) AS total FROM orders WHERE 1=1{% if status %} AND status = :status{% endif %} GROUP BY region" + `",
			  "explanation":"Aggregates revenue per region",
			  "output_columns":[{"name":"region","type":"string"},{"name":"total","type":"number"}]}`,
			`{"filters":[{"param_name":"status","label":"Status","filter_type":"select",
			   "options":[{"value":"paid","label":"Paid"},{"value":"open","label":"Open"}]}],
			  "explanation":"Status filter added"}`,
			`{"chart_type":"bar","chart_config":{"x_axis":"region","y_axis":"total"},
			  "explanation":"Bar chart by region"}`,
		}

		w := chat("Show revenue by region as a bar chart")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Message      string `json:"message"`
			WidgetUpdate *struct {
				ChartType     *string `json:"chart_type"`
				QueryTemplate *string `json:"query_template"`
			} `json:"widget_update"`
			Filters []map[string]interface{} `json:"filters"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		require.NotNil(t, resp.WidgetUpdate)
		require.NotNil(t, resp.WidgetUpdate.ChartType)
		assert.Equal(t, "bar", *resp.WidgetUpdate.ChartType)
		require.NotNil(t, resp.WidgetUpdate.QueryTemplate)
		assert.Contains(t, *resp.WidgetUpdate.QueryTemplate, ":status")
		require.Len(t, resp.Filters, 1)
		assert.Equal(t, "status", resp.Filters[0]["param_name"])

		// Both turns of this exchange were persisted on top of the greeting.
		assert.Equal(t, 4, ts.DB.GetMessageCount(t, widgetID))

		// The widget row carries the new chart type and filter.
		req := httptest.NewRequest(http.MethodGet, "/api/widgets/"+widgetID, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.Router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var widget map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &widget))
		assert.Equal(t, "bar", widget["chart_type"])
		filters, _ := widget["filters"].([]interface{})
		require.Len(t, filters, 1)
	})

	t.Run("history_endpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/widgets/"+widgetID+"/messages", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Messages []map[string]interface{} `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Messages, 4)
		assert.Equal(t, "user", resp.Messages[0]["role"])
		assert.Equal(t, "assistant", resp.Messages[1]["role"])
	})
}
