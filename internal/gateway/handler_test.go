package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
	"github.com/bizmatters/agent-builder/widget-studio/internal/queryengine"
)

func newTestContext(body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestWriteSSE(t *testing.T) {
	w := httptest.NewRecorder()
	err := writeSSE(w, models.EventAgentStart, models.AgentStartData{
		Agent: "query_builder",
		Label: "Building SQL query…",
		Step:  2,
	})
	require.NoError(t, err)

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: agent_start\ndata: "))
	assert.True(t, strings.HasSuffix(body, "\n\n"))

	payload := strings.TrimSuffix(strings.TrimPrefix(body, "event: agent_start\ndata: "), "\n\n")
	var data models.AgentStartData
	require.NoError(t, json.Unmarshal([]byte(payload), &data))
	assert.Equal(t, 2, data.Step)
}

func TestRespondTemplateError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "coercion_failure",
			err:      &queryengine.TemplateError{Kind: queryengine.ErrCoercionFailure, Param: "amount", Value: "abc"},
			wantCode: models.ErrCodeCoercionFailed,
		},
		{
			name:     "unresolved_placeholder",
			err:      &queryengine.TemplateError{Kind: queryengine.ErrUnresolvedPlaceholder, Param: "status"},
			wantCode: models.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext("")
			respondTemplateError(c, tt.err)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestRespondQueryError(t *testing.T) {
	t.Run("template_error_delegates", func(t *testing.T) {
		c, w := newTestContext("")
		respondQueryError(c, &queryengine.TemplateError{Kind: queryengine.ErrCoercionFailure, Param: "limit", Value: "x"})

		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.ErrCodeCoercionFailed, resp.Code)
	})

	t.Run("rejected_statement", func(t *testing.T) {
		c, w := newTestContext("")
		respondQueryError(c, assert.AnError)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, models.ErrCodeQueryRejected, resp.Code)
	})
}

func TestChatRejectsMalformedBody(t *testing.T) {
	h := &Handler{}

	tests := []struct {
		name string
		body string
	}{
		{name: "empty_body", body: ""},
		{name: "missing_message", body: `{"text":"hello"}`},
		{name: "invalid_json", body: `{message}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(tt.body)
			h.Chat(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, models.ErrCodeInvalidRequest, resp.Code)
		})
	}
}
