package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	email := fmt.Sprintf("login-%d@example.com", time.Now().UnixNano())
	password := "integration-pass-1"
	ts.DB.CreateTestUser(t, email, password)

	t.Run("valid_credentials", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"email": email, "password": password})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["token"])
		user, ok := resp["user"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, email, user["email"])
	})

	t.Run("wrong_password", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"email": email, "password": "not-the-password"})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown_email", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"email": "nobody@example.com", "password": password})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestProtectedRoutes(t *testing.T) {
	ts := newTestServer(t)

	t.Run("missing_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed_token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid_token", func(t *testing.T) {
		token := ts.tokenFor(t, "user-1", "valid@example.com")

		req := httptest.NewRequest(http.MethodGet, "/api/widgets", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		ts.Router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
