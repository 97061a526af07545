package integration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/widget-studio/internal/agents"
	"github.com/bizmatters/agent-builder/widget-studio/internal/auth"
	"github.com/bizmatters/agent-builder/widget-studio/internal/connector"
	"github.com/bizmatters/agent-builder/widget-studio/internal/gateway"
	"github.com/bizmatters/agent-builder/widget-studio/internal/llm"
	"github.com/bizmatters/agent-builder/widget-studio/internal/metrics"
	"github.com/bizmatters/agent-builder/widget-studio/internal/orchestration"
	"github.com/bizmatters/agent-builder/widget-studio/internal/store"
	"github.com/bizmatters/agent-builder/widget-studio/tests/helpers"
)

// scriptedLLM returns queued responses in order, falling back to a greeting
// routing once the queue is exhausted.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
}

func (s *scriptedLLM) CompleteJSON(ctx context.Context, messages []llm.Message, temperature float64) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.responses) == 0 {
		return json.RawMessage(`{"intent":"greeting","message":"Hello! Describe the chart you want to build."}`), nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return json.RawMessage(next), nil
}

// testServer bundles the wired application for HTTP-level tests.
type testServer struct {
	Router     *gin.Engine
	DB         *helpers.TestDatabase
	JWTManager *auth.JWTManager
	LLM        *scriptedLLM
}

func newTestServer(t *testing.T) *testServer {
	t.Setenv("JWT_SECRET", "test-secret-key-for-integration-tests")

	testDB := helpers.NewTestDatabase(t)
	t.Cleanup(testDB.Close)

	jwtManager, err := auth.NewJWTManager()
	require.NoError(t, err)

	client := &scriptedLLM{}

	pipelineMetrics, err := metrics.NewPipelineMetrics()
	require.NoError(t, err)

	pipeline := orchestration.NewPipeline(
		agents.NewRequestAnalyzer(client),
		agents.NewSchemaAnalyzer(client),
		agents.NewQueryBuilder(client),
		agents.NewFilterBuilder(client),
		agents.NewChartBuilder(client),
		orchestration.NewCompactor(agents.NewSummarizer(client), 64000),
		pipelineMetrics,
	)

	st := store.New(testDB.Pool)
	handler := gateway.NewHandler(st, connector.New(2*time.Second), pipeline, jwtManager, pipelineMetrics)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/api")
	api.POST("/auth/login", handler.Login)

	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager))
	protected.POST("/widgets", handler.CreateWidget)
	protected.GET("/widgets", handler.ListWidgets)
	protected.GET("/widgets/:id", handler.GetWidget)
	protected.PATCH("/widgets/:id", handler.UpdateWidget)
	protected.DELETE("/widgets/:id", handler.DeleteWidget)
	protected.POST("/widgets/:id/chat", handler.Chat)
	protected.GET("/widgets/:id/messages", handler.ChatHistory)

	return &testServer{
		Router:     router,
		DB:         testDB,
		JWTManager: jwtManager,
		LLM:        client,
	}
}

// tokenFor issues a valid JWT for an arbitrary user ID.
func (ts *testServer) tokenFor(t *testing.T, userID, email string) string {
	token, err := ts.JWTManager.GenerateToken(context.Background(), userID, email, []string{"user"}, time.Hour)
	require.NoError(t, err)
	return token
}
