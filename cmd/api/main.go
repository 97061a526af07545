package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"

	"github.com/bizmatters/agent-builder/widget-studio/internal/agents"
	"github.com/bizmatters/agent-builder/widget-studio/internal/auth"
	"github.com/bizmatters/agent-builder/widget-studio/internal/config"
	"github.com/bizmatters/agent-builder/widget-studio/internal/connector"
	"github.com/bizmatters/agent-builder/widget-studio/internal/gateway"
	"github.com/bizmatters/agent-builder/widget-studio/internal/llm"
	"github.com/bizmatters/agent-builder/widget-studio/internal/metrics"
	"github.com/bizmatters/agent-builder/widget-studio/internal/orchestration"
	"github.com/bizmatters/agent-builder/widget-studio/internal/store"
)

func main() {
	// Initialize OpenTelemetry
	if err := initTracer(); err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to PostgreSQL with retry logic
	log.Println("Connecting to PostgreSQL database...")
	var pool *pgxpool.Pool

	for i := 0; i < 10; i++ {
		pool, err = pgxpool.New(context.Background(), settings.DatabaseURL)
		if err == nil {
			err = pool.Ping(context.Background())
			if err == nil {
				break
			}
		}
		log.Printf("Waiting for database... (attempt %d/10): %v", i+1, err)
		time.Sleep(3 * time.Second)
	}

	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}

	defer pool.Close()
	log.Println("Connected to PostgreSQL database")

	st := store.New(pool)

	// LLM client shared by every agent
	llmClient, err := llm.NewOpenAIClient(settings.OpenAIBaseURL, settings.OpenAIAPIKey, settings.OpenAIModel)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	pipelineMetrics, err := metrics.NewPipelineMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	pipeline := orchestration.NewPipeline(
		agents.NewRequestAnalyzer(llmClient),
		agents.NewSchemaAnalyzer(llmClient),
		agents.NewQueryBuilder(llmClient),
		agents.NewFilterBuilder(llmClient),
		agents.NewChartBuilder(llmClient),
		orchestration.NewCompactor(agents.NewSummarizer(llmClient), settings.ContextTokenLimit),
		pipelineMetrics,
	)

	targetConnector := connector.New(time.Duration(settings.TargetConnTimeout) * time.Second)

	// Initialize JWT manager
	jwtManager, err := auth.NewJWTManager()
	if err != nil {
		log.Fatalf("Failed to initialize JWT manager: %v", err)
	}

	// Initialize gateway layer
	handler := gateway.NewHandler(st, targetConnector, pipeline, jwtManager, pipelineMetrics)
	chatSocket := gateway.NewChatSocket(handler, jwtManager)

	// Setup Gin router
	router := gin.Default()

	// Add structured JSON logging middleware
	router.Use(structuredLoggingMiddleware())

	// Health checks MUST be at the root for the WebService standard
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/ready", func(c *gin.Context) {
		// Check database connectivity for readiness
		if err := st.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"error":  "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// API routes
	api := router.Group("/api")

	// Public routes (no authentication required)
	api.POST("/auth/login", handler.Login)

	// Protected routes (require JWT authentication)
	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager))

	// Widget routes
	protected.POST("/widgets", handler.CreateWidget)
	protected.GET("/widgets", handler.ListWidgets)
	protected.GET("/widgets/:id", handler.GetWidget)
	protected.PATCH("/widgets/:id", handler.UpdateWidget)
	protected.DELETE("/widgets/:id", handler.DeleteWidget)
	protected.POST("/widgets/:id/data", handler.GetWidgetData)
	protected.DELETE("/widgets/:id/filters/:filterId", handler.DeleteFilter)
	protected.GET("/widgets/:id/filters/:filterId/options", handler.FilterOptions)

	// Chat routes
	protected.POST("/widgets/:id/chat", handler.Chat)
	protected.POST("/widgets/:id/chat/stream", handler.ChatStream)
	protected.GET("/widgets/:id/messages", handler.ChatHistory)

	// Connection routes
	protected.POST("/connections", handler.CreateConnection)
	protected.GET("/connections", handler.ListConnections)
	protected.POST("/connections/:id/test", handler.TestConnection)
	protected.GET("/connections/:id/schema", handler.GetConnectionSchema)
	protected.DELETE("/connections/:id", handler.DeleteConnection)

	// WebSocket routes (token via query parameter)
	api.GET("/ws/widgets/:id/chat", chatSocket.Stream)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", settings.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // LLM pipeline runs inside the request
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting Widget Studio API server on port %s\n", settings.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// initTracer initializes OpenTelemetry tracing
func initTracer() error {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return fmt.Errorf("failed to create stdout exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)

	return nil
}

// structuredLoggingMiddleware provides structured JSON logging for all requests
func structuredLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		userID, _ := c.Get(auth.ContextUserID)

		logEntry := map[string]interface{}{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": latency.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}

		if userID != nil {
			logEntry["user_id"] = userID
		}

		if len(c.Errors) > 0 {
			logEntry["errors"] = c.Errors.String()
		}

		logJSON, _ := json.Marshal(logEntry)
		log.Println(string(logJSON))
	}
}
