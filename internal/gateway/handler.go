// Package gateway is the HTTP layer: REST endpoints for widgets and
// connections, the chat endpoints (blocking, SSE, WebSocket), and auth.
package gateway

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/bizmatters/agent-builder/widget-studio/internal/auth"
	"github.com/bizmatters/agent-builder/widget-studio/internal/connector"
	"github.com/bizmatters/agent-builder/widget-studio/internal/metrics"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
	"github.com/bizmatters/agent-builder/widget-studio/internal/orchestration"
	"github.com/bizmatters/agent-builder/widget-studio/internal/store"
)

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	store      *store.Store
	connector  *connector.Connector
	pipeline   *orchestration.Pipeline
	jwtManager *auth.JWTManager
	metrics    *metrics.PipelineMetrics
	tracer     trace.Tracer
}

// NewHandler creates a new gateway handler
func NewHandler(st *store.Store, conn *connector.Connector, pipeline *orchestration.Pipeline, jwtManager *auth.JWTManager, pm *metrics.PipelineMetrics) *Handler {
	return &Handler{
		store:      st,
		connector:  conn,
		pipeline:   pipeline,
		jwtManager: jwtManager,
		metrics:    pm,
		tracer:     otel.Tracer("gateway"),
	}
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{Error: message, Code: code})
}

// notFoundOrInternal maps store errors to the right status.
func notFoundOrInternal(c *gin.Context, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, models.ErrCodeNotFound, what+" not found")
		return
	}
	log.Printf(`{"level":"error","message":"store error","detail":%q}`, err.Error())
	respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Internal error")
}

// Login authenticates a user and returns a JWT.
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		log.Printf(`{"level":"warn","message":"User not found","email":"%s"}`, req.Email)
		respondError(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)); err != nil {
		log.Printf(`{"level":"warn","message":"Invalid password","email":"%s"}`, req.Email)
		respondError(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "Invalid email or password")
		return
	}

	const tokenTTL = 24 * time.Hour
	token, err := h.jwtManager.GenerateToken(
		c.Request.Context(),
		user.ID,
		req.Email,
		[]string{"user"},
		tokenTTL,
	)
	if err != nil {
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(tokenTTL),
		User:      user.ToUserInfo(),
	})
}
