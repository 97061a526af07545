package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

// ConnectionRequest is the payload for creating a target DB connection.
type ConnectionRequest struct {
	Name         string `json:"name" binding:"required"`
	Host         string `json:"host" binding:"required"`
	Port         int    `json:"port" binding:"required"`
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
	DatabaseName string `json:"database_name" binding:"required"`
}

// CreateConnection stores a new target database connection after verifying
// it is reachable.
func (h *Handler) CreateConnection(c *gin.Context) {
	var req ConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}

	conn := &models.Connection{
		Name:         req.Name,
		Host:         req.Host,
		Port:         req.Port,
		Username:     req.Username,
		Password:     req.Password,
		DatabaseName: req.DatabaseName,
	}
	if err := h.connector.TestConnection(c.Request.Context(), conn); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeValidationFailed, err.Error())
		return
	}

	created, err := h.store.CreateConnection(c.Request.Context(), conn)
	if err != nil {
		notFoundOrInternal(c, err, "connection")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListConnections returns all stored connections, without credentials.
func (h *Handler) ListConnections(c *gin.Context) {
	conns, err := h.store.ListConnections(c.Request.Context())
	if err != nil {
		notFoundOrInternal(c, err, "connections")
		return
	}
	c.JSON(http.StatusOK, conns)
}

// TestConnection re-checks reachability of a stored connection.
func (h *Handler) TestConnection(c *gin.Context) {
	conn, err := h.store.GetConnection(c.Request.Context(), c.Param("id"))
	if err != nil {
		notFoundOrInternal(c, err, "connection")
		return
	}
	if err := h.connector.TestConnection(c.Request.Context(), conn); err != nil {
		c.JSON(http.StatusOK, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetConnectionSchema introspects the target database's schema.
func (h *Handler) GetConnectionSchema(c *gin.Context) {
	conn, err := h.store.GetConnection(c.Request.Context(), c.Param("id"))
	if err != nil {
		notFoundOrInternal(c, err, "connection")
		return
	}
	schema, err := h.connector.GetSchema(c.Request.Context(), conn)
	if err != nil {
		respondError(c, http.StatusBadGateway, models.ErrCodeQueryRejected, err.Error())
		return
	}
	c.JSON(http.StatusOK, schema)
}

// DeleteConnection removes a connection; attached widgets are detached.
func (h *Handler) DeleteConnection(c *gin.Context) {
	if err := h.store.DeleteConnection(c.Request.Context(), c.Param("id")); err != nil {
		notFoundOrInternal(c, err, "connection")
		return
	}
	c.Status(http.StatusNoContent)
}
