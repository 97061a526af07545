package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
	"github.com/bizmatters/agent-builder/widget-studio/internal/queryengine"
)

// CreateWidgetRequest is the payload for widget creation.
type CreateWidgetRequest struct {
	Name         string                 `json:"name" binding:"required"`
	Description  string                 `json:"description"`
	ConnectionID *string                `json:"connection_id"`
	ChartType    string                 `json:"chart_type"`
	LayoutConfig map[string]interface{} `json:"layout_config"`
}

// CreateWidget creates a new widget shell. The query, filters, and chart
// config are built through the chat pipeline afterwards.
func (h *Handler) CreateWidget(c *gin.Context) {
	var req CreateWidgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}

	widget := &models.Widget{
		Name:         req.Name,
		Description:  req.Description,
		ConnectionID: req.ConnectionID,
		ChartType:    req.ChartType,
		LayoutConfig: req.LayoutConfig,
	}
	created, err := h.store.CreateWidget(c.Request.Context(), widget)
	if err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListWidgets returns all active widgets.
func (h *Handler) ListWidgets(c *gin.Context) {
	widgets, err := h.store.ListWidgets(c.Request.Context())
	if err != nil {
		notFoundOrInternal(c, err, "widgets")
		return
	}
	c.JSON(http.StatusOK, widgets)
}

// GetWidget returns one widget with its filters.
func (h *Handler) GetWidget(c *gin.Context) {
	widget, err := h.store.GetWidget(c.Request.Context(), c.Param("id"))
	if err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}
	c.JSON(http.StatusOK, widget)
}

// UpdateWidgetRequest is the payload for metadata updates. Query template
// and chart config are pipeline-owned and absent on purpose.
type UpdateWidgetRequest struct {
	Name         string                 `json:"name" binding:"required"`
	Description  string                 `json:"description"`
	ConnectionID *string                `json:"connection_id"`
	LayoutConfig map[string]interface{} `json:"layout_config"`
}

// UpdateWidget updates widget metadata.
func (h *Handler) UpdateWidget(c *gin.Context) {
	var req UpdateWidgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}

	widget := &models.Widget{
		ID:           c.Param("id"),
		Name:         req.Name,
		Description:  req.Description,
		ConnectionID: req.ConnectionID,
		LayoutConfig: req.LayoutConfig,
	}
	if err := h.store.UpdateWidgetMeta(c.Request.Context(), widget); err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}

	updated, err := h.store.GetWidget(c.Request.Context(), widget.ID)
	if err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteWidget removes a widget with its filters and conversation.
func (h *Handler) DeleteWidget(c *gin.Context) {
	if err := h.store.DeleteWidget(c.Request.Context(), c.Param("id")); err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteFilter removes one filter from a widget.
func (h *Handler) DeleteFilter(c *gin.Context) {
	if err := h.store.DeleteFilter(c.Request.Context(), c.Param("id"), c.Param("filterId")); err != nil {
		notFoundOrInternal(c, err, "filter")
		return
	}
	c.Status(http.StatusNoContent)
}

// WidgetDataRequest carries runtime filter values for a data fetch. Values
// arrive as strings; coercion is driven by the filter types.
type WidgetDataRequest struct {
	Params map[string]string `json:"params"`
}

// WidgetDataResponse is the widget data payload.
type WidgetDataResponse struct {
	Rows []map[string]interface{} `json:"rows"`
	SQL  string                   `json:"sql"`
}

// GetWidgetData renders the widget's query template against the supplied
// filter values and executes it on the widget's connection.
func (h *Handler) GetWidgetData(c *gin.Context) {
	var req WidgetDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}

	widget, err := h.store.GetWidget(c.Request.Context(), c.Param("id"))
	if err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}
	if !widget.HasQuery() {
		respondError(c, http.StatusBadRequest, models.ErrCodeValidationFailed, "Widget has no query configured")
		return
	}
	if widget.ConnectionID == nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeNoConnection, "Widget has no database connection")
		return
	}

	conn, err := h.store.GetConnection(c.Request.Context(), *widget.ConnectionID)
	if err != nil {
		notFoundOrInternal(c, err, "connection")
		return
	}

	// Drop anything outside the declared filter surface.
	allowed := widget.AllowedParams()
	values := make(map[string]string, len(req.Params))
	for name, v := range req.Params {
		if allowed[name] {
			values[name] = v
		}
	}

	rendered, params, err := queryengine.BindParams(widget.QueryTemplate, values, widget.Filters)
	if err != nil {
		respondTemplateError(c, err)
		return
	}

	rows, err := h.connector.ExecuteQuery(c.Request.Context(), conn, rendered, params)
	if err != nil {
		respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, WidgetDataResponse{Rows: rows, SQL: rendered})
}

// FilterOptions resolves a select filter's options, with optional search.
func (h *Handler) FilterOptions(c *gin.Context) {
	widget, err := h.store.GetWidget(c.Request.Context(), c.Param("id"))
	if err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}

	var filter *models.FilterSpec
	for i := range widget.Filters {
		if widget.Filters[i].ID == c.Param("filterId") {
			filter = &widget.Filters[i]
			break
		}
	}
	if filter == nil {
		respondError(c, http.StatusNotFound, models.ErrCodeNotFound, "filter not found")
		return
	}

	// Static options need no connection; the query-backed modes do.
	needsDB := (filter.OptionsQuery != nil && *filter.OptionsQuery != "") ||
		(filter.SourceTable != nil && *filter.SourceTable != "")
	var conn *models.Connection
	if needsDB {
		if widget.ConnectionID == nil {
			respondError(c, http.StatusBadRequest, models.ErrCodeNoConnection, "Widget has no database connection")
			return
		}
		conn, err = h.store.GetConnection(c.Request.Context(), *widget.ConnectionID)
		if err != nil {
			notFoundOrInternal(c, err, "connection")
			return
		}
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	options, err := h.connector.FilterOptions(c.Request.Context(), conn, filter, c.Query("search"), limit)
	if err != nil {
		respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"options": options})
}

func respondTemplateError(c *gin.Context, err error) {
	var terr *queryengine.TemplateError
	if errors.As(err, &terr) {
		switch terr.Kind {
		case queryengine.ErrCoercionFailure:
			respondError(c, http.StatusBadRequest, models.ErrCodeCoercionFailed, terr.Error())
			return
		case queryengine.ErrUnresolvedPlaceholder:
			respondError(c, http.StatusBadRequest, models.ErrCodeValidationFailed, terr.Error())
			return
		}
	}
	respondError(c, http.StatusBadRequest, models.ErrCodeValidationFailed, err.Error())
}

func respondQueryError(c *gin.Context, err error) {
	var terr *queryengine.TemplateError
	if errors.As(err, &terr) {
		respondTemplateError(c, err)
		return
	}
	respondError(c, http.StatusBadRequest, models.ErrCodeQueryRejected, err.Error())
}
