package gateway

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bizmatters/agent-builder/widget-studio/internal/agents"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
	"github.com/bizmatters/agent-builder/widget-studio/internal/orchestration"
	"github.com/bizmatters/agent-builder/widget-studio/internal/store"
)

// ChatRequest is a user turn addressed to a widget's builder conversation.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ChatResponse is the blocking chat endpoint's reply.
type ChatResponse struct {
	Message      string               `json:"message"`
	WidgetUpdate *models.WidgetUpdate `json:"widget_update"`
	Filters      []models.FilterSpec  `json:"filters"`
	Messages     []models.ChatMessage `json:"messages"`
	Widget       *models.Widget       `json:"widget"`
}

// prepareChat assembles a pipeline request: the widget, its conversation,
// and (when a connection is attached) the target schema plus any still-valid
// cached analysis.
func (h *Handler) prepareChat(ctx context.Context, st *store.Store, widgetID, userMessage string) (orchestration.Request, *models.Widget, error) {
	widget, err := st.GetWidget(ctx, widgetID)
	if err != nil {
		return orchestration.Request{}, nil, err
	}

	state, err := st.LoadConversation(ctx, widgetID)
	if err != nil {
		return orchestration.Request{}, nil, err
	}

	req := orchestration.Request{
		UserMessage: userMessage,
		State:       state,
		Widget:      widget,
	}

	if widget.ConnectionID != nil {
		conn, err := st.GetConnection(ctx, *widget.ConnectionID)
		if err != nil {
			return orchestration.Request{}, nil, err
		}
		schema, err := h.connector.GetSchema(ctx, conn)
		if err != nil {
			// A dead target database degrades the pipeline to schema-less
			// operation rather than blocking the conversation.
			log.Printf(`{"level":"warn","message":"schema introspection failed","connection_id":"%s","detail":%q}`,
				conn.ID, err.Error())
		} else {
			req.Schema = schema
			hash := agents.HashSchema(schema)
			cached, err := st.GetSchemaAnalysis(ctx, conn.ID, hash)
			if err != nil {
				log.Printf(`{"level":"warn","message":"analysis cache read failed","detail":%q}`, err.Error())
			}
			req.CachedAnalysis = cached
		}
	}
	return req, widget, nil
}

// persistResult writes one successful pipeline turn and returns the saved
// conversation turns plus the refreshed widget.
func (h *Handler) persistResult(ctx context.Context, st *store.Store, widget *models.Widget, userMessage string, result *orchestration.Result) ([]models.ChatMessage, *models.Widget, error) {
	outcome := store.ApplyOutcome{
		WidgetID: widget.ID,
		Update:   result.WidgetUpdate,
		Filters:  result.Filters,
		Removals: result.Removals,
		UserMessage: models.ChatMessage{
			Role:    models.RoleUser,
			Content: userMessage,
		},
		ReplyMessage: models.ChatMessage{
			Role:    models.RoleAssistant,
			Content: result.Message,
			Metadata: map[string]interface{}{
				"intent": result.Intent,
			},
		},
	}
	if result.Compacted {
		summary := result.State.Summary
		outcome.ChatSummary = &summary
		outcome.CompactedKeep = len(result.State.Messages)
	}

	saved, err := st.ApplyResult(ctx, outcome)
	if err != nil {
		return nil, nil, err
	}

	if result.SchemaAnalysis != nil && widget.ConnectionID != nil {
		if err := st.PutSchemaAnalysis(ctx, *widget.ConnectionID, result.SchemaHash, result.SchemaAnalysis); err != nil {
			// Cache write failure costs a re-analysis next turn, nothing more.
			log.Printf(`{"level":"warn","message":"analysis cache write failed","detail":%q}`, err.Error())
		}
	}

	updated, err := st.GetWidget(ctx, widget.ID)
	if err != nil {
		return nil, nil, err
	}
	return saved, updated, nil
}

// Chat runs the pipeline synchronously and returns the merged outcome.
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}
	ctx := c.Request.Context()

	pipelineReq, widget, err := h.prepareChat(ctx, h.store, c.Param("id"), req.Message)
	if err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}

	result, err := h.pipeline.Run(ctx, pipelineReq)
	if err != nil {
		log.Printf(`{"level":"error","message":"pipeline failed","widget_id":"%s","detail":%q}`, widget.ID, err.Error())
		respondError(c, http.StatusBadGateway, models.ErrCodePipelineFailed, "The AI pipeline failed. Please try again.")
		return
	}

	messages, updated, err := h.persistResult(ctx, h.store, widget, req.Message, result)
	if err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		Message:      result.Message,
		WidgetUpdate: result.WidgetUpdate,
		Filters:      result.Filters,
		Messages:     messages,
		Widget:       updated,
	})
}

// ChatHistory returns the widget's visible conversation and its summary.
func (h *Handler) ChatHistory(c *gin.Context) {
	state, err := h.store.LoadConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}
	messages := state.Messages
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"summary":  state.Summary,
	})
}
