package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

// ChatStream runs the pipeline and streams progress events over SSE. The
// terminal event is either "done" (after the result has been persisted) or
// "error"; clients should close the stream on either.
func (h *Handler) ChatStream(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeInvalidRequest, "Invalid request")
		return
	}
	ctx := c.Request.Context()

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternalError, "Streaming not supported")
		return
	}

	// One pinned connection for the whole stream so the pool is not
	// re-acquired while the LLM pipeline runs.
	session, err := h.store.AcquireSession(ctx)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, models.ErrCodeInternalError, "Database unavailable")
		return
	}
	defer session.Release()

	pipelineReq, widget, err := h.prepareChat(ctx, session.Store, c.Param("id"), req.Message)
	if err != nil {
		notFoundOrInternal(c, err, "widget")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.metrics.StreamOpened(ctx)
	defer h.metrics.StreamClosed(ctx)

	events, results := h.pipeline.RunStream(ctx, pipelineReq)

	for event := range events {
		if err := writeSSE(c.Writer, event.Kind, event.Data); err != nil {
			log.Printf(`{"level":"warn","message":"stream write failed","widget_id":"%s","detail":%q}`,
				widget.ID, err.Error())
			return
		}
		flusher.Flush()
	}

	result := <-results
	if result == nil {
		// Failure path: the error event already went out above.
		return
	}

	messages, updated, err := h.persistResult(ctx, session.Store, widget, req.Message, result)
	if err != nil {
		log.Printf(`{"level":"error","message":"result persistence failed","widget_id":"%s","detail":%q}`,
			widget.ID, err.Error())
		writeSSE(c.Writer, models.EventError, models.ErrorData{
			Message: "Your widget was built but could not be saved. Please retry.",
		})
		flusher.Flush()
		return
	}

	writeSSE(c.Writer, models.EventDone, models.DoneData{
		Messages: messages,
		Widget:   updated,
	})
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, kind models.EventKind, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, payload)
	return err
}
