package gateway

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bizmatters/agent-builder/widget-studio/internal/auth"
	"github.com/bizmatters/agent-builder/widget-studio/internal/models"
)

// ChatSocket serves the WebSocket variant of the chat stream. The client
// sends one ChatRequest frame after connecting; the server replies with one
// socketFrame per progress event and closes after the terminal done or error
// frame.
type ChatSocket struct {
	handler    *Handler
	jwtManager *auth.JWTManager
	tracer     trace.Tracer
	upgrader   websocket.Upgrader
}

// socketFrame is the wire shape of one event on the socket.
type socketFrame struct {
	Event models.EventKind `json:"event"`
	Data  interface{}      `json:"data"`
}

// NewChatSocket creates the WebSocket chat endpoint.
func NewChatSocket(handler *Handler, jwtManager *auth.JWTManager) *ChatSocket {
	return &ChatSocket{
		handler:    handler,
		jwtManager: jwtManager,
		tracer:     otel.Tracer("chat-socket"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Implement proper CORS origin checking for production
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Stream handles GET /ws/widgets/:id/chat.
func (s *ChatSocket) Stream(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "chat_socket.stream")
	defer span.End()

	widgetID := c.Param("id")
	span.SetAttributes(attribute.String("widget_id", widgetID))

	userID, err := s.authenticate(c)
	if err != nil {
		span.RecordError(err)
		log.Printf(`{"level":"warn","message":"websocket auth failed","detail":%q}`, err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	span.SetAttributes(attribute.String("user_id", userID))

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		log.Printf(`{"level":"warn","message":"websocket upgrade failed","detail":%q}`, err.Error())
		return
	}
	defer conn.Close()

	var req ChatRequest
	if err := conn.ReadJSON(&req); err != nil || req.Message == "" {
		s.writeFrame(conn, models.EventError, models.ErrorData{Message: "Expected a chat message frame"})
		return
	}

	session, err := s.handler.store.AcquireSession(ctx)
	if err != nil {
		span.RecordError(err)
		s.writeFrame(conn, models.EventError, models.ErrorData{Message: "Database unavailable"})
		return
	}
	defer session.Release()

	pipelineReq, widget, err := s.handler.prepareChat(ctx, session.Store, widgetID, req.Message)
	if err != nil {
		span.RecordError(err)
		s.writeFrame(conn, models.EventError, models.ErrorData{Message: "Widget not found"})
		return
	}

	s.handler.metrics.StreamOpened(ctx)
	defer s.handler.metrics.StreamClosed(ctx)

	events, results := s.handler.pipeline.RunStream(ctx, pipelineReq)

	for event := range events {
		if err := s.writeFrame(conn, event.Kind, event.Data); err != nil {
			span.RecordError(err)
			return
		}
	}

	result := <-results
	if result == nil {
		s.closeNormally(conn)
		return
	}

	messages, updated, err := s.handler.persistResult(ctx, session.Store, widget, req.Message, result)
	if err != nil {
		span.RecordError(err)
		log.Printf(`{"level":"error","message":"result persistence failed","widget_id":"%s","detail":%q}`,
			widget.ID, err.Error())
		s.writeFrame(conn, models.EventError, models.ErrorData{
			Message: "Your widget was built but could not be saved. Please retry.",
		})
		return
	}

	s.writeFrame(conn, models.EventDone, models.DoneData{Messages: messages, Widget: updated})
	s.closeNormally(conn)
}

// authenticate reads the JWT from the token query parameter, falling back to
// the Authorization header.
func (s *ChatSocket) authenticate(c *gin.Context) (string, error) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}
	if token == "" {
		return "", fmt.Errorf("missing JWT token")
	}

	claims, err := s.jwtManager.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return "", fmt.Errorf("invalid JWT: %w", err)
	}
	return claims.UserID, nil
}

func (s *ChatSocket) writeFrame(conn *websocket.Conn, kind models.EventKind, data interface{}) error {
	if err := conn.WriteJSON(socketFrame{Event: kind, Data: data}); err != nil {
		log.Printf(`{"level":"warn","message":"websocket write failed","detail":%q}`, err.Error())
		return err
	}
	return nil
}

func (s *ChatSocket) closeNormally(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
