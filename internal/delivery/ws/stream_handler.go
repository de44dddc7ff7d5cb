package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"smart-helmet-backend/internal/auth"
	"smart-helmet-backend/internal/ingestion"
	"smart-helmet-backend/internal/logger"
)

// Registry is where authenticated viewers are tracked for broadcast.
type Registry interface {
	Connect(conn ingestion.Conn, userID string)
	Disconnect(conn ingestion.Conn, userID string)
}

// TokenVerifier resolves a viewer credential to a user.
type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

type StreamHandler struct {
	registry     Registry
	verifier     TokenVerifier
	upgrader     websocket.Upgrader
	sendBuffer   int
	pingInterval time.Duration
}

func NewStreamHandler(registry Registry, verifier TokenVerifier, sendBuffer int, pingInterval time.Duration) *StreamHandler {
	return &StreamHandler{
		registry:     registry,
		verifier:     verifier,
		upgrader:     newUpgrader(),
		sendBuffer:   sendBuffer,
		pingInterval: pingInterval,
	}
}

func (h *StreamHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/ws/stream", h.Stream)
}

// Stream authenticates the viewer and holds the connection open until it
// leaves. Failed authentication closes with a policy violation.
func (h *StreamHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("viewer upgrade failed", zap.Error(err))
		return
	}

	principal, err := h.verifier.Verify(c.Query("token"))
	if err != nil {
		reason := "Invalid token"
		if errors.Is(err, auth.ErrMissingToken) {
			reason = "Missing token"
		}
		closeWithPolicyViolation(conn, reason)
		return
	}

	viewer := newViewer(conn, h.sendBuffer, h.pingInterval)
	h.registry.Connect(viewer, principal.UserID)
	defer func() {
		h.registry.Disconnect(viewer, principal.UserID)
		_ = viewer.Close()
	}()

	go viewer.writePump()
	viewer.readPump()
}

func closeWithPolicyViolation(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}
