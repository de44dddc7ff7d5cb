package ws

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"smart-helmet-backend/internal/ingestion"
	"smart-helmet-backend/internal/logger"
)

var errTextOnly = errors.New("frames must be UTF-8 JSON text")

// FrameHandler processes one device frame and returns the reply to send back.
type FrameHandler interface {
	HandleFrame(ctx context.Context, raw []byte) ingestion.Reply
	Reject(err error) ingestion.Reply
}

type IngestOptions struct {
	MaxFrameBytes int64
	// FramesPerSecond limits each connection; 0 disables the limit.
	FramesPerSecond float64
	Burst           int
}

type IngestHandler struct {
	frames   FrameHandler
	upgrader websocket.Upgrader
	opts     IngestOptions
}

func NewIngestHandler(frames FrameHandler, opts IngestOptions) *IngestHandler {
	return &IngestHandler{
		frames:   frames,
		upgrader: newUpgrader(),
		opts:     opts,
	}
}

func (h *IngestHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/ws/ingest", h.Ingest)
}

// Ingest reads device frames until the device disconnects, answering each
// with exactly one text frame. Bad frames never end the session.
func (h *IngestHandler) Ingest(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("device upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.opts.MaxFrameBytes > 0 {
		conn.SetReadLimit(h.opts.MaxFrameBytes)
	}

	var limiter *rate.Limiter
	if h.opts.FramesPerSecond > 0 {
		burst := h.opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(h.opts.FramesPerSecond), burst)
	}

	remote := c.Request.RemoteAddr
	logger.Info("device connected", zap.String("remote_addr", remote))
	defer logger.Info("device disconnected", zap.String("remote_addr", remote))

	ctx := c.Request.Context()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("device read failed", zap.String("remote_addr", remote), zap.Error(err))
			}
			return
		}

		var reply ingestion.Reply
		switch {
		case msgType != websocket.TextMessage:
			reply = h.frames.Reject(errTextOnly)
		case limiter != nil && !limiter.Allow():
			reply = h.frames.Reject(ingestion.ErrRateLimited)
		default:
			reply = h.frames.HandleFrame(ctx, data)
		}

		if err := conn.WriteMessage(websocket.TextMessage, reply.Bytes()); err != nil {
			logger.Warn("device write failed", zap.String("remote_addr", remote), zap.Error(err))
			return
		}
	}
}
