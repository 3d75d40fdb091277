package tryonHandler

import (
	"context"
	"errors"
	"time"

	"OpticalFactory/internal/api/tryon"
	tryonService "OpticalFactory/internal/api/tryon/service"
	"OpticalFactory/internal/entity"
	"OpticalFactory/internal/middleware"
	contextPkg "OpticalFactory/pkg/context"
	"OpticalFactory/pkg/handlerUtil"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsFrameTimeout = 10 * time.Second
)

// handleWebSocket runs one try-on session per connection. Binary messages are
// encoded images for the landmark detector, text messages are landmark frames
// computed by the client.
func (h *TryOnHandler) handleWebSocket(c *websocket.Conn) {
	user, _ := c.Locals(middleware.UserKey).(entity.UserLoginData)
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	ctx := contextPkg.WithRequestID(context.Background(), requestID)

	sessionID, err := h.tryOnService.OpenSession(ctx, user)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Rejected try-on websocket")
		_ = h.writeJSON(c, handlerUtil.NewErrorResponse(err))
		return
	}
	ctx = contextPkg.WithSessionID(ctx, sessionID)

	logger := h.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": sessionID,
	})
	logger.Info("Try-on websocket client connected")

	defer func() {
		closeCtx, cancel := context.WithTimeout(ctx, wsFrameTimeout)
		defer cancel()
		if _, err := h.tryOnService.CloseSession(closeCtx, sessionID, user, tryonService.EndReasonDisconnected); err != nil && !errors.Is(err, tryon.ErrSessionNotFound) {
			logger.WithError(err).Warn("Failed to close session")
		}
		logger.Info("Try-on websocket client disconnected")
	}()

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			logger.WithError(err).Debug("Error sending pong")
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			logger.WithError(err).Error("Error setting read deadline")
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithError(err).Warn("Try-on websocket error")
			}
			return
		}

		outcome, err := h.handleMessage(ctx, sessionID, user, messageType, message)
		if err != nil {
			if errors.Is(err, tryon.ErrSessionNotFound) {
				_ = h.writeJSON(c, handlerUtil.NewErrorResponse(err))
				return
			}
			logger.WithError(err).Warn("Frame not processed")
			if err := h.writeJSON(c, handlerUtil.NewErrorResponse(err)); err != nil {
				return
			}
			continue
		}

		if err := h.writeJSON(c, tryon.NewFaceAnalysisResponse(outcome)); err != nil {
			logger.WithError(err).Error("Error writing JSON response")
			return
		}
	}
}

func (h *TryOnHandler) handleMessage(ctx context.Context, sessionID string, user entity.UserLoginData, messageType int, message []byte) (tryon.FrameOutcome, error) {
	frameCtx, cancel := context.WithTimeout(ctx, wsFrameTimeout)
	defer cancel()

	switch messageType {
	case websocket.BinaryMessage:
		return h.tryOnService.DetectFrame(frameCtx, sessionID, user, message)

	case websocket.TextMessage:
		var req tryon.PoseFrameRequest
		if err := jsoniter.Unmarshal(message, &req); err != nil {
			return tryon.FrameOutcome{}, tryon.ErrInvalidFrame
		}
		if err := h.validator.Struct(req); err != nil {
			return tryon.FrameOutcome{}, tryon.ErrInvalidFrame
		}
		return h.tryOnService.ProcessFrame(frameCtx, sessionID, user, req.Frame())

	default:
		return tryon.FrameOutcome{}, tryon.ErrInvalidFrame
	}
}

func (h *TryOnHandler) writeJSON(c *websocket.Conn, v interface{}) error {
	if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	if err := c.WriteJSON(v); err != nil {
		return err
	}
	return c.SetWriteDeadline(time.Time{})
}
