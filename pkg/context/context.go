package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type key string

const (
	RequestIDKey key = "request_id"
	SessionIDKey key = "session_id"

	RequestIDHeader = "X-Request-ID"
	SessionIDHeader = "X-Session-ID"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetSessionID returns the try-on session id, or "" when the request did not
// name one.
func GetSessionID(ctx context.Context) string {
	sessionID, _ := ctx.Value(SessionIDKey).(string)
	return sessionID
}

func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := context.Background()

	requestID, ok := c.Locals(RequestIDHeader).(string)
	if !ok || requestID == "" {
		requestID = c.Get(RequestIDHeader)

		if requestID == "" {
			requestID = "unknown"
		}
	}
	ctx = WithRequestID(ctx, requestID)

	if sessionID := c.Get(SessionIDHeader); sessionID != "" {
		ctx = WithSessionID(ctx, sessionID)
	}

	return ctx
}
