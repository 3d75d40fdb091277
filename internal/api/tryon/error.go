package tryon

import (
	"net/http"

	"OpticalFactory/pkg/response"
)

var (
	ErrSessionNotFound     = response.NewError(http.StatusNotFound, "session not found")
	ErrSessionForbidden    = response.NewError(http.StatusForbidden, "session belongs to another user")
	ErrInvalidFrame        = response.NewError(http.StatusBadRequest, "invalid frame")
	ErrInvalidImage        = response.NewError(http.StatusBadRequest, "invalid image, send a jpeg or png up to 5MB")
	ErrDetectorUnavailable = response.NewError(http.StatusServiceUnavailable, "landmark service unavailable")
	ErrTooManySessions     = response.NewError(http.StatusTooManyRequests, "too many active sessions")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
)
