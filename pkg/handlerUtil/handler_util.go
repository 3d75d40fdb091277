package handlerUtil

import (
	"errors"

	"OpticalFactory/pkg/log"
	"OpticalFactory/pkg/pose"
	"OpticalFactory/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) && respErr.Code < fiber.StatusInternalServerError {
		fields["code"] = respErr.Code
		h.logger.WithFields(fields).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(ErrorResponse{
			Error: respErr.Err.Error(),
			Code:  codeOf(respErr.Code),
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) && fiberErr.Code < fiber.StatusInternalServerError {
		h.logger.WithFields(fields).Warn("Request rejected")
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Error: fiberErr.Message,
			Code:  codeOf(fiberErr.Code),
		})
	}

	status := response.StatusOf(err)
	message := "An unexpected error occurred"
	if respErr != nil {
		message = respErr.Err.Error()
	}

	traceID := log.ErrorWithTraceID(fields, "Unexpected error")
	return c.Status(status).JSON(ErrorResponse{
		Error:   message,
		Code:    codeOf(status),
		TraceID: traceID,
	})
}

// HandleFrameFailure answers a frame that left the session lost. It is a
// client-visible outcome, not a server error.
func (h *ErrorHandler) HandleFrameFailure(c *fiber.Ctx, requestID string, fe *pose.FrameError, body interface{}) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"code":       string(fe.Kind),
		"check":      fe.Check(),
		"failures":   fe.Failures,
		"error":      fe.Cause.Error(),
	}).Info("Frame rejected, tracking lost")

	return c.Status(fiber.StatusUnprocessableEntity).JSON(body)
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: utils.StatusMessage(fiber.StatusRequestTimeout),
		Code:  codeOf(fiber.StatusRequestTimeout),
	})
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error: message,
		Code:  "UNAUTHORIZED",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}

var statusCodes = map[int]string{
	fiber.StatusBadRequest:            "BAD_REQUEST",
	fiber.StatusUnauthorized:          "UNAUTHORIZED",
	fiber.StatusForbidden:             "FORBIDDEN",
	fiber.StatusNotFound:              "NOT_FOUND",
	fiber.StatusRequestTimeout:        "REQUEST_TIMEOUT",
	fiber.StatusRequestEntityTooLarge: "PAYLOAD_TOO_LARGE",
	fiber.StatusUnprocessableEntity:   "UNPROCESSABLE_ENTITY",
	fiber.StatusTooManyRequests:       "TOO_MANY_REQUESTS",
	fiber.StatusServiceUnavailable:    "SERVICE_UNAVAILABLE",
}

func codeOf(status int) string {
	if code, ok := statusCodes[status]; ok {
		return code
	}
	if status >= fiber.StatusInternalServerError {
		return "INTERNAL_ERROR"
	}
	return "ERROR"
}

// NewErrorResponse renders err as Handle would, for transports without a
// status line such as websockets.
func NewErrorResponse(err error) ErrorResponse {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		return ErrorResponse{Error: respErr.Err.Error(), Code: codeOf(respErr.Code)}
	}
	return ErrorResponse{Error: "An unexpected error occurred", Code: codeOf(fiber.StatusInternalServerError)}
}
