package tryonHandler

import (
	"fmt"
	"time"

	"OpticalFactory/internal/api/tryon"
	tryonService "OpticalFactory/internal/api/tryon/service"
	contextPkg "OpticalFactory/pkg/context"
	"OpticalFactory/pkg/handlerUtil"
	jwtPkg "OpticalFactory/pkg/jwt"
	"OpticalFactory/pkg/log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (h *TryOnHandler) Test(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status": "Face detection service is running",
	})
}

func (h *TryOnHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	user, _ := jwtPkg.GetUserLoginData(ctx)

	var image []byte
	file, err := ctx.FormFile("image")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing image upload")

		image, err = h.utils.ReadImageFile(file)
		if err != nil {
			return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %w", tryon.ErrInvalidImage, err), ctx.Path(), "read_image_file")
		}
	} else {
		var req tryon.DetectRequest
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %w", tryon.ErrInvalidImage, err), ctx.Path(), "parse_request_body")
		}

		if err := h.validator.Struct(req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}

		image, err = h.utils.DecodeBase64Image(req.ImageBase64)
		if err != nil {
			return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %w", tryon.ErrInvalidImage, err), ctx.Path(), "decode_base64_image")
		}
	}

	outcome, err := h.tryOnService.DetectFrame(c, contextPkg.GetSessionID(c), user, image)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_frame")
	}

	return h.respond(ctx, c, errHandler, requestID, outcome)
}

func (h *TryOnHandler) Pose(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	user, _ := jwtPkg.GetUserLoginData(ctx)

	var req tryon.PoseFrameRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %w", tryon.ErrInvalidFrame, err), ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	outcome, err := h.tryOnService.ProcessFrame(c, contextPkg.GetSessionID(c), user, req.Frame())
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "process_frame")
	}

	return h.respond(ctx, c, errHandler, requestID, outcome)
}

func (h *TryOnHandler) respond(ctx *fiber.Ctx, c context.Context, errHandler *handlerUtil.ErrorHandler, requestID string, outcome tryon.FrameOutcome) error {
	ctx.Set(contextPkg.SessionIDHeader, outcome.SessionID)
	body := tryon.NewFaceAnalysisResponse(outcome)

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		if outcome.Failure != nil {
			return errHandler.HandleFrameFailure(ctx, requestID, outcome.Failure, body)
		}
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, body)
	}
}

func (h *TryOnHandler) GetSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	user, _ := jwtPkg.GetUserLoginData(ctx)

	snapshot, err := h.tryOnService.GetSnapshot(c, ctx.Params("id"), user)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_session")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, snapshot)
}

func (h *TryOnHandler) CloseSession(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)
	user, _ := jwtPkg.GetUserLoginData(ctx)

	summary, err := h.tryOnService.CloseSession(c, ctx.Params("id"), user, tryonService.EndReasonClosed)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "close_session")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"session_id": summary.ID,
		"frames":     summary.Frames,
	}).Info("Session closed by client")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, tryon.NewSessionSummary(summary))
}

func (h *TryOnHandler) History(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	user, err := jwtPkg.GetUserLoginData(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	limit := ctx.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	sessions, err := h.tryOnService.GetHistory(c, user.ID, limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_history")
	}

	resp := tryon.SessionHistoryResponse{Sessions: make([]tryon.SessionSummary, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, tryon.NewSessionSummary(s))
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}
}
