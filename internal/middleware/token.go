package middleware

import (
	jwtPkg "OpticalFactory/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenSecret = jwtPkg.AccessTokenSecret
	UserKey           = "user"
)

func (m *middleware) unauthorized(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   "Unauthorized, access token invalid or expired",
		"code":    "UNAUTHORIZED",
	})
}

// NewTokenMiddleware rejects requests without a valid bearer token and stores
// the caller in Locals under UserKey.
func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	user, err := jwtPkg.VerifyTokenHeader(ctx, AccessTokenSecret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"path":       ctx.Path(),
			"client_ip":  ctx.IP(),
			"error":      err.Error(),
		}).Warn("Token verification failed")
		return m.unauthorized(ctx)
	}

	ctx.Locals(UserKey, user)
	return ctx.Next()
}

// NewOptionalTokenMiddleware attaches the caller when a token is present and
// lets anonymous requests through. A present but invalid token is rejected.
func (m *middleware) NewOptionalTokenMiddleware(ctx *fiber.Ctx) error {
	if ctx.Get(fiber.HeaderAuthorization) == "" {
		return ctx.Next()
	}
	return m.NewTokenMiddleware(ctx)
}
