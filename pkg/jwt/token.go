package jwtPkg

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"OpticalFactory/internal/entity"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const AccessTokenSecret = "JWT_ACCESS_TOKEN_SECRET"

var (
	ErrEmptyHeader     = errors.New("empty Authorization header")
	ErrInvalidFormat   = errors.New("invalid Authorization format")
	ErrSecretNotSet    = errors.New("JWT secret not configured")
	ErrMissingClaims   = errors.New("token claims are missing required fields")
	ErrInvalidClaimSet = errors.New("invalid token claims")
)

// Sign issues an HS256 access token for user.
func Sign(user entity.UserLoginData, expiresIn time.Duration) (string, int64, error) {
	secret := os.Getenv(AccessTokenSecret)
	if secret == "" {
		return "", 0, ErrSecretNotSet
	}

	expiredAt := time.Now().Add(expiresIn).Unix()
	claims := jwt.MapClaims{
		"exp":           expiredAt,
		"authorization": true,
		"id":            user.ID,
		"email":         user.Email,
		"username":      user.Username,
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign token")
		return "", 0, err
	}

	return accessToken, expiredAt, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrEmptyHeader
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", ErrInvalidFormat
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidFormat
	}
	return token, nil
}

// Verify parses an HS256 token signed with the secret in secretEnvKey and
// returns the user it was issued for.
func Verify(accessToken, secretEnvKey string) (entity.UserLoginData, error) {
	secret := os.Getenv(secretEnvKey)
	if secret == "" {
		return entity.UserLoginData{}, ErrSecretNotSet
	}

	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return entity.UserLoginData{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return entity.UserLoginData{}, ErrInvalidClaimSet
	}

	id, okID := claims["id"].(string)
	email, okEmail := claims["email"].(string)
	username, okName := claims["username"].(string)
	if !okID || !okEmail || !okName || id == "" {
		return entity.UserLoginData{}, ErrMissingClaims
	}

	return entity.UserLoginData{ID: id, Email: email, Username: username}, nil
}

func VerifyTokenHeader(c *fiber.Ctx, secretEnvKey string) (entity.UserLoginData, error) {
	accessToken, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return entity.UserLoginData{}, err
	}
	return Verify(accessToken, secretEnvKey)
}

func GetUserLoginData(c *fiber.Ctx) (entity.UserLoginData, error) {
	user, ok := c.Locals("user").(entity.UserLoginData)
	if !ok {
		return entity.UserLoginData{}, fiber.ErrUnauthorized
	}

	return user, nil
}
