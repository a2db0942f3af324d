package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"training_server/pkg/apperr"
	"training_server/pkg/logger"
	"training_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Locals keys set by JWTAuth.
const (
	LocalUserID        = "user_id"
	LocalUserAssertion = "user_assertion"
	LocalLocale        = "locale"
	LocalClaims        = "claims"

	// HeaderUserAssertion carries the end user's Entra access token for on-behalf-of exchange.
	HeaderUserAssertion = "X-User-Assertion"
)

// ServiceClaims are issued by the event-management application for each call.
type ServiceClaims struct {
	Locale string `json:"locale,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth validates HS256 service tokens. The subject is the acting user's directory object id.
func JWTAuth(secret, audience string) fiber.Handler {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(time.Minute),
		jwt.WithIssuedAt(),
	}
	if audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(audience))
	}
	parser := jwt.NewParser(parserOpts...)

	return func(c *fiber.Ctx) error {
		// Skip auth for CORS preflight requests
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		if secret == "" {
			return response.Fail(c, apperr.ConfigError("JWT secret not configured"))
		}

		var tokenString string
		authHeader := c.Get(fiber.HeaderAuthorization)
		if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			tokenString = strings.TrimSpace(parts[1])
		}
		if tokenString == "" {
			return response.Fail(c, apperr.Unauthorized("missing authorization"))
		}

		claims := &ServiceClaims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unsupported signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			logger.WithContext(c.UserContext()).WithError(err).Warn("JWT validation failed")
			return response.Fail(c, apperr.InvalidToken("invalid token"))
		}

		if claims.Subject == "" {
			return response.Fail(c, apperr.InvalidToken("missing user id in token"))
		}

		locale := claims.Locale
		if locale == "" {
			locale = c.Get(fiber.HeaderAcceptLanguage)
		}

		c.Locals(LocalUserID, claims.Subject)
		c.Locals(LocalUserAssertion, c.Get(HeaderUserAssertion))
		c.Locals(LocalLocale, locale)
		c.Locals(LocalClaims, claims)
		c.SetUserContext(context.WithValue(c.UserContext(), logger.UserIDKey, claims.Subject))

		return c.Next()
	}
}
