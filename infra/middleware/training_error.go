package middleware

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"training_server/pkg/apperr"
	"training_server/pkg/logger"
	"training_server/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// LocalRequestID holds the request id in fiber locals.
const LocalRequestID = "request_id"

// ErrorHandler renders errors returned by handlers. AppErrors keep their code
// and status; fiber errors are mapped by status; anything else is a 500.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, info := classify(err)

		log := logger.WithContext(c.UserContext()).
			WithField("error_code", info.Code).
			WithField("path", c.Path())
		switch {
		case status >= 500:
			log.WithError(err).Error("%s %s failed: %s", c.Method(), c.Path(), info.Message)
		case status != fiber.StatusNotFound:
			log.Warn("%s %s rejected: %s", c.Method(), c.Path(), info.Message)
		}

		return response.Render(c, status, info)
	}
}

func classify(err error) (int, *response.ErrorInfo) {
	var (
		appErr   *apperr.AppError
		fiberErr *fiber.Error
	)
	switch {
	case errors.As(err, &appErr):
		return appErr.HTTPStatus(), &response.ErrorInfo{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}
	case errors.As(err, &fiberErr):
		return fiberErr.Code, &response.ErrorInfo{
			Code:    codeForStatus(fiberErr.Code),
			Message: fiberErr.Message,
		}
	default:
		return fiber.StatusInternalServerError, &response.ErrorInfo{
			Code:    apperr.CodeInternalError,
			Message: "An unexpected error occurred",
		}
	}
}

// RequestID propagates X-Request-ID, generating one when absent, into locals,
// the response header and the logger context.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals(LocalRequestID, requestID)
		c.Set(fiber.HeaderXRequestID, requestID)
		c.SetUserContext(context.WithValue(c.UserContext(), logger.RequestIDKey, requestID))
		return c.Next()
	}
}

func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			// The error handler has not run yet.
			status, _ = classify(err)
		}
		log := logger.WithContext(c.UserContext()).
			WithDuration(time.Since(start)).
			WithFields(map[string]any{
				"method": c.Method(),
				"path":   c.Path(),
				"status": status,
				"ip":     c.IP(),
			})

		if status >= 500 {
			log.Warn("%s %s -> %d", c.Method(), c.Path(), status)
		} else {
			log.Info("%s %s -> %d", c.Method(), c.Path(), status)
		}
		return err
	}
}

// Recover turns a handler panic into a 500 envelope.
func Recover() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.WithContext(c.UserContext()).WithFields(map[string]any{
				"panic":  fmt.Sprintf("%v", r),
				"path":   c.Path(),
				"method": c.Method(),
				"stack":  string(debug.Stack()),
			}).Error("Panic recovered")

			err = response.Render(c, fiber.StatusInternalServerError, &response.ErrorInfo{
				Code:    apperr.CodeInternalError,
				Message: "An unexpected error occurred",
			})
		}()
		return c.Next()
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return apperr.CodeBadRequest
	case fiber.StatusUnauthorized:
		return apperr.CodeUnauthorized
	case fiber.StatusForbidden:
		return apperr.CodeForbidden
	case fiber.StatusNotFound:
		return apperr.CodeNotFound
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case fiber.StatusBadGateway, fiber.StatusServiceUnavailable, fiber.StatusGatewayTimeout:
		return "SERVICE_UNAVAILABLE"
	}
	if status >= 500 {
		return apperr.CodeInternalError
	}
	return "UNKNOWN_ERROR"
}
