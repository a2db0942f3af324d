// Package response provides the JSON envelope returned by the HTTP surface.
package response

import (
	"training_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// Response is the standard API response structure.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// OK returns a successful response.
func OK(c *fiber.Ctx, data any) error {
	return c.JSON(Response{Success: true, Data: data})
}

// Created returns a 201 created response.
func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: data})
}

// Error returns an error response.
func Error(c *fiber.Ctx, status int, code, message string) error {
	return Render(c, status, &ErrorInfo{Code: code, Message: message})
}

// Render writes info as an error envelope tagged with the request id.
func Render(c *fiber.Ctx, status int, info *ErrorInfo) error {
	requestID, _ := c.Locals("request_id").(string)
	return c.Status(status).JSON(Response{
		Success:   false,
		Error:     info,
		RequestID: requestID,
	})
}

// Fail renders err as an error envelope using its AppError code and status.
func Fail(c *fiber.Ctx, err error) error {
	appErr := apperr.AsAppError(err)
	status := appErr.Status
	if status == 0 {
		status = fiber.StatusInternalServerError
	}
	return Render(c, status, &ErrorInfo{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

// BadRequest returns a 400 bad request response.
func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, apperr.CodeBadRequest, message)
}
