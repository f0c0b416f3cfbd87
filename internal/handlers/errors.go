package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"bookshelf/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// NewErrorHandler returns the Fiber error handler that turns any error
// returned by a handler or middleware into an ErrorResponse. Unclassified
// errors become a generic 500.
func NewErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		status, message := translate(err)

		attrs := []any{"method", c.Method(), "path", c.Path(), "status", status, "error", err}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
		} else {
			logger.Debug("request rejected", attrs...)
		}

		return c.Status(status).JSON(ErrorResponse{Status: status, Message: message})
	}
}

func translate(err error) (int, string) {
	if appErr, ok := apperror.As(err); ok {
		status := appErr.HTTPStatus()
		if appErr.Kind == apperror.KindInternal {
			return status, http.StatusText(http.StatusInternalServerError)
		}
		return status, appErr.Message
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, fiberErr.Message
	}

	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}
