package handler

import (
	"errors"
	"net/http"

	"gowa-gateway/internal/service"
	"gowa-gateway/internal/wa"

	"github.com/labstack/echo/v4"
)

func SuccessResponse(c echo.Context, code int, message string, data interface{}) error {
	body := map[string]interface{}{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(code, body)
}

func ErrorResponse(c echo.Context, code int, message, errCode, details string) error {
	errBody := map[string]string{"code": errCode}
	if details != "" {
		errBody["details"] = details
	}
	return c.JSON(code, map[string]interface{}{
		"success": false,
		"message": message,
		"error":   errBody,
	})
}

// clientError maps an error from a client operation to a response.
func clientError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, wa.ErrMessageNotFound):
		return ErrorResponse(c, http.StatusNotFound, "Message not found", "MESSAGE_NOT_FOUND", "")
	case errors.Is(err, wa.ErrNoMedia):
		return ErrorResponse(c, http.StatusNotFound, "Message media not found", "MEDIA_NOT_FOUND", "")
	case errors.Is(err, service.ErrSessionNotFound):
		return ErrorResponse(c, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", "")
	case errors.Is(err, wa.ErrClosed), errors.Is(err, wa.ErrNotInitialized):
		return ErrorResponse(c, http.StatusBadRequest, "Session is not connected", "NOT_CONNECTED", err.Error())
	default:
		return ErrorResponse(c, http.StatusInternalServerError, "Operation failed", "INTERNAL_ERROR", err.Error())
	}
}
