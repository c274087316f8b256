package handler

import (
	"errors"
	"net/http"

	"gowa-gateway/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// SessionHandler serves the session lifecycle endpoints.
type SessionHandler struct {
	lifecycle *service.Lifecycle
	log       zerolog.Logger
}

func NewSessionHandler(lifecycle *service.Lifecycle, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{lifecycle: lifecycle, log: log.With().Str("component", "session_handler").Logger()}
}

// GET /session/start/:sessionId
func (h *SessionHandler) Start(c echo.Context) error {
	id := c.Param("sessionId")
	result, err := h.lifecycle.Setup(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSessionID) {
			return ErrorResponse(c, http.StatusUnprocessableEntity, "Invalid session id", "INVALID_SESSION_ID", err.Error())
		}
		h.log.Error().Err(err).Str("session_id", id).Msg("Start failed")
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to start session", "SESSION_START_FAILED", err.Error())
	}
	if !result.Success {
		return ErrorResponse(c, http.StatusUnprocessableEntity, "Session already exists", "SESSION_EXISTS", result.Message)
	}
	return SuccessResponse(c, http.StatusOK, result.Message, nil)
}

// GET /session/status/:sessionId
func (h *SessionHandler) Status(c echo.Context) error {
	result := h.lifecycle.Validate(c.Request().Context(), c.Param("sessionId"))
	return c.JSON(http.StatusOK, result)
}

// GET /session/qr/:sessionId
func (h *SessionHandler) QR(c echo.Context) error {
	sess, err := h.lifecycle.Session(c.Param("sessionId"))
	if err != nil {
		return ErrorResponse(c, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", "")
	}
	qr := sess.Client.QR()
	if qr == "" {
		return ErrorResponse(c, http.StatusOK, "QR code not ready or already scanned", "QR_NOT_READY", "")
	}
	return SuccessResponse(c, http.StatusOK, "QR code ready", map[string]string{"qr": qr})
}

// GET /session/restart/:sessionId
func (h *SessionHandler) Restart(c echo.Context) error {
	id := c.Param("sessionId")
	if _, err := h.lifecycle.Session(id); err != nil {
		return ErrorResponse(c, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", "")
	}
	if err := h.lifecycle.Reload(c.Request().Context(), id); err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to restart session", "SESSION_RESTART_FAILED", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Restarted successfully", nil)
}

// GET /session/terminate/:sessionId
func (h *SessionHandler) Terminate(c echo.Context) error {
	id := c.Param("sessionId")
	if _, err := h.lifecycle.Session(id); err != nil {
		return ErrorResponse(c, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", "")
	}
	ctx := c.Request().Context()
	if err := h.lifecycle.Delete(ctx, id, h.lifecycle.Validate(ctx, id)); err != nil {
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to terminate session", "SESSION_TERMINATE_FAILED", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Logged out successfully", nil)
}

// GET /session/terminateInactive
func (h *SessionHandler) TerminateInactive(c echo.Context) error {
	if err := h.lifecycle.Flush(c.Request().Context(), true); err != nil {
		h.log.Error().Err(err).Msg("Flush of inactive sessions incomplete")
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to flush inactive sessions", "FLUSH_FAILED", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Flush completed successfully", nil)
}

// GET /session/terminateAll
func (h *SessionHandler) TerminateAll(c echo.Context) error {
	if err := h.lifecycle.Flush(c.Request().Context(), false); err != nil {
		h.log.Error().Err(err).Msg("Flush of all sessions incomplete")
		return ErrorResponse(c, http.StatusInternalServerError, "Failed to flush sessions", "FLUSH_FAILED", err.Error())
	}
	return SuccessResponse(c, http.StatusOK, "Flush completed successfully", nil)
}

// GET /session/list
func (h *SessionHandler) List(c echo.Context) error {
	return SuccessResponse(c, http.StatusOK, "Sessions", map[string]interface{}{
		"sessions": h.lifecycle.Registry().IDs(),
	})
}
