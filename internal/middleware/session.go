package middleware

import (
	"net/http"

	"gowa-gateway/internal/service"

	"github.com/labstack/echo/v4"
)

// SessionNameValidation rejects a :sessionId that could not name a session folder.
func SessionNameValidation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := service.ValidateSessionID(c.Param("sessionId")); err != nil {
				return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
					"success": false,
					"message": "Session should be alphanumerical or -",
					"error": map[string]string{
						"code": "INVALID_SESSION_ID",
					},
				})
			}
			return next(c)
		}
	}
}

// SessionValidation lets a request through only when :sessionId names a
// connected session.
func SessionValidation(lifecycle *service.Lifecycle) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			result := lifecycle.Validate(c.Request().Context(), c.Param("sessionId"))
			if result.Success {
				return next(c)
			}

			status := http.StatusBadRequest
			if result.Message == service.MsgSessionNotFound {
				status = http.StatusNotFound
			}
			return c.JSON(status, map[string]interface{}{
				"success": false,
				"message": result.Message,
				"error": map[string]interface{}{
					"code":  "SESSION_NOT_READY",
					"state": result.State,
				},
			})
		}
	}
}
