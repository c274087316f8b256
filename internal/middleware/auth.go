// Package middleware holds the echo middlewares guarding the REST API.
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func unauthorized(c echo.Context, message, code string) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{
		"success": false,
		"message": message,
		"error": map[string]string{
			"code": code,
		},
	})
}

// APIKeyAuth accepts a request carrying either the static x-api-key or an
// HS256 bearer token signed with jwtSecret. With both empty the API is open.
func APIKeyAuth(apiKey, jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" && jwtSecret == "" {
				return next(c)
			}

			if apiKey != "" {
				if key := c.Request().Header.Get("x-api-key"); key != "" {
					if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
						return next(c)
					}
					return unauthorized(c, "Invalid API key", "INVALID_API_KEY")
				}
			}

			authHeader := c.Request().Header.Get("Authorization")
			if jwtSecret == "" || authHeader == "" {
				return unauthorized(c, "Unauthorized", "UNAUTHORIZED")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return unauthorized(c, "Invalid authorization header format", "INVALID_AUTH_HEADER")
			}

			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(jwtSecret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				return unauthorized(c, "Invalid or expired token", "INVALID_TOKEN")
			}

			c.Set("token_subject", claims.Subject)
			return next(c)
		}
	}
}
