package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/erfan-mirasadi/menu-3d/internal/utils"
)

// JWTAuth validates the actor token and stores the actor for handlers. The
// token comes from a Bearer Authorization header, or from the access_token
// query parameter for EventSource clients, which cannot set headers.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := ""
			if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimPrefix(auth, "Bearer ")
			} else if q := c.QueryParam("access_token"); q != "" {
				raw = q
			}
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			actor, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			SetActor(c, actor)
			return next(c)
		}
	}
}
