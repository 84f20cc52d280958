package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is the liveness probe for load balancers. It does not touch the
// store.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
