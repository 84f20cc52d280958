package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

const actorKey = "actor"

// SetActor stores the authenticated actor on the request context.
func SetActor(c echo.Context, a model.Actor) { c.Set(actorKey, a) }

// ActorFrom returns the actor stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(actorKey).(model.Actor)
	return a, ok
}
