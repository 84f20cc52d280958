package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/service"
	"github.com/erfan-mirasadi/menu-3d/internal/utils"
)

// AuthHandler mints guest tokens. Staff tokens come from the restaurant's
// identity provider and are only verified here.
type AuthHandler struct {
	Svc      *service.Service
	Secret   string
	GuestTTL time.Duration
}

func NewAuthHandler(svc *service.Service, secret string, guestTTL time.Duration) *AuthHandler {
	return &AuthHandler{Svc: svc, Secret: secret, GuestTTL: guestTTL}
}

type guestTokenResp struct {
	Actor  model.Actor       `json:"actor"`
	Access utils.AccessToken `json:"access"`
}

// GuestToken is what the table QR code opens: a token scoped to one table
// of one restaurant.
func (h *AuthHandler) GuestToken(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	table, err := h.Svc.Table(ctx, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	actor := model.Actor{
		ID:           "guest-" + uuid.NewString(),
		Role:         model.RoleGuest,
		RestaurantID: table.RestaurantID,
		TableID:      table.ID,
	}
	tok, err := utils.NewAccessToken(h.Secret, actor, h.GuestTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "token issue failed"})
	}
	return c.JSON(http.StatusCreated, guestTokenResp{Actor: actor, Access: tok})
}

// Me echoes the caller's identity.
func (h *AuthHandler) Me(c echo.Context) error {
	a, err := actorOr401(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}
