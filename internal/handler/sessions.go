package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
)

type openTableReq struct {
	TableID string `json:"table_id"`
}

// OpenTable: POST /v1/sessions
func (h *LedgerHandler) OpenTable(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var req openTableReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sess, err := h.Svc.OpenTable(ctx, actor, req.TableID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, sess)
}

// GetSession: GET /v1/sessions/:id
func (h *LedgerHandler) GetSession(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sess, err := h.Svc.GetSession(ctx, actor, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	items, err := h.Svc.ListItems(ctx, actor, sess.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, model.SessionView{Session: *sess, Items: items})
}

// CloseTable: POST /v1/sessions/:id/close
func (h *LedgerHandler) CloseTable(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sess, err := h.Svc.CloseTable(ctx, actor, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

type noteReq struct {
	Note string `json:"note"`
}

// SetNote: PUT /v1/sessions/:id/note
func (h *LedgerHandler) SetNote(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var req noteReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sess, err := h.Svc.SetNote(ctx, actor, c.Param("id"), req.Note)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, sess)
}

type serviceReq struct {
	Kind model.ServiceRequestKind `json:"kind"`
}

// RequestService: POST /v1/sessions/:id/requests
func (h *LedgerHandler) RequestService(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var req serviceReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sr, err := h.Svc.RequestService(ctx, actor, c.Param("id"), req.Kind)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, sr)
}

// ResolveRequest: POST /v1/requests/:id/resolve
func (h *LedgerHandler) ResolveRequest(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Svc.ResolveRequest(ctx, actor, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Activity: GET /v1/sessions/:id/activity
func (h *LedgerHandler) Activity(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	logs, err := h.Svc.Activity(ctx, actor, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"activity": logs})
}
