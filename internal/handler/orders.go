package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/service"
)

// AddItem: POST /v1/sessions/:id/items
func (h *LedgerHandler) AddItem(c echo.Context) error {
	return h.addItem(c, func(in *service.AddItemInput) {
		in.SessionID, in.TableID = c.Param("id"), ""
	})
}

// AddItemAtTable: POST /v1/tables/:id/items. A guest whose table has no
// active session opens one with the first item.
func (h *LedgerHandler) AddItemAtTable(c echo.Context) error {
	return h.addItem(c, func(in *service.AddItemInput) {
		in.SessionID, in.TableID = "", c.Param("id")
	})
}

func (h *LedgerHandler) addItem(c echo.Context, target func(*service.AddItemInput)) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var in service.AddItemInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	target(&in)
	ctx, cancel := reqCtx(c)
	defer cancel()
	item, err := h.Svc.AddItem(ctx, actor, in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

// ListItems: GET /v1/sessions/:id/items
func (h *LedgerHandler) ListItems(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Svc.ListItems(ctx, actor, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

// UpdateQuantity: PATCH /v1/items/:id
func (h *LedgerHandler) UpdateQuantity(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var req quantityReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	item, err := h.Svc.UpdateItemQuantity(ctx, actor, c.Param("id"), req.Quantity)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

// DeleteItem: DELETE /v1/items/:id
func (h *LedgerHandler) DeleteItem(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Svc.DeleteItem(ctx, actor, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// StepFunc is a lifecycle method of the service, taken as a method
// expression.
type StepFunc func(svc *service.Service, ctx context.Context, actor model.Actor, itemID string) (*model.OrderItem, error)

// Step returns a handler running one lifecycle transition on the item in
// the path, e.g. Step((*service.Service).MarkReady).
func (h *LedgerHandler) Step(op StepFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor, err := actorOr401(c)
		if err != nil {
			return err
		}
		ctx, cancel := reqCtx(c)
		defer cancel()
		item, err := op(h.Svc, ctx, actor, c.Param("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, item)
	}
}

// ConfirmOrder: POST /v1/sessions/:id/confirm
func (h *LedgerHandler) ConfirmOrder(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Svc.ConfirmOrder(ctx, actor, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"confirmed": items})
}

type voidReq struct {
	Reason string `json:"reason"`
}

// VoidItem: POST /v1/items/:id/void
func (h *LedgerHandler) VoidItem(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var req voidReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	vd, err := h.Svc.VoidItem(ctx, actor, c.Param("id"), req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, vd)
}

type partialVoidReq struct {
	NewQuantity      int    `json:"new_quantity"`
	PreviousQuantity int    `json:"previous_quantity"`
	Reason           string `json:"reason"`
}

// VoidPartial: POST /v1/items/:id/void-partial
func (h *LedgerHandler) VoidPartial(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var req partialVoidReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	vd, err := h.Svc.VoidPartialQuantity(ctx, actor, c.Param("id"), req.NewQuantity, req.PreviousQuantity, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, vd)
}

type editReq struct {
	Lines  []service.LineEdit `json:"lines"`
	Reason string             `json:"reason"`
}

// ApplyEdit: POST /v1/sessions/:id/edit
func (h *LedgerHandler) ApplyEdit(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var req editReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.ApplyOrderEdit(ctx, actor, c.Param("id"), req.Lines, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
