package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/service"
)

// GetBill: GET /v1/sessions/:id/bill
func (h *LedgerHandler) GetBill(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	view, err := h.Svc.GetBillView(ctx, actor, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// BillTotal: GET /v1/bills/:id/total
func (h *LedgerHandler) BillTotal(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	total, err := h.Svc.CalculateBillTotal(ctx, actor, c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"bill_id": c.Param("id"), "total": total})
}

// AddAdjustment: POST /v1/sessions/:id/bill/adjustments
func (h *LedgerHandler) AddAdjustment(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var in service.AdjustmentInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	bill, err := h.Svc.AddAdjustment(ctx, actor, c.Param("id"), in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, bill)
}

// Quote: POST /v1/sessions/:id/bill/quote
func (h *LedgerHandler) Quote(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var req service.QuoteRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.QuotePayment(ctx, actor, c.Param("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, q)
}

// paymentReq is the wire form of a payment. SINGLE reads method, amount
// and item_ids; SPLIT reads parts and the optional declared total.
type paymentReq struct {
	Mode     string               `json:"mode"`
	Method   model.PaymentMethod  `json:"method"`
	Amount   model.Money          `json:"amount"`
	ItemIDs  []string             `json:"item_ids"`
	Parts    []service.PaymentLeg `json:"parts"`
	Declared model.Money          `json:"declared"`
}

func (r paymentReq) payment() (service.Payment, bool) {
	switch strings.ToUpper(strings.TrimSpace(r.Mode)) {
	case "SINGLE", "":
		return service.SinglePayment{PaymentLeg: service.PaymentLeg{Method: r.Method, Amount: r.Amount, ItemIDs: r.ItemIDs}}, true
	case "SPLIT":
		return service.SplitPayment{Parts: r.Parts, Declared: r.Declared}, true
	}
	return nil, false
}

// ProcessPayment: POST /v1/sessions/:id/payments
func (h *LedgerHandler) ProcessPayment(c echo.Context) error {
	actor, err := actorOr401(c)
	if err != nil {
		return err
	}
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	p, ok := req.payment()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": string(service.CodeValidation), "message": "mode must be SINGLE or SPLIT"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.ProcessPayment(ctx, actor, c.Param("id"), p)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}
