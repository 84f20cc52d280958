package handler // handler adapts the ledger service to echo

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/erfan-mirasadi/menu-3d/internal/middleware"
	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/service"
)

// requestTimeout bounds every store round trip a handler makes.
const requestTimeout = 5 * time.Second

// LedgerHandler serves sessions, order items, bills and payments.
type LedgerHandler struct {
	Svc *service.Service
}

// NewLedgerHandler panics on a nil service so routing fails at startup,
// not on the first request.
func NewLedgerHandler(svc *service.Service) *LedgerHandler {
	if svc == nil {
		panic("nil service passed to NewLedgerHandler")
	}
	return &LedgerHandler{Svc: svc}
}

// actorOr401 reads the actor JWTAuth stored on the context.
func actorOr401(c echo.Context) (model.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing actor"})
	}
	return a, nil
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": string(service.CodeValidation), "message": "invalid body"})
}

// statusOf chooses the HTTP status for a domain error code. Rule
// violations on well-formed requests are 409 when retrying against fresh
// state can succeed and 422 when the request itself can never succeed.
func statusOf(code service.Code) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeValidation, service.CodeMissingReason:
		return http.StatusBadRequest
	case service.CodeConcurrencyConflict, service.CodeTableOccupied, service.CodeSessionClosed,
		service.CodeInvalidTransition, service.CodeQuantityLocked:
		return http.StatusConflict
	case service.CodeOverpayment, service.CodeMixedPaymentMismatch, service.CodeBelowPaid,
		service.CodeOutstandingBalance:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": code, "message": text}. Internal failures
// are logged here and their text is not sent to the client.
func fail(c echo.Context, err error) error {
	code := service.CodeOf(err)
	status := statusOf(code)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		msg = "internal error"
	}
	body := echo.Map{"error": string(code), "message": msg}
	var over *service.OverpaymentError
	if errors.As(err, &over) {
		body["remaining"] = over.Remaining
	}
	return c.JSON(status, body)
}
