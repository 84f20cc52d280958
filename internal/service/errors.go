package service

import (
	"errors"
	"fmt"

	"github.com/erfan-mirasadi/menu-3d/internal/billing"
	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/orderflow"
	"github.com/erfan-mirasadi/menu-3d/internal/repository"
)

// Code is the stable machine-readable name of a failure. Handlers put it
// in the response body; clients branch on it.
type Code string

const (
	CodeInvalidTransition    Code = "invalid_transition"
	CodeOverpayment          Code = "overpayment"
	CodeMixedPaymentMismatch Code = "mixed_payment_mismatch"
	CodeMissingReason        Code = "missing_reason"
	CodeConcurrencyConflict  Code = "concurrency_conflict"
	CodeSessionClosed        Code = "session_closed"
	CodeTableOccupied        Code = "table_occupied"
	CodeOutstandingBalance   Code = "outstanding_balance"
	CodeQuantityLocked       Code = "quantity_locked"
	CodeBelowPaid            Code = "below_paid"
	CodeForbidden            Code = "forbidden"
	CodeNotFound             Code = "not_found"
	CodeValidation           Code = "validation"
	CodeInternal             Code = "internal"
)

// InvalidTransitionError is the lifecycle rejection raised by orderflow.
type InvalidTransitionError = orderflow.InvalidTransitionError

var (
	// ErrNotFound and ErrConcurrencyConflict are the store's sentinels, so
	// errors.Is works whichever layer raised them.
	ErrNotFound            = repository.ErrNotFound
	ErrConcurrencyConflict = repository.ErrConflict
	// ErrQuantityLocked rejects quantity edits of confirmed items.
	ErrQuantityLocked = orderflow.ErrCommitted

	ErrMissingReason      = errors.New("a non-empty reason is required to reduce a confirmed item")
	ErrSessionClosed      = errors.New("session is closed")
	ErrTableOccupied      = errors.New("table already has an active session")
	ErrOutstandingBalance = errors.New("session has an outstanding balance")
	ErrBelowPaid          = errors.New("change would bring the bill total below the amount already paid")
	ErrForbidden          = errors.New("actor may not perform this operation")
)

// OverpaymentError is returned when a payment exceeds what is still due.
type OverpaymentError struct {
	Requested model.Money
	Remaining model.Money
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds remaining %s", e.Requested, e.Remaining)
}

// MixedPaymentMismatchError is returned when split legs do not add up to
// the declared amount-to-pay.
type MixedPaymentMismatchError struct {
	Declared model.Money
	Sum      model.Money
}

func (e *MixedPaymentMismatchError) Error() string {
	return fmt.Sprintf("payment legs sum to %s but %s was declared", e.Sum, e.Declared)
}

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

// CodeOf maps an error returned by this package to its machine code.
func CodeOf(err error) Code {
	var (
		it  *InvalidTransitionError
		op  *OverpaymentError
		mm  *MixedPaymentMismatchError
		val *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &it):
		return CodeInvalidTransition
	case errors.As(err, &op):
		return CodeOverpayment
	case errors.As(err, &mm):
		return CodeMixedPaymentMismatch
	case errors.As(err, &val):
		return CodeValidation
	case errors.Is(err, ErrMissingReason):
		return CodeMissingReason
	case errors.Is(err, ErrConcurrencyConflict):
		return CodeConcurrencyConflict
	case errors.Is(err, ErrSessionClosed):
		return CodeSessionClosed
	case errors.Is(err, ErrTableOccupied):
		return CodeTableOccupied
	case errors.Is(err, ErrOutstandingBalance):
		return CodeOutstandingBalance
	case errors.Is(err, ErrQuantityLocked):
		return CodeQuantityLocked
	case errors.Is(err, ErrBelowPaid):
		return CodeBelowPaid
	case errors.Is(err, ErrForbidden), errors.Is(err, orderflow.ErrNotPermitted):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case isBillingInput(err):
		return CodeValidation
	}
	return CodeInternal
}

func isBillingInput(err error) bool {
	for _, e := range []error{
		billing.ErrInvalidAmount, billing.ErrInvalidTitle, billing.ErrInvalidType,
		billing.ErrInvalidHeadcount, billing.ErrUnknownItem, billing.ErrItemAlreadyPaid,
		billing.ErrNothingSelected,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
