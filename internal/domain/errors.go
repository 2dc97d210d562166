package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind classifies core failures so boundaries can translate them.
type ErrorKind string

const (
	KindValidation          ErrorKind = "VALIDATION"
	KindInvalidTransition   ErrorKind = "INVALID_TRANSITION"
	KindInsufficientStock   ErrorKind = "INSUFFICIENT_STOCK"
	KindAlreadyReversed     ErrorKind = "ALREADY_REVERSED"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindForbidden           ErrorKind = "FORBIDDEN"
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
	KindInternal            ErrorKind = "INTERNAL"
)

// ErrConcurrencyConflict signals lock or version contention. The whole
// operation may be retried.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// Transition names a lifecycle operation attempted on a ticket.
type Transition string

const (
	TransitionApprove       Transition = "approve"
	TransitionStart         Transition = "start"
	TransitionUpdateTask    Transition = "update_task"
	TransitionIssueMaterial Transition = "issue_material"
	TransitionRecordLabor   Transition = "record_labor"
	TransitionRecordCharges Transition = "record_charges"
	TransitionHold          Transition = "hold"
	TransitionResume        Transition = "resume"
	TransitionComplete      Transition = "complete"
	TransitionCancel        Transition = "cancel"
	TransitionDelete        Transition = "delete"
	TransitionReverse       Transition = "reverse_material"
	TransitionAssign        Transition = "assign"
)

// ValidationError reports malformed input caught before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError is returned when a lifecycle guard fails.
type InvalidTransitionError struct {
	From      TicketStatus
	Attempted Transition
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s ticket in status %s: %s", e.Attempted, e.From, e.Reason)
}

// InsufficientStockError is returned when an outbound movement would drive stock negative.
type InsufficientStockError struct {
	MaterialID string
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for material %s: available %s, requested %s",
		e.MaterialID, e.Available.String(), e.Requested.String())
}

// AlreadyReversedError is returned when a ledger entry already has a reversal.
type AlreadyReversedError struct {
	TransactionID string
	ReversalID    string
}

func (e *AlreadyReversedError) Error() string {
	return fmt.Sprintf("stock transaction %s already reversed by %s", e.TransactionID, e.ReversalID)
}

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NewNotFound builds a NotFoundError.
func NewNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ForbiddenError is returned when the actor lacks a required capability.
type ForbiddenError struct {
	ActorID string
	Action  string
	Reason  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("actor %s may not %s: %s", e.ActorID, e.Action, e.Reason)
}

// KindOf classifies err, unwrapping as needed.
func KindOf(err error) ErrorKind {
	var (
		validation *ValidationError
		transition *InvalidTransitionError
		stock      *InsufficientStockError
		reversed   *AlreadyReversedError
		notFound   *NotFoundError
		forbidden  *ForbiddenError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &transition):
		return KindInvalidTransition
	case errors.As(err, &stock):
		return KindInsufficientStock
	case errors.As(err, &reversed):
		return KindAlreadyReversed
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &forbidden):
		return KindForbidden
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConcurrencyConflict
	default:
		return KindInternal
	}
}
