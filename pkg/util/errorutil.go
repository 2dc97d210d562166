package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(string(domain.KindValidation), message, http.StatusBadRequest, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(string(domain.KindForbidden), message, http.StatusForbidden, nil)
}

func NewInternalError(err error) *DomainError {
	return &DomainError{
		Code:       string(domain.KindInternal),
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:          http.StatusBadRequest,
	domain.KindInvalidTransition:   http.StatusConflict,
	domain.KindInsufficientStock:   http.StatusConflict,
	domain.KindAlreadyReversed:     http.StatusConflict,
	domain.KindNotFound:            http.StatusNotFound,
	domain.KindForbidden:           http.StatusForbidden,
	domain.KindConcurrencyConflict: http.StatusConflict,
}

// ToDomainError converts core and framework errors to a DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return NewDomainError(codeForStatus(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
	}

	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		return NewInternalError(err)
	}
	out := &DomainError{Code: string(kind), Message: err.Error(), HTTPStatus: status, Err: err}
	out.Details = details(err)
	return out
}

func details(err error) map[string]any {
	var (
		validation *domain.ValidationError
		transition *domain.InvalidTransitionError
		stock      *domain.InsufficientStockError
		reversed   *domain.AlreadyReversedError
	)
	switch {
	case errors.As(err, &validation) && validation.Field != "":
		return map[string]any{"field": validation.Field}
	case errors.As(err, &transition):
		return map[string]any{"from": transition.From, "attempted": transition.Attempted}
	case errors.As(err, &stock):
		return map[string]any{
			"material_id": stock.MaterialID,
			"available":   stock.Available.String(),
			"requested":   stock.Requested.String(),
		}
	case errors.As(err, &reversed):
		return map[string]any{"transaction_id": reversed.TransactionID, "reversal_id": reversed.ReversalID}
	}
	return nil
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(domain.KindValidation)
	case http.StatusUnauthorized:
		return "UNAUTHORIZED"
	case http.StatusForbidden:
		return string(domain.KindForbidden)
	case http.StatusNotFound:
		return string(domain.KindNotFound)
	case http.StatusRequestTimeout:
		return "TIMEOUT"
	}
	if status >= http.StatusInternalServerError {
		return string(domain.KindInternal)
	}
	return "REQUEST_FAILED"
}

// MapError converts err into its transport representation.
func MapError(err error) error {
	return ToDomainError(err)
}
