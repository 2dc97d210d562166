package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

func TestToDomainErrorMapsKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domain.NewValidationError("title", "is required"), http.StatusBadRequest, "VALIDATION"},
		{"transition", &domain.InvalidTransitionError{From: domain.TicketStatusPending, Attempted: domain.TransitionComplete}, http.StatusConflict, "INVALID_TRANSITION"},
		{"stock", &domain.InsufficientStockError{MaterialID: "m", Available: decimal.NewFromInt(1), Requested: decimal.NewFromInt(2)}, http.StatusConflict, "INSUFFICIENT_STOCK"},
		{"reversed", &domain.AlreadyReversedError{TransactionID: "a", ReversalID: "b"}, http.StatusConflict, "ALREADY_REVERSED"},
		{"not found", fmt.Errorf("load: %w", domain.NewNotFound("ticket", "t1")), http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", &domain.ForbiddenError{ActorID: "a", Action: "approve"}, http.StatusForbidden, "FORBIDDEN"},
		{"conflict", fmt.Errorf("%w: busy", domain.ErrConcurrencyConflict), http.StatusConflict, "CONCURRENCY_CONFLICT"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
		{"fiber", fiber.NewError(http.StatusNotFound, "Cannot GET /x"), http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			if got.HTTPStatus != tc.status || got.Code != tc.code {
				t.Fatalf("got %d %s, want %d %s", got.HTTPStatus, got.Code, tc.status, tc.code)
			}
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	got := ToDomainError(errors.New("pq: password authentication failed"))
	if got.Message != "internal server error" {
		t.Fatalf("internal cause leaked: %q", got.Message)
	}
}

func TestInsufficientStockDetails(t *testing.T) {
	got := ToDomainError(&domain.InsufficientStockError{MaterialID: "m1", Available: decimal.NewFromInt(3), Requested: decimal.NewFromInt(5)})
	if got.Details["available"] != "3" || got.Details["requested"] != "5" {
		t.Fatalf("unexpected details %+v", got.Details)
	}
}
