package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", NewValidationError("quantity", "must be positive"), KindValidation},
		{"transition", &InvalidTransitionError{From: TicketStatusPending, Attempted: TransitionComplete}, KindInvalidTransition},
		{"stock", &InsufficientStockError{Available: decimal.NewFromInt(4), Requested: decimal.NewFromInt(5)}, KindInsufficientStock},
		{"reversed", &AlreadyReversedError{TransactionID: "a", ReversalID: "b"}, KindAlreadyReversed},
		{"not found", NewNotFound("ticket", "t-1"), KindNotFound},
		{"forbidden", &ForbiddenError{ActorID: "u", Action: "approve"}, KindForbidden},
		{"wrapped conflict", fmt.Errorf("lock material: %w", ErrConcurrencyConflict), KindConcurrencyConflict},
		{"wrapped stock", fmt.Errorf("issue: %w", &InsufficientStockError{}), KindInsufficientStock},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTaskStatusMoves(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		ok       bool
	}{
		{TaskStatusPending, TaskStatusInProgress, true},
		{TaskStatusPending, TaskStatusSkipped, true},
		{TaskStatusPending, TaskStatusCompleted, true},
		{TaskStatusInProgress, TaskStatusCompleted, true},
		{TaskStatusInProgress, TaskStatusPending, false},
		{TaskStatusCompleted, TaskStatusInProgress, false},
		{TaskStatusSkipped, TaskStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanMoveTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestTicketCloneDoesNotAlias(t *testing.T) {
	assignee := "tech-1"
	orig := &Ticket{
		ID:          "t-1",
		AssigneeID:  &assignee,
		Tasks:       []Task{{ID: "task-1", Status: TaskStatusPending, Required: true}},
		IssuanceIDs: []string{"tx-1"},
	}
	cp := orig.Clone()
	cp.Tasks[0].Status = TaskStatusCompleted
	cp.IssuanceIDs[0] = "tx-2"
	*cp.AssigneeID = "tech-2"

	if orig.Tasks[0].Status != TaskStatusPending {
		t.Fatalf("task status leaked into original")
	}
	if orig.IssuanceIDs[0] != "tx-1" {
		t.Fatalf("issuance ids leaked into original")
	}
	if *orig.AssigneeID != "tech-1" {
		t.Fatalf("assignee leaked into original")
	}
	if got := orig.PendingRequiredTasks(); len(got) != 1 || got[0] != "task-1" {
		t.Fatalf("PendingRequiredTasks() = %v", got)
	}
}
