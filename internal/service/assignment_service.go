package service

import (
	"context"
	"strings"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

// AssignTicket sets or clears the assignee of a non-terminal ticket.
// Operators may take a ticket themselves; anything else needs the
// supervise capability. An empty assigneeID unassigns.
func (s *TicketService) AssignTicket(ctx context.Context, actor domain.Actor, ticketID, assigneeID string) (*domain.Ticket, error) {
	assigneeID = strings.TrimSpace(assigneeID)
	if assigneeID != actor.ID && !actor.Can(domain.CapabilitySuperviseWork) {
		return nil, &domain.ForbiddenError{
			ActorID: actor.ID,
			Action:  string(domain.TransitionAssign),
			Reason:  "only supervisors may assign tickets to others",
		}
	}
	if assigneeID != "" && s.operators != nil {
		operator, err := s.operators.GetByID(ctx, assigneeID)
		if err != nil {
			return nil, err
		}
		if !operator.Active {
			return nil, domain.NewValidationError("assignee_id", "operator is inactive")
		}
	}

	return s.mutate(ctx, domain.TransitionAssign, actor, ticketID, "", func(_ context.Context, _ repository.Tx, t *domain.Ticket, rec *recorder) error {
		if t.Status.IsTerminal() {
			return &domain.InvalidTransitionError{
				From:      t.Status,
				Attempted: domain.TransitionAssign,
				Reason:    "ticket is closed",
			}
		}
		previous := t.AssigneeID
		var next *string
		if assigneeID != "" {
			next = &assigneeID
		}
		if sameAssignee(previous, next) {
			return nil
		}
		t.AssigneeID = next
		t.UpdatedAt = rec.now
		rec.record(t.ID, domain.ChangeTypeAssignment,
			map[string]any{"assignee_id": derefOrEmpty(previous)},
			map[string]any{"assignee_id": assigneeID})
		rec.emit(events.EventTicketAssigned, t.ID, events.TicketAssignedPayload{PreviousAssigneeID: previous, AssigneeID: next})
		return nil
	})
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
