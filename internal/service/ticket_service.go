package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/clock"
	"github.com/spec-kit/maintenance-service/internal/costing"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/observability"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/internal/workflow"
)

// TicketService coordinates ticket workflows. Every operation runs as one
// all-or-nothing transaction: state, ledger, cost and history commit together.
type TicketService struct {
	runner     *runner
	store      repository.Store
	machine    *workflow.Machine
	numbers    TicketNumberer
	operators  repository.OperatorRepository
	alerts     AlertCache
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// TicketDraft describes ticket creation payload.
type TicketDraft struct {
	Kind        domain.TicketKind
	EquipmentID string
	RequesterID string
	AssigneeID  *string
	Title       string
	Description string
	Priority    domain.TicketPriority
	Severity    domain.TicketSeverity
	Emergency   bool
	ScheduledAt *time.Time
	Tasks       []TaskDraft
}

// TaskDraft describes one task of a new ticket.
type TaskDraft struct {
	Title      string
	Required   bool
	AssigneeID *string
	DueAt      *time.Time
}

// IssueResult is the outcome of a material issuance.
type IssueResult struct {
	Transaction domain.StockTransaction
	Cost        domain.CostSnapshot
}

// LaborResult is the outcome of booking labor.
type LaborResult struct {
	Entry domain.LaborEntry
	Cost  domain.CostSnapshot
}

// CancelResult is the cancelled ticket and the reversals it produced.
type CancelResult struct {
	Ticket    domain.Ticket
	Reversals []domain.StockTransaction
}

// CostReport compares a ticket's stored snapshot with its ledger entries.
type CostReport struct {
	TicketID   string
	Snapshot   domain.CostSnapshot
	Entries    []domain.StockTransaction
	Consistent bool
	Problem    string
}

// NewTicketService constructs the service.
func NewTicketService(deps Dependencies) *TicketService {
	deps = deps.withDefaults()
	return &TicketService{
		runner:     newRunner(deps.Store, deps.Retry, deps.Logger, deps.Metrics),
		store:      deps.Store,
		machine:    deps.Machine,
		numbers:    deps.Numbers,
		operators:  deps.Operators,
		alerts:     deps.AlertCache,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
	}
}

// StartPolicy reports the configured start policy.
func (s *TicketService) StartPolicy() workflow.StartPolicy {
	return s.machine.Policy()
}

// CreateTicket opens a ticket in PENDING.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, draft TicketDraft) (*domain.Ticket, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}
	if draft.RequesterID == "" {
		draft.RequesterID = actor.ID
	}

	var created *domain.Ticket
	var rec *recorder
	err := s.runner.run(ctx, "create_ticket", func(ctx context.Context, tx repository.Tx) error {
		now := s.clock.Now()
		rec = newRecorder(actor.ID, now)
		number, err := s.nextNumber(ctx, draft.Kind)
		if err != nil {
			return err
		}
		ticket := newTicket(draft, number, now)
		if err := tx.CreateTicket(ctx, ticket); err != nil {
			return err
		}
		rec.record(ticket.ID, domain.ChangeTypeStatus, nil, map[string]any{"status": ticket.Status})
		rec.emit(events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{
			Number:      ticket.Number,
			Kind:        ticket.Kind,
			EquipmentID: ticket.EquipmentID,
			Priority:    ticket.Priority,
			Emergency:   ticket.Emergency,
		})
		if err := rec.flush(ctx, tx); err != nil {
			return err
		}
		created = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.dispatcher, s.logger, rec.events)
	return created, nil
}

func (s *TicketService) nextNumber(ctx context.Context, kind domain.TicketKind) (string, error) {
	if s.numbers == nil {
		prefix := "MNT"
		if kind == domain.TicketKindRepair {
			prefix = "REP"
		}
		return prefix + "-" + strings.ToUpper(uuid.NewString()[:8]), nil
	}
	number, err := s.numbers.Next(ctx, kind)
	if err != nil {
		return "", fmt.Errorf("allocate ticket number: %w", err)
	}
	return number, nil
}

func validateDraft(draft *TicketDraft) error {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	draft.EquipmentID = strings.TrimSpace(draft.EquipmentID)
	if draft.Priority == "" {
		draft.Priority = domain.TicketPriorityMedium
	}
	if draft.Severity == "" {
		draft.Severity = domain.TicketSeverityMinor
	}
	switch {
	case !draft.Kind.Valid():
		return domain.NewValidationError("kind", "must be MAINTENANCE or REPAIR")
	case draft.EquipmentID == "":
		return domain.NewValidationError("equipment_id", "is required")
	case draft.Title == "":
		return domain.NewValidationError("title", "is required")
	case !draft.Priority.Valid():
		return domain.NewValidationError("priority", fmt.Sprintf("unknown priority %q", draft.Priority))
	case !draft.Severity.Valid():
		return domain.NewValidationError("severity", fmt.Sprintf("unknown severity %q", draft.Severity))
	case draft.Emergency && draft.Kind != domain.TicketKindRepair:
		return domain.NewValidationError("emergency", "only repair tickets can be emergencies")
	}
	for i, task := range draft.Tasks {
		if strings.TrimSpace(task.Title) == "" {
			return domain.NewValidationError(fmt.Sprintf("tasks[%d].title", i), "is required")
		}
	}
	return nil
}

func newTicket(draft TicketDraft, number string, now time.Time) *domain.Ticket {
	ticket := &domain.Ticket{
		ID:          uuid.NewString(),
		Number:      number,
		Kind:        draft.Kind,
		EquipmentID: draft.EquipmentID,
		RequesterID: draft.RequesterID,
		AssigneeID:  draft.AssigneeID,
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    draft.Priority,
		Severity:    draft.Severity,
		Emergency:   draft.Emergency,
		Status:      domain.TicketStatusPending,
		ScheduledAt: draft.ScheduledAt,
		Cost:        costing.Compute(nil, nil, decimal.Zero, decimal.Zero, now),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for i, task := range draft.Tasks {
		ticket.Tasks = append(ticket.Tasks, domain.Task{
			ID:         uuid.NewString(),
			TicketID:   ticket.ID,
			Sequence:   i + 1,
			Title:      strings.TrimSpace(task.Title),
			Required:   task.Required,
			Status:     domain.TaskStatusPending,
			AssigneeID: task.AssigneeID,
			DueAt:      task.DueAt,
		})
	}
	return ticket
}

// mutation applies one transition to a locked ticket.
type mutation func(ctx context.Context, tx repository.Tx, ticket *domain.Ticket, rec *recorder) error

// mutate locks the ticket, applies fn, records a status change when one
// happened, saves and commits. Events go out after commit.
func (s *TicketService) mutate(ctx context.Context, op domain.Transition, actor domain.Actor, ticketID, reason string, fn mutation) (*domain.Ticket, error) {
	var (
		result *domain.Ticket
		rec    *recorder
	)
	err := s.runner.run(ctx, string(op), func(ctx context.Context, tx repository.Tx) error {
		rec = newRecorder(actor.ID, s.clock.Now())
		ticket, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		from := ticket.Status
		if err := fn(ctx, tx, ticket, rec); err != nil {
			return err
		}
		if ticket.Status != from {
			newValue := map[string]any{"status": ticket.Status}
			if reason != "" {
				newValue["reason"] = reason
			}
			rec.record(ticket.ID, domain.ChangeTypeStatus, map[string]any{"status": from}, newValue)
			rec.emit(events.EventTicketStatusChanged, ticket.ID, events.TicketStatusChangedPayload{
				Transition: op,
				OldStatus:  from,
				NewStatus:  ticket.Status,
				Reason:     reason,
			})
		}
		if err := tx.SaveTicket(ctx, ticket); err != nil {
			return err
		}
		if err := rec.flush(ctx, tx); err != nil {
			return err
		}
		result = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.dispatcher, s.logger, rec.events)
	return result, nil
}

// ApproveTicket moves a PENDING ticket to APPROVED.
func (s *TicketService) ApproveTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, domain.TransitionApprove, actor, ticketID, "", func(_ context.Context, _ repository.Tx, t *domain.Ticket, _ *recorder) error {
		return s.machine.Approve(t, actor)
	})
	return ticket, err
}

// StartTicket moves a ticket to IN_PROGRESS.
func (s *TicketService) StartTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, domain.TransitionStart, actor, ticketID, "", func(_ context.Context, _ repository.Tx, t *domain.Ticket, _ *recorder) error {
		return s.machine.Start(t, actor)
	})
	return ticket, err
}

// HoldTicket parks a non-terminal ticket.
func (s *TicketService) HoldTicket(ctx context.Context, actor domain.Actor, ticketID, reason string) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, domain.TransitionHold, actor, ticketID, strings.TrimSpace(reason), func(_ context.Context, _ repository.Tx, t *domain.Ticket, _ *recorder) error {
		return s.machine.Hold(t, actor)
	})
	return ticket, err
}

// ResumeTicket returns a held ticket to its previous status.
func (s *TicketService) ResumeTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, domain.TransitionResume, actor, ticketID, "", func(_ context.Context, _ repository.Tx, t *domain.Ticket, _ *recorder) error {
		return s.machine.Resume(t, actor)
	})
	return ticket, err
}

// UpdateTask changes one task's sub-status and notes.
func (s *TicketService) UpdateTask(ctx context.Context, actor domain.Actor, ticketID string, update workflow.TaskUpdate) (*domain.Task, error) {
	var task *domain.Task
	_, err := s.mutate(ctx, domain.TransitionUpdateTask, actor, ticketID, "", func(_ context.Context, _ repository.Tx, t *domain.Ticket, rec *recorder) error {
		var before domain.TaskStatus
		if current, ok := t.Task(update.TaskID); ok {
			before = current.Status
		}
		updated, err := s.machine.UpdateTask(t, update, actor)
		if err != nil {
			return err
		}
		rec.record(t.ID, domain.ChangeTypeTask,
			map[string]any{"task_id": updated.ID, "status": before},
			map[string]any{"task_id": updated.ID, "status": updated.Status, "notes": updated.Notes})
		task = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// IssueMaterial consumes stock for an IN_PROGRESS ticket.
func (s *TicketService) IssueMaterial(ctx context.Context, actor domain.Actor, ticketID string, issue workflow.MaterialIssue) (*IssueResult, error) {
	var result *IssueResult
	_, err := s.mutate(ctx, domain.TransitionIssueMaterial, actor, ticketID, "", func(ctx context.Context, tx repository.Tx, t *domain.Ticket, rec *recorder) error {
		entry, err := s.machine.IssueMaterial(ctx, tx, t, issue, actor)
		if err != nil {
			return err
		}
		rec.record(t.ID, domain.ChangeTypeMaterialIssued, nil, map[string]any{
			"transaction_id": entry.ID,
			"material_id":    entry.MaterialID,
			"quantity":       entry.Delta.Neg().String(),
			"total_value":    entry.TotalValue.String(),
		})
		rec.emit(events.EventMaterialIssued, t.ID, events.MovementPayload(*entry))
		result = &IssueResult{Transaction: *entry, Cost: t.Cost}
		return nil
	})
	if err != nil {
		return nil, err
	}
	recordMovements(s.metrics, result.Transaction)
	invalidateAlerts(ctx, s.alerts, s.logger)
	s.logger.Info("material issued",
		zap.String("ticket_id", ticketID),
		zap.String("material_id", result.Transaction.MaterialID),
		zap.String("quantity", result.Transaction.Delta.Neg().String()),
		zap.String("resulting_stock", result.Transaction.ResultingStock.String()))
	return result, nil
}

// RecordLabor books technician time.
func (s *TicketService) RecordLabor(ctx context.Context, actor domain.Actor, ticketID string, input workflow.LaborInput) (*LaborResult, error) {
	var result *LaborResult
	_, err := s.mutate(ctx, domain.TransitionRecordLabor, actor, ticketID, "", func(ctx context.Context, tx repository.Tx, t *domain.Ticket, rec *recorder) error {
		entry, err := s.machine.RecordLabor(ctx, tx, t, input, actor)
		if err != nil {
			return err
		}
		rec.record(t.ID, domain.ChangeTypeLabor, nil, map[string]any{
			"labor_id":      entry.ID,
			"technician_id": entry.TechnicianID,
			"hours":         entry.Hours.String(),
			"amount":        entry.Amount.String(),
		})
		result = &LaborResult{Entry: *entry, Cost: t.Cost}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordCharges sets overhead and external service charges.
func (s *TicketService) RecordCharges(ctx context.Context, actor domain.Actor, ticketID string, charges workflow.Charges) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, domain.TransitionRecordCharges, actor, ticketID, "", func(ctx context.Context, tx repository.Tx, t *domain.Ticket, rec *recorder) error {
		before := map[string]any{"overhead_cost": t.OverheadCost.String(), "external_service_cost": t.ExternalServiceCost.String()}
		if err := s.machine.RecordCharges(ctx, tx, t, charges, actor); err != nil {
			return err
		}
		rec.record(t.ID, domain.ChangeTypeCharges, before, map[string]any{
			"overhead_cost":         t.OverheadCost.String(),
			"external_service_cost": t.ExternalServiceCost.String(),
		})
		return nil
	})
	return ticket, err
}

// CompleteTicket finishes the ticket and freezes its cost snapshot.
func (s *TicketService) CompleteTicket(ctx context.Context, actor domain.Actor, ticketID string, readings map[string]decimal.Decimal) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, domain.TransitionComplete, actor, ticketID, "", func(ctx context.Context, tx repository.Tx, t *domain.Ticket, _ *recorder) error {
		return s.machine.Complete(ctx, tx, t, readings, actor)
	})
	return ticket, err
}

// CancelTicket reverses the ticket's outstanding issuances and cancels it.
func (s *TicketService) CancelTicket(ctx context.Context, actor domain.Actor, ticketID, reason string) (*CancelResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewValidationError("reason", "is required")
	}
	var reversals []domain.StockTransaction
	ticket, err := s.mutate(ctx, domain.TransitionCancel, actor, ticketID, reason, func(ctx context.Context, tx repository.Tx, t *domain.Ticket, rec *recorder) error {
		var err error
		reversals, err = s.machine.Cancel(ctx, tx, t, reason, actor)
		if err != nil {
			return err
		}
		for _, reversal := range reversals {
			rec.record(t.ID, domain.ChangeTypeMaterialReversed, map[string]any{"transaction_id": *reversal.ReversalOf}, map[string]any{
				"transaction_id": reversal.ID,
				"material_id":    reversal.MaterialID,
				"quantity":       reversal.Delta.String(),
			})
			rec.emit(events.EventMaterialReversed, t.ID, events.MovementPayload(reversal))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(reversals) > 0 {
		recordMovements(s.metrics, reversals...)
		invalidateAlerts(ctx, s.alerts, s.logger)
	}
	s.logger.Info("ticket cancelled", zap.String("ticket_id", ticketID), zap.Int("reversals", len(reversals)))
	return &CancelResult{Ticket: *ticket, Reversals: reversals}, nil
}

// DeleteTicket removes a ticket that never left PENDING.
func (s *TicketService) DeleteTicket(ctx context.Context, actor domain.Actor, ticketID string) error {
	return s.runner.run(ctx, string(domain.TransitionDelete), func(ctx context.Context, tx repository.Tx) error {
		ticket, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if !workflow.Allowed(domain.TransitionDelete, ticket.Status) {
			return &domain.InvalidTransitionError{
				From:      ticket.Status,
				Attempted: domain.TransitionDelete,
				Reason:    "only pending tickets can be deleted",
			}
		}
		if ticket.RequesterID != actor.ID && !actor.Can(domain.CapabilitySuperviseWork) {
			return &domain.ForbiddenError{ActorID: actor.ID, Action: string(domain.TransitionDelete), Reason: "only the requester or a supervisor may delete a ticket"}
		}
		return tx.DeleteTicket(ctx, ticketID)
	})
}

// GetTicket loads one ticket.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.store.GetTicket(ctx, ticketID)
}

// ListTickets returns tickets matching filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.store.ListTickets(ctx, filter)
}

// TicketHistory returns the audit trail of a ticket.
func (s *TicketService) TicketHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.store.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.store.ListHistory(ctx, ticketID)
}

// TicketCost checks the stored snapshot against the ledger.
func (s *TicketService) TicketCost(ctx context.Context, ticketID string) (*CostReport, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListTransactionsByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	report := &CostReport{TicketID: ticket.ID, Snapshot: ticket.Cost, Entries: entries, Consistent: true}
	if err := costing.Verify(ticket, entries); err != nil {
		report.Consistent = false
		report.Problem = err.Error()
		s.logger.Warn("ticket cost snapshot disagrees with ledger", zap.String("ticket_id", ticketID), zap.Error(err))
	}
	return report, nil
}
