// Package workflow owns the ticket lifecycle. Every transition checks its
// guards before touching the ticket, so a failed call leaves it unchanged.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/clock"
	"github.com/spec-kit/maintenance-service/internal/costing"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/ledger"
)

// Tx is the storage the machine needs for material-consuming transitions.
type Tx interface {
	ledger.Tx
	ListTransactionsByTicket(ctx context.Context, ticketID string) ([]domain.StockTransaction, error)
}

// MaterialIssue describes material consumed by a ticket.
type MaterialIssue struct {
	MaterialID string
	Quantity   decimal.Decimal
	TaskID     *string
	Reason     string
}

// TaskUpdate moves one task to a new sub-status.
type TaskUpdate struct {
	TaskID string
	Status domain.TaskStatus
	Notes  *string
}

// LaborInput books technician time against a ticket.
type LaborInput struct {
	TaskID       *string
	TechnicianID string
	Hours        decimal.Decimal
	Rate         decimal.Decimal
	Note         string
}

// Charges replaces the directly recorded overhead and external figures.
// Nil fields are left as they are.
type Charges struct {
	Overhead        *decimal.Decimal
	ExternalService *decimal.Decimal
}

// Machine applies lifecycle transitions to tickets the caller has locked.
type Machine struct {
	ledger *ledger.Ledger
	policy StartPolicy
	clock  clock.Clock
}

// NewMachine builds a Machine.
func NewMachine(l *ledger.Ledger, policy StartPolicy, clk clock.Clock) *Machine {
	if policy == "" {
		policy = StartPolicyEmergencyRepair
	}
	return &Machine{ledger: l, policy: policy, clock: clk}
}

// Policy returns the configured start policy.
func (m *Machine) Policy() StartPolicy {
	return m.policy
}

func (m *Machine) guard(t *domain.Ticket, tr domain.Transition) error {
	if Allowed(tr, t.Status) {
		return nil
	}
	return &domain.InvalidTransitionError{
		From:      t.Status,
		Attempted: tr,
		Reason:    fmt.Sprintf("%s is not permitted while the ticket is %s", tr, t.Status),
	}
}

// Approve moves a PENDING ticket to APPROVED.
func (m *Machine) Approve(t *domain.Ticket, actor domain.Actor) error {
	if err := m.guard(t, domain.TransitionApprove); err != nil {
		return err
	}
	if !actor.Can(domain.CapabilityApproveTickets) {
		return &domain.ForbiddenError{ActorID: actor.ID, Action: string(domain.TransitionApprove), Reason: "approval capability required"}
	}
	t.Status = domain.TicketStatusApproved
	t.UpdatedAt = m.clock.Now()
	return nil
}

// Start moves a ticket to IN_PROGRESS. APPROVED tickets may always start;
// PENDING tickets only when the start policy allows it.
func (m *Machine) Start(t *domain.Ticket, actor domain.Actor) error {
	if !m.policy.canStart(t) {
		reason := fmt.Sprintf("start is not permitted while the ticket is %s", t.Status)
		if t.Status == domain.TicketStatusPending {
			reason = fmt.Sprintf("%s ticket requires approval under the %s start policy", strings.ToLower(string(t.Kind)), m.policy)
		}
		return &domain.InvalidTransitionError{From: t.Status, Attempted: domain.TransitionStart, Reason: reason}
	}
	isAssignee := t.AssigneeID != nil && *t.AssigneeID == actor.ID
	if !isAssignee && !actor.Can(domain.CapabilitySuperviseWork) {
		return &domain.ForbiddenError{ActorID: actor.ID, Action: string(domain.TransitionStart), Reason: "only the assignee or a supervisor may start work"}
	}
	now := m.clock.Now()
	t.Status = domain.TicketStatusInProgress
	t.StartedAt = &now
	t.UpdatedAt = now
	return nil
}

// UpdateTask moves exactly one owned task. The ticket status is not changed.
func (m *Machine) UpdateTask(t *domain.Ticket, update TaskUpdate, actor domain.Actor) (*domain.Task, error) {
	if err := m.guard(t, domain.TransitionUpdateTask); err != nil {
		return nil, err
	}
	if !update.Status.Valid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown task status %q", update.Status))
	}
	task, ok := t.Task(update.TaskID)
	if !ok {
		return nil, domain.NewNotFound("task", update.TaskID)
	}
	if task.Status != update.Status && !task.Status.CanMoveTo(update.Status) {
		return nil, &domain.InvalidTransitionError{
			From:      t.Status,
			Attempted: domain.TransitionUpdateTask,
			Reason:    fmt.Sprintf("task %s cannot move from %s to %s", task.ID, task.Status, update.Status),
		}
	}

	now := m.clock.Now()
	if task.Status != update.Status {
		switch update.Status {
		case domain.TaskStatusInProgress:
			task.StartedAt = &now
		case domain.TaskStatusCompleted, domain.TaskStatusSkipped:
			if task.StartedAt == nil && update.Status == domain.TaskStatusCompleted {
				task.StartedAt = &now
			}
			task.CompletedAt = &now
		}
		task.Status = update.Status
	}
	if update.Notes != nil {
		task.Notes = *update.Notes
	}
	t.UpdatedAt = now
	updated := *task
	return &updated, nil
}

// IssueMaterial consumes stock for the ticket and refreshes its cost.
func (m *Machine) IssueMaterial(ctx context.Context, tx Tx, t *domain.Ticket, issue MaterialIssue, actor domain.Actor) (*domain.StockTransaction, error) {
	if err := m.guard(t, domain.TransitionIssueMaterial); err != nil {
		return nil, err
	}
	if issue.TaskID != nil {
		if _, ok := t.Task(*issue.TaskID); !ok {
			return nil, domain.NewNotFound("task", *issue.TaskID)
		}
	}
	ticketID := t.ID
	entry, err := m.ledger.Issue(ctx, tx, ledger.IssueRequest{
		MaterialID: issue.MaterialID,
		Quantity:   issue.Quantity,
		TicketID:   &ticketID,
		TaskID:     issue.TaskID,
		ActorID:    actor.ID,
		Reason:     issue.Reason,
	})
	if err != nil {
		return nil, err
	}
	entries, err := tx.ListTransactionsByTicket(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("load ticket ledger entries: %w", err)
	}
	t.IssuanceIDs = append(t.IssuanceIDs, entry.ID)
	costing.Recompute(t, entries, entry.CreatedAt)
	t.UpdatedAt = entry.CreatedAt
	return entry, nil
}

// RecordLabor books time and refreshes the cost.
func (m *Machine) RecordLabor(ctx context.Context, tx Tx, t *domain.Ticket, input LaborInput, actor domain.Actor) (*domain.LaborEntry, error) {
	if err := m.guard(t, domain.TransitionRecordLabor); err != nil {
		return nil, err
	}
	if !input.Hours.IsPositive() {
		return nil, domain.NewValidationError("hours", "must be greater than zero")
	}
	if input.Rate.IsNegative() {
		return nil, domain.NewValidationError("rate", "must not be negative")
	}
	if err := domain.CheckScale("hours", input.Hours, domain.HoursScale); err != nil {
		return nil, err
	}
	if err := domain.CheckScale("rate", input.Rate, domain.AmountScale); err != nil {
		return nil, err
	}
	var task *domain.Task
	if input.TaskID != nil {
		found, ok := t.Task(*input.TaskID)
		if !ok {
			return nil, domain.NewNotFound("task", *input.TaskID)
		}
		task = found
	}
	entries, err := tx.ListTransactionsByTicket(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("load ticket ledger entries: %w", err)
	}

	technician := input.TechnicianID
	if technician == "" {
		technician = actor.ID
	}
	now := m.clock.Now()
	entry := domain.LaborEntry{
		ID:           uuid.NewString(),
		TicketID:     t.ID,
		TaskID:       input.TaskID,
		TechnicianID: technician,
		Hours:        input.Hours,
		Rate:         input.Rate,
		Amount:       domain.RoundAmount(input.Hours.Mul(input.Rate)),
		Note:         input.Note,
		RecordedAt:   now,
	}
	t.Labor = append(t.Labor, entry)
	if task != nil {
		task.ActualHours = task.ActualHours.Add(input.Hours)
	}
	costing.Recompute(t, entries, now)
	t.UpdatedAt = now
	return &entry, nil
}

// RecordCharges sets overhead and external service figures.
func (m *Machine) RecordCharges(ctx context.Context, tx Tx, t *domain.Ticket, charges Charges, actor domain.Actor) error {
	if err := m.guard(t, domain.TransitionRecordCharges); err != nil {
		return err
	}
	if charges.Overhead == nil && charges.ExternalService == nil {
		return domain.NewValidationError("charges", "at least one charge is required")
	}
	if charges.Overhead != nil && charges.Overhead.IsNegative() {
		return domain.NewValidationError("overhead_cost", "must not be negative")
	}
	if charges.ExternalService != nil && charges.ExternalService.IsNegative() {
		return domain.NewValidationError("external_service_cost", "must not be negative")
	}
	if charges.Overhead != nil {
		if err := domain.CheckScale("overhead_cost", *charges.Overhead, domain.AmountScale); err != nil {
			return err
		}
	}
	if charges.ExternalService != nil {
		if err := domain.CheckScale("external_service_cost", *charges.ExternalService, domain.AmountScale); err != nil {
			return err
		}
	}
	entries, err := tx.ListTransactionsByTicket(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("load ticket ledger entries: %w", err)
	}
	if charges.Overhead != nil {
		t.OverheadCost = *charges.Overhead
	}
	if charges.ExternalService != nil {
		t.ExternalServiceCost = *charges.ExternalService
	}
	now := m.clock.Now()
	costing.Recompute(t, entries, now)
	t.UpdatedAt = now
	return nil
}

// Hold parks a non-terminal ticket, remembering where to resume.
func (m *Machine) Hold(t *domain.Ticket, actor domain.Actor) error {
	if err := m.guard(t, domain.TransitionHold); err != nil {
		return err
	}
	from := t.Status
	t.HeldFrom = &from
	t.Status = domain.TicketStatusOnHold
	t.UpdatedAt = m.clock.Now()
	return nil
}

// Resume returns a held ticket to the status it was held from.
func (m *Machine) Resume(t *domain.Ticket, actor domain.Actor) error {
	if err := m.guard(t, domain.TransitionResume); err != nil {
		return err
	}
	if t.HeldFrom == nil {
		return &domain.InvalidTransitionError{From: t.Status, Attempted: domain.TransitionResume, Reason: "ticket has no status to resume"}
	}
	t.Status = *t.HeldFrom
	t.HeldFrom = nil
	t.UpdatedAt = m.clock.Now()
	return nil
}

// Complete finishes the ticket and freezes its cost snapshot.
func (m *Machine) Complete(ctx context.Context, tx Tx, t *domain.Ticket, readings map[string]decimal.Decimal, actor domain.Actor) error {
	if err := m.guard(t, domain.TransitionComplete); err != nil {
		return err
	}
	if pending := t.PendingRequiredTasks(); len(pending) > 0 {
		return &domain.InvalidTransitionError{
			From:      t.Status,
			Attempted: domain.TransitionComplete,
			Reason:    "required tasks not finished: " + strings.Join(pending, ", "),
		}
	}
	entries, err := tx.ListTransactionsByTicket(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("load ticket ledger entries: %w", err)
	}
	now := m.clock.Now()
	costing.Freeze(t, entries, now)
	if len(readings) > 0 {
		t.FinalReadings = make(map[string]decimal.Decimal, len(readings))
		for k, v := range readings {
			t.FinalReadings[k] = v
		}
	}
	t.Status = domain.TicketStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Cancel reverses every outstanding issuance of the ticket, then marks it
// CANCELLED. Reversals are applied in ascending material order.
func (m *Machine) Cancel(ctx context.Context, tx Tx, t *domain.Ticket, reason string, actor domain.Actor) ([]domain.StockTransaction, error) {
	if err := m.guard(t, domain.TransitionCancel); err != nil {
		return nil, err
	}
	entries, err := tx.ListTransactionsByTicket(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("load ticket ledger entries: %w", err)
	}

	outstanding := OutstandingIssues(entries)
	reversals := make([]domain.StockTransaction, 0, len(outstanding))
	for _, issue := range outstanding {
		reversal, err := m.ledger.Reverse(ctx, tx, ledger.ReverseRequest{
			TransactionID: issue.ID,
			ActorID:       actor.ID,
			Reason:        "ticket cancelled: " + reason,
		})
		if err != nil {
			return nil, fmt.Errorf("reverse issuance %s: %w", issue.ID, err)
		}
		reversals = append(reversals, *reversal)
	}
	if len(reversals) > 0 {
		entries = append(entries, reversals...)
	}

	now := m.clock.Now()
	costing.Recompute(t, entries, now)
	t.Status = domain.TicketStatusCancelled
	t.HeldFrom = nil
	t.CancelReason = reason
	t.CancelledAt = &now
	t.UpdatedAt = now
	return reversals, nil
}

// OutstandingIssues returns the issue entries without a reversal, ordered by
// material then sequence.
func OutstandingIssues(entries []domain.StockTransaction) []domain.StockTransaction {
	reversed := make(map[string]struct{})
	for _, entry := range entries {
		if entry.ReversalOf != nil {
			reversed[*entry.ReversalOf] = struct{}{}
		}
	}
	var out []domain.StockTransaction
	for _, entry := range entries {
		if entry.Type != domain.StockTransactionIssue {
			continue
		}
		if _, ok := reversed[entry.ID]; ok {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MaterialID != out[j].MaterialID {
			return out[i].MaterialID < out[j].MaterialID
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}
