package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Kind        domain.TicketKind     `json:"kind"`
	EquipmentID string                `json:"equipment_id"`
	AssigneeID  *string               `json:"assignee_id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Severity    domain.TicketSeverity `json:"severity"`
	Emergency   bool                  `json:"emergency"`
	ScheduledAt *time.Time            `json:"scheduled_at"`
	Tasks       []CreateTaskRequest   `json:"tasks"`
}

// CreateTaskRequest describes one task of a new ticket.
type CreateTaskRequest struct {
	Title      string     `json:"title"`
	Required   bool       `json:"required"`
	AssigneeID *string    `json:"assignee_id"`
	DueAt      *time.Time `json:"due_at"`
}

// ReasonRequest carries an optional free-text reason.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// UpdateTaskRequest payload.
type UpdateTaskRequest struct {
	Status domain.TaskStatus `json:"status"`
	Notes  *string           `json:"notes"`
}

// IssueMaterialRequest payload.
type IssueMaterialRequest struct {
	MaterialID string          `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	TaskID     *string         `json:"task_id"`
	Reason     string          `json:"reason"`
}

// RecordLaborRequest payload.
type RecordLaborRequest struct {
	TaskID       *string         `json:"task_id"`
	TechnicianID string          `json:"technician_id"`
	Hours        decimal.Decimal `json:"hours"`
	Rate         decimal.Decimal `json:"rate"`
	Note         string          `json:"note"`
}

// RecordChargesRequest payload. Omitted fields keep their current value.
type RecordChargesRequest struct {
	OverheadCost        *decimal.Decimal `json:"overhead_cost"`
	ExternalServiceCost *decimal.Decimal `json:"external_service_cost"`
}

// CompleteTicketRequest payload.
type CompleteTicketRequest struct {
	FinalReadings map[string]decimal.Decimal `json:"final_readings"`
}

// TicketSummary response.
type TicketSummary struct {
	ID          string                `json:"id"`
	Number      string                `json:"number"`
	Kind        domain.TicketKind     `json:"kind"`
	EquipmentID string                `json:"equipment_id"`
	AssigneeID  *string               `json:"assignee_id"`
	Title       string                `json:"title"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Severity    domain.TicketSeverity `json:"severity"`
	Emergency   bool                  `json:"emergency"`
	TotalCost   decimal.Decimal       `json:"total_cost"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	RequesterID          string                     `json:"requester_id"`
	Description          string                     `json:"description"`
	HeldFrom             *domain.TicketStatus       `json:"held_from,omitempty"`
	Tasks                []TaskResponse             `json:"tasks"`
	Labor                []LaborResponse            `json:"labor"`
	IssuanceIDs          []string                   `json:"issuance_ids"`
	Cost                 CostResponse               `json:"cost"`
	FinalReadings        map[string]decimal.Decimal `json:"final_readings,omitempty"`
	CancelReason         string                     `json:"cancel_reason,omitempty"`
	AvailableTransitions []domain.Transition        `json:"available_transitions"`
	Version              int64                      `json:"version"`
	ScheduledAt          *time.Time                 `json:"scheduled_at"`
	StartedAt            *time.Time                 `json:"started_at"`
	CompletedAt          *time.Time                 `json:"completed_at"`
	CancelledAt          *time.Time                 `json:"cancelled_at"`
}

// TaskResponse represents a ticket task.
type TaskResponse struct {
	ID          string            `json:"id"`
	Sequence    int               `json:"sequence"`
	Title       string            `json:"title"`
	Required    bool              `json:"required"`
	Status      domain.TaskStatus `json:"status"`
	AssigneeID  *string           `json:"assignee_id"`
	Notes       string            `json:"notes"`
	ActualHours decimal.Decimal   `json:"actual_hours"`
	DueAt       *time.Time        `json:"due_at"`
	StartedAt   *time.Time        `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at"`
}

// LaborResponse represents booked technician time.
type LaborResponse struct {
	ID           string          `json:"id"`
	TaskID       *string         `json:"task_id"`
	TechnicianID string          `json:"technician_id"`
	Hours        decimal.Decimal `json:"hours"`
	Rate         decimal.Decimal `json:"rate"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// CostResponse is a ticket cost snapshot.
type CostResponse struct {
	LaborCost           decimal.Decimal `json:"labor_cost"`
	MaterialCost        decimal.Decimal `json:"material_cost"`
	OverheadCost        decimal.Decimal `json:"overhead_cost"`
	ExternalServiceCost decimal.Decimal `json:"external_service_cost"`
	TotalCost           decimal.Decimal `json:"total_cost"`
	Frozen              bool            `json:"frozen"`
	FrozenAt            *time.Time      `json:"frozen_at"`
	ComputedAt          time.Time       `json:"computed_at"`
}

// CostReportResponse compares the stored snapshot with the ledger.
type CostReportResponse struct {
	TicketID   string                     `json:"ticket_id"`
	Cost       CostResponse               `json:"cost"`
	Entries    []StockTransactionResponse `json:"entries"`
	Consistent bool                       `json:"consistent"`
	Problem    string                     `json:"problem,omitempty"`
}

// IssueMaterialResponse is a committed issuance with the refreshed cost.
type IssueMaterialResponse struct {
	Transaction StockTransactionResponse `json:"transaction"`
	Cost        CostResponse             `json:"cost"`
}

// LaborResultResponse is booked labor with the refreshed cost.
type LaborResultResponse struct {
	Entry LaborResponse `json:"entry"`
	Cost  CostResponse  `json:"cost"`
}

// CancelTicketResponse is the cancelled ticket and its reversals.
type CancelTicketResponse struct {
	Ticket    TicketDetailResponse       `json:"ticket"`
	Reversals []StockTransactionResponse `json:"reversals"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID         string                  `json:"id"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	ActorID    string                  `json:"actor_id"`
	OldValue   map[string]any          `json:"old_value"`
	NewValue   map[string]any          `json:"new_value"`
	CreatedAt  time.Time               `json:"created_at"`
}
