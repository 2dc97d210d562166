package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TicketKind discriminates maintenance from repair work.
type TicketKind string

const (
	TicketKindMaintenance TicketKind = "MAINTENANCE"
	TicketKindRepair      TicketKind = "REPAIR"
)

// Valid reports whether k is a known kind.
func (k TicketKind) Valid() bool {
	return k == TicketKindMaintenance || k == TicketKindRepair
}

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusApproved   TicketStatus = "APPROVED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusOnHold     TicketStatus = "ON_HOLD"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

// Valid reports whether s is a defined status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusApproved, TicketStatusInProgress,
		TicketStatusOnHold, TicketStatusCompleted, TicketStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave s.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled
}

// TicketPriority enumerates scheduling urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// TicketSeverity classifies the impact of the underlying fault.
type TicketSeverity string

const (
	TicketSeverityMinor    TicketSeverity = "MINOR"
	TicketSeverityMajor    TicketSeverity = "MAJOR"
	TicketSeverityCritical TicketSeverity = "CRITICAL"
)

// Valid reports whether s is a known severity.
func (s TicketSeverity) Valid() bool {
	switch s {
	case TicketSeverityMinor, TicketSeverityMajor, TicketSeverityCritical:
		return true
	}
	return false
}

// LaborEntry records technician time booked against a ticket.
type LaborEntry struct {
	ID           string
	TicketID     string
	TaskID       *string
	TechnicianID string
	Hours        decimal.Decimal
	Rate         decimal.Decimal
	Amount       decimal.Decimal
	Note         string
	RecordedAt   time.Time
}

// Ticket is the aggregate for maintenance and repair work on one piece of equipment.
type Ticket struct {
	ID                  string
	Number              string
	Kind                TicketKind
	EquipmentID         string
	RequesterID         string
	AssigneeID          *string
	Title               string
	Description         string
	Priority            TicketPriority
	Severity            TicketSeverity
	Emergency           bool
	Status              TicketStatus
	HeldFrom            *TicketStatus
	Tasks               []Task
	IssuanceIDs         []string
	Labor               []LaborEntry
	OverheadCost        decimal.Decimal
	ExternalServiceCost decimal.Decimal
	Cost                CostSnapshot
	FinalReadings       map[string]decimal.Decimal
	CancelReason        string
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ScheduledAt         *time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
	CancelledAt         *time.Time
}

// Task returns the owned task with the given id.
func (t *Ticket) Task(id string) (*Task, bool) {
	for i := range t.Tasks {
		if t.Tasks[i].ID == id {
			return &t.Tasks[i], true
		}
	}
	return nil, false
}

// PendingRequiredTasks lists required tasks that are neither completed nor skipped.
func (t *Ticket) PendingRequiredTasks() []string {
	var ids []string
	for _, task := range t.Tasks {
		if task.Required && !task.Status.IsDone() {
			ids = append(ids, task.ID)
		}
	}
	return ids
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.AssigneeID = cloneString(t.AssigneeID)
	if t.HeldFrom != nil {
		held := *t.HeldFrom
		cp.HeldFrom = &held
	}
	cp.Tasks = make([]Task, len(t.Tasks))
	for i := range t.Tasks {
		cp.Tasks[i] = t.Tasks[i].clone()
	}
	cp.IssuanceIDs = append([]string(nil), t.IssuanceIDs...)
	cp.Labor = make([]LaborEntry, len(t.Labor))
	for i, entry := range t.Labor {
		entry.TaskID = cloneString(entry.TaskID)
		cp.Labor[i] = entry
	}
	if t.FinalReadings != nil {
		cp.FinalReadings = make(map[string]decimal.Decimal, len(t.FinalReadings))
		for k, v := range t.FinalReadings {
			cp.FinalReadings[k] = v
		}
	}
	cp.Cost.FrozenAt = cloneTime(t.Cost.FrozenAt)
	cp.ScheduledAt = cloneTime(t.ScheduledAt)
	cp.StartedAt = cloneTime(t.StartedAt)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	cp.CancelledAt = cloneTime(t.CancelledAt)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
