package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus           TicketChangeType = "STATUS_CHANGE"
	ChangeTypeTask             TicketChangeType = "TASK_UPDATE"
	ChangeTypeMaterialIssued   TicketChangeType = "MATERIAL_ISSUED"
	ChangeTypeMaterialReversed TicketChangeType = "MATERIAL_REVERSED"
	ChangeTypeLabor            TicketChangeType = "LABOR_RECORDED"
	ChangeTypeCharges          TicketChangeType = "CHARGES_RECORDED"
	ChangeTypeAssignment       TicketChangeType = "ASSIGNMENT"
)

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID         string
	TicketID   string
	ActorID    string
	ChangeType TicketChangeType
	OldValue   map[string]any
	NewValue   map[string]any
	CreatedAt  time.Time
}
