package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventMaterialIssued      EventType = "material_issued"
	EventMaterialReversed    EventType = "material_reversed"
	EventStockReceived       EventType = "stock_received"
	EventStockAlert          EventType = "stock_alert"
)

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh identifier.
func New(eventType EventType, ticketID, actorID string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		ActorID:   actorID,
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Number      string                `json:"number"`
	Kind        domain.TicketKind     `json:"kind"`
	EquipmentID string                `json:"equipment_id"`
	Priority    domain.TicketPriority `json:"priority"`
	Emergency   bool                  `json:"emergency"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	Transition domain.Transition   `json:"transition"`
	OldStatus  domain.TicketStatus `json:"old_status"`
	NewStatus  domain.TicketStatus `json:"new_status"`
	Reason     string              `json:"reason,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousAssigneeID *string `json:"previous_assignee_id,omitempty"`
	AssigneeID         *string `json:"assignee_id,omitempty"`
}

// StockMovementPayload describes one committed ledger entry.
type StockMovementPayload struct {
	TransactionID  string                      `json:"transaction_id"`
	MaterialID     string                      `json:"material_id"`
	Type           domain.StockTransactionType `json:"type"`
	Delta          decimal.Decimal             `json:"delta"`
	ResultingStock decimal.Decimal             `json:"resulting_stock"`
	ReversalOf     *string                     `json:"reversal_of,omitempty"`
}

// StockAlertPayload summarizes a non-empty alert sweep.
type StockAlertPayload struct {
	LowStock     []string `json:"low_stock"`
	OutOfStock   []string `json:"out_of_stock"`
	ExpiringSoon []string `json:"expiring_soon"`
	OverStock    []string `json:"over_stock"`
}

// MovementPayload builds the payload for a ledger entry.
func MovementPayload(entry domain.StockTransaction) StockMovementPayload {
	return StockMovementPayload{
		TransactionID:  entry.ID,
		MaterialID:     entry.MaterialID,
		Type:           entry.Type,
		Delta:          entry.Delta,
		ResultingStock: entry.ResultingStock,
		ReversalOf:     entry.ReversalOf,
	}
}
