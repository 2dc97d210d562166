package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/alerts"
	"github.com/spec-kit/maintenance-service/internal/api/dto"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/ledger"
	"github.com/spec-kit/maintenance-service/internal/workflow"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:          ticket.ID,
		Number:      ticket.Number,
		Kind:        ticket.Kind,
		EquipmentID: ticket.EquipmentID,
		AssigneeID:  ticket.AssigneeID,
		Title:       ticket.Title,
		Status:      ticket.Status,
		Priority:    ticket.Priority,
		Severity:    ticket.Severity,
		Emergency:   ticket.Emergency,
		TotalCost:   ticket.Cost.TotalCost,
		CreatedAt:   ticket.CreatedAt,
		UpdatedAt:   ticket.UpdatedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, policy workflow.StartPolicy) dto.TicketDetailResponse {
	tasks := make([]dto.TaskResponse, 0, len(ticket.Tasks))
	for i := range ticket.Tasks {
		tasks = append(tasks, taskResponse(&ticket.Tasks[i]))
	}
	labor := make([]dto.LaborResponse, 0, len(ticket.Labor))
	for i := range ticket.Labor {
		labor = append(labor, laborResponse(&ticket.Labor[i]))
	}
	issuances := ticket.IssuanceIDs
	if issuances == nil {
		issuances = []string{}
	}
	return dto.TicketDetailResponse{
		TicketSummary:        ticketSummary(ticket),
		RequesterID:          ticket.RequesterID,
		Description:          ticket.Description,
		HeldFrom:             ticket.HeldFrom,
		Tasks:                tasks,
		Labor:                labor,
		IssuanceIDs:          issuances,
		Cost:                 costResponse(ticket.Cost),
		FinalReadings:        ticket.FinalReadings,
		CancelReason:         ticket.CancelReason,
		AvailableTransitions: workflow.AvailableTransitions(ticket, policy),
		Version:              ticket.Version,
		ScheduledAt:          ticket.ScheduledAt,
		StartedAt:            ticket.StartedAt,
		CompletedAt:          ticket.CompletedAt,
		CancelledAt:          ticket.CancelledAt,
	}
}

func taskResponse(task *domain.Task) dto.TaskResponse {
	return dto.TaskResponse{
		ID:          task.ID,
		Sequence:    task.Sequence,
		Title:       task.Title,
		Required:    task.Required,
		Status:      task.Status,
		AssigneeID:  task.AssigneeID,
		Notes:       task.Notes,
		ActualHours: task.ActualHours,
		DueAt:       task.DueAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
	}
}

func laborResponse(entry *domain.LaborEntry) dto.LaborResponse {
	return dto.LaborResponse{
		ID:           entry.ID,
		TaskID:       entry.TaskID,
		TechnicianID: entry.TechnicianID,
		Hours:        entry.Hours,
		Rate:         entry.Rate,
		Amount:       entry.Amount,
		Note:         entry.Note,
		RecordedAt:   entry.RecordedAt,
	}
}

func costResponse(cost domain.CostSnapshot) dto.CostResponse {
	return dto.CostResponse{
		LaborCost:           cost.LaborCost,
		MaterialCost:        cost.MaterialCost,
		OverheadCost:        cost.OverheadCost,
		ExternalServiceCost: cost.ExternalServiceCost,
		TotalCost:           cost.TotalCost,
		Frozen:              cost.Frozen,
		FrozenAt:            cost.FrozenAt,
		ComputedAt:          cost.ComputedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:         entry.ID,
			ChangeType: entry.ChangeType,
			ActorID:    entry.ActorID,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return resp
}

func materialResponse(m *domain.Material) dto.MaterialResponse {
	return dto.MaterialResponse{
		ID:            m.ID,
		Code:          m.Code,
		Name:          m.Name,
		Unit:          m.Unit,
		UnitPrice:     m.UnitPrice,
		CurrentStock:  m.CurrentStock,
		MinStockLevel: m.MinStockLevel,
		MaxStockLevel: m.MaxStockLevel,
		Perishable:    m.Perishable,
		ExpiryDate:    m.ExpiryDate,
		LastSequence:  m.LastSequence,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func transactionResponse(tx *domain.StockTransaction) dto.StockTransactionResponse {
	return dto.StockTransactionResponse{
		ID:             tx.ID,
		MaterialID:     tx.MaterialID,
		Sequence:       tx.Sequence,
		Type:           tx.Type,
		Delta:          tx.Delta,
		ResultingStock: tx.ResultingStock,
		UnitPrice:      tx.UnitPrice,
		TotalValue:     tx.TotalValue,
		TicketID:       tx.TicketID,
		TaskID:         tx.TaskID,
		ActorID:        tx.ActorID,
		Reason:         tx.Reason,
		ReversalOf:     tx.ReversalOf,
		CreatedAt:      tx.CreatedAt,
	}
}

func transactionResponses(entries []domain.StockTransaction) []dto.StockTransactionResponse {
	resp := make([]dto.StockTransactionResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, transactionResponse(&entries[i]))
	}
	return resp
}

func reconciliationResponse(r *ledger.Reconciliation) dto.ReconciliationResponse {
	return dto.ReconciliationResponse{
		MaterialID:   r.MaterialID,
		Cached:       r.Cached,
		Replayed:     r.Replayed,
		LastSequence: r.LastSequence,
		EntryCount:   r.EntryCount,
		Consistent:   r.Consistent,
		Problem:      r.Problem,
	}
}

func alertReportResponse(report *alerts.Report) dto.AlertReportResponse {
	return dto.AlertReportResponse{
		GeneratedAt:  report.GeneratedAt,
		LowStock:     alertItems(report.LowStock),
		OutOfStock:   alertItems(report.OutOfStock),
		ExpiringSoon: alertItems(report.ExpiringSoon),
		OverStock:    alertItems(report.OverStock),
	}
}

func alertItems(items []alerts.Item) []dto.AlertItemResponse {
	resp := make([]dto.AlertItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, dto.AlertItemResponse{
			MaterialID:    item.MaterialID,
			Code:          item.Code,
			Name:          item.Name,
			Unit:          item.Unit,
			CurrentStock:  item.CurrentStock,
			MinStockLevel: item.MinStockLevel,
			MaxStockLevel: item.MaxStockLevel,
			ExpiryDate:    item.ExpiryDate,
		})
	}
	return resp
}

func operatorResponse(op *domain.Operator) dto.OperatorResponse {
	return dto.OperatorResponse{
		ID:           op.ID,
		Name:         op.Name,
		Email:        op.Email,
		Role:         op.Role,
		Capabilities: auth.CapabilitiesFor(op.Role),
		Active:       op.Active,
	}
}
