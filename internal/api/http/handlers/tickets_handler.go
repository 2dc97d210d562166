package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/api/dto"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/internal/service"
	"github.com/spec-kit/maintenance-service/internal/workflow"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

func (h *TicketsHandler) detail(ticket *domain.Ticket) dto.TicketDetailResponse {
	return ticketDetail(ticket, h.service.StartPolicy())
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	draft := service.TicketDraft{
		Kind:        req.Kind,
		EquipmentID: req.EquipmentID,
		AssigneeID:  req.AssigneeID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Severity:    req.Severity,
		Emergency:   req.Emergency,
		ScheduledAt: req.ScheduledAt,
	}
	for _, task := range req.Tasks {
		draft.Tasks = append(draft.Tasks, service.TaskDraft{
			Title:      task.Title,
			Required:   task.Required,
			AssigneeID: task.AssigneeID,
			DueAt:      task.DueAt,
		})
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), actor, draft)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.detail(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListTickets(c.UserContext(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

// History GET /tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	history, err := h.service.TicketHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(history)})
}

// Cost GET /tickets/:id/cost.
func (h *TicketsHandler) Cost(c *fiber.Ctx) error {
	report, err := h.service.TicketCost(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CostReportResponse{
		TicketID:   report.TicketID,
		Cost:       costResponse(report.Snapshot),
		Entries:    transactionResponses(report.Entries),
		Consistent: report.Consistent,
		Problem:    report.Problem,
	}})
}

// Approve POST /tickets/:id/approve.
func (h *TicketsHandler) Approve(c *fiber.Ctx) error {
	return h.transition(c, h.service.ApproveTicket)
}

// Start POST /tickets/:id/start.
func (h *TicketsHandler) Start(c *fiber.Ctx) error {
	return h.transition(c, h.service.StartTicket)
}

// Resume POST /tickets/:id/resume.
func (h *TicketsHandler) Resume(c *fiber.Ctx) error {
	return h.transition(c, h.service.ResumeTicket)
}

// Hold POST /tickets/:id/hold.
func (h *TicketsHandler) Hold(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	_ = c.BodyParser(&req)
	ticket, err := h.service.HoldTicket(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

// Assign PUT /tickets/:id/assignee.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req struct {
		AssigneeID string `json:"assignee_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.AssignTicket(c.UserContext(), actor, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

// UpdateTask PATCH /tickets/:id/tasks/:taskId.
func (h *TicketsHandler) UpdateTask(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	task, err := h.service.UpdateTask(c.UserContext(), actor, c.Params("id"), workflow.TaskUpdate{
		TaskID: c.Params("taskId"),
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": taskResponse(task)})
}

// IssueMaterial POST /tickets/:id/materials.
func (h *TicketsHandler) IssueMaterial(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.IssueMaterialRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.IssueMaterial(c.UserContext(), actor, c.Params("id"), workflow.MaterialIssue{
		MaterialID: req.MaterialID,
		Quantity:   req.Quantity,
		TaskID:     req.TaskID,
		Reason:     req.Reason,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.IssueMaterialResponse{
		Transaction: transactionResponse(&result.Transaction),
		Cost:        costResponse(result.Cost),
	}})
}

// RecordLabor POST /tickets/:id/labor.
func (h *TicketsHandler) RecordLabor(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.RecordLaborRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.RecordLabor(c.UserContext(), actor, c.Params("id"), workflow.LaborInput{
		TaskID:       req.TaskID,
		TechnicianID: req.TechnicianID,
		Hours:        req.Hours,
		Rate:         req.Rate,
		Note:         req.Note,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.LaborResultResponse{
		Entry: laborResponse(&result.Entry),
		Cost:  costResponse(result.Cost),
	}})
}

// RecordCharges PUT /tickets/:id/charges.
func (h *TicketsHandler) RecordCharges(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.RecordChargesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.RecordCharges(c.UserContext(), actor, c.Params("id"), workflow.Charges{
		Overhead:        req.OverheadCost,
		ExternalService: req.ExternalServiceCost,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

// Complete POST /tickets/:id/complete.
func (h *TicketsHandler) Complete(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CompleteTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	ticket, err := h.service.CompleteTicket(c.UserContext(), actor, c.Params("id"), req.FinalReadings)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

// Cancel POST /tickets/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.CancelTicket(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CancelTicketResponse{
		Ticket:    h.detail(&result.Ticket),
		Reversals: transactionResponses(result.Reversals),
	}})
}

// Delete DELETE /tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

type transitionFunc func(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)

func (h *TicketsHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	ticket, err := fn(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.detail(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if kind := c.Query("kind"); kind != "" {
		k := domain.TicketKind(strings.ToUpper(kind))
		filter.Kind = &k
	}
	if equipment := c.Query("equipment_id"); equipment != "" {
		filter.EquipmentID = &equipment
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.ToUpper(strings.TrimSpace(part))))
		}
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	filter.CreatedFrom = parseTime(c.Query("created_from"))
	filter.CreatedTo = parseTime(c.Query("created_to"))
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}
