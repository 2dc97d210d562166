package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/api/dto"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/internal/service"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

// MaterialsHandler exposes the catalog, stock ledger and alerts.
type MaterialsHandler struct {
	service *service.InventoryService
}

// NewMaterialsHandler constructs handler.
func NewMaterialsHandler(inventory *service.InventoryService) *MaterialsHandler {
	return &MaterialsHandler{service: inventory}
}

// CreateMaterial POST /materials.
func (h *MaterialsHandler) CreateMaterial(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateMaterialRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	material, err := h.service.CreateMaterial(c.UserContext(), actor, service.MaterialDraft{
		Code:          req.Code,
		Name:          req.Name,
		Unit:          req.Unit,
		UnitPrice:     req.UnitPrice,
		MinStockLevel: req.MinStockLevel,
		MaxStockLevel: req.MaxStockLevel,
		Perishable:    req.Perishable,
		ExpiryDate:    req.ExpiryDate,
		OpeningStock:  req.OpeningStock,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": materialResponse(material)})
}

// ListMaterials GET /materials.
func (h *MaterialsHandler) ListMaterials(c *fiber.Ctx) error {
	filter := repository.MaterialFilter{}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	if perishable := c.Query("perishable"); perishable != "" {
		if val, err := strconv.ParseBool(perishable); err == nil {
			filter.Perishable = &val
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize

	materials, err := h.service.ListMaterials(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.MaterialResponse, 0, len(materials))
	for i := range materials {
		items = append(items, materialResponse(&materials[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetMaterial GET /materials/:id.
func (h *MaterialsHandler) GetMaterial(c *fiber.Ctx) error {
	material, err := h.service.GetMaterial(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": materialResponse(material)})
}

// ReceiveStock POST /materials/:id/receipts.
func (h *MaterialsHandler) ReceiveStock(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.ReceiveStockRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	entry, err := h.service.ReceiveStock(c.UserContext(), actor, service.ReceiveInput{
		MaterialID: c.Params("id"),
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		Reason:     req.Reason,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": transactionResponse(entry)})
}

// ListTransactions GET /materials/:id/transactions.
func (h *MaterialsHandler) ListTransactions(c *fiber.Ctx) error {
	entries, err := h.service.ListTransactions(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transactionResponses(entries)})
}

// Reconcile GET /materials/:id/reconciliation.
func (h *MaterialsHandler) Reconcile(c *fiber.Ctx) error {
	result, err := h.service.Reconcile(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": reconciliationResponse(result)})
}

// ReconcileAll GET /stock/reconciliation.
func (h *MaterialsHandler) ReconcileAll(c *fiber.Ctx) error {
	results, err := h.service.ReconcileAll(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.ReconciliationResponse, 0, len(results))
	for i := range results {
		items = append(items, reconciliationResponse(&results[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTransaction GET /stock/transactions/:id.
func (h *MaterialsHandler) GetTransaction(c *fiber.Ctx) error {
	entry, err := h.service.GetTransaction(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transactionResponse(entry)})
}

// ReverseTransaction POST /stock/transactions/:id/reverse.
func (h *MaterialsHandler) ReverseTransaction(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	_ = c.BodyParser(&req)
	entry, err := h.service.ReverseTransaction(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": transactionResponse(entry)})
}

// Alerts GET /stock/alerts.
func (h *MaterialsHandler) Alerts(c *fiber.Ctx) error {
	report, err := h.service.GetAlerts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": alertReportResponse(report)})
}
