package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/alerts"
	"github.com/spec-kit/maintenance-service/internal/clock"
	"github.com/spec-kit/maintenance-service/internal/costing"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/ledger"
	"github.com/spec-kit/maintenance-service/internal/observability"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

// InventoryService manages the material catalog and stock ledger.
type InventoryService struct {
	runner       *runner
	store        repository.Store
	ledger       *ledger.Ledger
	cache        AlertCache
	dispatcher   events.Dispatcher
	clock        clock.Clock
	logger       *zap.Logger
	metrics      *observability.Metrics
	expiryWindow time.Duration
}

// MaterialDraft describes a new catalog entry. OpeningStock, when
// positive, is posted to the ledger as the first receipt.
type MaterialDraft struct {
	Code          string
	Name          string
	Unit          string
	UnitPrice     decimal.Decimal
	MinStockLevel decimal.Decimal
	MaxStockLevel *decimal.Decimal
	Perishable    bool
	ExpiryDate    *time.Time
	OpeningStock  decimal.Decimal
}

// ReceiveInput describes an inbound stock movement.
type ReceiveInput struct {
	MaterialID string
	Quantity   decimal.Decimal
	UnitPrice  *decimal.Decimal
	Reason     string
}

// NewInventoryService constructs the service.
func NewInventoryService(deps Dependencies) *InventoryService {
	deps = deps.withDefaults()
	return &InventoryService{
		runner:       newRunner(deps.Store, deps.Retry, deps.Logger, deps.Metrics),
		store:        deps.Store,
		ledger:       deps.Ledger,
		cache:        deps.AlertCache,
		dispatcher:   deps.Dispatcher,
		clock:        deps.Clock,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		expiryWindow: deps.ExpiryWindow,
	}
}

// CreateMaterial adds a catalog entry and posts its opening balance.
func (s *InventoryService) CreateMaterial(ctx context.Context, actor domain.Actor, draft MaterialDraft) (*domain.Material, error) {
	if err := validateMaterial(&draft); err != nil {
		return nil, err
	}

	var (
		created *domain.Material
		opening *domain.StockTransaction
	)
	err := s.runner.run(ctx, "create_material", func(ctx context.Context, tx repository.Tx) error {
		now := s.clock.Now()
		material := &domain.Material{
			ID:            uuid.NewString(),
			Code:          draft.Code,
			Name:          draft.Name,
			Unit:          draft.Unit,
			UnitPrice:     draft.UnitPrice,
			CurrentStock:  decimal.Zero,
			MinStockLevel: draft.MinStockLevel,
			MaxStockLevel: draft.MaxStockLevel,
			Perishable:    draft.Perishable,
			ExpiryDate:    draft.ExpiryDate,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.CreateMaterial(ctx, material); err != nil {
			return err
		}
		opening = nil
		if draft.OpeningStock.IsPositive() {
			entry, err := s.ledger.Receive(ctx, tx, ledger.ReceiveRequest{
				MaterialID: material.ID,
				Quantity:   draft.OpeningStock,
				ActorID:    actor.ID,
				Reason:     "opening balance",
			})
			if err != nil {
				return err
			}
			opening = entry
		}
		current, err := tx.GetMaterial(ctx, material.ID)
		if err != nil {
			return err
		}
		created = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	if opening != nil {
		recordMovements(s.metrics, *opening)
		publish(ctx, s.dispatcher, s.logger, []events.Event{
			events.New(events.EventStockReceived, "", actor.ID, opening.CreatedAt, events.MovementPayload(*opening)),
		})
	}
	invalidateAlerts(ctx, s.cache, s.logger)
	return created, nil
}

func validateMaterial(draft *MaterialDraft) error {
	draft.Code = strings.TrimSpace(draft.Code)
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Unit = strings.TrimSpace(draft.Unit)
	switch {
	case draft.Code == "":
		return domain.NewValidationError("code", "is required")
	case draft.Name == "":
		return domain.NewValidationError("name", "is required")
	case draft.Unit == "":
		return domain.NewValidationError("unit", "is required")
	case draft.UnitPrice.IsNegative():
		return domain.NewValidationError("unit_price", "must not be negative")
	case draft.MinStockLevel.IsNegative():
		return domain.NewValidationError("min_stock_level", "must not be negative")
	case draft.MaxStockLevel != nil && draft.MaxStockLevel.LessThan(draft.MinStockLevel):
		return domain.NewValidationError("max_stock_level", "must not be below min_stock_level")
	case draft.OpeningStock.IsNegative():
		return domain.NewValidationError("opening_stock", "must not be negative")
	case draft.Perishable && draft.ExpiryDate == nil:
		return domain.NewValidationError("expiry_date", "is required for perishable materials")
	}
	amounts := map[string]decimal.Decimal{
		"unit_price":      draft.UnitPrice,
		"min_stock_level": draft.MinStockLevel,
		"opening_stock":   draft.OpeningStock,
	}
	if draft.MaxStockLevel != nil {
		amounts["max_stock_level"] = *draft.MaxStockLevel
	}
	for _, field := range []string{"unit_price", "min_stock_level", "max_stock_level", "opening_stock"} {
		value, ok := amounts[field]
		if !ok {
			continue
		}
		if err := domain.CheckScale(field, value, domain.AmountScale); err != nil {
			return err
		}
	}
	return nil
}

// GetMaterial loads one catalog entry.
func (s *InventoryService) GetMaterial(ctx context.Context, id string) (*domain.Material, error) {
	return s.store.GetMaterial(ctx, id)
}

// ListMaterials returns catalog entries ordered by code.
func (s *InventoryService) ListMaterials(ctx context.Context, filter repository.MaterialFilter) ([]domain.Material, error) {
	return s.store.ListMaterials(ctx, filter)
}

// ReceiveStock posts an inbound movement.
func (s *InventoryService) ReceiveStock(ctx context.Context, actor domain.Actor, input ReceiveInput) (*domain.StockTransaction, error) {
	var entry *domain.StockTransaction
	err := s.runner.run(ctx, "receive_stock", func(ctx context.Context, tx repository.Tx) error {
		var err error
		entry, err = s.ledger.Receive(ctx, tx, ledger.ReceiveRequest{
			MaterialID: input.MaterialID,
			Quantity:   input.Quantity,
			UnitPrice:  input.UnitPrice,
			ActorID:    actor.ID,
			Reason:     strings.TrimSpace(input.Reason),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterMovement(ctx, actor.ID, events.EventStockReceived, "", *entry)
	s.logger.Info("stock received",
		zap.String("material_id", entry.MaterialID),
		zap.String("quantity", entry.Delta.String()),
		zap.String("resulting_stock", entry.ResultingStock.String()))
	return entry, nil
}

// ReverseTransaction appends a reversal of the given entry. When the entry
// belongs to a ticket, the ticket is locked first and its cost refreshed;
// entries of a completed ticket cannot be reversed because its cost is frozen.
func (s *InventoryService) ReverseTransaction(ctx context.Context, actor domain.Actor, transactionID, reason string) (*domain.StockTransaction, error) {
	var (
		reversal *domain.StockTransaction
		rec      *recorder
	)
	err := s.runner.run(ctx, string(domain.TransitionReverse), func(ctx context.Context, tx repository.Tx) error {
		rec = newRecorder(actor.ID, s.clock.Now())
		original, err := tx.GetTransaction(ctx, transactionID)
		if err != nil {
			return err
		}

		var ticket *domain.Ticket
		if original.TicketID != nil {
			ticket, err = tx.LockTicket(ctx, *original.TicketID)
			if err != nil {
				return err
			}
			if ticket.Status == domain.TicketStatusCompleted {
				return &domain.InvalidTransitionError{
					From:      ticket.Status,
					Attempted: domain.TransitionReverse,
					Reason:    "cost of a completed ticket is frozen",
				}
			}
		}

		reversal, err = s.ledger.Reverse(ctx, tx, ledger.ReverseRequest{
			TransactionID: transactionID,
			ActorID:       actor.ID,
			Reason:        strings.TrimSpace(reason),
		})
		if err != nil {
			return err
		}
		if ticket == nil {
			return nil
		}

		entries, err := tx.ListTransactionsByTicket(ctx, ticket.ID)
		if err != nil {
			return fmt.Errorf("load ticket ledger entries: %w", err)
		}
		costing.Recompute(ticket, entries, reversal.CreatedAt)
		ticket.UpdatedAt = reversal.CreatedAt
		if err := tx.SaveTicket(ctx, ticket); err != nil {
			return err
		}
		rec.record(ticket.ID, domain.ChangeTypeMaterialReversed, map[string]any{"transaction_id": transactionID}, map[string]any{
			"transaction_id": reversal.ID,
			"material_id":    reversal.MaterialID,
			"quantity":       reversal.Delta.String(),
		})
		return rec.flush(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	ticketID := ""
	if reversal.TicketID != nil {
		ticketID = *reversal.TicketID
	}
	s.afterMovement(ctx, actor.ID, events.EventMaterialReversed, ticketID, *reversal)
	return reversal, nil
}

func (s *InventoryService) afterMovement(ctx context.Context, actorID string, eventType events.EventType, ticketID string, entry domain.StockTransaction) {
	recordMovements(s.metrics, entry)
	invalidateAlerts(ctx, s.cache, s.logger)
	publish(ctx, s.dispatcher, s.logger, []events.Event{
		events.New(eventType, ticketID, actorID, entry.CreatedAt, events.MovementPayload(entry)),
	})
}

// GetTransaction loads one ledger entry.
func (s *InventoryService) GetTransaction(ctx context.Context, id string) (*domain.StockTransaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// ListTransactions returns a material's ledger in sequence order.
func (s *InventoryService) ListTransactions(ctx context.Context, materialID string) ([]domain.StockTransaction, error) {
	if _, err := s.store.GetMaterial(ctx, materialID); err != nil {
		return nil, err
	}
	return s.store.ListTransactionsByMaterial(ctx, materialID)
}

// Reconcile replays one material's ledger against its cached stock.
func (s *InventoryService) Reconcile(ctx context.Context, materialID string) (*ledger.Reconciliation, error) {
	result, err := ledger.Reconcile(ctx, s.store, materialID)
	if err != nil {
		return nil, err
	}
	if !result.Consistent {
		s.logger.Error("stock ledger inconsistent",
			zap.String("material_id", materialID),
			zap.String("problem", result.Problem))
	}
	return result, nil
}

// ReconcileAll replays every material and returns the results ordered by material code.
func (s *InventoryService) ReconcileAll(ctx context.Context) ([]ledger.Reconciliation, error) {
	materials, err := s.store.ListMaterials(ctx, repository.MaterialFilter{})
	if err != nil {
		return nil, err
	}
	results := make([]ledger.Reconciliation, 0, len(materials))
	for _, material := range materials {
		result, err := s.Reconcile(ctx, material.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}

// GetAlerts returns the current alert sets, served from cache when fresh.
func (s *InventoryService) GetAlerts(ctx context.Context) (*alerts.Report, error) {
	if s.cache == nil {
		return s.EvaluateAlerts(ctx)
	}
	cached, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn("read alert cache failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}
	generation, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		s.logger.Warn("read alert generation failed", zap.Error(genErr))
	}
	report, err := s.EvaluateAlerts(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		return report, nil
	}
	stored, err := s.cache.Set(ctx, generation, *report)
	if err != nil {
		s.logger.Warn("write alert cache failed", zap.Error(err))
	} else if !stored {
		s.logger.Debug("alert report outdated by a stock movement, not cached")
	}
	return report, nil
}

// EvaluateAlerts sweeps the whole catalog, bypassing the cache.
func (s *InventoryService) EvaluateAlerts(ctx context.Context) (*alerts.Report, error) {
	materials, err := s.store.ListMaterials(ctx, repository.MaterialFilter{})
	if err != nil {
		return nil, err
	}
	report := alerts.Evaluate(materials, s.clock.Now(), s.expiryWindow)
	s.metrics.SetAlertCounts(map[string]int{
		"low_stock":     len(report.LowStock),
		"out_of_stock":  len(report.OutOfStock),
		"expiring_soon": len(report.ExpiringSoon),
		"over_stock":    len(report.OverStock),
	})
	return &report, nil
}

// PublishAlerts emits a stock_alert event for a non-empty report.
func (s *InventoryService) PublishAlerts(ctx context.Context, report alerts.Report) {
	if report.Empty() {
		return
	}
	payload := events.StockAlertPayload{
		LowStock:     alertCodes(report.LowStock),
		OutOfStock:   alertCodes(report.OutOfStock),
		ExpiringSoon: alertCodes(report.ExpiringSoon),
		OverStock:    alertCodes(report.OverStock),
	}
	publish(ctx, s.dispatcher, s.logger, []events.Event{
		events.New(events.EventStockAlert, "", "system", report.GeneratedAt, payload),
	})
}

func alertCodes(items []alerts.Item) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Code)
	}
	sort.Strings(out)
	return out
}
