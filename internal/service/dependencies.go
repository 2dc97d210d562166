package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/alerts"
	"github.com/spec-kit/maintenance-service/internal/clock"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/ledger"
	"github.com/spec-kit/maintenance-service/internal/observability"
	"github.com/spec-kit/maintenance-service/internal/repository"
	"github.com/spec-kit/maintenance-service/internal/workflow"
)

// TicketNumberer issues human-readable ticket numbers.
type TicketNumberer interface {
	Next(ctx context.Context, kind domain.TicketKind) (string, error)
}

// AlertCache stores the last evaluated alert report.
type AlertCache interface {
	Get(ctx context.Context) (*alerts.Report, bool, error)
	Generation(ctx context.Context) (uint64, error)
	Set(ctx context.Context, generation uint64, report alerts.Report) (bool, error)
	Invalidate(ctx context.Context) error
}

// Dependencies bundles collaborators shared by the ticket and inventory services.
type Dependencies struct {
	Store        repository.Store
	Ledger       *ledger.Ledger
	Machine      *workflow.Machine
	Numbers      TicketNumberer
	Operators    repository.OperatorRepository
	AlertCache   AlertCache
	Dispatcher   events.Dispatcher
	Clock        clock.Clock
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Retry        RetryPolicy
	ExpiryWindow time.Duration
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Ledger == nil {
		d.Ledger = ledger.New(d.Clock)
	}
	if d.Machine == nil {
		d.Machine = workflow.NewMachine(d.Ledger, workflow.StartPolicyEmergencyRepair, d.Clock)
	}
	if d.ExpiryWindow <= 0 {
		d.ExpiryWindow = alerts.DefaultExpiryWindow
	}
	return d
}

// recorder collects the audit entries and events of one attempt. Events are
// published only after the transaction commits.
type recorder struct {
	actorID string
	now     time.Time
	history []domain.TicketHistory
	events  []events.Event
}

func newRecorder(actorID string, now time.Time) *recorder {
	return &recorder{actorID: actorID, now: now}
}

func (r *recorder) record(ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any) {
	r.history = append(r.history, domain.TicketHistory{
		ID:         uuid.NewString(),
		TicketID:   ticketID,
		ActorID:    r.actorID,
		ChangeType: change,
		OldValue:   oldValue,
		NewValue:   newValue,
		CreatedAt:  r.now,
	})
}

func (r *recorder) emit(eventType events.EventType, ticketID string, payload interface{}) {
	r.events = append(r.events, events.New(eventType, ticketID, r.actorID, r.now, payload))
}

func (r *recorder) flush(ctx context.Context, tx repository.Tx) error {
	for i := range r.history {
		if err := tx.AppendHistory(ctx, &r.history[i]); err != nil {
			return err
		}
	}
	return nil
}

// publish hands committed events to the dispatcher.
func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, evts []events.Event) {
	if dispatcher == nil {
		return
	}
	for _, event := range evts {
		if err := dispatcher.Publish(ctx, event); err != nil {
			logger.Warn("publish event failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}
}

// invalidateAlerts drops the cached alert report after stock moved.
func invalidateAlerts(ctx context.Context, cache AlertCache, logger *zap.Logger) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx); err != nil {
		logger.Warn("invalidate alert cache failed", zap.Error(err))
	}
}

func recordMovements(metrics *observability.Metrics, entries ...domain.StockTransaction) {
	for _, entry := range entries {
		quantity, _ := entry.Delta.Abs().Float64()
		metrics.RecordStockMovement(string(entry.Type), quantity)
	}
}
