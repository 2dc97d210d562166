package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/alerts"
	"github.com/spec-kit/maintenance-service/internal/clock"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/events"
	"github.com/spec-kit/maintenance-service/internal/ledger"
	"github.com/spec-kit/maintenance-service/internal/persistence"
	"github.com/spec-kit/maintenance-service/internal/repository/memory"
	"github.com/spec-kit/maintenance-service/internal/service"
	"github.com/spec-kit/maintenance-service/internal/workflow"
)

var (
	start   = time.Date(2026, 5, 4, 7, 30, 0, 0, time.UTC)
	manager = domain.Actor{ID: "mgr", Role: domain.OperatorRoleManager, Capabilities: []domain.Capability{
		domain.CapabilityApproveTickets, domain.CapabilitySuperviseWork, domain.CapabilityManageStock, domain.CapabilityManageCatalog,
	}}
	storekeeper = domain.Actor{ID: "store", Role: domain.OperatorRoleStorekeeper, Capabilities: []domain.Capability{
		domain.CapabilityManageStock, domain.CapabilityManageCatalog,
	}}
)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) handle(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) count(eventType events.EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type harness struct {
	clock     *clock.Fake
	store     *memory.Store
	tickets   *service.TicketService
	inventory *service.InventoryService
	events    *eventLog
}

func newHarness(t *testing.T, policy workflow.StartPolicy) *harness {
	t.Helper()
	clk := clock.NewFake(start)
	store := memory.NewStore(time.Second)
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	log := &eventLog{}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated, events.EventTicketStatusChanged, events.EventTicketAssigned, events.EventMaterialIssued,
		events.EventMaterialReversed, events.EventStockReceived, events.EventStockAlert,
	} {
		dispatcher.Subscribe(eventType, log.handle)
	}
	deps := service.Dependencies{
		Store:      store,
		Numbers:    persistence.NewTicketNumberer(&persistence.Redis{}, "", zap.NewNop()),
		AlertCache: persistence.NewAlertCache(&persistence.Redis{}, time.Minute),
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     zap.NewNop(),
	}
	deps.Ledger = ledger.New(clk)
	deps.Machine = workflow.NewMachine(deps.Ledger, policy, clk)
	return &harness{
		clock:     clk,
		store:     store,
		tickets:   service.NewTicketService(deps),
		inventory: service.NewInventoryService(deps),
		events:    log,
	}
}

func (h *harness) material(t *testing.T, code string, opening int64, price string) *domain.Material {
	t.Helper()
	material, err := h.inventory.CreateMaterial(context.Background(), storekeeper, service.MaterialDraft{
		Code:          code,
		Name:          code + " part",
		Unit:          "pcs",
		UnitPrice:     decimal.RequireFromString(price),
		MinStockLevel: decimal.NewFromInt(5),
		OpeningStock:  decimal.NewFromInt(opening),
	})
	if err != nil {
		t.Fatalf("create material %s: %v", code, err)
	}
	return material
}

func (h *harness) stock(t *testing.T, materialID string) decimal.Decimal {
	t.Helper()
	material, err := h.inventory.GetMaterial(context.Background(), materialID)
	if err != nil {
		t.Fatalf("get material: %v", err)
	}
	return material.CurrentStock
}

func (h *harness) inProgressTicket(t *testing.T, tasks ...service.TaskDraft) *domain.Ticket {
	t.Helper()
	ctx := context.Background()
	assignee := manager.ID
	ticket, err := h.tickets.CreateTicket(ctx, manager, service.TicketDraft{
		Kind:        domain.TicketKindMaintenance,
		EquipmentID: "PUMP-7",
		AssigneeID:  &assignee,
		Title:       "Replace seals",
		Tasks:       tasks,
	})
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	if _, err := h.tickets.ApproveTicket(ctx, manager, ticket.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	ticket, err = h.tickets.StartTicket(ctx, manager, ticket.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return ticket
}

func TestCreateTicketNumbersPerKind(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	ctx := context.Background()

	first, err := h.tickets.CreateTicket(ctx, manager, service.TicketDraft{Kind: domain.TicketKindMaintenance, EquipmentID: "E1", Title: "Inspect"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	repair, err := h.tickets.CreateTicket(ctx, manager, service.TicketDraft{Kind: domain.TicketKindRepair, EquipmentID: "E1", Title: "Fix", Emergency: true})
	if err != nil {
		t.Fatalf("create repair: %v", err)
	}
	if first.Number != "MNT-000001" || repair.Number != "REP-000001" {
		t.Fatalf("unexpected numbers %s %s", first.Number, repair.Number)
	}
	if first.Status != domain.TicketStatusPending || first.RequesterID != manager.ID {
		t.Fatalf("unexpected ticket %+v", first)
	}
	if first.Priority != domain.TicketPriorityMedium {
		t.Fatalf("expected default priority, got %s", first.Priority)
	}
	if h.events.count(events.EventTicketCreated) != 2 {
		t.Fatalf("expected two created events")
	}
}

func TestCreateTicketValidation(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	cases := map[string]service.TicketDraft{
		"missing kind":      {EquipmentID: "E1", Title: "x"},
		"missing equipment": {Kind: domain.TicketKindRepair, Title: "x"},
		"missing title":     {Kind: domain.TicketKindRepair, EquipmentID: "E1"},
		"emergency maint":   {Kind: domain.TicketKindMaintenance, EquipmentID: "E1", Title: "x", Emergency: true},
		"blank task title":  {Kind: domain.TicketKindRepair, EquipmentID: "E1", Title: "x", Tasks: []service.TaskDraft{{Title: " "}}},
		"unknown priority":  {Kind: domain.TicketKindRepair, EquipmentID: "E1", Title: "x", Priority: "BOGUS"},
	}
	for name, draft := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.tickets.CreateTicket(context.Background(), manager, draft)
			if domain.KindOf(err) != domain.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCancelReversesIssuesAndRecordsHistory(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	ctx := context.Background()
	bearing := h.material(t, "BRG-1", 20, "12.50")
	ticket := h.inProgressTicket(t)

	issued, err := h.tickets.IssueMaterial(ctx, manager, ticket.ID, workflow.MaterialIssue{MaterialID: bearing.ID, Quantity: decimal.NewFromInt(8)})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !issued.Cost.MaterialCost.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected material cost 100, got %s", issued.Cost.MaterialCost)
	}
	if got := h.stock(t, bearing.ID); !got.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected stock 12, got %s", got)
	}

	result, err := h.tickets.CancelTicket(ctx, manager, ticket.ID, "equipment replaced")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Ticket.Status != domain.TicketStatusCancelled || len(result.Reversals) != 1 {
		t.Fatalf("unexpected cancel result %+v", result)
	}
	if !result.Reversals[0].Delta.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("expected +8 reversal, got %s", result.Reversals[0].Delta)
	}
	if got := h.stock(t, bearing.ID); !got.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected stock restored to 20, got %s", got)
	}
	if !result.Ticket.Cost.MaterialCost.IsZero() {
		t.Fatalf("expected zero material cost, got %s", result.Ticket.Cost.MaterialCost)
	}

	history, err := h.tickets.TicketHistory(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var reversed, statusChanges int
	for _, entry := range history {
		switch entry.ChangeType {
		case domain.ChangeTypeMaterialReversed:
			reversed++
		case domain.ChangeTypeStatus:
			statusChanges++
		}
	}
	if reversed != 1 {
		t.Fatalf("expected one reversal history entry, got %d", reversed)
	}
	// created, approved, started, cancelled
	if statusChanges != 4 {
		t.Fatalf("expected 4 status entries, got %d", statusChanges)
	}
	if h.events.count(events.EventMaterialReversed) != 1 || h.events.count(events.EventMaterialIssued) != 1 {
		t.Fatalf("unexpected movement events %+v", h.events.events)
	}

	report, err := h.tickets.TicketCost(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if !report.Consistent {
		t.Fatalf("cost report inconsistent: %s", report.Problem)
	}
	reconciled, err := h.inventory.Reconcile(ctx, bearing.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !reconciled.Consistent || reconciled.EntryCount != 3 {
		t.Fatalf("unexpected reconciliation %+v", reconciled)
	}
}

func TestConcurrentIssuesAndCancelKeepLedgerConsistent(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	ctx := context.Background()
	filter := h.material(t, "FLT-2", 40, "3.25")
	cancelled := h.inProgressTicket(t)
	kept := h.inProgressTicket(t)

	const issuesPerTicket = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []error
	)
	begin := make(chan struct{})
	issue := func(ticketID string) {
		defer wg.Done()
		<-begin
		_, err := h.tickets.IssueMaterial(ctx, manager, ticketID, workflow.MaterialIssue{MaterialID: filter.ID, Quantity: decimal.NewFromInt(2)})
		if err == nil {
			return
		}
		if ticketID == cancelled.ID && domain.KindOf(err) == domain.KindInvalidTransition {
			return
		}
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}
	for i := 0; i < issuesPerTicket; i++ {
		wg.Add(2)
		go issue(cancelled.ID)
		go issue(kept.ID)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-begin
		if _, err := h.tickets.CancelTicket(ctx, manager, cancelled.ID, "duplicate work order"); err != nil {
			mu.Lock()
			failures = append(failures, err)
			mu.Unlock()
		}
	}()
	close(begin)
	wg.Wait()

	if len(failures) > 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if got, want := h.stock(t, filter.ID), decimal.NewFromInt(40-2*issuesPerTicket); !got.Equal(want) {
		t.Fatalf("stock = %s, want %s", got, want)
	}
	reconciled, err := h.inventory.Reconcile(ctx, filter.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !reconciled.Consistent {
		t.Fatalf("ledger inconsistent: %s", reconciled.Problem)
	}

	wantCost := map[string]decimal.Decimal{
		cancelled.ID: decimal.Zero,
		kept.ID:      decimal.RequireFromString("3.25").Mul(decimal.NewFromInt(2 * issuesPerTicket)),
	}
	for id, want := range wantCost {
		report, err := h.tickets.TicketCost(ctx, id)
		if err != nil {
			t.Fatalf("cost %s: %v", id, err)
		}
		if !report.Consistent {
			t.Fatalf("cost %s inconsistent: %s", id, report.Problem)
		}
		if !report.Snapshot.MaterialCost.Equal(want) {
			t.Fatalf("material cost %s = %s, want %s", id, report.Snapshot.MaterialCost, want)
		}
	}
	if got := mustTicket(t, h, cancelled.ID).Status; got != domain.TicketStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", got)
	}
}

func mustTicket(t *testing.T, h *harness, id string) *domain.Ticket {
	t.Helper()
	ticket, err := h.tickets.GetTicket(context.Background(), id)
	if err != nil {
		t.Fatalf("get ticket: %v", err)
	}
	return ticket
}

func TestCancelRequiresReason(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	ticket := h.inProgressTicket(t)
	_, err := h.tickets.CancelTicket(context.Background(), manager, ticket.ID, "  ")
	if domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIssueInsufficientStockLeavesNoTrace(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	ctx := context.Background()
	seal := h.material(t, "SEAL-2", 3, "4")
	ticket := h.inProgressTicket(t)

	_, err := h.tickets.IssueMaterial(ctx, manager, ticket.ID, workflow.MaterialIssue{MaterialID: seal.ID, Quantity: decimal.NewFromInt(4)})
	if domain.KindOf(err) != domain.KindInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if got := h.stock(t, seal.ID); !got.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("stock changed to %s", got)
	}
	current, err := h.tickets.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(current.IssuanceIDs) != 0 || current.Version != ticket.Version {
		t.Fatalf("ticket changed after failed issue: %+v", current)
	}
}

func TestCompleteFreezesCostAndBlocksReversal(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	ctx := context.Background()
	filter := h.material(t, "FLT-3", 10, "7")
	ticket := h.inProgressTicket(t, service.TaskDraft{Title: "Drain", Required: true})

	issued, err := h.tickets.IssueMaterial(ctx, manager, ticket.ID, workflow.MaterialIssue{MaterialID: filter.ID, Quantity: decimal.NewFromInt(2)})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := h.tickets.CompleteTicket(ctx, manager, ticket.ID, nil); domain.KindOf(err) != domain.KindInvalidTransition {
		t.Fatalf("expected required-task guard, got %v", err)
	}
	if _, err := h.tickets.UpdateTask(ctx, manager, ticket.ID, workflow.TaskUpdate{TaskID: ticket.Tasks[0].ID, Status: domain.TaskStatusCompleted}); err != nil {
		t.Fatalf("update task: %v", err)
	}
	done, err := h.tickets.CompleteTicket(ctx, manager, ticket.ID, map[string]decimal.Decimal{"hours_meter": decimal.NewFromInt(1200)})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !done.Cost.Frozen || !done.Cost.TotalCost.Equal(decimal.NewFromInt(14)) {
		t.Fatalf("unexpected frozen cost %+v", done.Cost)
	}

	_, err = h.inventory.ReverseTransaction(ctx, storekeeper, issued.Transaction.ID, "late return")
	if domain.KindOf(err) != domain.KindInvalidTransition {
		t.Fatalf("expected frozen cost guard, got %v", err)
	}
	if got := h.stock(t, filter.ID); !got.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("stock changed to %s", got)
	}
}

func TestReverseTicketIssueRecomputesCost(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	ctx := context.Background()
	belt := h.material(t, "BLT-4", 10, "3")
	ticket := h.inProgressTicket(t)

	issued, err := h.tickets.IssueMaterial(ctx, manager, ticket.ID, workflow.MaterialIssue{MaterialID: belt.ID, Quantity: decimal.NewFromInt(4)})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	reversal, err := h.inventory.ReverseTransaction(ctx, storekeeper, issued.Transaction.ID, "wrong size")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if reversal.ReversalOf == nil || *reversal.ReversalOf != issued.Transaction.ID {
		t.Fatalf("reversal not linked: %+v", reversal)
	}
	current, err := h.tickets.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !current.Cost.MaterialCost.IsZero() {
		t.Fatalf("expected material cost cleared, got %s", current.Cost.MaterialCost)
	}

	_, err = h.inventory.ReverseTransaction(ctx, storekeeper, issued.Transaction.ID, "again")
	if domain.KindOf(err) != domain.KindAlreadyReversed {
		t.Fatalf("expected already reversed, got %v", err)
	}
}

func TestDeleteOnlyPending(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	ctx := context.Background()
	pending, err := h.tickets.CreateTicket(ctx, manager, service.TicketDraft{Kind: domain.TicketKindMaintenance, EquipmentID: "E2", Title: "Lube"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other := domain.Actor{ID: "someone"}
	if err := h.tickets.DeleteTicket(ctx, other, pending.ID); domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := h.tickets.DeleteTicket(ctx, manager, pending.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := h.tickets.GetTicket(ctx, pending.ID); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	started := h.inProgressTicket(t)
	if err := h.tickets.DeleteTicket(ctx, manager, started.ID); domain.KindOf(err) != domain.KindInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestAlertsCachedUntilStockMoves(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	ctx := context.Background()
	gasket := h.material(t, "GSK-5", 6, "1")

	report, err := h.inventory.GetAlerts(ctx)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(report.LowStock) != 0 {
		t.Fatalf("unexpected low stock %+v", report.LowStock)
	}

	ticket := h.inProgressTicket(t)
	if _, err := h.tickets.IssueMaterial(ctx, manager, ticket.ID, workflow.MaterialIssue{MaterialID: gasket.ID, Quantity: decimal.NewFromInt(2)}); err != nil {
		t.Fatalf("issue: %v", err)
	}
	report, err = h.inventory.GetAlerts(ctx)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(report.LowStock) != 1 || report.LowStock[0].Code != "GSK-5" {
		t.Fatalf("expected GSK-5 low after issue, got %+v", report.LowStock)
	}

	h.inventory.PublishAlerts(ctx, *report)
	if h.events.count(events.EventStockAlert) != 1 {
		t.Fatalf("expected a stock alert event")
	}
}

// racingCache runs move once between evaluating a report and storing it.
type racingCache struct {
	service.AlertCache
	move func()
}

func (c *racingCache) Set(ctx context.Context, generation uint64, report alerts.Report) (bool, error) {
	if c.move != nil {
		move := c.move
		c.move = nil
		move()
	}
	return c.AlertCache.Set(ctx, generation, report)
}

func TestAlertReportOutdatedByConcurrentMoveIsNotCached(t *testing.T) {
	cache := &racingCache{AlertCache: persistence.NewAlertCache(&persistence.Redis{}, time.Minute)}
	clk := clock.NewFake(start)
	deps := service.Dependencies{
		Store:      memory.NewStore(time.Second),
		AlertCache: cache,
		Clock:      clk,
		Logger:     zap.NewNop(),
	}
	deps.Ledger = ledger.New(clk)
	deps.Machine = workflow.NewMachine(deps.Ledger, workflow.StartPolicyStrict, clk)
	inventory := service.NewInventoryService(deps)
	ctx := context.Background()

	valve, err := inventory.CreateMaterial(ctx, storekeeper, service.MaterialDraft{
		Code: "VLV-3", Name: "Check valve", Unit: "pcs", UnitPrice: decimal.NewFromInt(9), MinStockLevel: decimal.NewFromInt(5), OpeningStock: decimal.NewFromInt(2),
	})
	if err != nil {
		t.Fatalf("create material: %v", err)
	}
	cache.move = func() {
		if _, err := inventory.ReceiveStock(ctx, storekeeper, service.ReceiveInput{MaterialID: valve.ID, Quantity: decimal.NewFromInt(10)}); err != nil {
			t.Errorf("receive: %v", err)
		}
	}

	report, err := inventory.GetAlerts(ctx)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(report.LowStock) != 1 {
		t.Fatalf("expected the pre-receipt report to flag VLV-3, got %+v", report.LowStock)
	}

	report, err = inventory.GetAlerts(ctx)
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	if len(report.LowStock) != 0 {
		t.Fatalf("outdated report served after receipt: %+v", report.LowStock)
	}
}

func TestCreateMaterialValidation(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	low := decimal.NewFromInt(2)
	cases := map[string]service.MaterialDraft{
		"missing code":        {Name: "n", Unit: "pcs"},
		"negative price":      {Code: "A", Name: "n", Unit: "pcs", UnitPrice: decimal.NewFromInt(-1)},
		"max below min":       {Code: "A", Name: "n", Unit: "pcs", MinStockLevel: decimal.NewFromInt(5), MaxStockLevel: &low},
		"perishable no date":  {Code: "A", Name: "n", Unit: "l", Perishable: true},
		"price too precise":   {Code: "A", Name: "n", Unit: "pcs", UnitPrice: decimal.RequireFromString("1.23456")},
		"opening too precise": {Code: "A", Name: "n", Unit: "pcs", OpeningStock: decimal.RequireFromString("0.00001")},
	}
	for name, draft := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.inventory.CreateMaterial(context.Background(), storekeeper, draft)
			if domain.KindOf(err) != domain.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAssignTicket(t *testing.T) {
	h := newHarness(t, workflow.StartPolicyStrict)
	ctx := context.Background()
	tech := domain.Actor{ID: "tech-9", Role: domain.OperatorRoleTechnician}
	ticket, err := h.tickets.CreateTicket(ctx, manager, service.TicketDraft{Kind: domain.TicketKindRepair, EquipmentID: "CONV-1", Title: "Belt slip"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := h.tickets.AssignTicket(ctx, tech, ticket.ID, "someone-else"); domain.KindOf(err) != domain.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	assigned, err := h.tickets.AssignTicket(ctx, tech, ticket.ID, tech.ID)
	if err != nil {
		t.Fatalf("self assign: %v", err)
	}
	if assigned.AssigneeID == nil || *assigned.AssigneeID != tech.ID {
		t.Fatalf("assignee not set: %+v", assigned.AssigneeID)
	}
	if h.events.count(events.EventTicketAssigned) != 1 {
		t.Fatalf("expected one assignment event")
	}

	if _, err := h.tickets.CancelTicket(ctx, manager, ticket.ID, "duplicate"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.tickets.AssignTicket(ctx, manager, ticket.ID, ""); domain.KindOf(err) != domain.KindInvalidTransition {
		t.Fatalf("expected invalid transition on closed ticket, got %v", err)
	}
}
