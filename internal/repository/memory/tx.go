package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

var errNotLocked = errors.New("record not locked by this transaction")

type tx struct {
	store    *Store
	order    *repository.LockOrder
	acquired []string

	tickets          map[string]*domain.Ticket
	createdTickets   map[string]bool
	deletedTickets   map[string]bool
	lockedTickets    map[string]bool
	materials        map[string]*domain.Material
	createdMaterials map[string]bool
	lockedMaterials  map[string]bool
	transactions     []*domain.StockTransaction
	history          []domain.TicketHistory
}

var _ repository.Tx = (*tx)(nil)

func newTx(s *Store) *tx {
	return &tx{
		store:            s,
		order:            repository.NewLockOrder(),
		tickets:          make(map[string]*domain.Ticket),
		createdTickets:   make(map[string]bool),
		deletedTickets:   make(map[string]bool),
		lockedTickets:    make(map[string]bool),
		materials:        make(map[string]*domain.Material),
		createdMaterials: make(map[string]bool),
		lockedMaterials:  make(map[string]bool),
	}
}

func (t *tx) release() {
	for i := len(t.acquired) - 1; i >= 0; i-- {
		t.store.locks.release(t.acquired[i])
	}
	t.acquired = nil
}

func (t *tx) LockTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	fresh, err := t.order.Ticket(id)
	if err != nil {
		return nil, err
	}
	if fresh {
		key := repository.TicketLockKey(id)
		if err := t.store.locks.acquire(ctx, key, t.store.lockTimeout); err != nil {
			return nil, err
		}
		t.acquired = append(t.acquired, key)
	}
	t.lockedTickets[id] = true
	return t.GetTicket(ctx, id)
}

func (t *tx) LockMaterial(ctx context.Context, id string) (*domain.Material, error) {
	fresh, err := t.order.Material(id)
	if err != nil {
		return nil, err
	}
	if fresh {
		key := repository.MaterialLockKey(id)
		if err := t.store.locks.acquire(ctx, key, t.store.lockTimeout); err != nil {
			return nil, err
		}
		t.acquired = append(t.acquired, key)
	}
	t.lockedMaterials[id] = true
	return t.GetMaterial(ctx, id)
}

func (t *tx) CreateTicket(_ context.Context, ticket *domain.Ticket) error {
	if _, err := t.store.GetTicket(context.Background(), ticket.ID); err == nil {
		return conflict("ticket " + ticket.ID + " already exists")
	}
	t.tickets[ticket.ID] = ticket.Clone()
	t.createdTickets[ticket.ID] = true
	return nil
}

func (t *tx) SaveTicket(ctx context.Context, ticket *domain.Ticket) error {
	if !t.lockedTickets[ticket.ID] && !t.createdTickets[ticket.ID] {
		return fmt.Errorf("save ticket %s: %w", ticket.ID, errNotLocked)
	}
	current, err := t.GetTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	if current.Version != ticket.Version {
		return fmt.Errorf("%w: ticket %s version %d is stale", domain.ErrConcurrencyConflict, ticket.ID, ticket.Version)
	}
	ticket.Version++
	t.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (t *tx) DeleteTicket(ctx context.Context, id string) error {
	if !t.lockedTickets[id] {
		return fmt.Errorf("delete ticket %s: %w", id, errNotLocked)
	}
	if _, err := t.GetTicket(ctx, id); err != nil {
		return err
	}
	t.deletedTickets[id] = true
	return nil
}

func (t *tx) CreateMaterial(ctx context.Context, material *domain.Material) error {
	code := strings.ToLower(material.Code)
	for _, staged := range t.materials {
		if strings.ToLower(staged.Code) == code && staged.ID != material.ID {
			return domain.NewValidationError("code", "material code already exists")
		}
	}
	t.store.mu.RLock()
	_, taken := t.store.codes[code]
	t.store.mu.RUnlock()
	if taken {
		return domain.NewValidationError("code", "material code already exists")
	}
	t.materials[material.ID] = material.Clone()
	t.createdMaterials[material.ID] = true
	return nil
}

func (t *tx) SaveMaterial(_ context.Context, material *domain.Material) error {
	if !t.lockedMaterials[material.ID] && !t.createdMaterials[material.ID] {
		return fmt.Errorf("save material %s: %w", material.ID, errNotLocked)
	}
	t.materials[material.ID] = material.Clone()
	return nil
}

func (t *tx) AppendTransaction(ctx context.Context, entry *domain.StockTransaction) error {
	existing, err := t.ListTransactionsByMaterial(ctx, entry.MaterialID)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Sequence == entry.Sequence {
			return conflict(fmt.Sprintf("sequence %d of material %s already written", entry.Sequence, entry.MaterialID))
		}
	}
	if entry.ReversalOf != nil {
		reversal, err := t.FindReversal(ctx, *entry.ReversalOf)
		if err != nil {
			return err
		}
		if reversal != nil {
			return &domain.AlreadyReversedError{TransactionID: *entry.ReversalOf, ReversalID: reversal.ID}
		}
	}
	cp := *entry
	t.transactions = append(t.transactions, &cp)
	return nil
}

func (t *tx) AppendHistory(_ context.Context, entry *domain.TicketHistory) error {
	t.history = append(t.history, *entry)
	return nil
}

func (t *tx) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	if t.deletedTickets[id] {
		return nil, domain.NewNotFound("ticket", id)
	}
	if staged, ok := t.tickets[id]; ok {
		return staged.Clone(), nil
	}
	return t.store.GetTicket(ctx, id)
}

func (t *tx) ListTickets(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	base := t.store.snapshotTickets()
	all := make([]*domain.Ticket, 0, len(base)+len(t.tickets))
	for _, ticket := range base {
		if t.deletedTickets[ticket.ID] {
			continue
		}
		if _, staged := t.tickets[ticket.ID]; staged {
			continue
		}
		all = append(all, ticket)
	}
	for id, ticket := range t.tickets {
		if !t.deletedTickets[id] {
			all = append(all, ticket.Clone())
		}
	}
	return filterTickets(all, filter), nil
}

func (t *tx) GetMaterial(ctx context.Context, id string) (*domain.Material, error) {
	if staged, ok := t.materials[id]; ok {
		return staged.Clone(), nil
	}
	return t.store.GetMaterial(ctx, id)
}

func (t *tx) ListMaterials(_ context.Context, filter repository.MaterialFilter) ([]domain.Material, error) {
	base := t.store.snapshotMaterials()
	all := make([]*domain.Material, 0, len(base)+len(t.materials))
	for _, material := range base {
		if _, staged := t.materials[material.ID]; !staged {
			all = append(all, material)
		}
	}
	for _, material := range t.materials {
		all = append(all, material.Clone())
	}
	return filterMaterials(all, filter), nil
}

func (t *tx) GetTransaction(ctx context.Context, id string) (*domain.StockTransaction, error) {
	for _, entry := range t.transactions {
		if entry.ID == id {
			cp := *entry
			return &cp, nil
		}
	}
	return t.store.GetTransaction(ctx, id)
}

func (t *tx) FindReversal(ctx context.Context, transactionID string) (*domain.StockTransaction, error) {
	for _, entry := range t.transactions {
		if entry.ReversalOf != nil && *entry.ReversalOf == transactionID {
			cp := *entry
			return &cp, nil
		}
	}
	return t.store.FindReversal(ctx, transactionID)
}

func (t *tx) ListTransactionsByMaterial(ctx context.Context, materialID string) ([]domain.StockTransaction, error) {
	result, err := t.store.ListTransactionsByMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	for _, entry := range t.transactions {
		if entry.MaterialID == materialID {
			result = append(result, *entry)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (t *tx) ListTransactionsByTicket(ctx context.Context, ticketID string) ([]domain.StockTransaction, error) {
	result, err := t.store.ListTransactionsByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	for _, entry := range t.transactions {
		if entry.TicketID != nil && *entry.TicketID == ticketID {
			result = append(result, *entry)
		}
	}
	return result, nil
}

func (t *tx) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	result, err := t.store.ListHistory(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	for _, entry := range t.history {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

func conflict(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, msg)
}
