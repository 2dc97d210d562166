// Package memory provides an in-process implementation of the repository
// contracts. Writes are staged per transaction and applied on commit; keyed
// locks give the same exclusion guarantees as row locks in Postgres.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

// Store is an in-memory repository.Store.
type Store struct {
	mu           sync.RWMutex
	tickets      map[string]*domain.Ticket
	numbers      map[string]string
	materials    map[string]*domain.Material
	codes        map[string]string
	transactions map[string]*domain.StockTransaction
	byMaterial   map[string][]string
	byTicket     map[string][]string
	reversals    map[string]string
	history      map[string][]domain.TicketHistory

	locks       *keyedLocks
	lockTimeout time.Duration
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store. lockTimeout bounds every lock wait;
// zero waits until the context is done.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		tickets:      make(map[string]*domain.Ticket),
		numbers:      make(map[string]string),
		materials:    make(map[string]*domain.Material),
		codes:        make(map[string]string),
		transactions: make(map[string]*domain.StockTransaction),
		byMaterial:   make(map[string][]string),
		byTicket:     make(map[string][]string),
		reversals:    make(map[string]string),
		history:      make(map[string][]domain.TicketHistory),
		locks:        newKeyedLocks(),
		lockTimeout:  lockTimeout,
	}
}

// WithinTx runs fn with a fresh transaction. Staged writes are applied only
// when fn succeeds and ctx is still live.
func (s *Store) WithinTx(ctx context.Context, fn repository.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := newTx(s)
	defer t.release()

	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) GetTicket(_ context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[id]
	if !ok {
		return nil, domain.NewNotFound("ticket", id)
	}
	return ticket.Clone(), nil
}

func (s *Store) ListTickets(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return filterTickets(s.snapshotTickets(), filter), nil
}

func (s *Store) snapshotTickets() []*domain.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*domain.Ticket, 0, len(s.tickets))
	for _, ticket := range s.tickets {
		all = append(all, ticket.Clone())
	}
	return all
}

func (s *Store) GetMaterial(_ context.Context, id string) (*domain.Material, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	material, ok := s.materials[id]
	if !ok {
		return nil, domain.NewNotFound("material", id)
	}
	return material.Clone(), nil
}

func (s *Store) ListMaterials(_ context.Context, filter repository.MaterialFilter) ([]domain.Material, error) {
	return filterMaterials(s.snapshotMaterials(), filter), nil
}

func (s *Store) snapshotMaterials() []*domain.Material {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*domain.Material, 0, len(s.materials))
	for _, material := range s.materials {
		all = append(all, material.Clone())
	}
	return all
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.transactions[id]
	if !ok {
		return nil, domain.NewNotFound("stock transaction", id)
	}
	cp := *entry
	return &cp, nil
}

func (s *Store) FindReversal(_ context.Context, transactionID string) (*domain.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.reversals[transactionID]
	if !ok {
		return nil, nil
	}
	cp := *s.transactions[id]
	return &cp, nil
}

func (s *Store) ListTransactionsByMaterial(_ context.Context, materialID string) ([]domain.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byMaterial[materialID]), nil
}

func (s *Store) ListTransactionsByTicket(_ context.Context, ticketID string) ([]domain.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byTicket[ticketID]), nil
}

func (s *Store) ListHistory(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TicketHistory(nil), s.history[ticketID]...), nil
}

func (s *Store) collect(ids []string) []domain.StockTransaction {
	result := make([]domain.StockTransaction, 0, len(ids))
	for _, id := range ids {
		result = append(result, *s.transactions[id])
	}
	return result
}

// commit re-checks uniqueness under the write lock and applies staged state.
func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range t.createdTickets {
		number := t.tickets[id].Number
		if owner, taken := s.numbers[number]; taken && owner != id {
			return conflict("ticket number " + number + " already used")
		}
	}
	for id := range t.createdMaterials {
		code := strings.ToLower(t.materials[id].Code)
		if owner, taken := s.codes[code]; taken && owner != id {
			return domain.NewValidationError("code", "material code already exists")
		}
	}
	for _, entry := range t.transactions {
		if entry.ReversalOf == nil {
			continue
		}
		if _, taken := s.reversals[*entry.ReversalOf]; taken {
			return conflict("stock transaction " + *entry.ReversalOf + " reversed concurrently")
		}
	}

	for id, ticket := range t.tickets {
		if t.deletedTickets[id] {
			continue
		}
		s.tickets[id] = ticket.Clone()
		s.numbers[ticket.Number] = id
	}
	for id := range t.deletedTickets {
		if ticket, ok := s.tickets[id]; ok {
			delete(s.numbers, ticket.Number)
		}
		delete(s.tickets, id)
	}
	for id, material := range t.materials {
		s.materials[id] = material.Clone()
		s.codes[strings.ToLower(material.Code)] = id
	}
	for _, entry := range t.transactions {
		cp := *entry
		s.transactions[cp.ID] = &cp
		s.byMaterial[cp.MaterialID] = append(s.byMaterial[cp.MaterialID], cp.ID)
		if cp.TicketID != nil {
			s.byTicket[*cp.TicketID] = append(s.byTicket[*cp.TicketID], cp.ID)
		}
		if cp.ReversalOf != nil {
			s.reversals[*cp.ReversalOf] = cp.ID
		}
	}
	for _, entry := range t.history {
		s.history[entry.TicketID] = append(s.history[entry.TicketID], entry)
	}
	return nil
}

func filterTickets(all []*domain.Ticket, filter repository.TicketFilter) []domain.Ticket {
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	matched := make([]domain.Ticket, 0, len(all))
	for _, ticket := range all {
		if filter.Kind != nil && ticket.Kind != *filter.Kind {
			continue
		}
		if filter.EquipmentID != nil && ticket.EquipmentID != *filter.EquipmentID {
			continue
		}
		if filter.AssigneeID != nil && (ticket.AssigneeID == nil || *ticket.AssigneeID != *filter.AssigneeID) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, ticket.Priority) {
			continue
		}
		if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(ticket.Title), search) &&
			!strings.Contains(strings.ToLower(ticket.Number), search) {
			continue
		}
		matched = append(matched, *ticket)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Number > matched[j].Number
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return page(matched, filter.Limit, filter.Offset)
}

func filterMaterials(all []*domain.Material, filter repository.MaterialFilter) []domain.Material {
	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	matched := make([]domain.Material, 0, len(all))
	for _, material := range all {
		if filter.Perishable != nil && material.Perishable != *filter.Perishable {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(material.Code), search) &&
			!strings.Contains(strings.ToLower(material.Name), search) {
			continue
		}
		matched = append(matched, *material)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })
	if filter.Limit <= 0 {
		return matched
	}
	return page(matched, filter.Limit, filter.Offset)
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func containsPriority(priorities []domain.TicketPriority, priority domain.TicketPriority) bool {
	for _, p := range priorities {
		if p == priority {
			return true
		}
	}
	return false
}
