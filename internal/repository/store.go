package repository

import (
	"context"
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	Kind        *domain.TicketKind
	EquipmentID *string
	AssigneeID  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// MaterialFilter captures catalog search parameters.
type MaterialFilter struct {
	SearchTerm *string
	Perishable *bool
	Limit      int
	Offset     int
}

// Reader exposes lookups usable both inside and outside a transaction.
// Lookups return *domain.NotFoundError when the record does not exist.
type Reader interface {
	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	GetMaterial(ctx context.Context, id string) (*domain.Material, error)
	ListMaterials(ctx context.Context, filter MaterialFilter) ([]domain.Material, error)
	GetTransaction(ctx context.Context, id string) (*domain.StockTransaction, error)
	FindReversal(ctx context.Context, transactionID string) (*domain.StockTransaction, error)
	ListTransactionsByMaterial(ctx context.Context, materialID string) ([]domain.StockTransaction, error)
	ListTransactionsByTicket(ctx context.Context, ticketID string) ([]domain.StockTransaction, error)
	ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

// Tx is a unit of work. Locks taken through it are held until the
// transaction commits or rolls back, and must follow LockOrder.
type Tx interface {
	Reader

	// LockTicket acquires the ticket exclusively and returns its current state.
	LockTicket(ctx context.Context, id string) (*domain.Ticket, error)
	// LockMaterial acquires the material exclusively and returns its current state.
	LockMaterial(ctx context.Context, id string) (*domain.Material, error)

	CreateTicket(ctx context.Context, ticket *domain.Ticket) error
	// SaveTicket persists a locked ticket and bumps its version. A stale
	// version yields domain.ErrConcurrencyConflict.
	SaveTicket(ctx context.Context, ticket *domain.Ticket) error
	DeleteTicket(ctx context.Context, id string) error

	CreateMaterial(ctx context.Context, material *domain.Material) error
	SaveMaterial(ctx context.Context, material *domain.Material) error

	AppendTransaction(ctx context.Context, entry *domain.StockTransaction) error
	AppendHistory(ctx context.Context, entry *domain.TicketHistory) error
}

// TxFunc runs inside a transaction. Returning an error rolls it back.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the durable home of tickets, materials and the stock ledger.
type Store interface {
	Reader
	WithinTx(ctx context.Context, fn TxFunc) error
}

// OperatorRepository loads staff accounts for sign-in.
type OperatorRepository interface {
	Create(ctx context.Context, operator *domain.Operator) error
	GetByID(ctx context.Context, id string) (*domain.Operator, error)
	GetByEmail(ctx context.Context, email string) (*domain.Operator, error)
}
