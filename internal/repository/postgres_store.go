package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres error codes treated as lock or serialization contention.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

type pgReader struct {
	tickets      *ticketRepository
	materials    *materialRepository
	transactions *stockTransactionRepository
	history      *ticketHistoryRepository
}

func newPgReader(db DBTX) pgReader {
	return pgReader{
		tickets:      newTicketRepository(db),
		materials:    newMaterialRepository(db),
		transactions: newStockTransactionRepository(db),
		history:      newTicketHistoryRepository(db),
	}
}

func (r pgReader) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return r.tickets.Get(ctx, id, false)
}

func (r pgReader) ListTickets(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	return r.tickets.List(ctx, filter)
}

func (r pgReader) GetMaterial(ctx context.Context, id string) (*domain.Material, error) {
	return r.materials.Get(ctx, id, false)
}

func (r pgReader) ListMaterials(ctx context.Context, filter MaterialFilter) ([]domain.Material, error) {
	return r.materials.List(ctx, filter)
}

func (r pgReader) GetTransaction(ctx context.Context, id string) (*domain.StockTransaction, error) {
	return r.transactions.Get(ctx, id)
}

func (r pgReader) FindReversal(ctx context.Context, transactionID string) (*domain.StockTransaction, error) {
	return r.transactions.FindReversal(ctx, transactionID)
}

func (r pgReader) ListTransactionsByMaterial(ctx context.Context, materialID string) ([]domain.StockTransaction, error) {
	return r.transactions.ListByMaterial(ctx, materialID)
}

func (r pgReader) ListTransactionsByTicket(ctx context.Context, ticketID string) ([]domain.StockTransaction, error) {
	return r.transactions.ListByTicket(ctx, ticketID)
}

func (r pgReader) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	return r.history.ListByTicket(ctx, ticketID)
}

// PostgresStore implements Store on a pgx pool using row-level locks.
type PostgresStore struct {
	pgReader
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresStore builds a Store. lockTimeout bounds every row-lock wait.
func NewPostgresStore(pool *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{pgReader: newPgReader(pool), pool: pool, lockTimeout: lockTimeout}
}

// WithinTx runs fn in a read-committed transaction and commits when fn
// returns nil.
func (s *PostgresStore) WithinTx(ctx context.Context, fn TxFunc) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapError(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.Background())
		}
	}()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return mapError(err)
		}
	}

	if err = fn(ctx, &pgTx{pgReader: newPgReader(tx), order: NewLockOrder()}); err != nil {
		return mapError(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return mapError(err)
	}
	return nil
}

type pgTx struct {
	pgReader
	order *LockOrder
}

func (t *pgTx) LockTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	if _, err := t.order.Ticket(id); err != nil {
		return nil, err
	}
	return t.tickets.Get(ctx, id, true)
}

func (t *pgTx) LockMaterial(ctx context.Context, id string) (*domain.Material, error) {
	if _, err := t.order.Material(id); err != nil {
		return nil, err
	}
	return t.materials.Get(ctx, id, true)
}

func (t *pgTx) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	return t.tickets.Create(ctx, ticket)
}

func (t *pgTx) SaveTicket(ctx context.Context, ticket *domain.Ticket) error {
	return t.tickets.Update(ctx, ticket)
}

func (t *pgTx) DeleteTicket(ctx context.Context, id string) error {
	return t.tickets.Delete(ctx, id)
}

func (t *pgTx) CreateMaterial(ctx context.Context, material *domain.Material) error {
	return t.materials.Create(ctx, material)
}

func (t *pgTx) SaveMaterial(ctx context.Context, material *domain.Material) error {
	return t.materials.Update(ctx, material)
}

func (t *pgTx) AppendTransaction(ctx context.Context, entry *domain.StockTransaction) error {
	return t.transactions.Append(ctx, entry)
}

func (t *pgTx) AppendHistory(ctx context.Context, entry *domain.TicketHistory) error {
	return t.history.Create(ctx, entry)
}

// mapError translates contention codes into domain.ErrConcurrencyConflict.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, pgErr.Message)
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case "materials_code_key":
			return domain.NewValidationError("code", "material code already exists")
		case "operators_email_key":
			return domain.NewValidationError("email", "email already registered")
		default:
			// A concurrent writer won the race for the same ledger slot or
			// ticket number; retrying observes its result.
			return fmt.Errorf("%w: %s", domain.ErrConcurrencyConflict, pgErr.ConstraintName)
		}
	}
	return err
}

func notFoundOr(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewNotFound(resource, id)
	}
	return mapError(err)
}
