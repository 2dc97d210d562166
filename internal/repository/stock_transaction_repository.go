package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

const stockTransactionColumns = `id, material_id, sequence, type, delta, resulting_stock, unit_price, total_value,
        ticket_id, task_id, actor_id, reason, reversal_of, created_at`

type stockTransactionRepository struct {
	db DBTX
}

func newStockTransactionRepository(db DBTX) *stockTransactionRepository {
	return &stockTransactionRepository{db: db}
}

// Append inserts a ledger entry. Entries are never updated or deleted.
func (r *stockTransactionRepository) Append(ctx context.Context, entry *domain.StockTransaction) error {
	const query = `
        INSERT INTO stock_transactions (id, material_id, sequence, type, delta, resulting_stock, unit_price,
            total_value, ticket_id, task_id, actor_id, reason, reversal_of, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.MaterialID,
		entry.Sequence,
		entry.Type,
		entry.Delta,
		entry.ResultingStock,
		entry.UnitPrice,
		entry.TotalValue,
		entry.TicketID,
		entry.TaskID,
		entry.ActorID,
		entry.Reason,
		entry.ReversalOf,
		entry.CreatedAt,
	)
	return mapError(err)
}

func (r *stockTransactionRepository) Get(ctx context.Context, id string) (*domain.StockTransaction, error) {
	query := `SELECT ` + stockTransactionColumns + ` FROM stock_transactions WHERE id=$1`
	entry, err := scanStockTransaction(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "stock transaction", id)
	}
	return entry, nil
}

// FindReversal returns the entry reversing transactionID, or nil when none exists.
func (r *stockTransactionRepository) FindReversal(ctx context.Context, transactionID string) (*domain.StockTransaction, error) {
	query := `SELECT ` + stockTransactionColumns + ` FROM stock_transactions WHERE reversal_of=$1`
	entry, err := scanStockTransaction(r.db.QueryRow(ctx, query, transactionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return entry, nil
}

func (r *stockTransactionRepository) ListByMaterial(ctx context.Context, materialID string) ([]domain.StockTransaction, error) {
	query := `SELECT ` + stockTransactionColumns + ` FROM stock_transactions WHERE material_id=$1 ORDER BY sequence ASC`
	return r.list(ctx, query, materialID)
}

func (r *stockTransactionRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.StockTransaction, error) {
	query := `SELECT ` + stockTransactionColumns + ` FROM stock_transactions WHERE ticket_id=$1 ORDER BY created_at ASC, sequence ASC`
	return r.list(ctx, query, ticketID)
}

func (r *stockTransactionRepository) list(ctx context.Context, query string, arg any) ([]domain.StockTransaction, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, mapError(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StockTransaction, error) {
		entry, err := scanStockTransaction(row)
		if err != nil {
			return domain.StockTransaction{}, err
		}
		return *entry, nil
	})
}

func scanStockTransaction(row pgx.Row) (*domain.StockTransaction, error) {
	var entry domain.StockTransaction
	if err := row.Scan(
		&entry.ID,
		&entry.MaterialID,
		&entry.Sequence,
		&entry.Type,
		&entry.Delta,
		&entry.ResultingStock,
		&entry.UnitPrice,
		&entry.TotalValue,
		&entry.TicketID,
		&entry.TaskID,
		&entry.ActorID,
		&entry.Reason,
		&entry.ReversalOf,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}
