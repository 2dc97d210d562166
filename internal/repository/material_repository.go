package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

const materialColumns = `id, code, name, unit, unit_price, current_stock, min_stock_level, max_stock_level,
        perishable, expiry_date, last_sequence, created_at, updated_at`

type materialRepository struct {
	db DBTX
}

func newMaterialRepository(db DBTX) *materialRepository {
	return &materialRepository{db: db}
}

func (r *materialRepository) Create(ctx context.Context, material *domain.Material) error {
	const query = `
        INSERT INTO materials (id, code, name, unit, unit_price, current_stock, min_stock_level, max_stock_level,
            perishable, expiry_date, last_sequence, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err := r.db.Exec(ctx, query,
		material.ID,
		material.Code,
		material.Name,
		material.Unit,
		material.UnitPrice,
		material.CurrentStock,
		material.MinStockLevel,
		nullDecimal(material.MaxStockLevel),
		material.Perishable,
		material.ExpiryDate,
		material.LastSequence,
		material.CreatedAt,
		material.UpdatedAt,
	)
	return mapError(err)
}

// Update writes the cached stock, ledger position and pricing of a locked material.
func (r *materialRepository) Update(ctx context.Context, material *domain.Material) error {
	const query = `
        UPDATE materials SET name=$1, unit=$2, unit_price=$3, current_stock=$4, min_stock_level=$5,
            max_stock_level=$6, perishable=$7, expiry_date=$8, last_sequence=$9, updated_at=$10
        WHERE id=$11`
	cmd, err := r.db.Exec(ctx, query,
		material.Name,
		material.Unit,
		material.UnitPrice,
		material.CurrentStock,
		material.MinStockLevel,
		nullDecimal(material.MaxStockLevel),
		material.Perishable,
		material.ExpiryDate,
		material.LastSequence,
		material.UpdatedAt,
		material.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFound("material", material.ID)
	}
	return nil
}

func (r *materialRepository) Get(ctx context.Context, id string, forUpdate bool) (*domain.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	material, err := scanMaterial(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "material", id)
	}
	return material, nil
}

func (r *materialRepository) List(ctx context.Context, filter MaterialFilter) ([]domain.Material, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(code) LIKE %s OR LOWER(name) LIKE %s)", placeholder, placeholder))
	}
	if filter.Perishable != nil {
		args = append(args, *filter.Perishable)
		clauses = append(clauses, fmt.Sprintf("perishable=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM materials WHERE %s ORDER BY code ASC`,
		materialColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		limit, offset := pageBounds(filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Material, error) {
		material, err := scanMaterial(row)
		if err != nil {
			return domain.Material{}, err
		}
		return *material, nil
	})
}

func scanMaterial(row pgx.Row) (*domain.Material, error) {
	var (
		material domain.Material
		maxLevel decimal.NullDecimal
	)
	if err := row.Scan(
		&material.ID,
		&material.Code,
		&material.Name,
		&material.Unit,
		&material.UnitPrice,
		&material.CurrentStock,
		&material.MinStockLevel,
		&maxLevel,
		&material.Perishable,
		&material.ExpiryDate,
		&material.LastSequence,
		&material.CreatedAt,
		&material.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if maxLevel.Valid {
		level := maxLevel.Decimal
		material.MaxStockLevel = &level
	}
	return &material, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
