package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

const ticketColumns = `id, number, kind, equipment_id, requester_id, assignee_id, title, description,
        priority, severity, emergency, status, held_from, issuance_ids,
        overhead_cost, external_service_cost,
        labor_cost_snapshot, material_cost_snapshot, overhead_cost_snapshot, external_cost_snapshot,
        total_cost_snapshot, cost_frozen, cost_frozen_at, cost_computed_at,
        final_readings, cancel_reason, version,
        created_at, updated_at, scheduled_at, started_at, completed_at, cancelled_at`

type ticketRepository struct {
	db DBTX
}

func newTicketRepository(db DBTX) *ticketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, number, kind, equipment_id, requester_id, assignee_id, title, description,
            priority, severity, emergency, status, issuance_ids, overhead_cost, external_service_cost,
            version, created_at, updated_at, scheduled_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`
	if _, err := r.db.Exec(ctx, query,
		ticket.ID,
		ticket.Number,
		ticket.Kind,
		ticket.EquipmentID,
		ticket.RequesterID,
		ticket.AssigneeID,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Severity,
		ticket.Emergency,
		ticket.Status,
		nonNilStrings(ticket.IssuanceIDs),
		ticket.OverheadCost,
		ticket.ExternalServiceCost,
		ticket.Version,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.ScheduledAt,
	); err != nil {
		return mapError(err)
	}
	if err := r.saveTasks(ctx, ticket); err != nil {
		return err
	}
	return r.saveLabor(ctx, ticket)
}

// Update writes the ticket when the stored version still matches and bumps it.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assignee_id=$1, title=$2, description=$3, priority=$4, severity=$5,
            status=$6, held_from=$7, issuance_ids=$8, overhead_cost=$9, external_service_cost=$10,
            labor_cost_snapshot=$11, material_cost_snapshot=$12, overhead_cost_snapshot=$13,
            external_cost_snapshot=$14, total_cost_snapshot=$15, cost_frozen=$16, cost_frozen_at=$17,
            cost_computed_at=$18, final_readings=$19, cancel_reason=$20, started_at=$21,
            completed_at=$22, cancelled_at=$23, updated_at=$24, version=version+1
        WHERE id=$25 AND version=$26`
	cost := ticket.Cost
	cmd, err := r.db.Exec(ctx, query,
		ticket.AssigneeID,
		ticket.Title,
		ticket.Description,
		ticket.Priority,
		ticket.Severity,
		ticket.Status,
		ticket.HeldFrom,
		nonNilStrings(ticket.IssuanceIDs),
		ticket.OverheadCost,
		ticket.ExternalServiceCost,
		cost.LaborCost,
		cost.MaterialCost,
		cost.OverheadCost,
		cost.ExternalServiceCost,
		cost.TotalCost,
		cost.Frozen,
		cost.FrozenAt,
		nullTime(cost.ComputedAt),
		ticket.FinalReadings,
		ticket.CancelReason,
		ticket.StartedAt,
		ticket.CompletedAt,
		ticket.CancelledAt,
		ticket.UpdatedAt,
		ticket.ID,
		ticket.Version,
	)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: ticket %s version %d is stale", domain.ErrConcurrencyConflict, ticket.ID, ticket.Version)
	}
	ticket.Version++
	if err := r.saveTasks(ctx, ticket); err != nil {
		return err
	}
	return r.saveLabor(ctx, ticket)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.NewNotFound("ticket", id)
	}
	return nil
}

// Get loads a ticket with its tasks and labor. forUpdate takes the row lock.
func (r *ticketRepository) Get(ctx context.Context, id string, forUpdate bool) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "ticket", id)
	}
	if err := r.loadChildren(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		clauses = append(clauses, fmt.Sprintf("kind=$%d", len(args)))
	}
	if filter.EquipmentID != nil {
		args = append(args, *filter.EquipmentID)
		clauses = append(clauses, fmt.Sprintf("equipment_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(number) LIKE %s)", placeholder, placeholder))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, *ticket)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		if err := r.loadChildren(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *ticketRepository) loadChildren(ctx context.Context, ticket *domain.Ticket) error {
	const taskQuery = `
        SELECT id, ticket_id, sequence, title, required, status, assignee_id, notes, actual_hours,
               due_at, started_at, completed_at
        FROM ticket_tasks WHERE ticket_id=$1 ORDER BY sequence ASC`
	rows, err := r.db.Query(ctx, taskQuery, ticket.ID)
	if err != nil {
		return mapError(err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Task, error) {
		var task domain.Task
		err := row.Scan(
			&task.ID,
			&task.TicketID,
			&task.Sequence,
			&task.Title,
			&task.Required,
			&task.Status,
			&task.AssigneeID,
			&task.Notes,
			&task.ActualHours,
			&task.DueAt,
			&task.StartedAt,
			&task.CompletedAt,
		)
		return task, err
	})
	if err != nil {
		return err
	}
	ticket.Tasks = tasks

	const laborQuery = `
        SELECT id, ticket_id, task_id, technician_id, hours, rate, amount, note, recorded_at
        FROM ticket_labor WHERE ticket_id=$1 ORDER BY recorded_at ASC, id ASC`
	rows, err = r.db.Query(ctx, laborQuery, ticket.ID)
	if err != nil {
		return mapError(err)
	}
	labor, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.LaborEntry, error) {
		var entry domain.LaborEntry
		err := row.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.TaskID,
			&entry.TechnicianID,
			&entry.Hours,
			&entry.Rate,
			&entry.Amount,
			&entry.Note,
			&entry.RecordedAt,
		)
		return entry, err
	})
	if err != nil {
		return err
	}
	ticket.Labor = labor
	return nil
}

func (r *ticketRepository) saveTasks(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO ticket_tasks (id, ticket_id, sequence, title, required, status, assignee_id, notes,
            actual_hours, due_at, started_at, completed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, assignee_id=EXCLUDED.assignee_id,
            notes=EXCLUDED.notes, actual_hours=EXCLUDED.actual_hours, started_at=EXCLUDED.started_at,
            completed_at=EXCLUDED.completed_at`
	for _, task := range ticket.Tasks {
		if _, err := r.db.Exec(ctx, query,
			task.ID,
			ticket.ID,
			task.Sequence,
			task.Title,
			task.Required,
			task.Status,
			task.AssigneeID,
			task.Notes,
			task.ActualHours,
			task.DueAt,
			task.StartedAt,
			task.CompletedAt,
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func (r *ticketRepository) saveLabor(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO ticket_labor (id, ticket_id, task_id, technician_id, hours, rate, amount, note, recorded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (id) DO NOTHING`
	for _, entry := range ticket.Labor {
		if _, err := r.db.Exec(ctx, query,
			entry.ID,
			ticket.ID,
			entry.TaskID,
			entry.TechnicianID,
			entry.Hours,
			entry.Rate,
			entry.Amount,
			entry.Note,
			entry.RecordedAt,
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket     domain.Ticket
		readings   map[string]decimal.Decimal
		computedAt *time.Time
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Number,
		&ticket.Kind,
		&ticket.EquipmentID,
		&ticket.RequesterID,
		&ticket.AssigneeID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Severity,
		&ticket.Emergency,
		&ticket.Status,
		&ticket.HeldFrom,
		&ticket.IssuanceIDs,
		&ticket.OverheadCost,
		&ticket.ExternalServiceCost,
		&ticket.Cost.LaborCost,
		&ticket.Cost.MaterialCost,
		&ticket.Cost.OverheadCost,
		&ticket.Cost.ExternalServiceCost,
		&ticket.Cost.TotalCost,
		&ticket.Cost.Frozen,
		&ticket.Cost.FrozenAt,
		&computedAt,
		&readings,
		&ticket.CancelReason,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ScheduledAt,
		&ticket.StartedAt,
		&ticket.CompletedAt,
		&ticket.CancelledAt,
	); err != nil {
		return nil, err
	}
	if computedAt != nil {
		ticket.Cost.ComputedAt = *computedAt
	}
	ticket.FinalReadings = readings
	return &ticket, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
