package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/contravention-api/internal/models"
)

// ContraventionRepository reads contraventions and applies workflow updates that do not move points.
// Point-changing writes go through the ledger transaction.
type ContraventionRepository struct {
	db *sqlx.DB
}

// NewContraventionRepository constructs the repository.
func NewContraventionRepository(db *sqlx.DB) *ContraventionRepository {
	return &ContraventionRepository{db: db}
}

// GetByID fetches a contravention by identifier.
func (r *ContraventionRepository) GetByID(ctx context.Context, id string) (*models.Contravention, error) {
	query := `SELECT ` + contraventionColumns + ` FROM contraventions WHERE id = $1`
	var item models.Contravention
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get contravention: %w", err)
	}
	return &item, nil
}

// List returns contraventions matching the filter, newest incident first.
func (r *ContraventionRepository) List(ctx context.Context, filter models.ContraventionFilter) ([]models.Contravention, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)

	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.TypeName != "" {
		args = append(args, filter.TypeName)
		conditions = append(conditions, fmt.Sprintf("type_name = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		conditions = append(conditions, fmt.Sprintf("incident_date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		conditions = append(conditions, fmt.Sprintf("incident_date <= $%d", len(args)))
	}
	if !filter.IncludeWithdrawn {
		conditions = append(conditions, "withdrawn_at IS NULL")
	}

	base := "FROM contraventions"
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY incident_date DESC, created_at DESC LIMIT %d OFFSET %d",
		contraventionColumns, base, pageSize, (page-1)*pageSize)

	var items []models.Contravention
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list contraventions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count contraventions: %w", err)
	}
	return items, total, nil
}

// Transition moves a contravention from expected to the status carried by item, together with
// the workflow columns that step sets. It returns sql.ErrNoRows when the row left expected meanwhile.
func (r *ContraventionRepository) Transition(ctx context.Context, item *models.Contravention, expected models.ContraventionStatus) error {
	item.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(`UPDATE contraventions SET status = :status, type_name = :type_name, incident_date = :incident_date,
description = :description, approved_by = :approved_by, reviewed_by = :reviewed_by, rejection_reason = :rejection_reason,
dispute_note = :dispute_note, attachment_ref = :attachment_ref, updated_at = :updated_at
WHERE id = :id AND status = '%s' AND withdrawn_at IS NULL`, expected)
	result, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("transition contravention: %w", err)
	}
	return requireRow(result, "transition contravention")
}
