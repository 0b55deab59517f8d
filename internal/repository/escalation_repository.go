package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/contravention-api/internal/models"
)

// EscalationRepository provides read access to escalation records.
type EscalationRepository struct {
	db *sqlx.DB
}

// NewEscalationRepository constructs the repository.
func NewEscalationRepository(db *sqlx.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// GetByID returns one escalation record.
func (r *EscalationRepository) GetByID(ctx context.Context, id string) (*models.Escalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE id = $1`
	var item models.Escalation
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get escalation: %w", err)
	}
	return &item, nil
}

// List returns escalations matching the filter, newest first.
func (r *EscalationRepository) List(ctx context.Context, filter models.EscalationFilter) ([]models.Escalation, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 1)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "archived_at IS NULL")
	}
	if filter.OpenOnly {
		conditions = append(conditions, "completed_at IS NULL")
	}

	base := "FROM escalations"
	if len(conditions) > 0 {
		base += " WHERE " + strings.Join(conditions, " AND ")
	}
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", escalationColumns, base, pageSize, (page-1)*pageSize)

	var items []models.Escalation
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list escalations: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count escalations: %w", err)
	}
	return items, total, nil
}
