package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/contravention-api/internal/models"
)

// ReportRepository runs read-only reporting queries.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Standings returns per-employee totals, tiers and open escalation counts, highest total first.
func (r *ReportRepository) Standings(ctx context.Context, filter models.StandingsFilter) ([]models.Standing, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT e.id AS employee_id, e.employee_number, e.full_name, e.department,
       COALESCE(p.total, 0) AS total, p.current_tier,
       (SELECT COUNT(*) FROM escalations x WHERE x.employee_id = e.id AND x.archived_at IS NULL AND x.completed_at IS NULL) AS open_escalations,
       (SELECT COUNT(*) FROM contraventions c WHERE c.employee_id = e.id AND c.withdrawn_at IS NULL) AS contraventions
FROM employees e
LEFT JOIN employee_points p ON p.employee_id = e.id
WHERE e.active = TRUE`)

	args := make([]interface{}, 0, 2)
	if filter.Department != "" {
		args = append(args, filter.Department)
		builder.WriteString(fmt.Sprintf(" AND e.department = $%d", len(args)))
	}
	if filter.MinPoints != nil {
		args = append(args, *filter.MinPoints)
		builder.WriteString(fmt.Sprintf(" AND COALESCE(p.total, 0) >= $%d", len(args)))
	}
	if filter.TierOnly {
		builder.WriteString(" AND p.current_tier IS NOT NULL")
	}
	builder.WriteString(" ORDER BY total DESC, e.full_name ASC")

	var standings []models.Standing
	if err := r.db.SelectContext(ctx, &standings, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	return standings, nil
}
