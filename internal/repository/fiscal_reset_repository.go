package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/contravention-api/internal/models"
)

// FiscalResetRepository persists the per-fiscal-year reset marker.
type FiscalResetRepository struct {
	db *sqlx.DB
}

// NewFiscalResetRepository constructs the repository.
func NewFiscalResetRepository(db *sqlx.DB) *FiscalResetRepository {
	return &FiscalResetRepository{db: db}
}

// Get returns the marker for fiscalYear or sql.ErrNoRows.
func (r *FiscalResetRepository) Get(ctx context.Context, fiscalYear int) (*models.FiscalReset, error) {
	const query = `SELECT fiscal_year, started_at, completed_at, employees_reset FROM fiscal_resets WHERE fiscal_year = $1`
	var marker models.FiscalReset
	if err := r.db.GetContext(ctx, &marker, query, fiscalYear); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get fiscal reset: %w", err)
	}
	return &marker, nil
}

// Start records that a reset for fiscalYear began. Calling it again keeps the first start time.
func (r *FiscalResetRepository) Start(ctx context.Context, fiscalYear int, at time.Time) error {
	const query = `INSERT INTO fiscal_resets (fiscal_year, started_at, employees_reset) VALUES ($1, $2, 0)
ON CONFLICT (fiscal_year) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, fiscalYear, at); err != nil {
		return fmt.Errorf("start fiscal reset: %w", err)
	}
	return nil
}

// Complete marks the reset finished and adds employeesReset to the running count.
func (r *FiscalResetRepository) Complete(ctx context.Context, fiscalYear, employeesReset int, at time.Time) error {
	const query = `UPDATE fiscal_resets SET completed_at = $1, employees_reset = employees_reset + $2
WHERE fiscal_year = $3 AND completed_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, at, employeesReset, fiscalYear)
	if err != nil {
		return fmt.Errorf("complete fiscal reset: %w", err)
	}
	return requireRow(result, "complete fiscal reset")
}

// AddProgress records employees reset by an invocation that did not finish.
func (r *FiscalResetRepository) AddProgress(ctx context.Context, fiscalYear, employeesReset int) error {
	const query = `UPDATE fiscal_resets SET employees_reset = employees_reset + $1 WHERE fiscal_year = $2`
	if _, err := r.db.ExecContext(ctx, query, employeesReset, fiscalYear); err != nil {
		return fmt.Errorf("record fiscal reset progress: %w", err)
	}
	return nil
}
