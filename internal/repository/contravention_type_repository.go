package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/contravention-api/internal/models"
)

const contraventionTypeColumns = `name, category, default_points, active, description, created_at, updated_at`

// ContraventionTypeRepository persists the contravention type registry.
type ContraventionTypeRepository struct {
	db *sqlx.DB
}

// NewContraventionTypeRepository constructs the repository.
func NewContraventionTypeRepository(db *sqlx.DB) *ContraventionTypeRepository {
	return &ContraventionTypeRepository{db: db}
}

// List returns registered types, optionally only active ones.
func (r *ContraventionTypeRepository) List(ctx context.Context, activeOnly bool) ([]models.ContraventionType, error) {
	query := `SELECT ` + contraventionTypeColumns + ` FROM contravention_types`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY category, name`
	var types []models.ContraventionType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list contravention types: %w", err)
	}
	return types, nil
}

// FindByName returns a type by its unique name.
func (r *ContraventionTypeRepository) FindByName(ctx context.Context, name string) (*models.ContraventionType, error) {
	query := `SELECT ` + contraventionTypeColumns + ` FROM contravention_types WHERE name = $1`
	var item models.ContraventionType
	if err := r.db.GetContext(ctx, &item, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find contravention type: %w", err)
	}
	return &item, nil
}

// Create inserts a new type.
func (r *ContraventionTypeRepository) Create(ctx context.Context, item *models.ContraventionType) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	const query = `INSERT INTO contravention_types (name, category, default_points, active, description, created_at, updated_at)
VALUES (:name, :category, :default_points, :active, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create contravention type: %w", err)
	}
	return nil
}

// Update applies an administrative correction. Points already copied onto contraventions are untouched.
func (r *ContraventionTypeRepository) Update(ctx context.Context, item *models.ContraventionType) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE contravention_types SET category = :category, default_points = :default_points, active = :active,
description = :description, updated_at = :updated_at WHERE name = :name`
	result, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update contravention type: %w", err)
	}
	return requireRow(result, "update contravention type")
}
