package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/pkg/database"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

type contraventionTypeRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.ContraventionType, error)
	FindByName(ctx context.Context, name string) (*models.ContraventionType, error)
	Create(ctx context.Context, item *models.ContraventionType) error
	Update(ctx context.Context, item *models.ContraventionType) error
}

// ContraventionTypeService maintains the registry of contravention types and their default points.
type ContraventionTypeService struct {
	repo      contraventionTypeRepository
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewContraventionTypeService constructs the registry service.
func NewContraventionTypeService(repo contraventionTypeRepository, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ContraventionTypeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ContraventionTypeService{repo: repo, audit: audit, validator: validate, logger: logger}
	svc.validator.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.ContraventionCategory(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// List returns registered types, optionally only active ones.
func (s *ContraventionTypeService) List(ctx context.Context, activeOnly bool) ([]models.ContraventionType, error) {
	items, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contravention types")
	}
	return items, nil
}

// Get returns one type by name.
func (s *ContraventionTypeService) Get(ctx context.Context, name string) (*models.ContraventionType, error) {
	item, err := s.repo.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contravention type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contravention type")
	}
	return item, nil
}

// Create registers a new type.
func (s *ContraventionTypeService) Create(ctx context.Context, req dto.ContraventionTypeRequest, actorID string) (*models.ContraventionType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	item := &models.ContraventionType{
		Name:          strings.TrimSpace(req.Name),
		Category:      models.ContraventionCategory(strings.ToUpper(req.Category)),
		DefaultPoints: req.DefaultPoints,
		Active:        req.Active == nil || *req.Active,
		Description:   req.Description,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "contravention type already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create contravention type")
	}
	s.emitAudit(ctx, actorID, nil, item)
	return item, nil
}

// Update corrects an existing type. Contraventions already logged keep the points they copied.
func (s *ContraventionTypeService) Update(ctx context.Context, name string, req dto.ContraventionTypeRequest, actorID string) (*models.ContraventionType, error) {
	req.Name = name
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	existing, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	before := *existing

	existing.Category = models.ContraventionCategory(strings.ToUpper(req.Category))
	existing.DefaultPoints = req.DefaultPoints
	if req.Active != nil {
		existing.Active = *req.Active
	}
	if req.Description != nil {
		existing.Description = req.Description
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contravention type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contravention type")
	}
	s.emitAudit(ctx, actorID, &before, existing)
	return existing, nil
}

func (s *ContraventionTypeService) emitAudit(ctx context.Context, actorID string, before, after *models.ContraventionType) {
	log := &models.AuditLog{
		UserID:     optionalString(actorID),
		Action:     models.AuditActionTypeUpsert,
		Resource:   "contravention_type",
		ResourceID: &after.Name,
		NewValues:  marshalAudit(after),
	}
	if before != nil {
		log.OldValues = marshalAudit(before)
	}
	emitAudit(ctx, s.audit, s.logger, "contravention-type-service", log)
}
