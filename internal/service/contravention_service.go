package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

type contraventionStore interface {
	GetByID(ctx context.Context, id string) (*models.Contravention, error)
	List(ctx context.Context, filter models.ContraventionFilter) ([]models.Contravention, int, error)
	Transition(ctx context.Context, item *models.Contravention, expected models.ContraventionStatus) error
}

type employeeReader interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

type contraventionTypeReader interface {
	FindByName(ctx context.Context, name string) (*models.ContraventionType, error)
}

// ContraventionService drives the contravention workflow and its effect on points.
type ContraventionService struct {
	points    *PointsService
	repo      contraventionStore
	employees employeeReader
	types     contraventionTypeReader
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewContraventionService constructs the contravention workflow service.
func NewContraventionService(points *PointsService, repo contraventionStore, employees employeeReader, types contraventionTypeReader, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ContraventionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContraventionService{
		points:    points,
		repo:      repo,
		employees: employees,
		types:     types,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns contraventions with pagination metadata.
func (s *ContraventionService) List(ctx context.Context, query dto.ContraventionQuery) ([]models.Contravention, *models.Pagination, error) {
	filter := models.ContraventionFilter{
		EmployeeID:       query.EmployeeID,
		TypeName:         query.TypeName,
		Statuses:         query.Statuses,
		DateFrom:         query.DateFrom,
		DateTo:           query.DateTo,
		IncludeWithdrawn: query.IncludeWithdrawn,
		Page:             query.Page,
		PageSize:         query.PageSize,
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %s", status))
		}
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contraventions")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns one contravention.
func (s *ContraventionService) Get(ctx context.Context, id string) (*models.Contravention, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contravention not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contravention")
	}
	return item, nil
}

// checkOwner rejects access to a contravention logged against someone other than ownerID.
// An empty ownerID allows every contravention.
func checkOwner(item *models.Contravention, ownerID string) error {
	if ownerID != "" && item.EmployeeID != ownerID {
		return appErrors.Clone(appErrors.ErrForbidden, "contravention belongs to another employee")
	}
	return nil
}

// Create logs a contravention, copies the type's default points and adds them to the
// employee's ledger in the same transaction.
func (s *ContraventionService) Create(ctx context.Context, req dto.CreateContraventionRequest, submitterID string) (*models.ContraventionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	if err := s.checkIncidentDate(req.IncidentDate); err != nil {
		return nil, err
	}
	if err := s.requireActiveEmployee(ctx, req.EmployeeID); err != nil {
		return nil, err
	}
	kind, err := s.requireActiveType(ctx, req.TypeName)
	if err != nil {
		return nil, err
	}

	var created *models.Contravention
	points, err := s.points.Run(ctx, req.EmployeeID, func(ctx context.Context, ledger *Ledger) error {
		item := &models.Contravention{
			EmployeeID:    req.EmployeeID,
			TypeName:      kind.Name,
			Points:        kind.DefaultPoints,
			Status:        models.ContraventionPendingApproval,
			IncidentDate:  req.IncidentDate.UTC(),
			Description:   strings.TrimSpace(req.Description),
			SubmittedBy:   submitterID,
			AttachmentRef: req.AttachmentRef,
			CreatedAt:     ledger.Now(),
			UpdatedAt:     ledger.Now(),
		}
		if err := ledger.Tx().CreateContravention(ctx, item); err != nil {
			return err
		}
		if _, err := ledger.Apply(ctx, Entry{
			Kind:            models.PointEventAdd,
			Delta:           item.Points,
			Reason:          fmt.Sprintf("%s %s", item.Reference, item.TypeName),
			ContraventionID: &item.ID,
		}); err != nil {
			return err
		}
		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     optionalString(submitterID),
		Action:     models.AuditActionContraventionCreate,
		Resource:   "contravention",
		ResourceID: &created.ID,
		NewValues:  marshalAudit(created),
	})
	return &models.ContraventionResult{Contravention: created, Points: points}, nil
}

// Approve moves a contravention awaiting approval to the upload step.
func (s *ContraventionService) Approve(ctx context.Context, id, actorID string) (*models.Contravention, error) {
	return s.transition(ctx, id, actorID, "", models.ContraventionPendingUpload, func(item *models.Contravention) error {
		item.ApprovedBy = optionalString(actorID)
		return nil
	})
}

// Acknowledge records the uploaded acknowledgement and sends the contravention to review.
//
// A non-empty ownerID confines the call to contraventions logged against that employee.
func (s *ContraventionService) Acknowledge(ctx context.Context, id string, req dto.AcknowledgeContraventionRequest, actorID, ownerID string) (*models.Contravention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	return s.transition(ctx, id, actorID, ownerID, models.ContraventionPendingReview, func(item *models.Contravention) error {
		ref := strings.TrimSpace(req.AttachmentRef)
		item.AttachmentRef = &ref
		return nil
	})
}

// Dispute records the employee's objection and sends the contravention to review.
func (s *ContraventionService) Dispute(ctx context.Context, id string, req dto.DisputeContraventionRequest, actorID, ownerID string) (*models.Contravention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	return s.transition(ctx, id, actorID, ownerID, models.ContraventionPendingReview, func(item *models.Contravention) error {
		note := strings.TrimSpace(req.Note)
		item.DisputeNote = &note
		return nil
	})
}

// CompleteReview closes a reviewed contravention.
func (s *ContraventionService) CompleteReview(ctx context.Context, id, actorID string) (*models.Contravention, error) {
	return s.transition(ctx, id, actorID, "", models.ContraventionCompleted, func(item *models.Contravention) error {
		item.ReviewedBy = optionalString(actorID)
		return nil
	})
}

// Reject turns a contravention down. It is allowed from approval and from review.
func (s *ContraventionService) Reject(ctx context.Context, id string, req dto.RejectContraventionRequest, actorID string) (*models.Contravention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	return s.transition(ctx, id, actorID, "", models.ContraventionRejected, func(item *models.Contravention) error {
		reason := strings.TrimSpace(req.Reason)
		item.RejectionReason = &reason
		item.ReviewedBy = optionalString(actorID)
		return nil
	})
}

// ReEdit corrects a rejected contravention and resubmits it for approval. Points already on
// the ledger are left alone; use AdjustPoints to change them.
func (s *ContraventionService) ReEdit(ctx context.Context, id string, req dto.ReEditContraventionRequest, actorID string) (*models.Contravention, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	if req.IncidentDate != nil {
		if err := s.checkIncidentDate(*req.IncidentDate); err != nil {
			return nil, err
		}
	}
	if req.TypeName != nil {
		if _, err := s.requireActiveType(ctx, *req.TypeName); err != nil {
			return nil, err
		}
	}
	return s.transition(ctx, id, actorID, "", models.ContraventionPendingApproval, func(item *models.Contravention) error {
		if req.TypeName != nil {
			item.TypeName = *req.TypeName
		}
		if req.IncidentDate != nil {
			item.IncidentDate = req.IncidentDate.UTC()
		}
		if req.Description != nil {
			description := strings.TrimSpace(*req.Description)
			if description == "" {
				return appErrors.Clone(appErrors.ErrValidation, "description must not be empty")
			}
			item.Description = description
		}
		item.ApprovedBy = nil
		item.ReviewedBy = nil
		item.RejectionReason = nil
		return nil
	})
}

func (s *ContraventionService) transition(ctx context.Context, id, actorID, ownerID string, to models.ContraventionStatus, mutate func(item *models.Contravention) error) (*models.Contravention, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(item, ownerID); err != nil {
		return nil, err
	}
	if item.Withdrawn() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "contravention was withdrawn")
	}
	from := item.Status
	if !from.CanTransition(to) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move contravention from %s to %s", from, to))
	}

	before := *item
	if err := mutate(item); err != nil {
		return nil, err
	}
	item.Status = to
	if err := s.repo.Transition(ctx, item, from); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "contravention changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update contravention")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     optionalString(actorID),
		Action:     models.AuditActionContraventionStatus,
		Resource:   "contravention",
		ResourceID: &item.ID,
		OldValues:  marshalAudit(&before),
		NewValues:  marshalAudit(item),
	})
	return item, nil
}

// AdjustPoints corrects the point value of a contravention. The difference is appended to the
// ledger as a compensating entry; history is never rewritten.
func (s *ContraventionService) AdjustPoints(ctx context.Context, id string, req dto.AdjustPointsRequest, actorID string) (*models.ContraventionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var previous int
	points, err := s.points.Run(ctx, item.EmployeeID, func(ctx context.Context, ledger *Ledger) error {
		current, err := s.lockContravention(ctx, ledger, id)
		if err != nil {
			return err
		}
		if current.Withdrawn() {
			return appErrors.Clone(appErrors.ErrConflict, "contravention was withdrawn")
		}
		previous = current.Points
		item = current
		diff := req.Points - current.Points
		if diff == 0 {
			return nil
		}
		kind := models.PointEventAdd
		if diff < 0 {
			kind = models.PointEventDecay
		}
		if err := ledger.Tx().UpdateContraventionPoints(ctx, id, req.Points, ledger.Now()); err != nil {
			return err
		}
		item.Points = req.Points
		item.UpdatedAt = ledger.Now()
		_, err = ledger.Apply(ctx, Entry{
			Kind:            kind,
			Delta:           diff,
			Reason:          fmt.Sprintf("%s points corrected from %d to %d: %s", current.Reference, previous, req.Points, strings.TrimSpace(req.Reason)),
			ContraventionID: &current.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if previous != req.Points {
		s.emitAudit(ctx, &models.AuditLog{
			UserID:     optionalString(actorID),
			Action:     models.AuditActionContraventionPoints,
			Resource:   "contravention",
			ResourceID: &item.ID,
			OldValues:  marshalAudit(map[string]int{"points": previous}),
			NewValues:  marshalAudit(map[string]interface{}{"points": req.Points, "reason": req.Reason}),
		})
	}
	return &models.ContraventionResult{Contravention: item, Points: points}, nil
}

// Withdraw removes a contravention and takes its points back off the ledger. Withdrawing twice
// changes nothing.
func (s *ContraventionService) Withdraw(ctx context.Context, id, actorID string) (*models.ContraventionResult, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Withdrawn() {
		return &models.ContraventionResult{Contravention: item}, nil
	}

	withdrawn := false
	points, err := s.points.Run(ctx, item.EmployeeID, func(ctx context.Context, ledger *Ledger) error {
		withdrawn = false
		current, err := s.lockContravention(ctx, ledger, id)
		if err != nil {
			return err
		}
		item = current
		if current.Withdrawn() {
			return nil
		}
		at := ledger.Now()
		if err := ledger.Tx().WithdrawContravention(ctx, id, at); err != nil {
			return err
		}
		item.WithdrawnAt = &at
		item.UpdatedAt = at
		if _, err := ledger.Apply(ctx, Entry{
			Kind:            models.PointEventDecay,
			Delta:           -current.Points,
			Reason:          fmt.Sprintf("%s withdrawn", current.Reference),
			ContraventionID: &current.ID,
		}); err != nil {
			return err
		}
		withdrawn = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if withdrawn {
		s.emitAudit(ctx, &models.AuditLog{
			UserID:     optionalString(actorID),
			Action:     models.AuditActionContraventionWithdraw,
			Resource:   "contravention",
			ResourceID: &item.ID,
			OldValues:  marshalAudit(map[string]int{"points": item.Points}),
		})
	}
	return &models.ContraventionResult{Contravention: item, Points: points}, nil
}

func (s *ContraventionService) lockContravention(ctx context.Context, ledger *Ledger, id string) (*models.Contravention, error) {
	current, err := ledger.Tx().Contravention(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contravention not found")
		}
		return nil, err
	}
	return current, nil
}

func (s *ContraventionService) checkIncidentDate(date time.Time) error {
	if date.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "incident date is required")
	}
	if date.After(s.now()) {
		return appErrors.Clone(appErrors.ErrValidation, "incident date must not be in the future")
	}
	return nil
}

func (s *ContraventionService) requireActiveEmployee(ctx context.Context, id string) error {
	employee, err := s.employees.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if !employee.Active {
		return appErrors.Clone(appErrors.ErrValidation, "employee is inactive")
	}
	return nil
}

func (s *ContraventionService) requireActiveType(ctx context.Context, name string) (*models.ContraventionType, error) {
	kind, err := s.types.FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "contravention type not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contravention type")
	}
	if !kind.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveType, fmt.Sprintf("contravention type %s is inactive", kind.Name))
	}
	return kind, nil
}

func (s *ContraventionService) emitAudit(ctx context.Context, log *models.AuditLog) {
	emitAudit(ctx, s.audit, s.logger, "contravention-service", log)
}
