package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/contravention-api/internal/dto"
	"github.com/noah-isme/contravention-api/internal/escalation"
	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

type trainingStore interface {
	ListCourses(ctx context.Context) ([]models.TrainingCourse, error)
	GetCourse(ctx context.Context, id string) (*models.TrainingCourse, error)
	CreateCourse(ctx context.Context, course *models.TrainingCourse) error
	CreateAssignment(ctx context.Context, assignment *models.TrainingAssignment) error
	GetAssignment(ctx context.Context, id string) (*models.TrainingAssignment, error)
	FindForCompletion(ctx context.Context, employeeID, courseID string) (*models.TrainingAssignment, error)
	ListAssignments(ctx context.Context, employeeID string) ([]models.TrainingAssignment, error)
}

// TrainingService assigns corrective courses and credits points when they are completed.
type TrainingService struct {
	points      *PointsService
	repo        trainingStore
	employees   employeeReader
	escalations escalationReader
	audit       auditLogger
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTrainingService constructs the training service.
func NewTrainingService(points *PointsService, repo trainingStore, employees employeeReader, escalations escalationReader, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *TrainingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrainingService{
		points:      points,
		repo:        repo,
		employees:   employees,
		escalations: escalations,
		audit:       audit,
		validator:   validate,
		logger:      logger,
	}
}

// ListCourses returns every training course.
func (s *TrainingService) ListCourses(ctx context.Context) ([]models.TrainingCourse, error) {
	courses, err := s.repo.ListCourses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// CreateCourse registers a course and the points its completion credits.
func (s *TrainingService) CreateCourse(ctx context.Context, req dto.CreateCourseRequest) (*models.TrainingCourse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	course := &models.TrainingCourse{Name: strings.TrimSpace(req.Name), PointCredit: req.PointCredit, Active: true}
	if err := s.repo.CreateCourse(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// ListAssignments returns the training assignments of an employee.
func (s *TrainingService) ListAssignments(ctx context.Context, employeeID string) ([]models.TrainingAssignment, error) {
	items, err := s.repo.ListAssignments(ctx, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list training assignments")
	}
	return items, nil
}

// Assign schedules a course for an employee, optionally to satisfy one of their escalations.
func (s *TrainingService) Assign(ctx context.Context, req dto.AssignTrainingRequest, actorID string) (*models.TrainingAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	if _, err := s.employees.FindByID(ctx, req.EmployeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	course, err := s.course(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is inactive")
	}
	if req.EscalationID != nil {
		record, err := s.escalations.GetByID(ctx, *req.EscalationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "escalation not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load escalation")
		}
		if record.EmployeeID != req.EmployeeID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "escalation belongs to another employee")
		}
		if record.Archived() {
			return nil, appErrors.Clone(appErrors.ErrArchived, "escalation was superseded by a recalculation")
		}
	}

	assignment := &models.TrainingAssignment{
		EmployeeID:   req.EmployeeID,
		CourseID:     course.ID,
		EscalationID: req.EscalationID,
		AssignedBy:   actorID,
		DueDate:      req.DueDate,
	}
	if err := s.repo.CreateAssignment(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign training")
	}
	emitAudit(ctx, s.audit, s.logger, "training-service", &models.AuditLog{
		UserID:     optionalString(actorID),
		Action:     models.AuditActionTrainingAssign,
		Resource:   "training_assignment",
		ResourceID: &assignment.ID,
		NewValues:  marshalAudit(assignment),
	})
	return assignment, nil
}

// OnTrainingCompleted credits the oldest uncredited assignment of the course for the employee.
func (s *TrainingService) OnTrainingCompleted(ctx context.Context, req dto.TrainingCompletedRequest) (*models.TrainingCompletion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err)
	}
	assignment, err := s.repo.FindForCompletion(ctx, req.EmployeeID, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no training assignment for employee and course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training assignment")
	}
	return s.complete(ctx, assignment, "")
}

// CompleteAssignment credits the course's points exactly once. Repeated callbacks return the
// assignment unchanged.
func (s *TrainingService) CompleteAssignment(ctx context.Context, assignmentID, actorID string) (*models.TrainingCompletion, error) {
	assignment, err := s.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "training assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load training assignment")
	}
	return s.complete(ctx, assignment, actorID)
}

func (s *TrainingService) complete(ctx context.Context, assignment *models.TrainingAssignment, actorID string) (*models.TrainingCompletion, error) {
	if assignment.PointsCredited {
		return &models.TrainingCompletion{Assignment: assignment}, nil
	}
	course, err := s.course(ctx, assignment.CourseID)
	if err != nil {
		return nil, err
	}

	credited := false
	points, err := s.points.Run(ctx, assignment.EmployeeID, func(ctx context.Context, ledger *Ledger) error {
		credited = false
		claimed, err := ledger.Tx().ClaimTrainingCredit(ctx, assignment.ID, ledger.Now())
		if err != nil || !claimed {
			return err
		}
		if _, err := ledger.Apply(ctx, Entry{
			Kind:                 models.PointEventCredit,
			Delta:                -course.PointCredit,
			Reason:               fmt.Sprintf("training completed: %s", course.Name),
			TrainingAssignmentID: &assignment.ID,
		}); err != nil {
			return err
		}
		if err := s.completeLinkedAction(ctx, ledger, assignment); err != nil {
			return err
		}
		at := ledger.Now()
		assignment.CompletedAt = &at
		credited = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !credited {
		return &models.TrainingCompletion{Assignment: assignment}, nil
	}

	assignment.PointsCredited = true
	emitAudit(ctx, s.audit, s.logger, "training-service", &models.AuditLog{
		UserID:     optionalString(actorID),
		Action:     models.AuditActionTrainingComplete,
		Resource:   "training_assignment",
		ResourceID: &assignment.ID,
		NewValues:  marshalAudit(map[string]interface{}{"course_id": course.ID, "credit": course.PointCredit}),
	})
	return &models.TrainingCompletion{Assignment: assignment, Credited: true, Points: points}, nil
}

// completeLinkedAction ticks the mandatory training action of the escalation the assignment
// was made for, when that record is still active and requires it.
func (s *TrainingService) completeLinkedAction(ctx context.Context, ledger *Ledger, assignment *models.TrainingAssignment) error {
	if assignment.EscalationID == nil {
		return nil
	}
	record, err := ledger.Tx().Escalation(ctx, *assignment.EscalationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if record.Archived() || !record.Requires(escalation.ActionMandatoryTraining) {
		return nil
	}
	_, err = completeAction(ctx, ledger, record, escalation.ActionMandatoryTraining)
	return err
}

func (s *TrainingService) course(ctx context.Context, id string) (*models.TrainingCourse, error) {
	course, err := s.repo.GetCourse(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
