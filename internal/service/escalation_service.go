package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

type escalationReader interface {
	GetByID(ctx context.Context, id string) (*models.Escalation, error)
	List(ctx context.Context, filter models.EscalationFilter) ([]models.Escalation, int, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EscalationService manages escalation records on top of the points ledger.
type EscalationService struct {
	points      *PointsService
	records     escalationReader
	audit       auditLogger
	metrics     *MetricsService
	logger      *zap.Logger
	concurrency int
}

// EscalationServiceOption configures the escalation service.
type EscalationServiceOption func(*EscalationService)

// WithEscalationMetrics records recalculation metrics.
func WithEscalationMetrics(metrics *MetricsService) EscalationServiceOption {
	return func(s *EscalationService) {
		s.metrics = metrics
	}
}

// WithRecalculationConcurrency bounds how many employees are reconciled at once.
func WithRecalculationConcurrency(n int) EscalationServiceOption {
	return func(s *EscalationService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewEscalationService constructs the escalation service.
func NewEscalationService(points *PointsService, records escalationReader, audit auditLogger, logger *zap.Logger, opts ...EscalationServiceOption) *EscalationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &EscalationService{
		points:      points,
		records:     records,
		audit:       audit,
		logger:      logger,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// List returns escalation records with pagination metadata.
func (s *EscalationService) List(ctx context.Context, filter models.EscalationFilter) ([]models.Escalation, *models.Pagination, error) {
	items, total, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list escalations")
	}
	return items, paginate(filter.Page, filter.PageSize, total), nil
}

// Get returns one escalation record.
func (s *EscalationService) Get(ctx context.Context, id string) (*models.Escalation, error) {
	item, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "escalation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load escalation")
	}
	return item, nil
}

// CompleteAction marks one required action done. Completing an action twice is a no-op and the
// record completes once every required action is done.
func (s *EscalationService) CompleteAction(ctx context.Context, escalationID, action, actorID string) (*models.Escalation, error) {
	if strings.TrimSpace(action) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action is required")
	}
	record, err := s.Get(ctx, escalationID)
	if err != nil {
		return nil, err
	}

	var updated *models.Escalation
	changed := false
	_, err = s.points.Run(ctx, record.EmployeeID, func(ctx context.Context, ledger *Ledger) error {
		changed = false
		current, err := ledger.Tx().Escalation(ctx, escalationID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "escalation not found")
			}
			return err
		}
		updated = current
		changed, err = completeAction(ctx, ledger, current, action)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.emitAudit(ctx, &models.AuditLog{
			UserID:     optionalString(actorID),
			Action:     models.AuditActionEscalationAction,
			Resource:   "escalation",
			ResourceID: &updated.ID,
			NewValues:  marshalAudit(map[string]interface{}{"action": action, "completed": updated.CompletedAt != nil}),
		})
	}
	return updated, nil
}

// completeAction applies an action completion to record inside the ledger transaction.
// It reports whether the record changed.
func completeAction(ctx context.Context, ledger *Ledger, record *models.Escalation, action string) (bool, error) {
	if record.Archived() {
		return false, appErrors.Clone(appErrors.ErrArchived, "escalation was superseded by a recalculation")
	}
	if !record.Requires(action) {
		return false, appErrors.Clone(appErrors.ErrUnknownAction, "action "+action+" is not required by this escalation")
	}
	if record.HasCompleted(action) {
		return false, nil
	}
	record.ActionsCompleted = append(record.ActionsCompleted, action)
	if record.CompletedAt == nil && record.AllActionsCompleted() {
		at := ledger.Now()
		record.CompletedAt = &at
	}
	if err := ledger.Tx().UpdateEscalationActions(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

// RecalculateAll reconciles every employee ledger with the matrix. A failing employee is
// reported in the result and never stops the others.
func (s *EscalationService) RecalculateAll(ctx context.Context, actorID string) (*models.RecalculationResult, error) {
	ids, err := s.points.store.ListEmployeeIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}

	result := &models.RecalculationResult{Employees: len(ids), Errors: []models.RecalculationError{}}
	var mu sync.Mutex
	var group errgroup.Group
	group.SetLimit(s.concurrency)
	for _, id := range ids {
		employeeID := id
		group.Go(func() error {
			var outcome RecalculationOutcome
			_, err := s.points.Run(ctx, employeeID, func(ctx context.Context, ledger *Ledger) error {
				var err error
				outcome, err = ledger.Recalculate(ctx)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("recalculation failed", zap.String("employee_id", employeeID), zap.Error(err))
				result.Errors = append(result.Errors, models.RecalculationError{EmployeeID: employeeID, Reason: err.Error()})
				return nil
			}
			if outcome.Changed() {
				result.Updated++
			}
			if outcome.Repaired {
				result.Repaired++
			}
			result.Archived += outcome.Archived
			result.Created += outcome.Created
			return nil
		})
	}
	_ = group.Wait()
	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].EmployeeID < result.Errors[j].EmployeeID })

	s.metrics.RecordRecalculation(result)
	s.logger.Info("escalations recalculated",
		zap.Int("employees", result.Employees),
		zap.Int("updated", result.Updated),
		zap.Int("archived", result.Archived),
		zap.Int("created", result.Created),
		zap.Int("failed", len(result.Errors)))
	s.emitAudit(ctx, &models.AuditLog{
		UserID:    optionalString(actorID),
		Action:    models.AuditActionRecalculate,
		Resource:  "escalation",
		NewValues: marshalAudit(result),
	})
	return result, nil
}

func (s *EscalationService) emitAudit(ctx context.Context, log *models.AuditLog) {
	emitAudit(ctx, s.audit, s.logger, "escalation-service", log)
}

// emitAudit stores an audit row. Failures are logged and never fail the operation.
func emitAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, source string, log *models.AuditLog) {
	if audit == nil || log == nil {
		return
	}
	if log.IPAddress == "" {
		log.IPAddress = "system"
	}
	if log.UserAgent == "" {
		log.UserAgent = source
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to write audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func marshalAudit(value interface{}) []byte {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return raw
}

func optionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func paginate(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
