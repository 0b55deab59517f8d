package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/contravention-api/internal/fiscal"
	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

type fiscalResetStore interface {
	Get(ctx context.Context, fiscalYear int) (*models.FiscalReset, error)
	Start(ctx context.Context, fiscalYear int, at time.Time) error
	Complete(ctx context.Context, fiscalYear, employeesReset int, at time.Time) error
	AddProgress(ctx context.Context, fiscalYear, employeesReset int) error
}

// FiscalResetService zeroes points carried over from the previous fiscal year.
type FiscalResetService struct {
	points      *PointsService
	markers     fiscalResetStore
	calendar    fiscal.Calendar
	audit       auditLogger
	metrics     *MetricsService
	logger      *zap.Logger
	concurrency int
}

// NewFiscalResetService constructs the reset service.
func NewFiscalResetService(points *PointsService, markers fiscalResetStore, calendar fiscal.Calendar, audit auditLogger, metrics *MetricsService, concurrency int, logger *zap.Logger) *FiscalResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &FiscalResetService{
		points:      points,
		markers:     markers,
		calendar:    calendar,
		audit:       audit,
		metrics:     metrics,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Calendar exposes the fiscal calendar in use.
func (s *FiscalResetService) Calendar() fiscal.Calendar {
	return s.calendar
}

// ResetAtFiscalBoundary resets every ledger for the fiscal year containing now. Each ledger
// gets one decay entry equal to the points it accrued before the year began, so events logged
// after the boundary survive a late run. The year's marker makes repeated calls no-ops, and a
// call after a partial failure only touches the ledgers that were missed.
func (s *FiscalResetService) ResetAtFiscalBoundary(ctx context.Context, now time.Time, actorID string) (*models.FiscalResetResult, error) {
	fy := s.calendar.YearOf(now)
	start := s.calendar.Start(fy)
	result := &models.FiscalResetResult{FiscalYear: fy}

	marker, err := s.markers.Get(ctx, fy)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fiscal reset marker")
	}
	if marker != nil && marker.CompletedAt != nil {
		result.AlreadyDone = true
		return result, nil
	}
	if err := s.markers.Start(ctx, fy, now.UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start fiscal reset")
	}

	ids, err := s.points.store.ListEmployeeIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}

	var mu sync.Mutex
	var group errgroup.Group
	group.SetLimit(s.concurrency)
	for _, id := range ids {
		employeeID := id
		group.Go(func() error {
			reset, err := s.resetEmployee(ctx, employeeID, fy, start)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Warn("fiscal reset failed", zap.String("employee_id", employeeID), zap.Int("fiscal_year", fy), zap.Error(err))
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", employeeID, err))
				return nil
			}
			if reset {
				result.EmployeesReset++
			}
			return nil
		})
	}
	_ = group.Wait()
	sort.Strings(result.Errors)

	if len(result.Errors) == 0 {
		if err := s.markers.Complete(ctx, fy, result.EmployeesReset, now.UTC()); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete fiscal reset")
		}
	} else if err := s.markers.AddProgress(ctx, fy, result.EmployeesReset); err != nil {
		s.logger.Warn("failed to record fiscal reset progress", zap.Int("fiscal_year", fy), zap.Error(err))
	}

	s.metrics.RecordFiscalReset(result.EmployeesReset)
	s.logger.Info("fiscal reset finished",
		zap.Int("fiscal_year", fy),
		zap.Int("employees_reset", result.EmployeesReset),
		zap.Int("failed", len(result.Errors)))
	emitAudit(ctx, s.audit, s.logger, "fiscal-reset", &models.AuditLog{
		UserID:    optionalString(actorID),
		Action:    models.AuditActionFiscalReset,
		Resource:  "fiscal_reset",
		NewValues: marshalAudit(result),
	})
	return result, nil
}

func (s *FiscalResetService) resetEmployee(ctx context.Context, employeeID string, fy int, start time.Time) (bool, error) {
	reset := false
	_, err := s.points.Run(ctx, employeeID, func(ctx context.Context, ledger *Ledger) error {
		reset = false
		current := ledger.Points()
		if current.LastResetFiscalYear >= fy {
			return nil
		}
		history, err := ledger.Tx().History(ctx)
		if err != nil {
			return err
		}
		kept := 0
		for _, event := range history {
			if !event.OccurredAt.Before(start) {
				kept += event.Delta
			}
		}
		// A total can only be lowered here. Without a floor a negative balance carried into
		// the new year stays, since a decay entry never raises a total.
		delta := ledger.clampToFloor(kept) - current.Total
		if delta < 0 {
			if _, err := ledger.Apply(ctx, Entry{
				Kind:   models.PointEventDecay,
				Delta:  delta,
				Reason: fmt.Sprintf("fiscal year %d reset (previous total %d)", fy, current.Total),
			}); err != nil {
				return err
			}
			reset = true
		}
		return ledger.MarkReset(ctx, fy)
	})
	return reset, err
}
