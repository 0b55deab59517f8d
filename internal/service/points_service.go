package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/contravention-api/internal/escalation"
	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/internal/repository"
	"github.com/noah-isme/contravention-api/pkg/config"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
)

// reportsCachePattern matches every cached report invalidated by a ledger mutation.
const reportsCachePattern = "reports:*"

type ledgerStore interface {
	WithEmployeeLock(ctx context.Context, employeeID string, fn func(tx repository.LedgerTx) error) error
	Get(ctx context.Context, employeeID string) (*models.EmployeePoints, error)
	History(ctx context.Context, employeeID string) ([]models.PointEvent, error)
	ListEmployeeIDs(ctx context.Context) ([]string, error)
}

// EscalationNotifier receives escalation events once the transaction producing them committed.
type EscalationNotifier interface {
	Notify(ctx context.Context, events []models.EscalationEvent)
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Entry describes one change to apply to a ledger.
type Entry struct {
	Kind                 models.PointEventKind
	Delta                int
	Reason               string
	ContraventionID      *string
	TrainingAssignmentID *string
}

// PointsService serialises every points change of an employee through one ledger transaction.
type PointsService struct {
	store    ledgerStore
	matrix   *escalation.Matrix
	cfg      config.PointsConfig
	dueDays  int
	notifier EscalationNotifier
	cache    cacheInvalidator
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// PointsServiceOption configures the points service.
type PointsServiceOption func(*PointsService)

// WithEscalationNotifier publishes tier crossings after commit.
func WithEscalationNotifier(notifier EscalationNotifier) PointsServiceOption {
	return func(s *PointsService) {
		s.notifier = notifier
	}
}

// WithReportCache invalidates cached reports after every ledger mutation.
func WithReportCache(cache cacheInvalidator) PointsServiceOption {
	return func(s *PointsService) {
		s.cache = cache
	}
}

// WithPointsMetrics records ledger metrics.
func WithPointsMetrics(metrics *MetricsService) PointsServiceOption {
	return func(s *PointsService) {
		s.metrics = metrics
	}
}

// WithPointsClock overrides the clock used for event timestamps and due dates.
func WithPointsClock(now func() time.Time) PointsServiceOption {
	return func(s *PointsService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPointsService constructs the ledger service.
func NewPointsService(store ledgerStore, matrix *escalation.Matrix, cfg config.PointsConfig, dueDays int, logger *zap.Logger, opts ...PointsServiceOption) *PointsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &PointsService{
		store:   store,
		matrix:  matrix,
		cfg:     cfg,
		dueDays: dueDays,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Matrix exposes the evaluator shared by every ledger.
func (s *PointsService) Matrix() *escalation.Matrix {
	return s.matrix
}

// Run executes op against the employee's locked ledger. op may run more than once when the
// database asks for a retry; events and cache invalidation only happen after the final commit.
func (s *PointsService) Run(ctx context.Context, employeeID string, op func(ctx context.Context, ledger *Ledger) error) (*models.EmployeePoints, error) {
	if strings.TrimSpace(employeeID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "employee id is required")
	}

	start := time.Now()
	var ledger *Ledger
	err := s.store.WithEmployeeLock(ctx, employeeID, func(tx repository.LedgerTx) error {
		ledger = &Ledger{svc: s, tx: tx, now: s.now().UTC()}
		return op(ctx, ledger)
	})
	s.metrics.ObserveLedgerTransaction(err, time.Since(start))
	if err != nil {
		return nil, wrapInternal(err, "failed to update points ledger")
	}

	s.afterCommit(ctx, ledger)
	points := ledger.tx.Points()
	return &points, nil
}

// ApplyDelta changes the total by delta, appending exactly one history entry and
// re-evaluating the tier in the same transaction.
func (s *PointsService) ApplyDelta(ctx context.Context, employeeID string, entry Entry) (*models.EmployeePoints, error) {
	return s.Run(ctx, employeeID, func(ctx context.Context, ledger *Ledger) error {
		_, err := ledger.Apply(ctx, entry)
		return err
	})
}

// Statement returns the ledger and full history. An employee without a ledger has zero points.
func (s *PointsService) Statement(ctx context.Context, employeeID string) (*models.PointsStatement, error) {
	points, err := s.store.Get(ctx, employeeID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load points")
		}
		points = &models.EmployeePoints{EmployeeID: employeeID}
	}
	history, err := s.store.History(ctx, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load points history")
	}
	if history == nil {
		history = []models.PointEvent{}
	}
	return &models.PointsStatement{Points: *points, History: history}, nil
}

func (s *PointsService) afterCommit(ctx context.Context, ledger *Ledger) {
	for _, kind := range ledger.appended {
		s.metrics.RecordPointEvent(kind)
	}
	for _, tier := range ledger.opened {
		s.metrics.RecordEscalationCreated(tier)
	}
	if len(ledger.events) > 0 && s.notifier != nil {
		s.notifier.Notify(ctx, ledger.events)
	}
	if ledger.dirty && s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, reportsCachePattern); err != nil {
			s.logger.Warn("failed to invalidate report cache", zap.String("employee_id", ledger.tx.Points().EmployeeID), zap.Error(err))
		}
	}
}

// Ledger is the view of one employee's points inside a locked transaction.
type Ledger struct {
	svc      *PointsService
	tx       repository.LedgerTx
	now      time.Time
	dirty    bool
	appended []models.PointEventKind
	opened   []string
	events   []models.EscalationEvent
}

// Tx exposes the locked transaction for writes that must commit with the ledger.
func (l *Ledger) Tx() repository.LedgerTx {
	return l.tx
}

// Points returns the ledger as currently staged in the transaction.
func (l *Ledger) Points() models.EmployeePoints {
	return l.tx.Points()
}

// Now is the timestamp shared by every write of the transaction.
func (l *Ledger) Now() time.Time {
	return l.now
}

// Apply appends one history entry and stores the new total and tier. A negative delta is
// clamped at the configured floor and the clamped value is what history records.
func (l *Ledger) Apply(ctx context.Context, entry Entry) (*models.PointEvent, error) {
	current := l.tx.Points()

	delta := entry.Delta
	if delta < 0 && l.svc.cfg.FloorEnabled && current.Total+delta < l.svc.cfg.Floor {
		delta = l.svc.cfg.Floor - current.Total
		if delta > 0 {
			delta = 0
		}
	}

	event := &models.PointEvent{
		EmployeeID:           current.EmployeeID,
		Kind:                 entry.Kind,
		Delta:                delta,
		ContraventionID:      entry.ContraventionID,
		TrainingAssignmentID: entry.TrainingAssignmentID,
		Reason:               strings.TrimSpace(entry.Reason),
		OccurredAt:           l.now,
	}
	if err := event.Validate(); err != nil {
		return nil, appErrors.Invalid(err)
	}
	if err := l.tx.AppendEvent(ctx, event); err != nil {
		return nil, err
	}
	l.dirty = true
	l.appended = append(l.appended, event.Kind)

	total := current.Total + delta
	result := l.svc.matrix.Evaluate(total)
	previousLevel := l.svc.matrix.Level(derefString(current.CurrentTier))
	if err := l.save(ctx, current, total, result); err != nil {
		return nil, err
	}

	if record := escalation.Reconcile(previousLevel, result, total, l.now, l.svc.dueDays); record != nil {
		record.EmployeeID = current.EmployeeID
		if err := l.open(ctx, record, current.CurrentTier); err != nil {
			return nil, err
		}
	}
	return event, nil
}

func (l *Ledger) clampToFloor(total int) int {
	if l.svc.cfg.FloorEnabled && total < l.svc.cfg.Floor {
		return l.svc.cfg.Floor
	}
	return total
}

// MarkReset records that the ledger was handled for fiscal year fy.
func (l *Ledger) MarkReset(ctx context.Context, fy int) error {
	points := l.tx.Points()
	points.LastResetFiscalYear = fy
	points.UpdatedAt = l.now
	if err := l.tx.SavePoints(ctx, points); err != nil {
		return err
	}
	l.dirty = true
	return nil
}

// RecalculationOutcome reports what a recalculation changed for one employee.
type RecalculationOutcome struct {
	Repaired bool
	// Retiered is set when only the stored tier disagreed with the total.
	Retiered bool
	Archived int
	Created  int
}

// Changed reports whether anything was written.
func (o RecalculationOutcome) Changed() bool {
	return o.Repaired || o.Retiered || o.Archived > 0 || o.Created > 0
}

// Recalculate rebuilds the total from history and brings active escalations in line with
// the matrix. Running it again without intervening changes writes nothing.
func (l *Ledger) Recalculate(ctx context.Context) (RecalculationOutcome, error) {
	var outcome RecalculationOutcome

	history, err := l.tx.History(ctx)
	if err != nil {
		return outcome, err
	}
	current := l.tx.Points()
	total := models.SumDeltas(history)
	result := l.svc.matrix.Evaluate(total)

	if total != current.Total {
		outcome.Repaired = true
		l.svc.logger.Warn("points total drifted from history",
			zap.String("employee_id", current.EmployeeID),
			zap.Int("stored", current.Total),
			zap.Int("history", total))
	}
	retiered := derefString(current.CurrentTier) != result.TierName() || current.CurrentTierLevel != result.Level()
	if outcome.Repaired || retiered {
		if err := l.save(ctx, current, total, result); err != nil {
			return outcome, err
		}
		outcome.Retiered = retiered && !outcome.Repaired
		l.dirty = true
	}

	active, err := l.tx.ActiveEscalations(ctx)
	if err != nil {
		return outcome, err
	}
	plan := l.svc.matrix.PlanRecalculation(total, active, l.now, l.svc.dueDays)
	if plan.Empty() {
		return outcome, nil
	}

	var supersededBy *string
	if plan.Create != nil {
		plan.Create.EmployeeID = current.EmployeeID
		if err := l.tx.CreateEscalation(ctx, plan.Create); err != nil {
			return outcome, err
		}
		supersededBy = &plan.Create.ID
		outcome.Created = 1
		l.opened = append(l.opened, plan.Create.Tier)
		if plan.Create.CompletedAt == nil {
			l.events = append(l.events, actionRequiredEvent(plan.Create, l.now))
		}
	}
	for _, id := range plan.Archive {
		if err := l.tx.ArchiveEscalation(ctx, id, supersededBy, l.now); err != nil {
			return outcome, err
		}
		outcome.Archived++
	}
	l.dirty = true
	return outcome, nil
}

func (l *Ledger) save(ctx context.Context, current models.EmployeePoints, total int, result escalation.Result) error {
	next := current
	next.Total = total
	next.CurrentTier = nil
	if name := result.TierName(); name != "" {
		next.CurrentTier = &name
	}
	next.CurrentTierLevel = result.Level()
	next.UpdatedAt = l.now
	return l.tx.SavePoints(ctx, next)
}

// open stores a new escalation record and archives active records it supersedes.
func (l *Ledger) open(ctx context.Context, record *models.Escalation, previousTier *string) error {
	active, err := l.tx.ActiveEscalations(ctx)
	if err != nil {
		return err
	}
	if err := l.tx.CreateEscalation(ctx, record); err != nil {
		return err
	}
	for _, existing := range active {
		if existing.TierLevel < record.TierLevel {
			continue
		}
		if err := l.tx.ArchiveEscalation(ctx, existing.ID, &record.ID, l.now); err != nil {
			return err
		}
	}

	l.opened = append(l.opened, record.Tier)
	l.events = append(l.events, models.EscalationEvent{
		Type:         models.EventTierCrossed,
		EmployeeID:   record.EmployeeID,
		EscalationID: record.ID,
		Tier:         record.Tier,
		PreviousTier: previousTier,
		Points:       record.PointsAtTrigger,
		DueDate:      record.DueDate,
		Actions:      append([]string(nil), record.ActionsRequired...),
		OccurredAt:   l.now,
	}, actionRequiredEvent(record, l.now))
	return nil
}

func actionRequiredEvent(record *models.Escalation, now time.Time) models.EscalationEvent {
	return models.EscalationEvent{
		Type:         models.EventActionRequired,
		EmployeeID:   record.EmployeeID,
		EscalationID: record.ID,
		Tier:         record.Tier,
		Points:       record.PointsAtTrigger,
		DueDate:      record.DueDate,
		Actions:      append([]string(nil), record.ActionsRequired...),
		OccurredAt:   now,
	}
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// wrapInternal keeps typed errors and hides everything else behind an internal error.
func wrapInternal(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
