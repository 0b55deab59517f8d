package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/pkg/database"
)

const (
	pointsColumns     = `employee_id, total, current_tier, current_tier_level, last_reset_fiscal_year, created_at, updated_at`
	pointEventColumns = `id, employee_id, kind, delta, contravention_id, training_assignment_id, reason, occurred_at`
	escalationColumns = `id, employee_id, tier, tier_level, points_at_trigger, actions_required, actions_completed,
       due_date, created_at, completed_at, archived_at, superseded_by`
	contraventionColumns = `id, reference, employee_id, type_name, points, status, incident_date, description,
       submitted_by, approved_by, reviewed_by, rejection_reason, dispute_note, attachment_ref, withdrawn_at,
       created_at, updated_at`
)

// LedgerTx exposes one employee's ledger inside a transaction holding that employee's row lock.
// Every write made through it commits or rolls back together.
type LedgerTx interface {
	Points() models.EmployeePoints
	SavePoints(ctx context.Context, points models.EmployeePoints) error
	AppendEvent(ctx context.Context, event *models.PointEvent) error
	History(ctx context.Context) ([]models.PointEvent, error)

	ActiveEscalations(ctx context.Context) ([]models.Escalation, error)
	Escalation(ctx context.Context, id string) (*models.Escalation, error)
	CreateEscalation(ctx context.Context, escalation *models.Escalation) error
	ArchiveEscalation(ctx context.Context, id string, supersededBy *string, at time.Time) error
	UpdateEscalationActions(ctx context.Context, escalation *models.Escalation) error

	CreateContravention(ctx context.Context, contravention *models.Contravention) error
	Contravention(ctx context.Context, id string) (*models.Contravention, error)
	UpdateContraventionPoints(ctx context.Context, id string, points int, at time.Time) error
	WithdrawContravention(ctx context.Context, id string, at time.Time) error

	ClaimTrainingCredit(ctx context.Context, assignmentID string, at time.Time) (bool, error)
}

// PointsRepository owns the employee_points ledger and its history.
type PointsRepository struct {
	db      *sqlx.DB
	retries int
}

// NewPointsRepository constructs the repository. retries bounds how often a transaction
// aborted by a serialization failure or deadlock is attempted again.
func NewPointsRepository(db *sqlx.DB, retries int) *PointsRepository {
	if retries < 0 {
		retries = 0
	}
	return &PointsRepository{db: db, retries: retries}
}

// WithEmployeeLock runs fn inside a transaction holding the employee's ledger row lock,
// creating the ledger at zero if it does not exist yet. fn may be invoked more than once
// when the database asks for a retry, so it must not have side effects outside tx.
func (r *PointsRepository) WithEmployeeLock(ctx context.Context, employeeID string, fn func(tx LedgerTx) error) error {
	var err error
	for attempt := 0; attempt <= r.retries; attempt++ {
		err = r.runLocked(ctx, employeeID, fn)
		if err == nil || !database.IsRetryable(err) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}

// ledgerTxOptions runs ledger transactions serializable so concurrent writers fail with 40001
// and are retried instead of interleaving reads of history and escalations.
var ledgerTxOptions = &sql.TxOptions{Isolation: sql.LevelSerializable}

func (r *PointsRepository) runLocked(ctx context.Context, employeeID string, fn func(tx LedgerTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, ledgerTxOptions)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const ensureQuery = `INSERT INTO employee_points (employee_id, total, current_tier_level, last_reset_fiscal_year, created_at, updated_at)
VALUES ($1, 0, 0, 0, $2, $2) ON CONFLICT (employee_id) DO NOTHING`
	if _, err = tx.ExecContext(ctx, ensureQuery, employeeID, now); err != nil {
		return fmt.Errorf("ensure employee ledger: %w", err)
	}

	var points models.EmployeePoints
	lockQuery := `SELECT ` + pointsColumns + ` FROM employee_points WHERE employee_id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &points, lockQuery, employeeID); err != nil {
		return fmt.Errorf("lock employee ledger: %w", err)
	}

	if err = fn(&ledgerTx{tx: tx, points: points}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit employee ledger: %w", err)
	}
	return nil
}

// Get returns the ledger of an employee or sql.ErrNoRows when none was created yet.
func (r *PointsRepository) Get(ctx context.Context, employeeID string) (*models.EmployeePoints, error) {
	query := `SELECT ` + pointsColumns + ` FROM employee_points WHERE employee_id = $1`
	var points models.EmployeePoints
	if err := r.db.GetContext(ctx, &points, query, employeeID); err != nil {
		return nil, err
	}
	return &points, nil
}

// History returns the ordered point events of an employee.
func (r *PointsRepository) History(ctx context.Context, employeeID string) ([]models.PointEvent, error) {
	return selectHistory(ctx, r.db, employeeID)
}

// ListEmployeeIDs returns every employee with a ledger, ordered for stable batching.
func (r *PointsRepository) ListEmployeeIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT employee_id FROM employee_points ORDER BY employee_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list ledger employees: %w", err)
	}
	return ids, nil
}

func selectHistory(ctx context.Context, q sqlx.QueryerContext, employeeID string) ([]models.PointEvent, error) {
	query := `SELECT ` + pointEventColumns + ` FROM point_events WHERE employee_id = $1 ORDER BY seq`
	var events []models.PointEvent
	if err := sqlx.SelectContext(ctx, q, &events, query, employeeID); err != nil {
		return nil, fmt.Errorf("list point events: %w", err)
	}
	return events, nil
}

type ledgerTx struct {
	tx     *sqlx.Tx
	points models.EmployeePoints
}

func (l *ledgerTx) Points() models.EmployeePoints {
	return l.points
}

func (l *ledgerTx) SavePoints(ctx context.Context, points models.EmployeePoints) error {
	points.EmployeeID = l.points.EmployeeID
	if points.UpdatedAt.IsZero() {
		points.UpdatedAt = time.Now().UTC()
	}
	const query = `UPDATE employee_points SET total = :total, current_tier = :current_tier, current_tier_level = :current_tier_level,
last_reset_fiscal_year = :last_reset_fiscal_year, updated_at = :updated_at WHERE employee_id = :employee_id`
	if _, err := l.tx.NamedExecContext(ctx, query, points); err != nil {
		return fmt.Errorf("save employee ledger: %w", err)
	}
	points.CreatedAt = l.points.CreatedAt
	l.points = points
	return nil
}

func (l *ledgerTx) AppendEvent(ctx context.Context, event *models.PointEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	event.EmployeeID = l.points.EmployeeID
	const query = `INSERT INTO point_events (id, employee_id, kind, delta, contravention_id, training_assignment_id, reason, occurred_at)
VALUES (:id, :employee_id, :kind, :delta, :contravention_id, :training_assignment_id, :reason, :occurred_at)`
	if _, err := l.tx.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append point event: %w", err)
	}
	return nil
}

func (l *ledgerTx) History(ctx context.Context) ([]models.PointEvent, error) {
	return selectHistory(ctx, l.tx, l.points.EmployeeID)
}

func (l *ledgerTx) ActiveEscalations(ctx context.Context) ([]models.Escalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE employee_id = $1 AND archived_at IS NULL ORDER BY created_at, id`
	var escalations []models.Escalation
	if err := l.tx.SelectContext(ctx, &escalations, query, l.points.EmployeeID); err != nil {
		return nil, fmt.Errorf("list active escalations: %w", err)
	}
	return escalations, nil
}

func (l *ledgerTx) Escalation(ctx context.Context, id string) (*models.Escalation, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalations WHERE id = $1 AND employee_id = $2`
	var escalation models.Escalation
	if err := l.tx.GetContext(ctx, &escalation, query, id, l.points.EmployeeID); err != nil {
		return nil, err
	}
	return &escalation, nil
}

func (l *ledgerTx) CreateEscalation(ctx context.Context, escalation *models.Escalation) error {
	if escalation.ID == "" {
		escalation.ID = uuid.NewString()
	}
	if escalation.CreatedAt.IsZero() {
		escalation.CreatedAt = time.Now().UTC()
	}
	if escalation.ActionsCompleted == nil {
		escalation.ActionsCompleted = pq.StringArray{}
	}
	escalation.EmployeeID = l.points.EmployeeID
	const query = `INSERT INTO escalations (id, employee_id, tier, tier_level, points_at_trigger, actions_required, actions_completed, due_date, created_at, completed_at)
VALUES (:id, :employee_id, :tier, :tier_level, :points_at_trigger, :actions_required, :actions_completed, :due_date, :created_at, :completed_at)`
	if _, err := l.tx.NamedExecContext(ctx, query, escalation); err != nil {
		return fmt.Errorf("create escalation: %w", err)
	}
	return nil
}

func (l *ledgerTx) ArchiveEscalation(ctx context.Context, id string, supersededBy *string, at time.Time) error {
	const query = `UPDATE escalations SET archived_at = $1, superseded_by = $2 WHERE id = $3 AND employee_id = $4 AND archived_at IS NULL`
	result, err := l.tx.ExecContext(ctx, query, at, supersededBy, id, l.points.EmployeeID)
	if err != nil {
		return fmt.Errorf("archive escalation: %w", err)
	}
	return requireRow(result, "archive escalation")
}

func (l *ledgerTx) UpdateEscalationActions(ctx context.Context, escalation *models.Escalation) error {
	const query = `UPDATE escalations SET actions_completed = $1, completed_at = $2 WHERE id = $3 AND employee_id = $4 AND archived_at IS NULL`
	result, err := l.tx.ExecContext(ctx, query, escalation.ActionsCompleted, escalation.CompletedAt, escalation.ID, l.points.EmployeeID)
	if err != nil {
		return fmt.Errorf("update escalation actions: %w", err)
	}
	return requireRow(result, "update escalation actions")
}

// CreateContravention allocates the next reference number of the creation year and inserts the row.
func (l *ledgerTx) CreateContravention(ctx context.Context, contravention *models.Contravention) error {
	now := time.Now().UTC()
	if contravention.ID == "" {
		contravention.ID = uuid.NewString()
	}
	if contravention.CreatedAt.IsZero() {
		contravention.CreatedAt = now
	}
	if contravention.UpdatedAt.IsZero() {
		contravention.UpdatedAt = contravention.CreatedAt
	}
	if contravention.Status == "" {
		contravention.Status = models.ContraventionPendingApproval
	}
	contravention.EmployeeID = l.points.EmployeeID

	year := contravention.CreatedAt.Year()
	const seqQuery = `INSERT INTO contravention_sequences (year, last_seq) VALUES ($1, 1)
ON CONFLICT (year) DO UPDATE SET last_seq = contravention_sequences.last_seq + 1 RETURNING last_seq`
	var seq int
	if err := l.tx.GetContext(ctx, &seq, seqQuery, year); err != nil {
		return fmt.Errorf("allocate contravention reference: %w", err)
	}
	contravention.Reference = models.FormatReference(year, seq)

	const query = `INSERT INTO contraventions (id, reference, employee_id, type_name, points, status, incident_date, description,
submitted_by, attachment_ref, created_at, updated_at)
VALUES (:id, :reference, :employee_id, :type_name, :points, :status, :incident_date, :description,
:submitted_by, :attachment_ref, :created_at, :updated_at)`
	if _, err := l.tx.NamedExecContext(ctx, query, contravention); err != nil {
		return fmt.Errorf("create contravention: %w", err)
	}
	return nil
}

func (l *ledgerTx) Contravention(ctx context.Context, id string) (*models.Contravention, error) {
	query := `SELECT ` + contraventionColumns + ` FROM contraventions WHERE id = $1 AND employee_id = $2 FOR UPDATE`
	var contravention models.Contravention
	if err := l.tx.GetContext(ctx, &contravention, query, id, l.points.EmployeeID); err != nil {
		return nil, err
	}
	return &contravention, nil
}

func (l *ledgerTx) UpdateContraventionPoints(ctx context.Context, id string, points int, at time.Time) error {
	const query = `UPDATE contraventions SET points = $1, updated_at = $2 WHERE id = $3 AND withdrawn_at IS NULL`
	result, err := l.tx.ExecContext(ctx, query, points, at, id)
	if err != nil {
		return fmt.Errorf("update contravention points: %w", err)
	}
	return requireRow(result, "update contravention points")
}

func (l *ledgerTx) WithdrawContravention(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE contraventions SET withdrawn_at = $1, updated_at = $1 WHERE id = $2 AND withdrawn_at IS NULL`
	result, err := l.tx.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("withdraw contravention: %w", err)
	}
	return requireRow(result, "withdraw contravention")
}

// ClaimTrainingCredit flips points_credited on the assignment. It reports false when the
// credit was already claimed, which callers treat as a completed no-op.
func (l *ledgerTx) ClaimTrainingCredit(ctx context.Context, assignmentID string, at time.Time) (bool, error) {
	const query = `UPDATE training_assignments SET points_credited = TRUE, completed_at = COALESCE(completed_at, $1)
WHERE id = $2 AND employee_id = $3 AND points_credited = FALSE`
	result, err := l.tx.ExecContext(ctx, query, at, assignmentID, l.points.EmployeeID)
	if err != nil {
		return false, fmt.Errorf("claim training credit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check training credit rows: %w", err)
	}
	return rows == 1, nil
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
