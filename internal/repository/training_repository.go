package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/contravention-api/internal/models"
)

const (
	trainingCourseColumns     = `id, name, point_credit, active, created_at, updated_at`
	trainingAssignmentColumns = `id, employee_id, course_id, escalation_id, assigned_by, assigned_at, due_date, completed_at, points_credited`
)

// TrainingRepository persists training courses and assignments.
type TrainingRepository struct {
	db *sqlx.DB
}

// NewTrainingRepository constructs the repository.
func NewTrainingRepository(db *sqlx.DB) *TrainingRepository {
	return &TrainingRepository{db: db}
}

// ListCourses returns the course catalogue.
func (r *TrainingRepository) ListCourses(ctx context.Context) ([]models.TrainingCourse, error) {
	query := `SELECT ` + trainingCourseColumns + ` FROM training_courses ORDER BY name`
	var courses []models.TrainingCourse
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list training courses: %w", err)
	}
	return courses, nil
}

// GetCourse returns one course.
func (r *TrainingRepository) GetCourse(ctx context.Context, id string) (*models.TrainingCourse, error) {
	query := `SELECT ` + trainingCourseColumns + ` FROM training_courses WHERE id = $1`
	var course models.TrainingCourse
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get training course: %w", err)
	}
	return &course, nil
}

// CreateCourse inserts a course.
func (r *TrainingRepository) CreateCourse(ctx context.Context, course *models.TrainingCourse) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO training_courses (id, name, point_credit, active, created_at, updated_at)
VALUES (:id, :name, :point_credit, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create training course: %w", err)
	}
	return nil
}

// CreateAssignment inserts an assignment with points_credited unset.
func (r *TrainingRepository) CreateAssignment(ctx context.Context, assignment *models.TrainingAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	assignment.PointsCredited = false
	const query = `INSERT INTO training_assignments (id, employee_id, course_id, escalation_id, assigned_by, assigned_at, due_date, points_credited)
VALUES (:id, :employee_id, :course_id, :escalation_id, :assigned_by, :assigned_at, :due_date, :points_credited)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create training assignment: %w", err)
	}
	return nil
}

// GetAssignment returns one assignment.
func (r *TrainingRepository) GetAssignment(ctx context.Context, id string) (*models.TrainingAssignment, error) {
	query := `SELECT ` + trainingAssignmentColumns + ` FROM training_assignments WHERE id = $1`
	var assignment models.TrainingAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get training assignment: %w", err)
	}
	return &assignment, nil
}

// FindForCompletion returns the assignment a completion of course by employee applies to.
// Uncredited assignments come first, oldest first.
func (r *TrainingRepository) FindForCompletion(ctx context.Context, employeeID, courseID string) (*models.TrainingAssignment, error) {
	query := `SELECT ` + trainingAssignmentColumns + ` FROM training_assignments
WHERE employee_id = $1 AND course_id = $2
ORDER BY points_credited ASC, assigned_at ASC LIMIT 1`
	var assignment models.TrainingAssignment
	if err := r.db.GetContext(ctx, &assignment, query, employeeID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find training assignment: %w", err)
	}
	return &assignment, nil
}

// ListAssignments returns the assignments of an employee.
func (r *TrainingRepository) ListAssignments(ctx context.Context, employeeID string) ([]models.TrainingAssignment, error) {
	query := `SELECT ` + trainingAssignmentColumns + ` FROM training_assignments WHERE employee_id = $1 ORDER BY assigned_at DESC`
	var assignments []models.TrainingAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, employeeID); err != nil {
		return nil, fmt.Errorf("list training assignments: %w", err)
	}
	return assignments, nil
}
