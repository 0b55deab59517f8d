package models

import "time"

// TrainingCourse is a corrective course that credits points on completion.
type TrainingCourse struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	PointCredit int       `db:"point_credit" json:"point_credit"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TrainingAssignment links an employee to a course. PointsCredited is set exactly once.
type TrainingAssignment struct {
	ID             string     `db:"id" json:"id"`
	EmployeeID     string     `db:"employee_id" json:"employee_id"`
	CourseID       string     `db:"course_id" json:"course_id"`
	EscalationID   *string    `db:"escalation_id" json:"escalation_id,omitempty"`
	AssignedBy     string     `db:"assigned_by" json:"assigned_by"`
	AssignedAt     time.Time  `db:"assigned_at" json:"assigned_at"`
	DueDate        *time.Time `db:"due_date" json:"due_date,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	PointsCredited bool       `db:"points_credited" json:"points_credited"`
}

// TrainingCompletion is returned by the completion callback. Credited is false when the
// assignment had already been credited.
type TrainingCompletion struct {
	Assignment *TrainingAssignment `json:"assignment"`
	Credited   bool                `json:"credited"`
	Points     *EmployeePoints     `json:"points,omitempty"`
}
