package dto

import "time"

// CreateCourseRequest registers a training course.
type CreateCourseRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	PointCredit int    `json:"pointCredit" validate:"min=0,max=100"`
}

// AssignTrainingRequest assigns a course to an employee, optionally for an escalation.
type AssignTrainingRequest struct {
	EmployeeID   string     `json:"employeeId" validate:"required"`
	CourseID     string     `json:"courseId" validate:"required"`
	EscalationID *string    `json:"escalationId"`
	DueDate      *time.Time `json:"dueDate"`
}

// TrainingCompletedRequest is the completion callback sent by the training provider.
type TrainingCompletedRequest struct {
	EmployeeID string `json:"employeeId" validate:"required"`
	CourseID   string `json:"courseId" validate:"required"`
}
