package models

import "time"

// Employee is a member of staff that contraventions are logged against.
type Employee struct {
	ID             string    `db:"id" json:"id"`
	EmployeeNumber string    `db:"employee_number" json:"employee_number"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          *string   `db:"email" json:"email,omitempty"`
	Department     *string   `db:"department" json:"department,omitempty"`
	ManagerID      *string   `db:"manager_id" json:"manager_id,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// EmployeeFilter captures filtering criteria for listing employees.
type EmployeeFilter struct {
	Department string
	Active     *bool
	Search     string
	Page       int
	PageSize   int
}
