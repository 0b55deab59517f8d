package dto

// ContraventionTypeRequest creates or corrects a contravention type.
type ContraventionTypeRequest struct {
	Name          string  `json:"name" validate:"required,max=120"`
	Category      string  `json:"category" validate:"required,category"`
	DefaultPoints int     `json:"defaultPoints" validate:"min=0,max=1000"`
	Active        *bool   `json:"active"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
}

// CreateEmployeeRequest registers an employee.
type CreateEmployeeRequest struct {
	EmployeeNumber string  `json:"employeeNumber" validate:"required,max=64"`
	FullName       string  `json:"fullName" validate:"required,max=200"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Department     *string `json:"department" validate:"omitempty,max=120"`
	ManagerID      *string `json:"managerId"`
}
