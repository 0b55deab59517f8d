package dto

import (
	"time"

	"github.com/noah-isme/contravention-api/internal/models"
)

// CreateContraventionRequest logs a new contravention against an employee.
type CreateContraventionRequest struct {
	EmployeeID    string    `json:"employeeId" validate:"required"`
	TypeName      string    `json:"type" validate:"required,max=120"`
	IncidentDate  time.Time `json:"incidentDate" validate:"required"`
	Description   string    `json:"description" validate:"required,max=4000"`
	AttachmentRef *string   `json:"attachmentRef" validate:"omitempty,max=512"`
}

// AcknowledgeContraventionRequest carries the reference of the uploaded acknowledgement.
type AcknowledgeContraventionRequest struct {
	AttachmentRef string `json:"attachmentRef" validate:"required,max=512"`
}

// DisputeContraventionRequest records the employee's dispute.
type DisputeContraventionRequest struct {
	Note string `json:"note" validate:"required,max=4000"`
}

// RejectContraventionRequest requires a reason for every rejection.
type RejectContraventionRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// ReEditContraventionRequest resubmits a rejected contravention. Omitted fields keep their value.
type ReEditContraventionRequest struct {
	TypeName     *string    `json:"type" validate:"omitempty,max=120"`
	IncidentDate *time.Time `json:"incidentDate"`
	Description  *string    `json:"description" validate:"omitempty,max=4000"`
}

// AdjustPointsRequest corrects the point value of a contravention.
type AdjustPointsRequest struct {
	Points int    `json:"points" validate:"min=0,max=1000"`
	Reason string `json:"reason" validate:"required,max=2000"`
}

// ContraventionQuery mirrors supported listing filters.
type ContraventionQuery struct {
	EmployeeID       string
	TypeName         string
	Statuses         []models.ContraventionStatus
	DateFrom         *time.Time
	DateTo           *time.Time
	IncludeWithdrawn bool
	Page             int
	PageSize         int
}
