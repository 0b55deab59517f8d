package models

import (
	"fmt"
	"time"
)

// ContraventionStatus enumerates the workflow states of a contravention.
type ContraventionStatus string

const (
	ContraventionPendingApproval ContraventionStatus = "PENDING_APPROVAL"
	ContraventionPendingUpload   ContraventionStatus = "PENDING_UPLOAD"
	ContraventionPendingReview   ContraventionStatus = "PENDING_REVIEW"
	ContraventionCompleted       ContraventionStatus = "COMPLETED"
	ContraventionRejected        ContraventionStatus = "REJECTED"
)

// ReferencePrefix prefixes every contravention reference number.
const ReferencePrefix = "CONTRA"

var contraventionTransitions = map[ContraventionStatus][]ContraventionStatus{
	ContraventionPendingApproval: {ContraventionPendingUpload, ContraventionRejected},
	ContraventionPendingUpload:   {ContraventionPendingReview},
	ContraventionPendingReview:   {ContraventionCompleted, ContraventionRejected},
	ContraventionRejected:        {ContraventionPendingApproval},
}

// Valid reports whether the status is known.
func (s ContraventionStatus) Valid() bool {
	_, ok := contraventionTransitions[s]
	return ok || s == ContraventionCompleted
}

// CanTransition reports whether moving from s to next is allowed.
// COMPLETED is terminal; REJECTED only re-enters at PENDING_APPROVAL.
func (s ContraventionStatus) CanTransition(next ContraventionStatus) bool {
	for _, allowed := range contraventionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// FormatReference renders the reference number for a sequence within a calendar year.
func FormatReference(year, seq int) string {
	return fmt.Sprintf("%s-%d-%04d", ReferencePrefix, year, seq)
}

// Contravention is a logged procurement policy violation attributed to an employee.
type Contravention struct {
	ID              string              `db:"id" json:"id"`
	Reference       string              `db:"reference" json:"reference"`
	EmployeeID      string              `db:"employee_id" json:"employee_id"`
	TypeName        string              `db:"type_name" json:"type_name"`
	Points          int                 `db:"points" json:"points"`
	Status          ContraventionStatus `db:"status" json:"status"`
	IncidentDate    time.Time           `db:"incident_date" json:"incident_date"`
	Description     string              `db:"description" json:"description"`
	SubmittedBy     string              `db:"submitted_by" json:"submitted_by"`
	ApprovedBy      *string             `db:"approved_by" json:"approved_by,omitempty"`
	ReviewedBy      *string             `db:"reviewed_by" json:"reviewed_by,omitempty"`
	RejectionReason *string             `db:"rejection_reason" json:"rejection_reason,omitempty"`
	DisputeNote     *string             `db:"dispute_note" json:"dispute_note,omitempty"`
	AttachmentRef   *string             `db:"attachment_ref" json:"attachment_ref,omitempty"`
	WithdrawnAt     *time.Time          `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// Withdrawn reports whether the contravention was administratively removed.
func (c *Contravention) Withdrawn() bool {
	return c != nil && c.WithdrawnAt != nil
}

// ContraventionFilter allows listing contraventions.
type ContraventionFilter struct {
	EmployeeID       string
	TypeName         string
	Statuses         []ContraventionStatus
	DateFrom         *time.Time
	DateTo           *time.Time
	IncludeWithdrawn bool
	Page             int
	PageSize         int
}

// ContraventionResult pairs a contravention with the ledger it changed.
type ContraventionResult struct {
	Contravention *Contravention  `json:"contravention"`
	Points        *EmployeePoints `json:"points,omitempty"`
}
