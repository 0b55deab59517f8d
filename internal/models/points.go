package models

import (
	"fmt"
	"strings"
	"time"
)

// PointEventKind tags the variant of a ledger history entry.
type PointEventKind string

const (
	PointEventAdd    PointEventKind = "add"
	PointEventDecay  PointEventKind = "decay"
	PointEventCredit PointEventKind = "credit"
)

// Valid reports whether the kind is known.
func (k PointEventKind) Valid() bool {
	switch k {
	case PointEventAdd, PointEventDecay, PointEventCredit:
		return true
	default:
		return false
	}
}

// PointEvent is one append-only entry in an employee's points history.
type PointEvent struct {
	ID                   string         `db:"id" json:"id"`
	EmployeeID           string         `db:"employee_id" json:"employee_id"`
	Kind                 PointEventKind `db:"kind" json:"kind"`
	Delta                int            `db:"delta" json:"delta"`
	ContraventionID      *string        `db:"contravention_id" json:"contravention_id,omitempty"`
	TrainingAssignmentID *string        `db:"training_assignment_id" json:"training_assignment_id,omitempty"`
	Reason               string         `db:"reason" json:"reason"`
	OccurredAt           time.Time      `db:"occurred_at" json:"occurred_at"`
}

// Validate enforces the required fields of each event variant.
func (e PointEvent) Validate() error {
	if e.EmployeeID == "" {
		return fmt.Errorf("point event requires an employee")
	}
	if strings.TrimSpace(e.Reason) == "" {
		return fmt.Errorf("point event requires a reason")
	}
	switch e.Kind {
	case PointEventAdd:
		if e.Delta < 0 {
			return fmt.Errorf("add event must not be negative, got %d", e.Delta)
		}
		if e.ContraventionID == nil || *e.ContraventionID == "" {
			return fmt.Errorf("add event requires a contravention")
		}
	case PointEventDecay:
		if e.Delta > 0 {
			return fmt.Errorf("decay event must not be positive, got %d", e.Delta)
		}
	case PointEventCredit:
		if e.Delta > 0 {
			return fmt.Errorf("credit event must not be positive, got %d", e.Delta)
		}
		if e.TrainingAssignmentID == nil || *e.TrainingAssignmentID == "" {
			return fmt.Errorf("credit event requires a training completion")
		}
		if e.ContraventionID != nil {
			return fmt.Errorf("credit event must not reference a contravention")
		}
	default:
		return fmt.Errorf("unknown point event kind %q", e.Kind)
	}
	return nil
}

// EmployeePoints is the running points ledger of one employee.
type EmployeePoints struct {
	EmployeeID          string    `db:"employee_id" json:"employee_id"`
	Total               int       `db:"total" json:"total"`
	CurrentTier         *string   `db:"current_tier" json:"current_tier"`
	CurrentTierLevel    int       `db:"current_tier_level" json:"current_tier_level"`
	LastResetFiscalYear int       `db:"last_reset_fiscal_year" json:"last_reset_fiscal_year"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// SumDeltas returns the total implied by a history.
func SumDeltas(history []PointEvent) int {
	total := 0
	for _, event := range history {
		total += event.Delta
	}
	return total
}

// PointsStatement combines the ledger with its history for read APIs.
type PointsStatement struct {
	Points  EmployeePoints `json:"points"`
	History []PointEvent   `json:"history"`
}
