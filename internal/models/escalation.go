package models

import (
	"time"

	"github.com/lib/pq"
)

// Escalation records a tier reached by an employee and the corrective actions it requires.
type Escalation struct {
	ID               string         `db:"id" json:"id"`
	EmployeeID       string         `db:"employee_id" json:"employee_id"`
	Tier             string         `db:"tier" json:"tier"`
	TierLevel        int            `db:"tier_level" json:"tier_level"`
	PointsAtTrigger  int            `db:"points_at_trigger" json:"points_at_trigger"`
	ActionsRequired  pq.StringArray `db:"actions_required" json:"actions_required"`
	ActionsCompleted pq.StringArray `db:"actions_completed" json:"actions_completed"`
	DueDate          time.Time      `db:"due_date" json:"due_date"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	CompletedAt      *time.Time     `db:"completed_at" json:"completed_at"`
	ArchivedAt       *time.Time     `db:"archived_at" json:"archived_at,omitempty"`
	SupersededBy     *string        `db:"superseded_by" json:"superseded_by,omitempty"`
}

// Archived reports whether the record was superseded by a recalculation.
func (e *Escalation) Archived() bool {
	return e != nil && e.ArchivedAt != nil
}

// Requires reports whether action is one of the verbatim required actions.
func (e *Escalation) Requires(action string) bool {
	for _, required := range e.ActionsRequired {
		if required == action {
			return true
		}
	}
	return false
}

// HasCompleted reports whether action was already completed.
func (e *Escalation) HasCompleted(action string) bool {
	for _, done := range e.ActionsCompleted {
		if done == action {
			return true
		}
	}
	return false
}

// AllActionsCompleted compares required and completed actions as sets.
func (e *Escalation) AllActionsCompleted() bool {
	if len(e.ActionsRequired) == 0 {
		return false
	}
	done := make(map[string]struct{}, len(e.ActionsCompleted))
	for _, action := range e.ActionsCompleted {
		done[action] = struct{}{}
	}
	for _, action := range e.ActionsRequired {
		if _, ok := done[action]; !ok {
			return false
		}
	}
	return true
}

// EscalationFilter allows listing escalation records.
type EscalationFilter struct {
	EmployeeID      string
	OpenOnly        bool
	IncludeArchived bool
	Page            int
	PageSize        int
}

// EscalationEventType names notification payloads emitted by the ledger.
type EscalationEventType string

const (
	EventTierCrossed    EscalationEventType = "tier_crossed"
	EventActionRequired EscalationEventType = "action_required"
)

// EscalationEvent is the payload handed to the notification dispatcher.
type EscalationEvent struct {
	Type         EscalationEventType `json:"type"`
	EmployeeID   string              `json:"employee_id"`
	EscalationID string              `json:"escalation_id"`
	Tier         string              `json:"tier"`
	PreviousTier *string             `json:"previous_tier,omitempty"`
	Points       int                 `json:"points"`
	DueDate      time.Time           `json:"due_date"`
	Actions      []string            `json:"actions"`
	OccurredAt   time.Time           `json:"occurred_at"`
}

// RecalculationError describes a failed reconciliation of one employee.
type RecalculationError struct {
	EmployeeID string `json:"employee_id"`
	Reason     string `json:"reason"`
}

// RecalculationResult summarises an administrative recalculation.
type RecalculationResult struct {
	Employees int                  `json:"employees"`
	Updated   int                  `json:"updated"`
	Archived  int                  `json:"archived"`
	Created   int                  `json:"created"`
	Repaired  int                  `json:"repaired"`
	Errors    []RecalculationError `json:"errors"`
}
