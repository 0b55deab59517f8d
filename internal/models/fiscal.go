package models

import "time"

// FiscalReset marks a fiscal year whose points reset has started or completed.
type FiscalReset struct {
	FiscalYear     int        `db:"fiscal_year" json:"fiscal_year"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	EmployeesReset int        `db:"employees_reset" json:"employees_reset"`
}

// FiscalResetResult is returned by a reset invocation.
type FiscalResetResult struct {
	FiscalYear     int      `json:"fiscal_year"`
	EmployeesReset int      `json:"employees_reset"`
	AlreadyDone    bool     `json:"already_done"`
	Errors         []string `json:"errors,omitempty"`
}
