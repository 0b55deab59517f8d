package dto

import "time"

// CompleteActionRequest names one required action verbatim.
type CompleteActionRequest struct {
	Action string `json:"action" validate:"required"`
}

// FiscalResetRequest optionally pins the instant the reset is evaluated at.
type FiscalResetRequest struct {
	At *time.Time `json:"at"`
}
