package models

// Standing is one row of the read-only standings report.
type Standing struct {
	EmployeeID      string  `db:"employee_id" json:"employee_id"`
	EmployeeNumber  string  `db:"employee_number" json:"employee_number"`
	FullName        string  `db:"full_name" json:"full_name"`
	Department      *string `db:"department" json:"department,omitempty"`
	Total           int     `db:"total" json:"total"`
	CurrentTier     *string `db:"current_tier" json:"current_tier,omitempty"`
	OpenEscalations int     `db:"open_escalations" json:"open_escalations"`
	Contraventions  int     `db:"contraventions" json:"contraventions"`
}

// StandingsFilter narrows the standings report.
type StandingsFilter struct {
	Department string
	MinPoints  *int
	TierOnly   bool
}
