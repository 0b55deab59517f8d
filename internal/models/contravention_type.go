package models

import "time"

// ContraventionCategory groups contravention types.
type ContraventionCategory string

const (
	CategoryPurchasing    ContraventionCategory = "PURCHASING"
	CategoryApproval      ContraventionCategory = "APPROVAL"
	CategoryDocumentation ContraventionCategory = "DOCUMENTATION"
	CategoryVendor        ContraventionCategory = "VENDOR"
	CategoryConduct       ContraventionCategory = "CONDUCT"
	CategoryOther         ContraventionCategory = "OTHER"
)

// Valid reports whether the category is one of the known values.
func (c ContraventionCategory) Valid() bool {
	switch c {
	case CategoryPurchasing, CategoryApproval, CategoryDocumentation, CategoryVendor, CategoryConduct, CategoryOther:
		return true
	default:
		return false
	}
}

// ContraventionType maps an incident category to its default point value.
type ContraventionType struct {
	Name          string                `db:"name" json:"name"`
	Category      ContraventionCategory `db:"category" json:"category"`
	DefaultPoints int                   `db:"default_points" json:"default_points"`
	Active        bool                  `db:"active" json:"active"`
	Description   *string               `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time             `db:"updated_at" json:"updated_at"`
}
