// Package fiscal computes fiscal year boundaries.
package fiscal

import (
	"fmt"
	"time"

	"github.com/noah-isme/contravention-api/pkg/config"
)

// Calendar describes a fiscal year that starts on the same month and day every year.
// Fiscal years are labelled by the calendar year in which they start, so with an April
// start, 2026-03-31 belongs to fiscal year 2025 and 2026-04-01 to fiscal year 2026.
type Calendar struct {
	StartMonth time.Month
	StartDay   int
	Location   *time.Location
}

// NewCalendar builds a calendar from configuration.
func NewCalendar(cfg config.FiscalConfig) (Calendar, error) {
	if cfg.StartMonth < 1 || cfg.StartMonth > 12 {
		return Calendar{}, fmt.Errorf("fiscal start month %d out of range", cfg.StartMonth)
	}
	if cfg.StartDay < 1 || cfg.StartDay > 28 {
		return Calendar{}, fmt.Errorf("fiscal start day %d out of range", cfg.StartDay)
	}
	return Calendar{StartMonth: time.Month(cfg.StartMonth), StartDay: cfg.StartDay, Location: time.UTC}, nil
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Start returns the first instant of fiscal year fy.
func (c Calendar) Start(fy int) time.Time {
	return time.Date(fy, c.StartMonth, c.StartDay, 0, 0, 0, 0, c.loc())
}

// YearOf returns the fiscal year containing t.
func (c Calendar) YearOf(t time.Time) int {
	t = t.In(c.loc())
	year := t.Year()
	if t.Before(c.Start(year)) {
		return year - 1
	}
	return year
}

// Period returns the half-open range [start, end) of the fiscal year containing t.
func (c Calendar) Period(t time.Time) (time.Time, time.Time) {
	fy := c.YearOf(t)
	return c.Start(fy), c.Start(fy + 1)
}
