package escalation

import (
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/contravention-api/internal/models"
)

// DueDate returns the deadline for actions of a record created at now.
func DueDate(now time.Time, dueDays int) time.Time {
	return now.AddDate(0, 0, dueDays)
}

// Reconcile returns the escalation record opened by moving from previousLevel to next, or nil.
// A record is opened only when next is strictly higher than previousLevel.
func Reconcile(previousLevel int, next Result, points int, now time.Time, dueDays int) *models.Escalation {
	if next.Tier == nil || next.Tier.Level <= previousLevel {
		return nil
	}
	return newRecord(*next.Tier, points, now, dueDays)
}

func newRecord(tier Tier, points int, now time.Time, dueDays int) *models.Escalation {
	return &models.Escalation{
		Tier:             tier.Name,
		TierLevel:        tier.Level,
		PointsAtTrigger:  points,
		ActionsRequired:  pq.StringArray(append([]string(nil), tier.Actions...)),
		ActionsCompleted: pq.StringArray{},
		DueDate:          DueDate(now, dueDays),
		CreatedAt:        now,
	}
}

// Plan lists the record changes that bring an employee's active escalations in line with the matrix.
type Plan struct {
	// Archive holds ids of active records that no longer match.
	Archive []string
	// Create is a fresh record for the current tier, nil when an active one already matches.
	Create *models.Escalation
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Archive) == 0 && p.Create == nil
}

// PlanRecalculation compares active records, ordered oldest first, with the tier for total.
//
// A record is kept when its tier still exists with the same level and required actions and is
// not above the current tier. Among kept records of the current tier only the newest survives.
// When the current tier has no surviving record a fresh one is planned; actions already
// completed on an archived record of the same tier carry over. Applying the plan and planning
// again yields an empty plan.
func (m *Matrix) PlanRecalculation(total int, active []models.Escalation, now time.Time, dueDays int) Plan {
	current := m.Evaluate(total)
	level := current.Level()

	var plan Plan
	var keep *models.Escalation
	var carry []string
	for i := range active {
		record := &active[i]
		if record.Archived() {
			continue
		}
		if !m.matches(record) || record.TierLevel > level {
			plan.Archive = append(plan.Archive, record.ID)
			if current.Tier != nil && record.Tier == current.Tier.Name {
				carry = append(carry, record.ActionsCompleted...)
			}
			continue
		}
		if record.TierLevel != level {
			continue
		}
		if keep != nil {
			plan.Archive = append(plan.Archive, keep.ID)
			carry = append(carry, keep.ActionsCompleted...)
		}
		keep = record
	}

	if current.Tier != nil && keep == nil {
		record := newRecord(*current.Tier, total, now, dueDays)
		for _, action := range carry {
			if record.Requires(action) && !record.HasCompleted(action) {
				record.ActionsCompleted = append(record.ActionsCompleted, action)
			}
		}
		if record.AllActionsCompleted() {
			completed := now
			record.CompletedAt = &completed
		}
		plan.Create = record
	}
	return plan
}

func (m *Matrix) matches(record *models.Escalation) bool {
	idx, ok := m.byName[record.Tier]
	if !ok {
		return false
	}
	tier := m.tiers[idx]
	if tier.Level != record.TierLevel || len(tier.Actions) != len(record.ActionsRequired) {
		return false
	}
	required := make(map[string]struct{}, len(tier.Actions))
	for _, action := range tier.Actions {
		required[action] = struct{}{}
	}
	for _, action := range record.ActionsRequired {
		if _, ok := required[action]; !ok {
			return false
		}
	}
	return true
}
