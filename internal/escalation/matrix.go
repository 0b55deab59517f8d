// Package escalation maps accumulated points to escalation tiers.
//
// A Matrix is built once from configuration and is safe for concurrent use:
// it is never mutated after NewMatrix returns.
package escalation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidMatrix is returned for any matrix that fails validation.
var ErrInvalidMatrix = errors.New("invalid escalation matrix")

// Tier is a named, inclusive point range and the actions it requires.
// A nil Max means the range is unbounded above.
type Tier struct {
	Level   int      `json:"level" mapstructure:"-"`
	Name    string   `json:"name" mapstructure:"name"`
	Min     int      `json:"min" mapstructure:"min"`
	Max     *int     `json:"max,omitempty" mapstructure:"max"`
	Actions []string `json:"actions" mapstructure:"actions"`
}

// Contains reports whether points fall in the tier's range.
func (t Tier) Contains(points int) bool {
	if points < t.Min {
		return false
	}
	return t.Max == nil || points <= *t.Max
}

func (t Tier) clone() Tier {
	out := t
	if t.Max != nil {
		upper := *t.Max
		out.Max = &upper
	}
	out.Actions = append([]string(nil), t.Actions...)
	return out
}

// Result is the outcome of evaluating a point total. Tier is nil below the lowest tier.
type Result struct {
	Tier    *Tier    `json:"tier"`
	Actions []string `json:"actions"`
}

// TierName returns the tier name or "" when no tier applies.
func (r Result) TierName() string {
	if r.Tier == nil {
		return ""
	}
	return r.Tier.Name
}

// Level returns the tier ordinal or 0 when no tier applies.
func (r Result) Level() int {
	if r.Tier == nil {
		return 0
	}
	return r.Tier.Level
}

// Matrix is a validated, ordered set of disjoint tiers.
type Matrix struct {
	tiers   []Tier
	byName  map[string]int
	profile string
}

// NewMatrix validates tiers and orders them by range. Levels are assigned 1..n from the
// lowest range upward. Overlapping ranges, an unbounded tier that is not the last one,
// duplicate names and empty or repeated actions are rejected.
func NewMatrix(profile string, tiers []Tier) (*Matrix, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers configured", ErrInvalidMatrix)
	}

	sorted := make([]Tier, len(tiers))
	for i, tier := range tiers {
		sorted[i] = tier.clone()
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	byName := make(map[string]int, len(sorted))
	for i := range sorted {
		tier := &sorted[i]
		tier.Name = strings.TrimSpace(tier.Name)
		if tier.Name == "" {
			return nil, fmt.Errorf("%w: tier %d has no name", ErrInvalidMatrix, i+1)
		}
		if _, dup := byName[tier.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate tier name %q", ErrInvalidMatrix, tier.Name)
		}
		if tier.Min < 0 {
			return nil, fmt.Errorf("%w: tier %q has negative minimum %d", ErrInvalidMatrix, tier.Name, tier.Min)
		}
		if tier.Max != nil && *tier.Max < tier.Min {
			return nil, fmt.Errorf("%w: tier %q maximum %d is below minimum %d", ErrInvalidMatrix, tier.Name, *tier.Max, tier.Min)
		}
		if err := validateActions(tier); err != nil {
			return nil, err
		}
		if i > 0 {
			prev := sorted[i-1]
			if prev.Max == nil {
				return nil, fmt.Errorf("%w: unbounded tier %q overlaps %q", ErrInvalidMatrix, prev.Name, tier.Name)
			}
			if *prev.Max >= tier.Min {
				return nil, fmt.Errorf("%w: tier %q [%d-%d] overlaps %q starting at %d",
					ErrInvalidMatrix, prev.Name, prev.Min, *prev.Max, tier.Name, tier.Min)
			}
		}
		tier.Level = i + 1
		byName[tier.Name] = i
	}

	return &Matrix{tiers: sorted, byName: byName, profile: profile}, nil
}

func validateActions(tier *Tier) error {
	if len(tier.Actions) == 0 {
		return fmt.Errorf("%w: tier %q has no required actions", ErrInvalidMatrix, tier.Name)
	}
	seen := make(map[string]struct{}, len(tier.Actions))
	for i, action := range tier.Actions {
		action = strings.TrimSpace(action)
		if action == "" {
			return fmt.Errorf("%w: tier %q has an empty action", ErrInvalidMatrix, tier.Name)
		}
		if _, dup := seen[action]; dup {
			return fmt.Errorf("%w: tier %q repeats action %q", ErrInvalidMatrix, tier.Name, action)
		}
		seen[action] = struct{}{}
		tier.Actions[i] = action
	}
	return nil
}

// Evaluate maps a point total to its tier. It has no side effects and returns equal
// results for equal inputs.
func (m *Matrix) Evaluate(points int) Result {
	for i := len(m.tiers) - 1; i >= 0; i-- {
		if m.tiers[i].Contains(points) {
			tier := m.tiers[i].clone()
			return Result{Tier: &tier, Actions: append([]string(nil), tier.Actions...)}
		}
	}
	return Result{Actions: []string{}}
}

// Level returns the ordinal of the named tier, or 0 for "" and unknown names.
func (m *Matrix) Level(name string) int {
	if idx, ok := m.byName[name]; ok {
		return m.tiers[idx].Level
	}
	return 0
}

// Tiers returns a copy of the ordered tiers.
func (m *Matrix) Tiers() []Tier {
	out := make([]Tier, len(m.tiers))
	for i, tier := range m.tiers {
		out[i] = tier.clone()
	}
	return out
}

// Profile names the configuration the matrix was loaded from.
func (m *Matrix) Profile() string {
	return m.profile
}
