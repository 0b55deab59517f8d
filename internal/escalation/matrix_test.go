package escalation

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contravention-api/pkg/config"
)

func mustMatrix(t *testing.T, tiers []Tier) *Matrix {
	t.Helper()
	m, err := NewMatrix("test", tiers)
	require.NoError(t, err)
	return m
}

func TestStagesEvaluateBoundaries(t *testing.T) {
	m := mustMatrix(t, StagesTiers())

	cases := []struct {
		points int
		tier   string
		level  int
	}{
		{0, "", 0},
		{3, "", 0},
		{4, "", 0},
		{5, "Stage 1", 1},
		{9, "Stage 1", 1},
		{10, "Stage 2", 2},
		{15, "Stage 2", 2},
		{16, "Stage 3", 3},
		{500, "Stage 3", 3},
	}
	for _, tc := range cases {
		res := m.Evaluate(tc.points)
		assert.Equal(t, tc.tier, res.TierName(), "points=%d", tc.points)
		assert.Equal(t, tc.level, res.Level(), "points=%d", tc.points)
	}
}

func TestStagesThreePointsHasNoTier(t *testing.T) {
	m := mustMatrix(t, StagesTiers())
	res := m.Evaluate(3)
	assert.Nil(t, res.Tier)
	assert.Empty(t, res.Actions)
}

func TestStagesFivePointsActions(t *testing.T) {
	m := mustMatrix(t, StagesTiers())
	res := m.Evaluate(5)
	require.NotNil(t, res.Tier)
	assert.Equal(t, "Stage 1", res.Tier.Name)
	assert.Equal(t, []string{"Notify reporting manager", "Verbal warning"}, res.Actions)
}

func TestMatrixProfileLevels(t *testing.T) {
	m := mustMatrix(t, MatrixTiers())
	assert.Equal(t, "Level 1", m.Evaluate(1).TierName())
	assert.Equal(t, "Level 2", m.Evaluate(3).TierName())
	assert.Equal(t, "Level 3", m.Evaluate(7).TierName())
	assert.Equal(t, "Level 4", m.Evaluate(11).TierName())
	assert.Equal(t, "Level 5", m.Evaluate(12).TierName())
	assert.Equal(t, "", m.Evaluate(0).TierName())
	assert.Equal(t, 5, m.Level("Level 5"))
	assert.Equal(t, 0, m.Level(""))
	assert.Equal(t, 0, m.Level("Stage 9"))
}

func TestNewMatrixRejectsOverlap(t *testing.T) {
	_, err := NewMatrix("test", []Tier{
		{Name: "A", Min: 1, Max: bound(5), Actions: []string{"a"}},
		{Name: "B", Min: 5, Max: bound(9), Actions: []string{"b"}},
	})
	require.ErrorIs(t, err, ErrInvalidMatrix)
	assert.Contains(t, err.Error(), "overlaps")
}

func TestNewMatrixRejectsUnboundedBeforeLast(t *testing.T) {
	_, err := NewMatrix("test", []Tier{
		{Name: "A", Min: 1, Actions: []string{"a"}},
		{Name: "B", Min: 10, Actions: []string{"b"}},
	})
	require.ErrorIs(t, err, ErrInvalidMatrix)
}

func TestNewMatrixRejectsBadTiers(t *testing.T) {
	cases := map[string][]Tier{
		"empty":          nil,
		"no name":        {{Name: " ", Min: 1, Actions: []string{"a"}}},
		"duplicate name": {{Name: "A", Min: 1, Max: bound(2), Actions: []string{"a"}}, {Name: "A", Min: 3, Actions: []string{"a"}}},
		"inverted":       {{Name: "A", Min: 5, Max: bound(2), Actions: []string{"a"}}},
		"negative":       {{Name: "A", Min: -1, Actions: []string{"a"}}},
		"no actions":     {{Name: "A", Min: 1}},
		"repeat action":  {{Name: "A", Min: 1, Actions: []string{"a", "a"}}},
	}
	for name, tiers := range cases {
		_, err := NewMatrix("test", tiers)
		assert.ErrorIs(t, err, ErrInvalidMatrix, name)
	}
}

func TestNewMatrixSortsAndAssignsLevels(t *testing.T) {
	m := mustMatrix(t, []Tier{
		{Name: "High", Min: 10, Actions: []string{"h"}},
		{Name: "Low", Min: 1, Max: bound(9), Actions: []string{"l"}},
	})
	tiers := m.Tiers()
	require.Len(t, tiers, 2)
	assert.Equal(t, "Low", tiers[0].Name)
	assert.Equal(t, 1, tiers[0].Level)
	assert.Equal(t, 2, tiers[1].Level)
}

func TestEvaluateIsTotalAndDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, tiers := range [][]Tier{StagesTiers(), MatrixTiers()} {
		m := mustMatrix(t, tiers)
		for i := 0; i < 2000; i++ {
			points := rng.Intn(64)

			matches := 0
			for _, tier := range m.Tiers() {
				if tier.Contains(points) {
					matches++
				}
			}
			require.LessOrEqual(t, matches, 1, "points=%d matched %d tiers", points, matches)

			first, err := json.Marshal(m.Evaluate(points))
			require.NoError(t, err)
			second, err := json.Marshal(m.Evaluate(points))
			require.NoError(t, err)
			require.Equal(t, string(first), string(second))
			assert.Equal(t, matches == 1, m.Evaluate(points).Tier != nil)
		}
	}
}

func TestEvaluateReturnsCopies(t *testing.T) {
	m := mustMatrix(t, StagesTiers())
	res := m.Evaluate(16)
	res.Actions[0] = "mutated"
	res.Tier.Actions[0] = "mutated"
	assert.Equal(t, ActionNotifyHead, m.Evaluate(16).Actions[0])
}

func TestLoadProfiles(t *testing.T) {
	m, err := Load(config.EscalationConfig{Profile: config.ProfileMatrix})
	require.NoError(t, err)
	assert.Equal(t, config.ProfileMatrix, m.Profile())
	assert.Len(t, m.Tiers(), 5)

	m, err = Load(config.EscalationConfig{Profile: config.ProfileStages})
	require.NoError(t, err)
	assert.Len(t, m.Tiers(), 3)

	_, err = Load(config.EscalationConfig{Profile: "both"})
	assert.ErrorIs(t, err, ErrInvalidMatrix)
}

func TestLoadCustomFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matrix.yaml")
	body := `tiers:
  - name: Watch
    min: 2
    max: 4
    actions: ["Notify reporting manager"]
  - name: Stop
    min: 5
    actions: ["Procurement rights paused"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	m, err := Load(config.EscalationConfig{Profile: config.ProfileCustom, MatrixFile: path})
	require.NoError(t, err)
	assert.Equal(t, "Watch", m.Evaluate(4).TierName())
	assert.Equal(t, "Stop", m.Evaluate(5).TierName())
	assert.Equal(t, "", m.Evaluate(1).TierName())
}

func TestLoadCustomFileOverlapFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matrix.json")
	body := `{"tiers":[{"name":"A","min":1,"max":5,"actions":["a"]},{"name":"B","min":4,"actions":["b"]}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := Load(config.EscalationConfig{Profile: config.ProfileCustom, MatrixFile: path})
	assert.ErrorIs(t, err, ErrInvalidMatrix)
}
