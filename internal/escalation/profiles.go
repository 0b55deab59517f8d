package escalation

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/noah-isme/contravention-api/pkg/config"
)

const (
	ActionNotifyManager     = "Notify reporting manager"
	ActionVerbalWarning     = "Verbal warning"
	ActionWrittenWarning    = "Written warning"
	ActionMandatoryTraining = "Complete mandatory procurement training"
	ActionNotifyHead        = "Notify head of department"
	ActionReviewMeeting     = "Performance review meeting"
	ActionNotifyCompliance  = "Notify procurement compliance"
	ActionRightsPaused      = "Procurement rights paused"
)

func bound(n int) *int { return &n }

// StagesTiers is the three-stage ladder: 5-9, 10-15, 16+.
func StagesTiers() []Tier {
	return []Tier{
		{Name: "Stage 1", Min: 5, Max: bound(9), Actions: []string{ActionNotifyManager, ActionVerbalWarning}},
		{Name: "Stage 2", Min: 10, Max: bound(15), Actions: []string{ActionNotifyManager, ActionMandatoryTraining}},
		{Name: "Stage 3", Min: 16, Actions: []string{ActionNotifyHead, ActionRightsPaused}},
	}
}

// MatrixTiers is the five-level ladder: 1-2, 3-4, 5-7, 8-11, 12+.
func MatrixTiers() []Tier {
	return []Tier{
		{Name: "Level 1", Min: 1, Max: bound(2), Actions: []string{ActionNotifyManager, ActionVerbalWarning}},
		{Name: "Level 2", Min: 3, Max: bound(4), Actions: []string{ActionNotifyManager, ActionWrittenWarning}},
		{Name: "Level 3", Min: 5, Max: bound(7), Actions: []string{ActionNotifyManager, ActionMandatoryTraining}},
		{Name: "Level 4", Min: 8, Max: bound(11), Actions: []string{ActionNotifyHead, ActionMandatoryTraining, ActionReviewMeeting}},
		{Name: "Level 5", Min: 12, Actions: []string{ActionNotifyHead, ActionNotifyCompliance, ActionRightsPaused}},
	}
}

// Load builds the matrix selected by configuration. A custom profile reads a YAML or JSON
// file with a top-level "tiers" list.
func Load(cfg config.EscalationConfig) (*Matrix, error) {
	switch cfg.Profile {
	case config.ProfileStages, "":
		return NewMatrix(config.ProfileStages, StagesTiers())
	case config.ProfileMatrix:
		return NewMatrix(config.ProfileMatrix, MatrixTiers())
	case config.ProfileCustom:
		tiers, err := readTiers(cfg.MatrixFile)
		if err != nil {
			return nil, err
		}
		return NewMatrix(config.ProfileCustom, tiers)
	default:
		return nil, fmt.Errorf("%w: unknown profile %q", ErrInvalidMatrix, cfg.Profile)
	}
}

func readTiers(path string) ([]Tier, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read escalation matrix %s: %w", path, err)
	}
	var file struct {
		Tiers []Tier `mapstructure:"tiers"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("decode escalation matrix %s: %w", path, err)
	}
	return file.Tiers, nil
}
