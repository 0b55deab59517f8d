package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contravention-api/internal/escalation"
)

func execute(t *testing.T, args ...string) (map[string]interface{}, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		return nil, err
	}
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	return body, nil
}

func TestEvaluateCommand(t *testing.T) {
	t.Setenv("ESCALATION_PROFILE", "stages")

	body, err := execute(t, "evaluate", "12")
	require.NoError(t, err)
	assert.Equal(t, "stages", body["profile"])
	assert.Equal(t, "Stage 2", body["tier"])
	assert.EqualValues(t, 2, body["level"])
	assert.Equal(t, []interface{}{escalation.ActionNotifyManager, escalation.ActionMandatoryTraining}, body["actions"])

	body, err = execute(t, "evaluate", "12", "--profile", "matrix")
	require.NoError(t, err)
	assert.Equal(t, "Level 5", body["tier"])

	body, err = execute(t, "evaluate", "2")
	require.NoError(t, err)
	assert.Equal(t, "", body["tier"])
	assert.EqualValues(t, 0, body["level"])
}

func TestEvaluateCommandRejectsBadInput(t *testing.T) {
	t.Setenv("ESCALATION_PROFILE", "stages")

	_, err := execute(t, "evaluate", "lots")
	assert.Error(t, err)

	_, err = execute(t, "evaluate")
	assert.Error(t, err)

	_, err = execute(t, "evaluate", "3", "--profile", "ladder")
	assert.ErrorIs(t, err, escalation.ErrInvalidMatrix)
}

func TestCheckConfigCommand(t *testing.T) {
	t.Setenv("ESCALATION_PROFILE", "matrix")
	t.Setenv("FISCAL_YEAR_START_MONTH", "7")

	body, err := execute(t, "check-config")
	require.NoError(t, err)
	assert.Equal(t, "matrix", body["profile"])
	tiers, ok := body["tiers"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tiers, 5)
	assert.Contains(t, body["fiscal_start"], "-07-01T00:00:00")
}

func TestCheckConfigCommandFailsOnInvalidConfig(t *testing.T) {
	t.Setenv("FISCAL_YEAR_START_DAY", "31")

	_, err := execute(t, "check-config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FISCAL_YEAR_START_DAY")
}
