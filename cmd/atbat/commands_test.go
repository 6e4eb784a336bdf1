package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atbat/internal/types"
)

func dataArgs() []string {
	dir := filepath.Join("..", "..", "data")
	return []string{
		"--events", filepath.Join(dir, "train.csv"),
		"--parks", filepath.Join(dir, "park_dimensions.csv"),
		"--model", filepath.Join(dir, "model.json"),
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append(args, dataArgs()...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "atbat", cmd.Use)

	for _, name := range []string{"events", "parks", "model"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s", name)
	}

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"scenario", "predict", "schema", "version"})
}

func TestScenarioCmd(t *testing.T) {
	out, err := execute(t, "scenario", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "LAA vs SEA at Angel Stadium on 2020-08-01")
	assert.Contains(t, out, "Batting as Shohei Ohtani")
	assert.Contains(t, out, "Walls: LF 347 ft, CF 396 ft, RF 350 ft")
}

func TestScenarioCmd_JSON(t *testing.T) {
	out, err := execute(t, "scenario", "0", "--json")
	require.NoError(t, err)

	var view struct {
		Index   int    `json:"index"`
		Stadium string `json:"stadium"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 0, view.Index)
	assert.Equal(t, "Angel Stadium", view.Stadium)
}

func TestScenarioCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"not an integer", []string{"scenario", "first"}, "non-negative integer"},
		{"negative", []string{"scenario", "-1"}, ""},
		{"out of range", []string{"scenario", "9999"}, "scenario 9999"},
		{"missing index", []string{"scenario"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestPredictCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"home run", []string{"predict", "0", "--speed", "104", "--angle", "25", "--bearing", "Center"}, "HOME RUN!!!"},
		{"miss", []string{"predict", "0", "--speed", "50", "--angle", "20", "--bearing", "left"}, "TRY AGAIN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(out, tt.want), "got %q", out)
			assert.Contains(t, out, "confidence")
		})
	}
}

func TestPredictCmd_JSON(t *testing.T) {
	out, err := execute(t, "predict", "0", "--speed", "104", "--angle", "25", "--bearing", "center", "--json")
	require.NoError(t, err)

	var result struct {
		HomeRun       bool      `json:"home_run"`
		Confidence    float64   `json:"confidence"`
		Probabilities []float64 `json:"probabilities"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.HomeRun)
	assert.Len(t, result.Probabilities, 2)
	assert.InDelta(t, 1.0, result.Probabilities[0]+result.Probabilities[1], 1e-9)
}

func TestPredictCmd_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code types.ErrorCode
	}{
		{"speed too high", []string{"predict", "0", "--speed", "120"}, types.ErrCodeValidationLaunchSpeed},
		{"angle too low", []string{"predict", "0", "--angle=-90"}, types.ErrCodeValidationLaunchAngle},
		{"bad bearing", []string{"predict", "0", "--bearing", "up"}, types.ErrCodeValidationBearing},
		{"unknown scenario", []string{"predict", "9999"}, types.ErrCodeNotFoundScenario},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, types.CodeOf(err))
		})
	}
}

func TestSchemaCmd(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 43)
	assert.Contains(t, lines[3], "launch_speed")
	assert.Contains(t, lines[17], "bearing_center")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:  dev")
	assert.Contains(t, out, "Commit:")
}
