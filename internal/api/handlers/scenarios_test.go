package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atbat/internal/scenario"
	"atbat/internal/types"
)

type fakeModel struct{}

func (fakeModel) Features() []string {
	return []string{"launch_speed", "launch_angle", "bearing_center"}
}
func (fakeModel) ClassifierKind() string { return "boosted_trees" }

func makeScenarioRouter(n int) http.Handler {
	h := NewScenarioHandler(fakeScenarios{n: n}, fakeModel{}, testLogger())
	r := chi.NewRouter()
	r.Route("/v1", h.RegisterRoutes)
	return r
}

func TestHandleGetScenario(t *testing.T) {
	rec := do(t, makeScenarioRouter(5), http.MethodGet, "/v1/scenarios/4", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ScenarioResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 4, resp.Scenario.Index)
	assert.Equal(t, "Park 4", resp.Scenario.Stadium)
	assert.Equal(t, types.MaxLaunchSpeed, resp.Controls.LaunchSpeed.Max)
}

func TestHandleGetScenario_Errors(t *testing.T) {
	tests := []struct {
		path   string
		status int
		code   types.ErrorCode
	}{
		{"/v1/scenarios/5", http.StatusNotFound, types.ErrCodeNotFoundScenario},
		{"/v1/scenarios/-1", http.StatusNotFound, types.ErrCodeNotFoundScenario},
		{"/v1/scenarios/first", http.StatusBadRequest, types.ErrCodeValidationScenarioIndex},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, makeScenarioRouter(5), http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.code), decodeError(t, rec).Code)
		})
	}
}

func TestHandleListScenarios(t *testing.T) {
	rec := do(t, makeScenarioRouter(5), http.MethodGet, "/v1/scenarios", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ScenarioCatalogResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 5, resp.Total)
	assert.Len(t, resp.Controls.Bearings, 3)
}

func TestHandleGetModel(t *testing.T) {
	rec := do(t, makeScenarioRouter(5), http.MethodGet, "/v1/model", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ModelResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "boosted_trees", resp.Kind)
	assert.Equal(t, []string{"launch_speed", "launch_angle", "bearing_center"}, resp.Features)
}

func TestHandleGetTips(t *testing.T) {
	rec := do(t, makeScenarioRouter(5), http.MethodGet, "/v1/tips", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp TipsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, scenario.Tips, resp.Tips)
	assert.Len(t, resp.Tips, 3)
}
