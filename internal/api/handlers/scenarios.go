package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"atbat/internal/core"
	"atbat/internal/scenario"
	"atbat/internal/types"
)

// ModelInfo exposes what the prediction service was built with.
type ModelInfo interface {
	Features() []string
	ClassifierKind() string
}

// ScenarioHandler serves the read-only catalogue: scenarios, the model's
// feature schema, and game tips.
type ScenarioHandler struct {
	scenarios ScenarioDescriber
	model     ModelInfo
	logger    *slog.Logger
}

// NewScenarioHandler creates a new ScenarioHandler.
func NewScenarioHandler(scenarios ScenarioDescriber, model ModelInfo, logger *slog.Logger) *ScenarioHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScenarioHandler{scenarios: scenarios, model: model, logger: logger}
}

// RegisterRoutes mounts the catalogue endpoints directly on the /v1 router.
func (h *ScenarioHandler) RegisterRoutes(r chi.Router) {
	r.Get("/scenarios", h.HandleListScenarios)
	r.Get("/scenarios/{index}", h.HandleGetScenario)
	r.Get("/model", h.HandleGetModel)
	r.Get("/tips", h.HandleGetTips)
}

// ScenarioCatalogResponse summarizes the loaded table.
type ScenarioCatalogResponse struct {
	Total    int                 `json:"total"`
	Controls types.SwingControls `json:"controls"`
}

// ScenarioResponse is one scenario with the swing controls.
type ScenarioResponse struct {
	Scenario scenario.View       `json:"scenario"`
	Controls types.SwingControls `json:"controls"`
}

// ModelResponse describes the active classifier.
type ModelResponse struct {
	Kind     string   `json:"kind"`
	Features []string `json:"features"`
}

// TipsResponse lists the game tips.
type TipsResponse struct {
	Tips []string `json:"tips"`
}

// HandleListScenarios handles GET /v1/scenarios.
func (h *ScenarioHandler) HandleListScenarios(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, ScenarioCatalogResponse{
		Total:    h.scenarios.Len(),
		Controls: types.DefaultSwingControls(),
	})
}

// HandleGetScenario handles GET /v1/scenarios/{index}.
func (h *ScenarioHandler) HandleGetScenario(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "index")
	index, err := strconv.Atoi(raw)
	if err != nil {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeValidationScenarioIndex,
			"index must be an integer", nil, map[string]any{"index": raw}))
		return
	}

	view, err := describe(h.scenarios, index)
	if err != nil {
		logFailure(h.logger, r, "describe scenario", err)
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, ScenarioResponse{
		Scenario: view,
		Controls: types.DefaultSwingControls(),
	})
}

// HandleGetModel handles GET /v1/model.
func (h *ScenarioHandler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, ModelResponse{
		Kind:     h.model.ClassifierKind(),
		Features: h.model.Features(),
	})
}

// HandleGetTips handles GET /v1/tips.
func (h *ScenarioHandler) HandleGetTips(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, TipsResponse{Tips: scenario.Tips})
}
