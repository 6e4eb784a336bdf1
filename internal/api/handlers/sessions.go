// Package handlers contains the HTTP handler implementations for the at-bat API.
//
// This file implements the session handler. It covers:
//   - Starting a session (POST /v1/sessions)
//   - Reading a session (GET /v1/sessions/{id})
//   - Swinging at the current pitch (POST /v1/sessions/{id}/swing)
//   - Moving to the next at-bat (POST /v1/sessions/{id}/next)
//   - Ending a session (DELETE /v1/sessions/{id})
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"atbat/internal/core"
	"atbat/internal/dataset"
	"atbat/internal/prediction"
	"atbat/internal/scenario"
	"atbat/internal/session"
	"atbat/internal/types"
)

// SessionManager defines the service contract for the session handler.
// It matches *session.Manager but is defined locally so tests can inject
// fakes.
type SessionManager interface {
	Start(ctx context.Context) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Swing(ctx context.Context, id string, swing types.Swing) (*session.Session, prediction.Result, error)
	NextAtBat(ctx context.Context, id string) (*session.Session, error)
	End(ctx context.Context, id string) error
}

// ScenarioDescriber renders scenario rows for display.
type ScenarioDescriber interface {
	Len() int
	Describe(i int) (scenario.View, error)
}

// SessionHandler maps HTTP requests to SessionManager methods.
type SessionHandler struct {
	manager   SessionManager
	scenarios ScenarioDescriber
	validator *core.Validator
	logger    *slog.Logger
}

// NewSessionHandler creates a new SessionHandler with the provided dependencies.
func NewSessionHandler(
	mgr SessionManager,
	scenarios ScenarioDescriber,
	val *core.Validator,
	logger *slog.Logger,
) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		manager:   mgr,
		scenarios: scenarios,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the session endpoints. It is intended for
// r.Route("/sessions", h.RegisterRoutes).
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandleStart)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Delete("/", h.HandleEnd)
		r.Post("/swing", h.HandleSwing)
		r.Post("/next", h.HandleNext)
	})
}

// SwingRequest is the body of POST /v1/sessions/{id}/swing. Pointers
// distinguish an explicit 0 from a missing field.
type SwingRequest struct {
	LaunchSpeed *float64 `json:"launch_speed" validate:"required,gte=0,lte=105"`
	LaunchAngle *float64 `json:"launch_angle" validate:"required,gte=-80,lte=80"`
	Bearing     string   `json:"bearing" validate:"required,bearing"`
}

// Swing converts a validated request into the domain value.
func (req SwingRequest) Swing() types.Swing {
	b, _ := types.ParseBearing(req.Bearing)
	return types.Swing{
		LaunchSpeed: *req.LaunchSpeed,
		LaunchAngle: *req.LaunchAngle,
		Bearing:     b,
	}
}

// SessionResponse is the view of one session: its state, the scenario it
// is on, and the controls to render for the next swing.
type SessionResponse struct {
	Session    *session.Session    `json:"session"`
	State      session.State       `json:"state"`
	Banner     string              `json:"banner,omitempty"`
	Scenario   scenario.View       `json:"scenario"`
	Controls   types.SwingControls `json:"controls"`
	Prediction *prediction.Result  `json:"prediction,omitempty"`
}

// HandleStart handles POST /v1/sessions.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Start(r.Context())
	if err != nil {
		h.fail(w, r, "start session", err)
		return
	}
	h.respond(w, r, http.StatusCreated, s, nil)
}

// HandleGet handles GET /v1/sessions/{id}.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "get session", err)
		return
	}
	h.respond(w, r, http.StatusOK, s, nil)
}

// HandleSwing handles POST /v1/sessions/{id}/swing.
//  1. Decode and validate the swing against the control bounds.
//  2. Score it against the session's current scenario.
//  3. Return the resolved session with the prediction.
func (h *SessionHandler) HandleSwing(w http.ResponseWriter, r *http.Request) {
	var req SwingRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	s, result, err := h.manager.Swing(r.Context(), chi.URLParam(r, "id"), req.Swing())
	if err != nil {
		h.fail(w, r, "swing", err)
		return
	}
	h.respond(w, r, http.StatusOK, s, &result)
}

// HandleNext handles POST /v1/sessions/{id}/next.
func (h *SessionHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	s, err := h.manager.NextAtBat(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "next at-bat", err)
		return
	}
	h.respond(w, r, http.StatusOK, s, nil)
}

// HandleEnd handles DELETE /v1/sessions/{id}.
func (h *SessionHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.End(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, "end session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) respond(w http.ResponseWriter, r *http.Request, status int, s *session.Session, result *prediction.Result) {
	view, err := describe(h.scenarios, s.ScenarioIndex)
	if err != nil {
		h.fail(w, r, "describe scenario", err)
		return
	}
	core.JSON(w, r, status, SessionResponse{
		Session:    s,
		State:      s.State(),
		Banner:     s.Banner(),
		Scenario:   view,
		Controls:   types.DefaultSwingControls(),
		Prediction: result,
	})
}

// fail logs server-side failures before writing the error envelope.
func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	logFailure(h.logger, r, op, err)
	core.Error(w, r, err)
}

// describe renders scenario i, mapping an out-of-range index to 404.
func describe(scenarios ScenarioDescriber, i int) (scenario.View, error) {
	view, err := scenarios.Describe(i)
	if errors.Is(err, dataset.ErrIndexOutOfRange) {
		return scenario.View{}, types.NewAppErrorWithDetails(types.ErrCodeNotFoundScenario,
			"scenario not found", err, map[string]any{"index": i, "total": scenarios.Len()})
	}
	return view, err
}

// logFailure records errors that map to 5xx responses. Client errors are
// already covered by the request logger.
func logFailure(logger *slog.Logger, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		status = appErr.HTTPStatus()
	}
	if status < http.StatusInternalServerError {
		return
	}
	logger.ErrorContext(r.Context(), op+" failed",
		"error", err.Error(),
		"request_id", types.GetRequestID(r.Context()),
		"session_id", chi.URLParam(r, "id"),
	)
}
