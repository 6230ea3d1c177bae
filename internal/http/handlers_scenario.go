package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	applog "nozze/internal/log"
	"nozze/internal/storage"
)

type scenarioView struct {
	ID        int64              `json:"id"`
	Status    string             `json:"status"`
	Budget    float64            `json:"budget"`
	Cut       float64            `json:"cut"`
	Weights   map[string]float64 `json:"weights,omitempty"`
	Attempts  int64              `json:"attempts"`
	Error     string             `json:"error,omitempty"`
	Result    json.RawMessage    `json:"result,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func newScenarioView(sc *storage.Scenario) scenarioView {
	return scenarioView{
		ID:        sc.ID,
		Status:    sc.Status,
		Budget:    sc.Budget.Dollars(),
		Cut:       sc.Cut.Dollars(),
		Weights:   sc.Weights,
		Attempts:  sc.Attempts,
		Error:     sc.Error,
		Result:    sc.Result,
		CreatedAt: sc.CreatedAt,
		UpdatedAt: sc.UpdatedAt,
	}
}

// handleSubmitScenario stores a comparison request for the worker.
func (s *Server) handleSubmitScenario(w http.ResponseWriter, r *http.Request) {
	if s.scenarios == nil {
		writeMessage(w, http.StatusNotImplemented, "scenarios require the sqlite backend")
		return
	}

	var req solveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	budget, cut, err := s.budgetAndCut(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Reject weights for unknown categories now rather than in the worker.
	if len(req.Weights) > 0 {
		if _, err := s.loadCatalog(r.Context(), req.Weights); err != nil {
			writeError(w, r, err)
			return
		}
	}

	id, err := s.scenarios.Submit(r.Context(), budget, cut, req.Weights)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Scenario submitted",
		applog.FieldOperation, applog.OpSubmit,
		applog.FieldScenarioID, id)
	w.Header().Set("Location", "/api/scenarios/"+strconv.FormatInt(id, 10))
	writeJSON(w, http.StatusAccepted, map[string]any{"id": id, "status": storage.StatusPending})
}

func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	if s.scenarios == nil {
		writeMessage(w, http.StatusNotImplemented, "scenarios require the sqlite backend")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, badRequest("invalid scenario id %q", r.PathValue("id")))
		return
	}

	sc, err := s.scenarios.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newScenarioView(sc))
}
