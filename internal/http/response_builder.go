package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"nozze/internal/core"
	applog "nozze/internal/log"
	"nozze/internal/planner"
	"nozze/internal/storage"
)

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error       string   `json:"error"`
	Budget      *float64 `json:"budget,omitempty"`
	MinimumCost *float64 `json:"minimum_cost,omitempty"`
	Table       string   `json:"table,omitempty"`
	Row         *int     `json:"row,omitempty"`
	Field       string   `json:"field,omitempty"`
}

// writeJSON encodes v before committing the status, so an unencodable value
// becomes a 500 instead of a 2xx with an empty body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Error: http.StatusText(status)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) int {
	var infeasible *core.InfeasibleBudgetError
	switch {
	case errors.As(err, &infeasible),
		errors.Is(err, core.ErrInvalidCatalog),
		errors.Is(err, core.ErrEmptyCatalog):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrNegativeBudget),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, planner.ErrNegativeCut),
		errors.Is(err, planner.ErrCutExceedsBudget):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrScenarioNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError renders err with the status chosen by statusFor. Server errors
// are logged and their text is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var infeasible *core.InfeasibleBudgetError
	var catErr *core.CatalogError
	switch {
	case errors.As(err, &infeasible):
		budget, minimum := infeasible.Budget.Dollars(), infeasible.MinimumCost.Dollars()
		resp.Budget, resp.MinimumCost = &budget, &minimum
	case errors.As(err, &catErr):
		row := catErr.Row
		resp.Table, resp.Row, resp.Field = catErr.Table, &row, catErr.Field
	}

	if status >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.NewFields().WithError(err).ToSlice()...)
		resp = errorResponse{Error: http.StatusText(status)}
	}
	writeJSON(w, status, resp)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
