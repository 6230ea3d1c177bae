package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"nozze/internal/core"
	"nozze/internal/planner"
)

var errBadRequest = errors.New("bad request")

// badRequest marks a malformed request body.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// solveRequest is the body of the plan, compare and scenario endpoints.
// Amounts may be JSON numbers or strings such as "40000" or "€ 1.234,56".
type solveRequest struct {
	Budget  json.RawMessage    `json:"budget"`
	Cut     json.RawMessage    `json:"cut"`
	Weights map[string]float64 `json:"weights"`
}

type weightsRequest struct {
	Weights map[string]float64 `json:"weights"`
}

// decodeJSON reads a single JSON object from the body. An empty body
// decodes to the zero value.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("body exceeds %d bytes", tooLarge.Limit)
		}
		return badRequest("read body: %v", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid JSON: %v", err)
	}
	if dec.More() {
		return badRequest("invalid JSON: trailing data")
	}
	return nil
}

// parseAmount converts a JSON amount. Absent or null values yield def.
// Negative amounts return negErr so callers can report which field was wrong.
func parseAmount(field string, raw json.RawMessage, def core.Money, negErr error) (core.Money, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return def, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return core.Money{}, badRequest("%s: %v", field, err)
		}
		if strings.HasPrefix(strings.TrimSpace(s), "-") {
			return core.Money{}, negErr
		}
		m, err := core.ParseAmount(s)
		if err != nil {
			return core.Money{}, badRequest("%s %q is not a valid amount", field, s)
		}
		return m, nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return core.Money{}, badRequest("%s must be a number or a string", field)
	}
	if v < 0 {
		return core.Money{}, negErr
	}
	m, err := core.FromFloat(v)
	if err != nil {
		return core.Money{}, badRequest("%s %v is not a valid amount", field, v)
	}
	return m, nil
}

// budgetAndCut resolves the request amounts against the server defaults.
func (s *Server) budgetAndCut(req solveRequest) (budget, cut core.Money, err error) {
	budget, err = parseAmount("budget", req.Budget, s.defaultBudget, core.ErrNegativeBudget)
	if err != nil {
		return
	}
	cut, err = parseAmount("cut", req.Cut, s.defaultCut, planner.ErrNegativeCut)
	if err != nil {
		return
	}
	if cut.Cents > budget.Cents {
		err = planner.ErrCutExceedsBudget
	}
	return
}
