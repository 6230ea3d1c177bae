package http

import (
	"context"
	"net/http"
	"time"

	"nozze/internal/catalog"
	"nozze/internal/core"
	applog "nozze/internal/log"
	"nozze/internal/planner"
)

type (
	packageView struct {
		Name    string  `json:"name"`
		Cost    float64 `json:"cost"`
		Quality float64 `json:"quality"`
	}

	categoryView struct {
		Name     string        `json:"name"`
		Weight   float64       `json:"weight"`
		Packages []packageView `json:"packages"`
	}

	catalogView struct {
		Digest      string         `json:"digest"`
		MinimumCost float64        `json:"minimum_cost"`
		MaximumCost float64        `json:"maximum_cost"`
		Categories  []categoryView `json:"categories"`
	}
)

func newCatalogView(cat *catalog.Catalog) catalogView {
	v := catalogView{
		Digest:      cat.Digest(),
		MinimumCost: cat.MinimumCost().Dollars(),
		MaximumCost: cat.MaximumCost().Dollars(),
	}
	for _, g := range cat.Groups() {
		cv := categoryView{Name: g.Category.Name, Weight: g.Category.Weight}
		for _, p := range g.Packages {
			cv.Packages = append(cv.Packages, packageView{Name: p.Name, Cost: p.Cost.Dollars(), Quality: p.Quality})
		}
		v.Categories = append(v.Categories, cv)
	}
	return v
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the catalog loads and the optional probe passes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if _, err := s.loadCatalog(ctx, nil); err != nil {
		checks["catalog"] = "failed: " + err.Error()
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["catalog"] = "ok"
	}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["storage"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}

	traceMetrics := s.tracer.GetMetrics()
	limitMetrics := s.rateLimiter.GetMetrics()
	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
		"metrics": map[string]int64{
			"total_requests":       traceMetrics.TotalRequests,
			"server_errors":        traceMetrics.ServerErrors,
			"avg_response_time_us": traceMetrics.AverageResponseTime,
			"rate_limited":         limitMetrics.TotalHits,
			"rate_limit_clients":   limitMetrics.ClientCount,
			"ignored_forwarding":   s.clients.IgnoredForwardHeaders(),
		},
	})
}

func (s *Server) loadCatalog(ctx context.Context, weights map[string]float64) (*catalog.Catalog, error) {
	return planner.LoadCatalog(ctx, s.catalog, weights)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := s.loadCatalog(r.Context(), nil)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCatalogView(cat))
}

// handleSaveWeights validates new weights against the current catalog and
// persists them through the backend.
func (s *Server) handleSaveWeights(w http.ResponseWriter, r *http.Request) {
	if s.weights == nil {
		writeMessage(w, http.StatusNotImplemented, "this backend cannot save weights")
		return
	}

	var req weightsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Weights) == 0 {
		writeError(w, r, badRequest("weights must not be empty"))
		return
	}

	cat, err := s.loadCatalog(r.Context(), req.Weights)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cats := cat.Categories()
	raw := make([]core.RawCategory, len(cats))
	for i, c := range cats {
		raw[i] = core.RawCategory{Name: c.Name, Weight: c.Weight}
	}
	if err := s.weights.SaveWeights(r.Context(), raw); err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Weights saved",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldCategories, len(req.Weights))
	writeJSON(w, http.StatusOK, newCatalogView(cat))
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Cut) > 0 {
		writeError(w, r, badRequest("cut is only accepted by /api/compare"))
		return
	}
	budget, err := parseAmount("budget", req.Budget, s.defaultBudget, core.ErrNegativeBudget)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cat, err := s.loadCatalog(r.Context(), req.Weights)
	if err != nil {
		writeError(w, r, err)
		return
	}
	plan, err := s.planner.Plan(r.Context(), budget, cat)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).DebugContext(r.Context(), "Plan solved",
		applog.NewFields().
			WithOperation(applog.OpPlan).
			WithPlan(plan.TotalCost.Cents, plan.TotalValue).
			ToSlice()...)
	writeJSON(w, http.StatusOK, planner.NewPlanView(plan))
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
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

	cat, err := s.loadCatalog(r.Context(), req.Weights)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cmp, err := s.planner.Compare(r.Context(), cat, budget, cut)
	if err != nil {
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).DebugContext(r.Context(), "Comparison solved",
		applog.NewFields().
			WithOperation(applog.OpCompare).
			WithScenario(budget.Cents, cut.Cents).
			ToSlice()...)
	writeJSON(w, http.StatusOK, planner.NewReport(cmp))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.clients.ClientIP(r),
		applog.FieldPath, r.URL.Path)
	writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
}
