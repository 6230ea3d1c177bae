package services

import (
	"context"
	"fmt"
	"log/slog"

	"nozze/internal/core"
	"nozze/internal/planner"
	"nozze/internal/storage"
)

// ScenarioStore persists scenarios.
type ScenarioStore interface {
	CreateScenario(ctx context.Context, budget, cut core.Money, weights map[string]float64) (int64, error)
	GetScenario(ctx context.Context, id int64) (*storage.Scenario, error)
}

// Publisher notifies workers that a scenario is waiting.
type Publisher interface {
	PublishScenario(ctx context.Context, id int64) error
}

// ScenarioService orchestrates scenario submission across SQLite and AMQP
type ScenarioService struct {
	store     ScenarioStore
	publisher Publisher
}

// NewScenarioService creates the service. publisher may be nil, in which
// case scenarios are only picked up by the worker's periodic sweep.
func NewScenarioService(store ScenarioStore, publisher Publisher) *ScenarioService {
	return &ScenarioService{store: store, publisher: publisher}
}

// Submit validates and saves a scenario, then publishes it for processing.
// A publish failure is logged but does not fail the submission: the scenario
// is already stored as pending.
func (s *ScenarioService) Submit(ctx context.Context, budget, cut core.Money, weights map[string]float64) (int64, error) {
	switch {
	case budget.Cents < 0:
		return 0, core.ErrNegativeBudget
	case cut.Cents < 0:
		return 0, planner.ErrNegativeCut
	case cut.Cents > budget.Cents:
		return 0, planner.ErrCutExceedsBudget
	}

	id, err := s.store.CreateScenario(ctx, budget, cut, weights)
	if err != nil {
		return 0, fmt.Errorf("save scenario: %w", err)
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, scenario left for sweep", "id", id)
		return id, nil
	}
	if err := s.publisher.PublishScenario(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish scenario message", "id", id, "error", err)
	}
	return id, nil
}

// Get returns a stored scenario.
func (s *ScenarioService) Get(ctx context.Context, id int64) (*storage.Scenario, error) {
	return s.store.GetScenario(ctx, id)
}
