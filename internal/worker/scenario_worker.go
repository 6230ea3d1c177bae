package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"nozze/internal/amqp"
	"nozze/internal/core"
	"nozze/internal/planner"
	"nozze/internal/sources"
	"nozze/internal/storage"
)

// ScenarioStore is the storage used by the worker.
type ScenarioStore interface {
	GetScenario(ctx context.Context, id int64) (*storage.Scenario, error)
	PendingScenarios(ctx context.Context, limit int) ([]storage.Scenario, error)
	CompleteScenario(ctx context.Context, id int64, result json.RawMessage) error
	FailScenario(ctx context.Context, id int64, reason string) error
}

// ScenarioWorker computes stored scenarios and records their outcome
type ScenarioWorker struct {
	store     ScenarioStore
	catalog   sources.CatalogReader
	planner   *planner.Planner
	batchSize int
}

func NewScenarioWorker(store ScenarioStore, catalog sources.CatalogReader, p *planner.Planner, batchSize int) *ScenarioWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &ScenarioWorker{
		store:     store,
		catalog:   catalog,
		planner:   p,
		batchSize: batchSize,
	}
}

// HandleScenarioMessage processes a single scenario message from AMQP.
// Returning an error requeues the message.
func (w *ScenarioWorker) HandleScenarioMessage(ctx context.Context, msg *amqp.ScenarioMessage) error {
	sc, err := w.store.GetScenario(ctx, msg.ID)
	if errors.Is(err, storage.ErrScenarioNotFound) {
		slog.WarnContext(ctx, "Scenario not found, dropping message", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get scenario from storage: %w", err)
	}
	if sc.Status != storage.StatusPending {
		slog.InfoContext(ctx, "Scenario already processed", "id", sc.ID, "status", sc.Status)
		return nil
	}
	return w.process(ctx, sc)
}

// ProcessPending computes a batch of pending scenarios. It is the fallback
// for lost messages and returns how many scenarios were settled.
func (w *ScenarioWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.store.PendingScenarios(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending scenarios: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending scenarios", "count", len(pending))
	settled := 0
	for i := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if err := w.process(ctx, &pending[i]); err != nil {
			slog.ErrorContext(ctx, "Failed to process scenario", "id", pending[i].ID, "error", err)
			continue
		}
		settled++
	}
	return settled, nil
}

// process computes the comparison. Outcomes that would repeat on retry are
// stored as failures; only storage and cancellation errors are returned.
func (w *ScenarioWorker) process(ctx context.Context, sc *storage.Scenario) error {
	cat, err := planner.LoadCatalog(ctx, w.catalog, sc.Weights)
	if err != nil {
		if permanent(err) {
			return w.store.FailScenario(ctx, sc.ID, err.Error())
		}
		return err
	}

	cmp, err := w.planner.Compare(ctx, cat, sc.Budget, sc.Cut)
	if err != nil {
		if permanent(err) {
			return w.store.FailScenario(ctx, sc.ID, err.Error())
		}
		return err
	}

	result, err := json.Marshal(planner.NewReport(cmp))
	if err != nil {
		// Recomputing yields the same report, so retrying cannot help.
		return w.store.FailScenario(ctx, sc.ID, fmt.Sprintf("encode report: %v", err))
	}
	if err := w.store.CompleteScenario(ctx, sc.ID, result); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Scenario computed",
		"id", sc.ID,
		"changes", len(cmp.Changes),
		"value_lost", cmp.ValueLost)
	return nil
}

func permanent(err error) bool {
	var infeasible *core.InfeasibleBudgetError
	return errors.As(err, &infeasible) ||
		errors.Is(err, core.ErrInvalidCatalog) ||
		errors.Is(err, core.ErrEmptyCatalog) ||
		errors.Is(err, core.ErrNegativeBudget) ||
		errors.Is(err, planner.ErrNegativeCut) ||
		errors.Is(err, planner.ErrCutExceedsBudget)
}
