package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"nozze/internal/core"
	"nozze/internal/sources"

	_ "modernc.org/sqlite"
)

// Scenario statuses.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

var ErrScenarioNotFound = errors.New("scenario not found")

var _ sources.CatalogStore = (*SQLiteRepository)(nil)

// Scenario is a persisted comparison request. Result holds the JSON report
// once the scenario is done; Error the failure reason once it failed.
type Scenario struct {
	ID        int64
	Budget    core.Money
	Cut       core.Money
	Weights   map[string]float64
	Status    string
	Result    json.RawMessage
	Error     string
	Attempts  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ReadCatalog implements sources.CatalogReader
func (r *SQLiteRepository) ReadCatalog(ctx context.Context) ([]core.RawCategory, []core.RawPackage, error) {
	catRows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list categories: %w", err)
	}
	pkgRows, err := r.queries.ListPackages(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list packages: %w", err)
	}

	cats := make([]core.RawCategory, len(catRows))
	for i, c := range catRows {
		cats[i] = core.RawCategory{Name: c.Name, Weight: c.Weight}
	}
	pkgs := make([]core.RawPackage, len(pkgRows))
	for i, p := range pkgRows {
		pkgs[i] = core.RawPackage{
			Category: p.Category,
			Name:     p.Name,
			Cost:     core.Money{Cents: p.CostCents}.Dollars(),
			Quality:  p.Quality,
		}
	}
	return cats, pkgs, nil
}

// SaveWeights implements sources.WeightWriter. Every named category must
// exist; the update is all or nothing.
func (r *SQLiteRepository) SaveWeights(ctx context.Context, weights []core.RawCategory) error {
	return r.withTx(ctx, func(q *Queries) error {
		for i, w := range weights {
			n, err := q.UpdateCategoryWeight(ctx, w.Name, w.Weight)
			if err != nil {
				return fmt.Errorf("update weight of %q: %w", w.Name, err)
			}
			if n == 0 {
				return &core.CatalogError{Table: "weights", Row: i + 1, Field: "category", Value: w.Name, Reason: "unknown category"}
			}
		}
		slog.InfoContext(ctx, "Category weights saved to SQLite", "count", len(weights))
		return nil
	})
}

// ReplaceCatalog swaps both tables in one transaction. Costs are stored in
// cents.
func (r *SQLiteRepository) ReplaceCatalog(ctx context.Context, cats []core.RawCategory, pkgs []core.RawPackage) error {
	return r.withTx(ctx, func(q *Queries) error {
		if err := q.DeletePackages(ctx); err != nil {
			return fmt.Errorf("clear packages: %w", err)
		}
		if err := q.DeleteCategories(ctx); err != nil {
			return fmt.Errorf("clear categories: %w", err)
		}
		for i, c := range cats {
			if err := q.InsertCategory(ctx, int64(i), c.Name, c.Weight); err != nil {
				return fmt.Errorf("insert category %q: %w", c.Name, err)
			}
		}
		for i, p := range pkgs {
			cost, err := core.FromFloat(p.Cost)
			if err != nil {
				return &core.CatalogError{Table: sources.TablePackages, Row: i + 1, Field: "cost", Value: sources.FormatNumber(p.Cost), Reason: err.Error()}
			}
			row := PackageRow{Position: int64(i), Category: p.Category, Name: p.Name, CostCents: cost.Cents, Quality: p.Quality}
			if err := q.InsertPackage(ctx, row); err != nil {
				return fmt.Errorf("insert package %q/%q: %w", p.Category, p.Name, err)
			}
		}
		slog.InfoContext(ctx, "Catalog replaced in SQLite", "categories", len(cats), "packages", len(pkgs))
		return nil
	})
}

// SeedIfEmpty copies the catalog from src when the categories table is
// empty. It reports whether a seed happened.
func (r *SQLiteRepository) SeedIfEmpty(ctx context.Context, src sources.CatalogReader) (bool, error) {
	n, err := r.queries.CountCategories(ctx)
	if err != nil {
		return false, fmt.Errorf("count categories: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	cats, pkgs, err := src.ReadCatalog(ctx)
	if err != nil {
		return false, fmt.Errorf("read seed catalog: %w", err)
	}
	if err := r.ReplaceCatalog(ctx, cats, pkgs); err != nil {
		return false, err
	}
	return true, nil
}

// CreateScenario stores a pending scenario and returns its id.
func (r *SQLiteRepository) CreateScenario(ctx context.Context, budget, cut core.Money, weights map[string]float64) (int64, error) {
	if weights == nil {
		weights = map[string]float64{}
	}
	data, err := json.Marshal(weights)
	if err != nil {
		return 0, fmt.Errorf("encode weights: %w", err)
	}
	id, err := r.queries.CreateScenario(ctx, budget.Cents, cut.Cents, string(data), r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("create scenario: %w", err)
	}
	slog.InfoContext(ctx, "Scenario saved to SQLite",
		"id", id,
		"budget_cents", budget.Cents,
		"cut_cents", cut.Cents)
	return id, nil
}

// GetScenario returns ErrScenarioNotFound for an unknown id.
func (r *SQLiteRepository) GetScenario(ctx context.Context, id int64) (*Scenario, error) {
	row, err := r.queries.GetScenario(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScenarioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scenario %d: %w", id, err)
	}
	return toScenario(row)
}

// PendingScenarios returns the oldest pending scenarios.
func (r *SQLiteRepository) PendingScenarios(ctx context.Context, limit int) ([]Scenario, error) {
	rows, err := r.queries.ListScenariosByStatus(ctx, StatusPending, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending scenarios: %w", err)
	}
	out := make([]Scenario, 0, len(rows))
	for _, row := range rows {
		s, err := toScenario(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, nil
}

// CompleteScenario stores the JSON result and marks the scenario done.
func (r *SQLiteRepository) CompleteScenario(ctx context.Context, id int64, result json.RawMessage) error {
	if err := r.finish(ctx, id, StatusDone, sql.NullString{String: string(result), Valid: true}, sql.NullString{}); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Scenario marked as done", "id", id)
	return nil
}

// FailScenario records a permanent failure.
func (r *SQLiteRepository) FailScenario(ctx context.Context, id int64, reason string) error {
	if err := r.finish(ctx, id, StatusFailed, sql.NullString{}, sql.NullString{String: reason, Valid: true}); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Scenario marked as failed", "id", id, "reason", reason)
	return nil
}

func (r *SQLiteRepository) finish(ctx context.Context, id int64, status string, result, reason sql.NullString) error {
	n, err := r.queries.FinishScenario(ctx, id, status, result, reason, r.now().Unix())
	if err != nil {
		return fmt.Errorf("mark scenario %d %s: %w", id, status, err)
	}
	if n == 0 {
		// Either missing or settled by a concurrent consumer.
		sc, err := r.GetScenario(ctx, id)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Scenario already settled", "id", id, "status", sc.Status)
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func toScenario(row ScenarioRow) (*Scenario, error) {
	s := &Scenario{
		ID:        row.ID,
		Budget:    core.Money{Cents: row.BudgetCents},
		Cut:       core.Money{Cents: row.CutCents},
		Status:    row.Status,
		Error:     row.Error.String,
		Attempts:  row.Attempts,
		CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(row.UpdatedAt, 0).UTC(),
	}
	if row.ResultJSON.Valid {
		s.Result = json.RawMessage(row.ResultJSON.String)
	}
	if err := json.Unmarshal([]byte(row.WeightsJSON), &s.Weights); err != nil {
		return nil, fmt.Errorf("decode weights of scenario %d: %w", row.ID, err)
	}
	return s, nil
}
