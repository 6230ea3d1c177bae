package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type CategoryRow struct {
	ID       int64
	Position int64
	Name     string
	Weight   float64
}

type PackageRow struct {
	ID        int64
	Position  int64
	Category  string
	Name      string
	CostCents int64
	Quality   float64
}

type ScenarioRow struct {
	ID          int64
	BudgetCents int64
	CutCents    int64
	WeightsJSON string
	Status      string
	ResultJSON  sql.NullString
	Error       sql.NullString
	Attempts    int64
	CreatedAt   int64
	UpdatedAt   int64
}

const listCategories = `SELECT id, position, name, weight FROM categories ORDER BY position, id`

func (q *Queries) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryRow
	for rows.Next() {
		var i CategoryRow
		if err := rows.Scan(&i.ID, &i.Position, &i.Name, &i.Weight); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listPackages = `SELECT id, position, category, name, cost_cents, quality FROM packages ORDER BY position, id`

func (q *Queries) ListPackages(ctx context.Context) ([]PackageRow, error) {
	rows, err := q.db.QueryContext(ctx, listPackages)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PackageRow
	for rows.Next() {
		var i PackageRow
		if err := rows.Scan(&i.ID, &i.Position, &i.Category, &i.Name, &i.CostCents, &i.Quality); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countCategories = `SELECT COUNT(*) FROM categories`

func (q *Queries) CountCategories(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCategories).Scan(&n)
	return n, err
}

const deleteCategories = `DELETE FROM categories`

func (q *Queries) DeleteCategories(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteCategories)
	return err
}

const deletePackages = `DELETE FROM packages`

func (q *Queries) DeletePackages(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deletePackages)
	return err
}

const insertCategory = `INSERT INTO categories (position, name, weight) VALUES (?, ?, ?)`

func (q *Queries) InsertCategory(ctx context.Context, position int64, name string, weight float64) error {
	_, err := q.db.ExecContext(ctx, insertCategory, position, name, weight)
	return err
}

const updateCategoryWeight = `UPDATE categories SET weight = ? WHERE name = ? COLLATE NOCASE`

func (q *Queries) UpdateCategoryWeight(ctx context.Context, name string, weight float64) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateCategoryWeight, weight, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertPackage = `INSERT INTO packages (position, category, name, cost_cents, quality) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertPackage(ctx context.Context, arg PackageRow) error {
	_, err := q.db.ExecContext(ctx, insertPackage, arg.Position, arg.Category, arg.Name, arg.CostCents, arg.Quality)
	return err
}

const createScenario = `INSERT INTO scenarios (budget_cents, cut_cents, weights_json, status, created_at, updated_at)
VALUES (?, ?, ?, 'pending', ?, ?)
RETURNING id`

func (q *Queries) CreateScenario(ctx context.Context, budgetCents, cutCents int64, weightsJSON string, now int64) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createScenario, budgetCents, cutCents, weightsJSON, now, now).Scan(&id)
	return id, err
}

const scenarioColumns = `id, budget_cents, cut_cents, weights_json, status, result_json, error, attempts, created_at, updated_at`

const getScenario = `SELECT ` + scenarioColumns + ` FROM scenarios WHERE id = ?`

func (q *Queries) GetScenario(ctx context.Context, id int64) (ScenarioRow, error) {
	return scanScenario(q.db.QueryRowContext(ctx, getScenario, id))
}

const listScenariosByStatus = `SELECT ` + scenarioColumns + ` FROM scenarios WHERE status = ? ORDER BY created_at, id LIMIT ?`

func (q *Queries) ListScenariosByStatus(ctx context.Context, status string, limit int64) ([]ScenarioRow, error) {
	rows, err := q.db.QueryContext(ctx, listScenariosByStatus, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ScenarioRow
	for rows.Next() {
		i, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const finishScenario = `UPDATE scenarios
SET status = ?, result_json = ?, error = ?, attempts = attempts + 1, updated_at = ?
WHERE id = ? AND status = 'pending'`

func (q *Queries) FinishScenario(ctx context.Context, id int64, status string, result, errText sql.NullString, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, finishScenario, status, result, errText, now, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScenario(row rowScanner) (ScenarioRow, error) {
	var i ScenarioRow
	err := row.Scan(
		&i.ID,
		&i.BudgetCents,
		&i.CutCents,
		&i.WeightsJSON,
		&i.Status,
		&i.ResultJSON,
		&i.Error,
		&i.Attempts,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
