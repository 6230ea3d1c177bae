// Package backend builds the catalog store selected by DATA_BACKEND.
package backend

import (
	"context"

	"nozze/internal/sources"
	"nozze/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the catalog store and optional cleanup function.
// Repository is set only for the sqlite backend, which also persists scenarios.
type BackendResult struct {
	Store      sources.CatalogStore
	Repository *storage.SQLiteRepository
	Cleanup    CleanupFunc
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Files backend, and seed source for sqlite
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleCategoriesSheet    string
	GooglePackagesSheet      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	FilesBackend  BackendType = "files"
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FilesBackend, SQLiteBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
