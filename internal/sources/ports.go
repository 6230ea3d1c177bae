package sources

import (
	"context"

	"nozze/internal/core"
)

// Ports for catalog backends.
type (
	// CatalogReader returns the raw category and package tables, in the
	// order the backend stores them. Validation is left to catalog.Load.
	CatalogReader interface {
		ReadCatalog(ctx context.Context) ([]core.RawCategory, []core.RawPackage, error)
	}

	// WeightWriter persists a full category weight table.
	WeightWriter interface {
		SaveWeights(ctx context.Context, weights []core.RawCategory) error
	}

	// CatalogStore is a backend that can both read and persist.
	CatalogStore interface {
		CatalogReader
		WeightWriter
	}
)
