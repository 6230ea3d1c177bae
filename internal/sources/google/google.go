// Package google reads the catalog from a Google Sheets spreadsheet with a
// categories tab and a packages tab, each starting with a header row.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"nozze/internal/core"
	"nozze/internal/sources"
)

var _ sources.CatalogStore = (*Client)(nil)

// Options configures the spreadsheet and the service account used to reach it.
// When both credential fields are empty GOOGLE_APPLICATION_CREDENTIALS is used.
type Options struct {
	SpreadsheetID      string
	CategoriesSheet    string
	PackagesSheet      string
	ServiceAccountJSON string
	ServiceAccountFile string
}

type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	categoriesSheet string
	packagesSheet   string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if opts.CategoriesSheet == "" {
		opts.CategoriesSheet = "Categories"
	}
	if opts.PackagesSheet == "" {
		opts.PackagesSheet = "Packages"
	}

	creds, err := credentials(ctx, opts)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets client ready",
		"spreadsheet_id", opts.SpreadsheetID,
		"categories_sheet", opts.CategoriesSheet,
		"packages_sheet", opts.PackagesSheet)

	return &Client{
		svc:             svc,
		spreadsheetID:   opts.SpreadsheetID,
		categoriesSheet: opts.CategoriesSheet,
		packagesSheet:   opts.PackagesSheet,
	}, nil
}

func credentials(ctx context.Context, opts Options) ([]byte, error) {
	file := strings.TrimSpace(opts.ServiceAccountFile)
	if inline := strings.TrimSpace(opts.ServiceAccountJSON); inline != "" {
		slog.DebugContext(ctx, "Using inline service account credentials", "json_length", len(inline))
		return []byte(inline), nil
	}
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	slog.DebugContext(ctx, "Reading service account credentials", "path", file)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// ReadCatalog fetches both tabs in a single batch request. Numbers are read
// unformatted so locale-specific separators never reach the parser.
func (c *Client) ReadCatalog(ctx context.Context) ([]core.RawCategory, []core.RawPackage, error) {
	if c.svc == nil {
		return nil, nil, errors.New("sheets service not initialized")
	}
	catRange := c.categoriesSheet + "!A:Z"
	pkgRange := c.packagesSheet + "!A:Z"
	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(catRange, pkgRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s, %s: %w", catRange, pkgRange, err)
	}
	if len(resp.ValueRanges) != 2 {
		return nil, nil, fmt.Errorf("expected 2 value ranges, got %d", len(resp.ValueRanges))
	}
	return parseCatalog(resp.ValueRanges[0].Values, resp.ValueRanges[1].Values)
}

// SaveWeights replaces the content of the categories tab.
func (c *Client) SaveWeights(ctx context.Context, weights []core.RawCategory) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := c.categoriesSheet + "!A:Z"
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	vr := &gsheet.ValueRange{Values: toValues(sources.EncodeCategories(weights))}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.categoriesSheet+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("write %s: %w", c.categoriesSheet, err)
	}
	slog.InfoContext(ctx, "Category weights written to sheet", "sheet", c.categoriesSheet, "rows", len(weights))
	return nil
}
