// Package files reads a catalog from a data directory.
//
// The directory holds either categories.csv + packages.csv or a single
// catalog.yaml. When neither exists the built-in seed catalog is served and
// the first SaveWeights writes it out as CSV.
package files

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"nozze/internal/core"
	"nozze/internal/sources"
	"nozze/internal/sources/memory"
)

const (
	CategoriesFile = "categories.csv"
	PackagesFile   = "packages.csv"
	YAMLFile       = "catalog.yaml"
)

// Format is the on-disk layout of a data directory.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
	FormatSeed Format = "seed"
)

var _ sources.CatalogStore = (*Store)(nil)

type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

// Format detects which layout the directory currently uses. CSV wins when
// both are present.
func (s *Store) Format() Format {
	if exists(filepath.Join(s.dir, CategoriesFile)) || exists(filepath.Join(s.dir, PackagesFile)) {
		return FormatCSV
	}
	if exists(filepath.Join(s.dir, YAMLFile)) {
		return FormatYAML
	}
	return FormatSeed
}

// ReadCatalog loads the raw tables from the directory.
func (s *Store) ReadCatalog(ctx context.Context) ([]core.RawCategory, []core.RawPackage, error) {
	switch s.Format() {
	case FormatCSV:
		return s.readCSV()
	case FormatYAML:
		data, err := os.ReadFile(filepath.Join(s.dir, YAMLFile))
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", YAMLFile, err)
		}
		return DecodeYAML(data)
	default:
		return memory.NewSeed().ReadCatalog(ctx)
	}
}

func (s *Store) readCSV() ([]core.RawCategory, []core.RawPackage, error) {
	catRecords, err := readCSVFile(filepath.Join(s.dir, CategoriesFile))
	if err != nil {
		return nil, nil, err
	}
	pkgRecords, err := readCSVFile(filepath.Join(s.dir, PackagesFile))
	if err != nil {
		return nil, nil, err
	}
	cats, err := sources.DecodeCategories(catRecords)
	if err != nil {
		return nil, nil, err
	}
	pkgs, err := sources.DecodePackages(pkgRecords)
	if err != nil {
		return nil, nil, err
	}
	return cats, pkgs, nil
}

// SaveWeights replaces the category table on disk. The write goes through a
// temporary file and a rename so readers never observe a partial file.
func (s *Store) SaveWeights(ctx context.Context, weights []core.RawCategory) error {
	switch s.Format() {
	case FormatYAML:
		path := filepath.Join(s.dir, YAMLFile)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", YAMLFile, err)
		}
		out, err := UpdateYAMLWeights(data, weights)
		if err != nil {
			return err
		}
		return writeAtomic(path, out)
	case FormatSeed:
		_, pkgs, err := memory.NewSeed().ReadCatalog(ctx)
		if err != nil {
			return err
		}
		return s.WriteCatalog(weights, pkgs)
	}
	return writeCSVFile(filepath.Join(s.dir, CategoriesFile), sources.EncodeCategories(weights))
}

// WriteCatalog writes both tables as CSV, replacing any existing files.
func (s *Store) WriteCatalog(cats []core.RawCategory, pkgs []core.RawPackage) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := writeCSVFile(filepath.Join(s.dir, PackagesFile), sources.EncodePackages(pkgs)); err != nil {
		return err
	}
	return writeCSVFile(filepath.Join(s.dir, CategoriesFile), sources.EncodeCategories(cats))
}

func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

func writeCSVFile(path string, records [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
