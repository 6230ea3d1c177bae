package memory

import (
	"context"
	"sync"

	"nozze/internal/core"
)

// Store keeps a catalog in memory. It is used as the built-in seed catalog
// and in tests.
type Store struct {
	mu   sync.Mutex
	cats []core.RawCategory
	pkgs []core.RawPackage
}

func New(cats []core.RawCategory, pkgs []core.RawPackage) *Store {
	return &Store{
		cats: append([]core.RawCategory(nil), cats...),
		pkgs: append([]core.RawPackage(nil), pkgs...),
	}
}

// NewSeed returns a store holding the built-in wedding catalog.
func NewSeed() *Store {
	cats, pkgs := Seed()
	return New(cats, pkgs)
}

// ReadCatalog returns copies of the stored tables.
func (s *Store) ReadCatalog(_ context.Context) ([]core.RawCategory, []core.RawPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.RawCategory(nil), s.cats...), append([]core.RawPackage(nil), s.pkgs...), nil
}

// SaveWeights replaces the category table. Packages are left untouched.
func (s *Store) SaveWeights(_ context.Context, weights []core.RawCategory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cats = append([]core.RawCategory(nil), weights...)
	return nil
}

// Seed returns the default catalog: weights are importance on a 1-10 scale,
// costs are in dollars.
func Seed() ([]core.RawCategory, []core.RawPackage) {
	cats := []core.RawCategory{
		{Name: "Venue", Weight: 9},
		{Name: "Catering", Weight: 8},
		{Name: "Photography", Weight: 7},
		{Name: "Attire", Weight: 6},
		{Name: "Music", Weight: 5},
		{Name: "Flowers", Weight: 4},
		{Name: "Cake", Weight: 3},
		{Name: "Invitations", Weight: 2},
	}
	pkgs := []core.RawPackage{
		{Category: "Venue", Name: "Budget", Cost: 5000, Quality: 4},
		{Category: "Venue", Name: "Standard", Cost: 9000, Quality: 7},
		{Category: "Venue", Name: "Luxury", Cost: 15000, Quality: 9},
		{Category: "Catering", Name: "Budget", Cost: 4000, Quality: 4},
		{Category: "Catering", Name: "Standard", Cost: 7500, Quality: 7},
		{Category: "Catering", Name: "Luxury", Cost: 12000, Quality: 9},
		{Category: "Photography", Name: "Budget", Cost: 1000, Quality: 3},
		{Category: "Photography", Name: "Standard", Cost: 2500, Quality: 6},
		{Category: "Photography", Name: "Luxury", Cost: 4000, Quality: 8},
		{Category: "Attire", Name: "Budget", Cost: 800, Quality: 4},
		{Category: "Attire", Name: "Standard", Cost: 2000, Quality: 7},
		{Category: "Attire", Name: "Luxury", Cost: 4500, Quality: 9},
		{Category: "Music", Name: "Playlist", Cost: 200, Quality: 2},
		{Category: "Music", Name: "DJ", Cost: 1200, Quality: 6},
		{Category: "Music", Name: "Live Band", Cost: 3500, Quality: 9},
		{Category: "Flowers", Name: "Budget", Cost: 500, Quality: 3},
		{Category: "Flowers", Name: "Standard", Cost: 1500, Quality: 6},
		{Category: "Flowers", Name: "Luxury", Cost: 3000, Quality: 9},
		{Category: "Cake", Name: "Budget", Cost: 300, Quality: 4},
		{Category: "Cake", Name: "Standard", Cost: 700, Quality: 7},
		{Category: "Cake", Name: "Luxury", Cost: 1200, Quality: 9},
		{Category: "Invitations", Name: "Digital", Cost: 50, Quality: 3},
		{Category: "Invitations", Name: "Printed", Cost: 400, Quality: 6},
		{Category: "Invitations", Name: "Letterpress", Cost: 900, Quality: 9},
	}
	return cats, pkgs
}
