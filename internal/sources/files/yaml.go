package files

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"nozze/internal/core"
)

type yamlCatalog struct {
	Categories []yamlCategory `yaml:"categories"`
}

type yamlCategory struct {
	Name     string        `yaml:"name"`
	Weight   float64       `yaml:"weight"`
	Packages []yamlPackage `yaml:"packages"`
}

type yamlPackage struct {
	Name    string  `yaml:"name"`
	Cost    float64 `yaml:"cost"`
	Quality float64 `yaml:"quality"`
}

// DecodeYAML reads a catalog where packages are nested under their category:
//
//	categories:
//	  - name: Venue
//	    weight: 9
//	    packages:
//	      - {name: Budget, cost: 5000, quality: 4}
func DecodeYAML(data []byte) ([]core.RawCategory, []core.RawPackage, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", YAMLFile, err)
	}
	var (
		cats []core.RawCategory
		pkgs []core.RawPackage
	)
	for _, c := range doc.Categories {
		cats = append(cats, core.RawCategory{Name: c.Name, Weight: c.Weight})
		for _, p := range c.Packages {
			pkgs = append(pkgs, core.RawPackage{Category: c.Name, Name: p.Name, Cost: p.Cost, Quality: p.Quality})
		}
	}
	return cats, pkgs, nil
}

// EncodeYAML is the inverse of DecodeYAML. Packages whose category is not
// listed are dropped.
func EncodeYAML(cats []core.RawCategory, pkgs []core.RawPackage) ([]byte, error) {
	doc := yamlCatalog{Categories: make([]yamlCategory, len(cats))}
	for i, c := range cats {
		doc.Categories[i] = yamlCategory{Name: c.Name, Weight: c.Weight}
		for _, p := range pkgs {
			if core.SameName(p.Category, c.Name) {
				doc.Categories[i].Packages = append(doc.Categories[i].Packages, yamlPackage{Name: p.Name, Cost: p.Cost, Quality: p.Quality})
			}
		}
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", YAMLFile, err)
	}
	return out, nil
}

// UpdateYAMLWeights rewrites the weights of an existing document, keeping
// its packages. Categories are matched case-insensitively; unknown names
// are an error.
func UpdateYAMLWeights(data []byte, weights []core.RawCategory) ([]byte, error) {
	cats, pkgs, err := DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	for i, w := range weights {
		found := false
		for j := range cats {
			if core.SameName(cats[j].Name, w.Name) {
				cats[j].Weight = w.Weight
				found = true
				break
			}
		}
		if !found {
			return nil, &core.CatalogError{Table: "weights", Row: i + 1, Field: "category", Value: w.Name, Reason: "unknown category"}
		}
	}
	return EncodeYAML(cats, pkgs)
}
