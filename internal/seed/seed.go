// Package seed defines the default category tree and rule table installed
// when a database is first initialized. The data lives in an embedded YAML
// file so deployments can supply their own copy without recompiling.
package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var defaultSeed []byte

// Category is a top-level category and its subcategories.
type Category struct {
	Name          string   `yaml:"name"`
	Color         string   `yaml:"color"`
	Subcategories []string `yaml:"subcategories"`
}

// Rule maps a description pattern to a category by name.
type Rule struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
	Priority int    `yaml:"priority"`
}

// Data is the full seed document.
type Data struct {
	Categories []Category `yaml:"categories"`
	Rules      []Rule     `yaml:"rules"`
}

// Default returns the built-in seed data.
func Default() (*Data, error) {
	return parse(defaultSeed)
}

// FromFile loads seed data from a custom YAML file.
func FromFile(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	data, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return data, nil
}

func parse(raw []byte) (*Data, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshaling seed data: %w", err)
	}
	if err := data.validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

func (d *Data) validate() error {
	if len(d.Categories) == 0 {
		return fmt.Errorf("seed data has no categories")
	}

	names := make(map[string]bool)
	for _, cat := range d.Categories {
		if cat.Name == "" {
			return fmt.Errorf("seed category with empty name")
		}
		if names[cat.Name] {
			return fmt.Errorf("duplicate seed category %q", cat.Name)
		}
		names[cat.Name] = true
		for _, sub := range cat.Subcategories {
			if names[sub] {
				return fmt.Errorf("duplicate seed category %q", sub)
			}
			names[sub] = true
		}
	}

	for _, r := range d.Rules {
		if r.Pattern == "" {
			return fmt.Errorf("seed rule with empty pattern")
		}
		if !names[r.Category] {
			return fmt.Errorf("seed rule %q references unknown category %q", r.Pattern, r.Category)
		}
	}
	return nil
}
