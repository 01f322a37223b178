package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/raine/skinlog-bot/internal/skin"
	"gopkg.in/yaml.v3"
)

// Product is a read-only catalog entry shown on the result dashboard.
type Product struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Brand       string   `yaml:"brand"`
	Category    string   `yaml:"category"`
	Ingredients []string `yaml:"ingredients"`
	ImageURL    string   `yaml:"imageUrl"`
	MatchReason string   `yaml:"matchReason"`
}

// Catalog is an ordered, immutable product list.
type Catalog struct {
	products []Product
}

type catalogFile struct {
	Products []Product `yaml:"products"`
}

//go:embed catalog.yaml
var defaultCatalog []byte

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path returns Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, fmt.Errorf("catalog has no products")
	}
	seen := make(map[string]bool, len(f.Products))
	for i, p := range f.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("product %d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return &Catalog{products: f.Products}, nil
}

// All returns a copy of the products in catalog order.
func (c *Catalog) All() []Product {
	out := make([]Product, len(c.products))
	for i, p := range c.products {
		p.Ingredients = append([]string(nil), p.Ingredients...)
		out[i] = p
	}
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// SkinTypeColor is the badge styling for a skin type.
type SkinTypeColor struct {
	Foreground string
	Background string
	Emoji      string
}

var skinTypeColors = map[skin.SkinType]SkinTypeColor{
	skin.Dry:         {Foreground: "#2563eb", Background: "#eff6ff", Emoji: "💧"},
	skin.Oily:        {Foreground: "#ca8a04", Background: "#fefce8", Emoji: "🫧"},
	skin.Combination: {Foreground: "#9333ea", Background: "#faf5ff", Emoji: "🌓"},
	skin.Sensitive:   {Foreground: "#dc2626", Background: "#fef2f2", Emoji: "🌡"},
	skin.Normal:      {Foreground: "#16a34a", Background: "#f0fdf4", Emoji: "🌿"},
}

// ColorFor returns the badge colours for t, gray for unknown types.
func ColorFor(t skin.SkinType) SkinTypeColor {
	if c, ok := skinTypeColors[t]; ok {
		return c
	}
	return SkinTypeColor{Foreground: "#374151", Background: "#f3f4f6", Emoji: "•"}
}
