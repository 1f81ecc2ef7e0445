package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
	"github.com/yanqian/trip-planner/internal/infra/poi"
)

// Entry is one curated POI as written in the seed file.
type Entry struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Category    string            `yaml:"category"`
	Subcategory string            `yaml:"subcategory"`
	Lat         float64           `yaml:"lat"`
	Lon         float64           `yaml:"lon"`
	Duration    int               `yaml:"duration"`
	Tags        map[string]string `yaml:"tags"`
}

type seedFile struct {
	Cities map[string][]Entry `yaml:"cities"`
}

// Catalog is an offline supplier backed by a curated list per city.
type Catalog struct {
	byCity map[string][]itinerary.POI
}

var _ itinerary.POISupplier = (*Catalog)(nil)

// Load reads a YAML seed file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read poi catalog: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse poi catalog: %w", err)
	}
	return New(seed.Cities)
}

// New builds a catalog from entries keyed by city name.
func New(cities map[string][]Entry) (*Catalog, error) {
	c := &Catalog{byCity: make(map[string][]itinerary.POI, len(cities))}
	for city, entries := range cities {
		key := cityKey(city)
		for _, e := range entries {
			p := itinerary.POI{
				ID:                e.ID,
				Name:              e.Name,
				Category:          e.Category,
				Subcategory:       e.Subcategory,
				Coordinates:       itinerary.Coordinates{Lat: e.Lat, Lon: e.Lon},
				EstimatedDuration: e.Duration,
				Source:            "catalog",
				Tags:              e.Tags,
			}
			if p.ID == "" || p.Name == "" {
				return nil, fmt.Errorf("catalog entry in %s is missing id or name", city)
			}
			if err := itinerary.ValidateCoordinates(p.Coordinates); err != nil {
				return nil, fmt.Errorf("catalog entry %s: %w", p.ID, err)
			}
			if p.EstimatedDuration <= 0 {
				p.EstimatedDuration = poi.EstimateDuration(p.Subcategory, p.Tags)
			}
			c.byCity[key] = append(c.byCity[key], p)
		}
	}
	return c, nil
}

// Search returns the city's entries that pass the query filters, interest matches first.
func (c *Catalog) Search(_ context.Context, q itinerary.SearchQuery) ([]itinerary.POI, error) {
	entries := c.byCity[cityKey(q.City)]
	var preferred, rest []itinerary.POI
	for _, p := range entries {
		if !poi.Matches(p, q) {
			continue
		}
		if poi.MatchesInterests(p, q.Interests) {
			preferred = append(preferred, p)
		} else {
			rest = append(rest, p)
		}
	}
	out := append(preferred, rest...)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Cities lists the city keys the catalog knows.
func (c *Catalog) Cities() []string {
	out := make([]string, 0, len(c.byCity))
	for k := range c.byCity {
		out = append(out, k)
	}
	return out
}

// cityKey reduces "Jaipur, India" to "jaipur".
func cityKey(city string) string {
	city = strings.ToLower(strings.TrimSpace(city))
	if i := strings.Index(city, ","); i >= 0 {
		city = strings.TrimSpace(city[:i])
	}
	return city
}
