package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
)

const seed = `
cities:
  Jaipur:
    - id: node/123456
      name: Hawa Mahal
      category: tourism
      subcategory: attraction
      lat: 26.9239
      lon: 75.8267
    - id: way/789012
      name: Albert Hall Museum
      category: tourism
      subcategory: museum
      lat: 26.9124
      lon: 75.8185
      tags:
        indoor: "yes"
    - id: node/012345
      name: Galtaji Temple
      category: amenity
      subcategory: place_of_worship
      lat: 26.9253
      lon: 75.8671
      duration: 75
`

func loadSeed(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))
	c, err := Load(path)
	require.NoError(t, err)
	return c
}

func TestSearchOrdersInterestMatchesFirst(t *testing.T) {
	c := loadSeed(t)

	pois, err := c.Search(context.Background(), itinerary.SearchQuery{City: "Jaipur, India", Interests: []string{"religion"}})
	require.NoError(t, err)
	require.Len(t, pois, 3)
	require.Equal(t, "node/012345", pois[0].ID)
	require.Equal(t, 75, pois[0].EstimatedDuration)
	require.Equal(t, 90, pois[2].EstimatedDuration)
	require.Equal(t, "catalog", pois[0].Source)
}

func TestSearchFiltersIndoorAndUnknownCity(t *testing.T) {
	c := loadSeed(t)

	indoor, err := c.Search(context.Background(), itinerary.SearchQuery{City: "jaipur", IndoorOnly: true})
	require.NoError(t, err)
	require.Len(t, indoor, 1)
	require.Equal(t, "Albert Hall Museum", indoor[0].Name)

	none, err := c.Search(context.Background(), itinerary.SearchQuery{City: "Oslo"})
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestNewRejectsBadEntries(t *testing.T) {
	_, err := New(map[string][]Entry{"x": {{ID: "a", Name: "A", Lat: 120}}})
	require.Error(t, err)

	_, err = New(map[string][]Entry{"x": {{Name: "A"}}})
	require.Error(t, err)
}
