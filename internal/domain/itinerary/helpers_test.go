package itinerary

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedEstimator struct {
	minutes float64
}

func (f fixedEstimator) Estimate(from, to Coordinates) (float64, error) {
	if err := ValidateCoordinates(from); err != nil {
		return 0, err
	}
	if err := ValidateCoordinates(to); err != nil {
		return 0, err
	}
	return f.minutes, nil
}

type stubSupplier struct {
	searchFn func(ctx context.Context, q SearchQuery) ([]POI, error)
	queries  []SearchQuery
}

func (s *stubSupplier) Search(ctx context.Context, q SearchQuery) ([]POI, error) {
	s.queries = append(s.queries, q)
	if s.searchFn == nil {
		return nil, nil
	}
	return s.searchFn(ctx, q)
}

func poiAt(id string, lat, lon float64) POI {
	return POI{
		ID:                id,
		Name:              "POI " + id,
		Category:          "tourism",
		Coordinates:       Coordinates{Lat: lat, Lon: lon},
		EstimatedDuration: 60,
	}
}

func testWindows(t *testing.T, days int) []TimeWindow {
	t.Helper()
	windows, err := MakeWindows(days, "2025-03-01", time.Time{}, time.UTC)
	require.NoError(t, err)
	return windows
}

// buildItinerary lays out ids per day and block (morning, afternoon, evening) with 60 minute
// visits and fixed 10 minute legs.
func buildItinerary(t *testing.T, layout ...[3][]string) Itinerary {
	t.Helper()
	windows := testWindows(t, len(layout))
	editor := NewEditor(nil, fixedEstimator{minutes: 10})
	it := Itinerary{Days: make([]Day, 0, len(layout))}
	for di, blocks := range layout {
		day := Day{Day: di + 1, Date: windows[di].Morning.Start.Format(dateLayout), Blocks: make([]TimeBlock, 0, 3)}
		for bi, w := range windows[di].Ordered() {
			block := TimeBlock{Window: w, Type: BlockTypeFor(w.Start), POIs: []PlacedPOI{}}
			for k, id := range blocks[bi] {
				block.POIs = append(block.POIs, PlacedPOI{
					POIID:       id,
					Name:        "POI " + id,
					Category:    "tourism",
					Coordinates: Coordinates{Lat: 26.9 + float64(k)*0.01, Lon: 75.8},
					Duration:    60,
				})
			}
			editor.retime(&block)
			day.TotalTravelTime += block.TravelTime
			day.Blocks = append(day.Blocks, block)
		}
		day.FeasibilityScore = ScoreDay(day, DefaultMaxTravelTimePerDay)
		it.Days = append(it.Days, day)
	}
	return it
}

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

func intPtr(v int) *int {
	return &v
}

func blockPtr(b BlockType) *BlockType {
	return &b
}
