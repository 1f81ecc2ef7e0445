package itinerary

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/trip-planner/pkg/errors"
)

func TestBuildPacksBlockUntilWindowIsFull(t *testing.T) {
	pois := []POI{poiAt("A", 26.90, 75.80), poiAt("B", 26.94, 75.80), poiAt("C", 26.98, 75.80)}
	scheduler := NewScheduler(fixedEstimator{minutes: 10})

	it, reasoning, err := scheduler.Build(pois, testWindows(t, 1), Constraints{Pace: PaceFast, MaxTravelTimePerDay: 120})
	require.NoError(t, err)
	require.Len(t, it.Days, 1)

	morning := it.Days[0].Blocks[0]
	require.Equal(t, BlockMorning, morning.Type)
	require.Equal(t, []string{"A", "B"}, morning.POIIDs())

	start := morning.Window.Start
	require.Equal(t, start, morning.POIs[0].ArrivalTime)
	require.Equal(t, start.Add(60*time.Minute), morning.POIs[0].DepartureTime)
	require.Equal(t, start.Add(70*time.Minute), morning.POIs[1].ArrivalTime)
	require.Equal(t, start.Add(130*time.Minute), morning.POIs[1].DepartureTime)
	require.Equal(t, 10, morning.TravelTime)
	require.Equal(t, 130, morning.TotalDuration)

	afternoon := it.Days[0].Blocks[1]
	require.Equal(t, []string{"C"}, afternoon.POIIDs())
	require.Equal(t, afternoon.Window.Start, afternoon.POIs[0].ArrivalTime)
	require.Zero(t, afternoon.TravelTime)

	require.Empty(t, it.Days[0].Blocks[2].POIs)
	require.Len(t, reasoning.Decisions, 3)
	require.Equal(t, "Included in morning block based on interests and constraints", reasoning.Decisions[0].Reason)
	require.Equal(t, "osm", reasoning.Decisions[0].Source)
	require.Contains(t, reasoning.Warnings, "Ran out of POIs on day 1: 1 block(s) left empty")
}

func TestBuildRespectsPaceQuota(t *testing.T) {
	pois := []POI{poiAt("A", 26.90, 75.80), poiAt("B", 26.94, 75.80), poiAt("C", 26.98, 75.80)}
	scheduler := NewScheduler(fixedEstimator{minutes: 10})

	it, _, err := scheduler.Build(pois, testWindows(t, 1), Constraints{Pace: PaceModerate})
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B"}, it.Days[0].Blocks[0].POIIDs())
	require.Equal(t, []string{"C"}, it.Days[0].Blocks[1].POIIDs())

	relaxed, _, err := scheduler.Build(pois, testWindows(t, 1), Constraints{Pace: PaceRelaxed})
	require.NoError(t, err)
	for i, block := range relaxed.Days[0].Blocks {
		require.Len(t, block.POIs, 1, "block %d", i)
	}
}

func TestBuildNeverExceedsTravelBudget(t *testing.T) {
	pois := []POI{
		poiAt("A", 26.90, 75.80),
		poiAt("B", 26.91, 75.80),
		poiAt("C", 26.92, 75.80),
		poiAt("D", 26.93, 75.80),
	}
	scheduler := NewScheduler(fixedEstimator{minutes: 10})

	it, _, err := scheduler.Build(pois, testWindows(t, 1), Constraints{Pace: PaceFast, MaxTravelTimePerDay: 15})
	require.NoError(t, err)

	day := it.Days[0]
	require.Equal(t, []string{"A", "B"}, day.Blocks[0].POIIDs())
	require.Equal(t, []string{"C"}, day.Blocks[1].POIIDs())
	require.Equal(t, []string{"D"}, day.Blocks[2].POIIDs())
	require.LessOrEqual(t, day.TotalTravelTime, 15)
}

func TestBuildHandlesExhaustionAcrossDays(t *testing.T) {
	pois := []POI{poiAt("A", 26.90, 75.80)}
	scheduler := NewScheduler(fixedEstimator{minutes: 10})

	it, reasoning, err := scheduler.Build(pois, testWindows(t, 2), Constraints{Pace: PaceModerate})
	require.NoError(t, err)
	require.Len(t, it.Days, 2)
	require.Equal(t, "2025-03-01", it.Days[0].Date)
	require.Equal(t, "2025-03-02", it.Days[1].Date)
	require.Zero(t, it.Days[1].POICount())
	require.Contains(t, reasoning.Warnings, "Ran out of POIs on day 1: 5 block(s) left empty")
}

func TestBuildRejectsInvalidCoordinates(t *testing.T) {
	pois := []POI{poiAt("A", 26.9, 75.8), poiAt("bad", 200, 75.8)}
	_, _, err := NewScheduler(nil).Build(pois, testWindows(t, 1), Constraints{Pace: PaceModerate})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, CodeInvalidCoordinate))
}

func TestBuildRejectsOverlappingWindows(t *testing.T) {
	windows := testWindows(t, 1)
	windows[0].Afternoon.Start = windows[0].Morning.End.Add(-30 * time.Minute)

	_, _, err := NewScheduler(nil).Build([]POI{poiAt("A", 26.9, 75.8)}, windows, Constraints{})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, CodeInvalidWindow))
}

func TestScoreDay(t *testing.T) {
	day := Day{
		TotalTravelTime: 180,
		Blocks:          []TimeBlock{{TotalDuration: 150}, {TotalDuration: 150}},
	}
	require.InDelta(t, 0.5, ScoreDay(day, 120), 1e-9)
	require.InDelta(t, 0.8, ScoreDay(day, 200), 1e-9)
	require.InDelta(t, 1.0, ScoreDay(Day{}, 120), 1e-9)
}

func TestQuotaFor(t *testing.T) {
	require.Equal(t, 1, QuotaFor(PaceRelaxed))
	require.Equal(t, 2, QuotaFor(PaceModerate))
	require.Equal(t, 3, QuotaFor(PaceFast))
	require.Equal(t, 3, QuotaFor(Pace("sprint")))
}

// kmNorth returns a point km kilometres due north of origin on the estimator's sphere.
func kmNorth(origin Coordinates, km float64) Coordinates {
	return Coordinates{Lat: origin.Lat + km/earthRadiusKM*180/math.Pi, Lon: origin.Lon}
}

func TestBuildWithGreatCircleEstimatorFiveKilometreLegs(t *testing.T) {
	a := Coordinates{Lat: 26.90, Lon: 75.80}
	b := kmNorth(a, 5)
	c := kmNorth(a, 10)
	pois := []POI{poiAt("A", a.Lat, a.Lon), poiAt("B", b.Lat, b.Lon), poiAt("C", c.Lat, c.Lon)}

	it, _, err := NewScheduler(NewGreatCircleEstimator()).Build(pois, testWindows(t, 1), Constraints{Pace: PaceModerate, MaxTravelTimePerDay: 120})
	require.NoError(t, err)

	morning := it.Days[0].Blocks[0]
	require.Equal(t, []string{"A", "B"}, morning.POIIDs())
	start := morning.Window.Start
	require.Equal(t, start.Add(70*time.Minute), morning.POIs[1].ArrivalTime)
	require.Equal(t, start.Add(130*time.Minute), morning.POIs[1].DepartureTime)
	require.Equal(t, 10, morning.TravelTime)
	require.Equal(t, 130, morning.TotalDuration)
	require.Equal(t, []string{"C"}, it.Days[0].Blocks[1].POIIDs())
}
