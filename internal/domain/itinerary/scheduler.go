package itinerary

import (
	"fmt"
	"time"
)

// DefaultMaxTravelTimePerDay applies when constraints leave the budget unset.
const DefaultMaxTravelTimePerDay = 120

const lowFeasibilityThreshold = 0.7

// Scheduler greedily packs POIs into daily blocks. It never backtracks: a candidate that does
// not fit closes the current block and is offered to the next one.
type Scheduler struct {
	estimator TravelTimeEstimator
}

// NewScheduler builds a scheduler around a travel estimator.
func NewScheduler(estimator TravelTimeEstimator) *Scheduler {
	if estimator == nil {
		estimator = NewGreatCircleEstimator()
	}
	return &Scheduler{estimator: estimator}
}

// QuotaFor returns how many POIs a single block may hold for a pace.
func QuotaFor(p Pace) int {
	switch p {
	case PaceRelaxed:
		return 1
	case PaceModerate:
		return 2
	default:
		return 3
	}
}

// Build places POIs, taken from the front of the list, into the supplied windows. Running out of
// POIs is reported as a warning, not an error.
func (s *Scheduler) Build(pois []POI, windows []TimeWindow, c Constraints) (Itinerary, Reasoning, error) {
	for _, p := range pois {
		if err := ValidateCoordinates(p.Coordinates); err != nil {
			return Itinerary{}, Reasoning{}, fmt.Errorf("poi %s: %w", p.ID, err)
		}
	}
	for i, tw := range windows {
		if err := tw.Validate(); err != nil {
			return Itinerary{}, Reasoning{}, fmt.Errorf("day %d: %w", i+1, err)
		}
	}

	maxTravel := travelBudget(c)
	quota := QuotaFor(c.Pace)
	queue := append([]POI(nil), pois...)
	reasoning := Reasoning{Decisions: []Decision{}, Warnings: []string{}}
	days := make([]Day, 0, len(windows))

	emptyAfterExhaustion := 0
	exhaustedDay := 0

	for i, tw := range windows {
		day := Day{
			Day:    i + 1,
			Date:   tw.Morning.Start.Format(dateLayout),
			Blocks: make([]TimeBlock, 0, 3),
		}
		dayTravel := 0

		for _, w := range tw.Ordered() {
			if len(queue) == 0 {
				if exhaustedDay == 0 {
					exhaustedDay = day.Day
				}
				emptyAfterExhaustion++
			}
			block, placed, travel := s.fillBlock(w, queue, quota, maxTravel-dayTravel)
			queue = queue[placed:]
			dayTravel += travel
			for _, p := range block.POIs {
				reasoning.Decisions = append(reasoning.Decisions, Decision{
					POIID:  p.POIID,
					Reason: fmt.Sprintf("Included in %s block based on interests and constraints", block.Type),
					Source: "osm",
				})
			}
			day.Blocks = append(day.Blocks, block)
		}

		day.TotalTravelTime = dayTravel
		day.FeasibilityScore = ScoreDay(day, maxTravel)
		if day.FeasibilityScore < lowFeasibilityThreshold {
			reasoning.Warnings = append(reasoning.Warnings,
				fmt.Sprintf("Day %d has high travel time ratio (feasibility %.2f)", day.Day, day.FeasibilityScore))
		}
		days = append(days, day)
	}

	if emptyAfterExhaustion > 0 {
		reasoning.Warnings = append(reasoning.Warnings,
			fmt.Sprintf("Ran out of POIs on day %d: %d block(s) left empty", exhaustedDay, emptyAfterExhaustion))
	}

	return Itinerary{Days: days}, reasoning, nil
}

// fillBlock walks the queue front to back and returns the block, how many POIs it consumed and
// the travel minutes it spent. travelLeft is the remaining day-wide budget.
func (s *Scheduler) fillBlock(w Window, queue []POI, quota, travelLeft int) (TimeBlock, int, int) {
	block := TimeBlock{
		Window: w,
		Type:   BlockTypeFor(w.Start),
		POIs:   []PlacedPOI{},
	}
	blockMinutes := w.Minutes()
	elapsed := 0
	travelSpent := 0
	var prev *Coordinates

	placed := 0
	for placed < len(queue) && len(block.POIs) < quota {
		candidate := queue[placed]
		travel := 0
		if prev != nil {
			minutes, err := travelMinutes(s.estimator, *prev, candidate.Coordinates)
			if err != nil {
				break
			}
			travel = minutes
		}
		if travelSpent+travel > travelLeft {
			break
		}
		duration := candidate.VisitDuration()
		if elapsed+travel+duration > blockMinutes {
			break
		}

		arrival := w.Start.Add(time.Duration(elapsed+travel) * time.Minute)
		block.POIs = append(block.POIs, PlacedPOI{
			POIID:         candidate.ID,
			Name:          candidate.Name,
			Category:      candidate.Category,
			Coordinates:   candidate.Coordinates,
			ArrivalTime:   arrival,
			DepartureTime: arrival.Add(time.Duration(duration) * time.Minute),
			Duration:      duration,
		})
		elapsed += travel + duration
		travelSpent += travel
		coords := candidate.Coordinates
		prev = &coords
		placed++
	}

	block.TravelTime = travelSpent
	block.TotalDuration = elapsed
	return block, placed, travelSpent
}

// ScoreDay is the scheduler's own per-day feasibility heuristic.
func ScoreDay(day Day, maxTravel int) float64 {
	score := 1.0
	if day.TotalTravelTime > maxTravel {
		score -= 0.3
	}
	if total := day.TotalDuration(); total > 0 {
		if float64(day.TotalTravelTime)/float64(total) > 0.4 {
			score -= 0.2
		}
	}
	return clamp01(score)
}

func travelBudget(c Constraints) int {
	if c.MaxTravelTimePerDay <= 0 {
		return DefaultMaxTravelTimePerDay
	}
	return c.MaxTravelTimePerDay
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
