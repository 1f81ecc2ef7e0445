package itinerary

import (
	"strings"
	"time"
)

// Pace is the traveller's preferred rhythm.
type Pace string

const (
	PaceRelaxed  Pace = "relaxed"
	PaceModerate Pace = "moderate"
	PaceFast     Pace = "fast"
)

// ParsePace normalizes user supplied pace strings. Unknown values are returned as-is so the
// scheduler and validator can apply their own defaults.
func ParsePace(raw string) Pace {
	return Pace(strings.ToLower(strings.TrimSpace(raw)))
}

// BlockType labels one of the three daily segments.
type BlockType string

const (
	BlockMorning   BlockType = "morning"
	BlockAfternoon BlockType = "afternoon"
	BlockEvening   BlockType = "evening"
)

// BlockTypeFor derives the label from the hour a block starts.
func BlockTypeFor(start time.Time) BlockType {
	hour := start.Hour()
	switch {
	case hour <= 12:
		return BlockMorning
	case hour < 17:
		return BlockAfternoon
	default:
		return BlockEvening
	}
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// POI is a point of interest as produced by a supplier.
type POI struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Category          string            `json:"category"`
	Subcategory       string            `json:"subcategory,omitempty"`
	Coordinates       Coordinates       `json:"coordinates"`
	EstimatedDuration int               `json:"estimatedDuration"`
	Source            string            `json:"source,omitempty"`
	Tags              map[string]string `json:"tags,omitempty"`
}

// DefaultVisitDuration is used when a POI carries no estimate.
const DefaultVisitDuration = 60

// VisitDuration returns the dwell time in minutes.
func (p POI) VisitDuration() int {
	if p.EstimatedDuration <= 0 {
		return DefaultVisitDuration
	}
	return p.EstimatedDuration
}

// Window is a half-open time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Minutes returns the window length.
func (w Window) Minutes() int {
	return int(w.End.Sub(w.Start) / time.Minute)
}

// TimeWindow holds the three sub-windows of one day.
type TimeWindow struct {
	Morning   Window `json:"morning"`
	Afternoon Window `json:"afternoon"`
	Evening   Window `json:"evening"`
}

// Ordered returns the sub-windows in chronological order.
func (tw TimeWindow) Ordered() []Window {
	return []Window{tw.Morning, tw.Afternoon, tw.Evening}
}

// PlacedPOI is a POI scheduled at a concrete time.
type PlacedPOI struct {
	POIID         string      `json:"poiId"`
	Name          string      `json:"name"`
	Category      string      `json:"category"`
	Coordinates   Coordinates `json:"coordinates"`
	ArrivalTime   time.Time   `json:"arrivalTime"`
	DepartureTime time.Time   `json:"departureTime"`
	Duration      int         `json:"duration"`
}

// TimeBlock is one segment of a day.
type TimeBlock struct {
	Window        Window      `json:"time"`
	Type          BlockType   `json:"type"`
	POIs          []PlacedPOI `json:"pois"`
	TravelTime    int         `json:"travelTime"`
	TotalDuration int         `json:"totalDuration"`
}

// POIIDs lists the ids in visiting order.
func (b TimeBlock) POIIDs() []string {
	ids := make([]string, 0, len(b.POIs))
	for _, p := range b.POIs {
		ids = append(ids, p.POIID)
	}
	return ids
}

// Day is a single itinerary day.
type Day struct {
	Day              int         `json:"day"`
	Date             string      `json:"date"`
	Blocks           []TimeBlock `json:"blocks"`
	TotalTravelTime  int         `json:"totalTravelTime"`
	FeasibilityScore float64     `json:"feasibilityScore"`
}

// TotalDuration sums the block durations.
func (d Day) TotalDuration() int {
	total := 0
	for _, b := range d.Blocks {
		total += b.TotalDuration
	}
	return total
}

// POICount counts placed POIs across blocks.
func (d Day) POICount() int {
	n := 0
	for _, b := range d.Blocks {
		n += len(b.POIs)
	}
	return n
}

// Itinerary is an ordered list of days. Values are treated as immutable once built; edits
// produce a new Itinerary through Clone.
type Itinerary struct {
	Days []Day `json:"days"`
}

// Clone returns a deep copy that shares no slices with the receiver.
func (it Itinerary) Clone() Itinerary {
	if it.Days == nil {
		return Itinerary{}
	}
	days := make([]Day, len(it.Days))
	for i, d := range it.Days {
		days[i] = d
		if d.Blocks != nil {
			days[i].Blocks = make([]TimeBlock, len(d.Blocks))
			for j, b := range d.Blocks {
				days[i].Blocks[j] = b
				if b.POIs != nil {
					pois := make([]PlacedPOI, len(b.POIs))
					copy(pois, b.POIs)
					days[i].Blocks[j].POIs = pois
				}
			}
		}
	}
	return Itinerary{Days: days}
}

// Contains reports whether a POI id appears anywhere in the itinerary.
func (it Itinerary) Contains(poiID string) bool {
	for _, d := range it.Days {
		for _, b := range d.Blocks {
			for _, p := range b.POIs {
				if p.POIID == poiID {
					return true
				}
			}
		}
	}
	return false
}

// FindDay returns the index of the 1-based day number, or -1.
func (it Itinerary) FindDay(day int) int {
	for i, d := range it.Days {
		if d.Day == day {
			return i
		}
	}
	return -1
}

// Preferences carry optional filters forwarded to POI suppliers.
type Preferences struct {
	Interests     []string `json:"interests,omitempty"`
	IndoorOnly    bool     `json:"indoorOnly,omitempty"`
	Accessibility bool     `json:"accessibility,omitempty"`
}

// Constraints drive scheduling, validation and edits.
type Constraints struct {
	City                string      `json:"city"`
	Pace                Pace        `json:"pace"`
	MaxTravelTimePerDay int         `json:"maxTravelTimePerDay"`
	Preferences         Preferences `json:"preferences"`
}

// Decision explains why a POI was placed.
type Decision struct {
	POIID  string `json:"poiId"`
	Reason string `json:"reason"`
	Source string `json:"source"`
}

// Reasoning is the scheduler's audit log.
type Reasoning struct {
	Decisions []Decision `json:"decisions"`
	Warnings  []string   `json:"warnings"`
}
