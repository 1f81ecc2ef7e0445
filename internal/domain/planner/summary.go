package planner

import (
	"fmt"
	"strings"

	"github.com/yanqian/trip-planner/internal/domain/itinerary"
)

// SummarizeItinerary renders a compact, line-per-day description used in prompts. Each POI carries
// its id in brackets so a remove edit can name it.
func SummarizeItinerary(it itinerary.Itinerary) string {
	var sb strings.Builder
	for _, day := range it.Days {
		fmt.Fprintf(&sb, "Day %d (%s):", day.Day, day.Date)
		for _, b := range day.Blocks {
			names := make([]string, 0, len(b.POIs))
			for _, p := range b.POIs {
				names = append(names, fmt.Sprintf("%s [%s]", p.Name, p.POIID))
			}
			list := "free"
			if len(names) > 0 {
				list = strings.Join(names, ", ")
			}
			fmt.Fprintf(&sb, " %s: %s;", b.Type, list)
		}
		fmt.Fprintf(&sb, " travel %d min\n", day.TotalTravelTime)
	}
	return strings.TrimRight(sb.String(), "\n")
}
