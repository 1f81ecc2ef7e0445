package itinerary

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/yanqian/trip-planner/pkg/errors"
)

const dateLayout = "2006-01-02"

// Validate checks that every sub-window is non-empty and that the three are chronological and
// non-overlapping.
func (tw TimeWindow) Validate() error {
	names := []BlockType{BlockMorning, BlockAfternoon, BlockEvening}
	ordered := tw.Ordered()
	for i, w := range ordered {
		if w.Start.IsZero() || w.End.IsZero() {
			return apperrors.Wrap(CodeInvalidWindow, fmt.Sprintf("%s window is missing a bound", names[i]), nil)
		}
		if !w.Start.Before(w.End) {
			return apperrors.Wrap(CodeInvalidWindow, fmt.Sprintf("%s window starts at or after its end", names[i]), nil)
		}
		if i > 0 && w.Start.Before(ordered[i-1].End) {
			return apperrors.Wrap(CodeInvalidWindow, fmt.Sprintf("%s window overlaps %s", names[i], names[i-1]), nil)
		}
	}
	return nil
}

// MakeWindows produces the default 09-12 / 13-17 / 18-21 windows for consecutive days
// starting at startDate (YYYY-MM-DD). An empty startDate means the day after now.
func MakeWindows(days int, startDate string, now time.Time, loc *time.Location) ([]TimeWindow, error) {
	if days < 1 {
		return nil, apperrors.Wrap(CodeInvalidInput, "trip duration must be at least one day", nil)
	}
	if loc == nil {
		loc = time.UTC
	}
	var first time.Time
	if trimmed := strings.TrimSpace(startDate); trimmed != "" {
		parsed, err := time.ParseInLocation(dateLayout, trimmed, loc)
		if err != nil {
			return nil, apperrors.Wrap(CodeInvalidInput, "start date must be formatted as YYYY-MM-DD", err)
		}
		first = parsed
	} else {
		local := now.In(loc)
		first = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	}

	windows := make([]TimeWindow, 0, days)
	for i := 0; i < days; i++ {
		day := first.AddDate(0, 0, i)
		windows = append(windows, TimeWindow{
			Morning:   span(day, 9, 12),
			Afternoon: span(day, 13, 17),
			Evening:   span(day, 18, 21),
		})
	}
	return windows, nil
}

func span(day time.Time, fromHour, toHour int) Window {
	return Window{
		Start: time.Date(day.Year(), day.Month(), day.Day(), fromHour, 0, 0, 0, day.Location()),
		End:   time.Date(day.Year(), day.Month(), day.Day(), toHour, 0, 0, 0, day.Location()),
	}
}
