package itinerary

import "fmt"

// Check names emitted in a FeasibilityReport.
const (
	CheckDailyDuration   = "daily_duration"
	CheckTravelTime      = "travel_time"
	CheckPaceConsistency = "pace_consistency"
)

// Severity of a failed check.
type Severity string

const (
	SeverityNone    Severity = ""
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

const (
	// DailyAvailableMinutes caps the scheduled time of one day.
	DailyAvailableMinutes = 720
	travelRatioWarning    = 0.4
	travelRatioError      = 0.5
	feasibleScoreFloor    = 0.6
)

// PaceRange is the inclusive POI count accepted per day for a pace.
type PaceRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

var paceRanges = map[Pace]PaceRange{
	PaceRelaxed:  {Min: 1, Max: 3},
	PaceModerate: {Min: 2, Max: 5},
	PaceFast:     {Min: 4, Max: 8},
}

// RangeFor returns the accepted POI count for a pace, defaulting to moderate.
func RangeFor(p Pace) PaceRange {
	if r, ok := paceRanges[p]; ok {
		return r
	}
	return paceRanges[PaceModerate]
}

// Check is a single per-day validation record.
type Check struct {
	Check    string     `json:"check"`
	Day      int        `json:"day"`
	Passed   bool       `json:"passed"`
	Value    float64    `json:"value"`
	Limit    float64    `json:"limit,omitempty"`
	Ratio    *float64   `json:"ratio,omitempty"`
	Expected *PaceRange `json:"expected,omitempty"`
	Issue    string     `json:"issue,omitempty"`
	Severity Severity   `json:"severity,omitempty"`
}

// FeasibilityReport aggregates all checks over an itinerary.
type FeasibilityReport struct {
	OverallScore float64  `json:"overallScore"`
	IsFeasible   bool     `json:"isFeasible"`
	Checks       []Check  `json:"checks"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
}

// Validator re-scores itineraries without knowing how they were produced.
type Validator struct{}

// NewValidator returns a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Evaluate runs the duration, travel ratio and pace checks on every day. It only reads the
// itinerary.
func (v *Validator) Evaluate(it Itinerary, c Constraints) FeasibilityReport {
	report := FeasibilityReport{
		OverallScore: 1.0,
		Checks:       []Check{},
		Errors:       []string{},
		Warnings:     []string{},
	}

	for _, day := range it.Days {
		for _, check := range []Check{
			checkDailyDuration(day),
			checkTravelRatio(day),
			checkPace(day, c.Pace),
		} {
			report.Checks = append(report.Checks, check)
			if check.Passed {
				continue
			}
			msg := fmt.Sprintf("Day %d: %s", day.Day, check.Issue)
			switch check.Severity {
			case SeverityError:
				report.Errors = append(report.Errors, msg)
				report.OverallScore -= 0.2
			default:
				report.Warnings = append(report.Warnings, msg)
				report.OverallScore -= 0.1
			}
		}
	}

	report.OverallScore = clamp01(report.OverallScore)
	report.IsFeasible = report.OverallScore >= feasibleScoreFloor && len(report.Errors) == 0
	return report
}

func checkDailyDuration(day Day) Check {
	total := day.TotalDuration()
	check := Check{
		Check:  CheckDailyDuration,
		Day:    day.Day,
		Passed: total <= DailyAvailableMinutes,
		Value:  float64(total),
		Limit:  DailyAvailableMinutes,
	}
	if !check.Passed {
		check.Issue = fmt.Sprintf("Total duration (%d min) exceeds available time (%d min)", total, DailyAvailableMinutes)
		check.Severity = SeverityError
	}
	return check
}

func checkTravelRatio(day Day) Check {
	total := day.TotalDuration()
	ratio := 0.0
	if total > 0 {
		ratio = float64(day.TotalTravelTime) / float64(total)
	}
	check := Check{
		Check:  CheckTravelTime,
		Day:    day.Day,
		Passed: true,
		Value:  float64(day.TotalTravelTime),
		Limit:  travelRatioWarning,
		Ratio:  &ratio,
	}
	switch {
	case ratio > travelRatioError:
		check.Passed = false
		check.Severity = SeverityError
		check.Issue = fmt.Sprintf("Travel time (%d min, %.0f%%) is very high", day.TotalTravelTime, ratio*100)
	case ratio > travelRatioWarning:
		check.Passed = false
		check.Severity = SeverityWarning
		check.Issue = fmt.Sprintf("Travel time (%d min, %.0f%%) exceeds recommended %.0f%%", day.TotalTravelTime, ratio*100, travelRatioWarning*100)
	}
	return check
}

func checkPace(day Day, pace Pace) Check {
	count := day.POICount()
	expected := RangeFor(pace)
	label := pace
	if _, ok := paceRanges[pace]; !ok {
		label = PaceModerate
	}
	check := Check{
		Check:    CheckPaceConsistency,
		Day:      day.Day,
		Passed:   true,
		Value:    float64(count),
		Expected: &expected,
	}
	switch {
	case count < expected.Min:
		check.Passed = false
		check.Severity = SeverityWarning
		check.Issue = fmt.Sprintf("Too few POIs (%d) for %s pace (min: %d)", count, label, expected.Min)
	case count > expected.Max:
		check.Passed = false
		check.Severity = SeverityWarning
		check.Issue = fmt.Sprintf("Too many POIs (%d) for %s pace (max: %d)", count, label, expected.Max)
	}
	return check
}

// CheckSummary counts passed and failed checks of one kind.
type CheckSummary struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Summarize groups a report's checks by check name.
func (r FeasibilityReport) Summarize() map[string]CheckSummary {
	out := map[string]CheckSummary{
		CheckDailyDuration:   {},
		CheckTravelTime:      {},
		CheckPaceConsistency: {},
	}
	for _, c := range r.Checks {
		s := out[c.Check]
		if c.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		out[c.Check] = s
	}
	return out
}
