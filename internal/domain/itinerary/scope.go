package itinerary

import (
	"fmt"
	"slices"
)

const (
	reasonBlockChanged = "Block changed outside edit scope"
	reasonDayChanged   = "Day changed outside edit scope"
)

// ScopeDiff is a region that changed although the edit did not target it.
type ScopeDiff struct {
	Day    int       `json:"day"`
	Block  BlockType `json:"block,omitempty"`
	Reason string    `json:"reason"`
}

// ScopeReport is the verdict of a scope verification.
type ScopeReport struct {
	Passed              bool        `json:"passed"`
	Score               float64     `json:"score"`
	IntendedChangeFound bool        `json:"intendedChangeFound"`
	IntendedReason      string      `json:"intendedReason"`
	UnintendedDiffs     []ScopeDiff `json:"unintendedDiffs"`
	EditScope           Scope       `json:"editScope"`
	TargetDay           *int        `json:"targetDay,omitempty"`
	TargetBlock         *BlockType  `json:"targetBlock,omitempty"`
}

// Verifier checks that an edit stayed inside its declared scope.
type Verifier struct{}

// NewVerifier returns a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify compares the POI-id sequences of original and edited. Only regions outside the
// request's scope are compared.
func (v *Verifier) Verify(original, edited Itinerary, req EditRequest, changes []Change) ScopeReport {
	req = req.Normalized()
	report := ScopeReport{
		EditScope:       req.Scope,
		TargetDay:       req.Day,
		TargetBlock:     req.Block,
		UnintendedDiffs: []ScopeDiff{},
	}

	report.IntendedChangeFound, report.IntendedReason = intendedChange(req.EditType, changes)

	rule := scopeRuleFor(req)
	days := max(len(original.Days), len(edited.Days))
	for i := 0; i < days; i++ {
		if i >= len(original.Days) || i >= len(edited.Days) {
			dayNum := i + 1
			if i < len(original.Days) {
				dayNum = original.Days[i].Day
			} else {
				dayNum = edited.Days[i].Day
			}
			if !rule.dayExempt(dayNum) {
				report.UnintendedDiffs = append(report.UnintendedDiffs, ScopeDiff{Day: dayNum, Reason: reasonDayChanged})
			}
			continue
		}
		before, after := original.Days[i], edited.Days[i]
		if rule.dayExempt(before.Day) {
			continue
		}
		if len(before.Blocks) != len(after.Blocks) {
			report.UnintendedDiffs = append(report.UnintendedDiffs, ScopeDiff{Day: before.Day, Reason: reasonDayChanged})
			continue
		}
		for j := range before.Blocks {
			if rule.blockExempt(before.Day, before.Blocks[j].Type) {
				continue
			}
			if !slices.Equal(before.Blocks[j].POIIDs(), after.Blocks[j].POIIDs()) {
				report.UnintendedDiffs = append(report.UnintendedDiffs, ScopeDiff{
					Day:    before.Day,
					Block:  before.Blocks[j].Type,
					Reason: reasonBlockChanged,
				})
			}
		}
	}

	score := 1.0
	if !report.IntendedChangeFound {
		score -= 0.3
	}
	score -= 0.1 * float64(len(report.UnintendedDiffs))
	if score < 0 {
		score = 0
	}
	report.Score = score
	report.Passed = report.IntendedChangeFound && len(report.UnintendedDiffs) == 0
	return report
}

type scopeRule struct {
	all   bool
	day   *int
	block *BlockType
	// wholeDay exempts every block of the target day.
	wholeDay bool
}

func scopeRuleFor(req EditRequest) scopeRule {
	switch req.Scope {
	case ScopeFull:
		return scopeRule{all: true}
	case ScopeDay:
		if req.Day == nil {
			return scopeRule{all: true}
		}
		return scopeRule{day: req.Day, wholeDay: true}
	case ScopeBlock, ScopePOI:
		if req.Block == nil {
			if req.Day == nil {
				return scopeRule{all: true}
			}
			return scopeRule{day: req.Day, wholeDay: true}
		}
		return scopeRule{day: req.Day, block: req.Block}
	default:
		switch {
		case req.Day != nil && req.Block != nil:
			return scopeRule{day: req.Day, block: req.Block}
		case req.Day != nil:
			return scopeRule{day: req.Day, wholeDay: true}
		default:
			return scopeRule{all: true}
		}
	}
}

func (r scopeRule) dayExempt(day int) bool {
	if r.all {
		return true
	}
	return r.wholeDay && r.day != nil && *r.day == day
}

func (r scopeRule) blockExempt(day int, block BlockType) bool {
	if r.all || r.block == nil {
		return false
	}
	if r.day != nil && *r.day != day {
		return false
	}
	return *r.block == block
}

var expectedChanges = map[EditType][]ChangeType{
	EditPace:         {ChangePaceReduced, ChangePaceNote},
	EditSwap:         {ChangeSwap},
	EditReplace:      {ChangeSwap},
	EditWeather:      {ChangeSwap},
	EditAdd:          {ChangeAdd},
	EditRemove:       {ChangeRemove},
	EditReduceTravel: {ChangeReduceTravel},
}

// intendedChange passes on any non-empty change list; the type match only shapes the reason.
func intendedChange(editType EditType, changes []Change) (bool, string) {
	if len(changes) == 0 {
		return false, "No changes were made"
	}
	matched := 0
	for _, ch := range changes {
		if slices.Contains(expectedChanges[editType], ch.Type) {
			matched++
		}
	}
	if matched > 0 {
		return true, fmt.Sprintf("Found %d change(s) matching %s", matched, editType)
	}
	return true, fmt.Sprintf("Found %d change(s), none of type %s", len(changes), editType)
}
